package wire

// dynamicTable is the FIFO, size-bounded header table each HPACK
// encoder/decoder maintains privately for its own connection direction.
// Index 1 is the most recently inserted entry; entries are evicted from the
// tail once the table's total size exceeds its configured max.
type dynamicTable struct {
	entries []HeaderField // entries[0] is most recent
	size    int           // sum of entries[i].Size()
	maxSize int           // current negotiated cap
}

func newDynamicTable(maxSize int) *dynamicTable {
	return &dynamicTable{maxSize: maxSize}
}

// Len reports the number of entries currently held.
func (t *dynamicTable) Len() int { return len(t.entries) }

// Size reports the current accounted size.
func (t *dynamicTable) Size() int { return t.size }

// Add inserts a new entry at the front, evicting from the tail until the
// table fits within maxSize. An entry larger than maxSize by itself leaves
// the table empty, per HPACK's eviction rule.
func (t *dynamicTable) Add(h HeaderField) {
	entrySize := h.Size()
	t.entries = append([]HeaderField{h}, t.entries...)
	t.size += entrySize
	t.evict()
}

func (t *dynamicTable) evict() {
	for t.size > t.maxSize && len(t.entries) > 0 {
		last := t.entries[len(t.entries)-1]
		t.entries = t.entries[:len(t.entries)-1]
		t.size -= last.Size()
	}
}

// SetMaxSize applies a new cap, evicting immediately if the table is now
// over budget. Called when a SETTINGS frame or dynamic-table-size-update
// directive changes the negotiated size.
func (t *dynamicTable) SetMaxSize(max int) {
	t.maxSize = max
	t.evict()
}

// Get resolves a 1-based dynamic-table index (as seen on the wire, before
// the static-table offset is added) to its entry.
func (t *dynamicTable) Get(index int) (HeaderField, bool) {
	if index < 1 || index > len(t.entries) {
		return HeaderField{}, false
	}
	return t.entries[index-1], true
}

// indexTable is the combined view HPACK encoding/decoding addresses: static
// entries first (indices 1..61), then the dynamic table (62..).
type indexTable struct {
	dynamic *dynamicTable
}

func newIndexTable(dynamicMaxSize int) *indexTable {
	return &indexTable{dynamic: newDynamicTable(dynamicMaxSize)}
}

// Resolve maps a combined wire index to its header field.
func (t *indexTable) Resolve(index int) (HeaderField, bool) {
	if index <= staticTableSize {
		e, ok := lookupStatic(index)
		if !ok {
			return HeaderField{}, false
		}
		return HeaderField{Name: e.Name, Value: e.Value}, true
	}
	return t.dynamic.Get(index - staticTableSize)
}

// FindIndex reports the combined wire index for an exact name+value match,
// and separately the index for a name-only match. Static entries are
// preferred when both tables have a hit, matching a reasonable encoder's
// bias toward the table that never needs eviction bookkeeping.
func (t *indexTable) FindIndex(name, value string) (full int, nameOnly int) {
	full, nameOnly = findStaticIndex(name, value)
	if full != 0 {
		return full, nameOnly
	}
	for i, e := range t.dynamic.entries {
		idx := staticTableSize + i + 1
		if e.Name == name && e.Value == value {
			return idx, nameOnly
		}
		if nameOnly == 0 && e.Name == name {
			nameOnly = idx
		}
	}
	return 0, nameOnly
}
