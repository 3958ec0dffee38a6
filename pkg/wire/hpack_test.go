package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	fields := []HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/example.Greeter/SayHello"},
		{Name: "content-type", Value: "application/grpc"},
		{Name: "x-custom", Value: "some-value"},
	}

	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	block := enc.Encode(nil, fields)
	got, err := dec.DecodeInto(block, nil)
	if err != nil {
		t.Fatalf("DecodeInto: %v", err)
	}
	if len(got) != len(fields) {
		t.Fatalf("decoded %d fields, want %d", len(got), len(fields))
	}
	for i, f := range fields {
		if got[i].Name != f.Name || got[i].Value != f.Value {
			t.Fatalf("field %d = %+v, want %+v", i, got[i], f)
		}
	}
}

func TestEncodeUsesStaticIndexForExactMatch(t *testing.T) {
	enc := NewEncoder(4096)
	block := enc.Encode(nil, []HeaderField{{Name: ":method", Value: "GET"}})
	// Index 2 in the static table is exactly {":method", "GET"}; a single
	// indexed representation is one byte: 0x80 | 2.
	if len(block) != 1 || block[0] != 0x82 {
		t.Fatalf("block = % X, want single indexed byte 0x82", block)
	}
}

func TestRepeatedFieldGetsIndexedOnSecondEncode(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	field := HeaderField{Name: "x-request-id", Value: "abc-123"}
	first := enc.Encode(nil, []HeaderField{field})
	second := enc.Encode(nil, []HeaderField{field})

	if len(second) >= len(first) {
		t.Fatalf("second encode (%d bytes) should be shorter than the first (%d), it should hit the dynamic table", len(second), len(first))
	}

	if _, err := dec.DecodeInto(first, nil); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	got, err := dec.DecodeInto(second, nil)
	if err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if got[0] != field {
		t.Fatalf("got %+v, want %+v", got[0], field)
	}
}

func TestSensitiveFieldNeverIndexed(t *testing.T) {
	enc := NewEncoder(4096)
	field := HeaderField{Name: "authorization", Value: "secret-token", Sensitive: true}
	enc.Encode(nil, []HeaderField{field})
	enc.Encode(nil, []HeaderField{field})
	if enc.table.dynamic.Len() != 0 {
		t.Fatalf("dynamic table has %d entries, want 0 (sensitive fields must never be indexed)", enc.table.dynamic.Len())
	}
}

func TestDynamicTableEvictsUnderPressure(t *testing.T) {
	dt := newDynamicTable(64)
	dt.Add(HeaderField{Name: "a", Value: "1"})  // size 34
	dt.Add(HeaderField{Name: "bb", Value: "22"}) // size 36, evicts the first

	if dt.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after eviction", dt.Len())
	}
	if dt.Size() > 64 {
		t.Fatalf("Size() = %d, exceeds max 64", dt.Size())
	}
	got, ok := dt.Get(1)
	if !ok || got.Name != "bb" {
		t.Fatalf("Get(1) = %+v, %v; want the surviving entry", got, ok)
	}
}

func TestDynamicTableSizeUpdateDirectivePropagates(t *testing.T) {
	enc := NewEncoder(4096)
	dec := NewDecoder(4096)

	// Prime the dynamic table, then shrink it; the next encode must prefix
	// a dynamic-table-size-update directive so the decoder's table shrinks
	// in lockstep before any indexed reference is possible.
	field := HeaderField{Name: "x-trace", Value: "deadbeef"}
	first := enc.Encode(nil, []HeaderField{field})
	if _, err := dec.DecodeInto(first, nil); err != nil {
		t.Fatalf("decode first: %v", err)
	}

	enc.SetMaxDynamicSize(0)
	second := enc.Encode(nil, []HeaderField{field})
	if _, err := dec.DecodeInto(second, nil); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if dec.table.dynamic.maxSize != 0 {
		t.Fatalf("decoder dynamic maxSize = %d, want 0 after resize directive", dec.table.dynamic.maxSize)
	}
}

func TestDecodeRejectsSizeUpdateAfterHeaderEmitted(t *testing.T) {
	dec := NewDecoder(4096)

	var w byteWriter
	// One literal-never-indexed field...
	w.writeU8(repLiteralNeverIdx)
	writeString(&w, "x", false)
	writeString(&w, "y", false)
	// ...followed by a size-update, which HPACK only allows before any
	// header representation in the block.
	writeVarInt(&w, 5, repDynamicTableSize, 0)

	if _, err := dec.DecodeInto(w.bytes(), nil); err != ErrInvalidCompression {
		t.Fatalf("DecodeInto() err = %v, want ErrInvalidCompression", err)
	}
}

func TestDecodeRejectsSizeUpdateAboveAdvertisedMax(t *testing.T) {
	dec := NewDecoder(4096)

	var w byteWriter
	writeVarInt(&w, 5, repDynamicTableSize, 8192)

	if _, err := dec.DecodeInto(w.bytes(), nil); err != ErrInvalidCompression {
		t.Fatalf("DecodeInto() err = %v, want ErrInvalidCompression", err)
	}
}

func TestVarIntRoundTrip(t *testing.T) {
	cases := []int{0, 5, 30, 127, 128, 1337, 1 << 20}
	for _, n := range cases {
		var w byteWriter
		writeVarInt(&w, 5, 0, n)
		c := newByteCursor(w.bytes())
		first, _ := c.readU8()
		got, err := readVarInt(c, 5, first&0x1f)
		if err != nil {
			t.Fatalf("readVarInt(%d): %v", n, err)
		}
		if got != n {
			t.Fatalf("round-trip %d got %d", n, got)
		}
	}
}
