package wire

// This file implements the header-compression codec: HPACK variable-length
// integers, literal/indexed representations, and the Encoder/Decoder that
// drive them against the static and dynamic tables.

// representation type bits, as they appear in the first octet of a header
// field representation.
const (
	repIndexed          = 0x80 // 1xxxxxxx
	repLiteralIncIndex  = 0x40 // 01xxxxxx
	repLiteralNoIndex   = 0x00 // 0000xxxx
	repLiteralNeverIdx  = 0x10 // 0001xxxx
	repDynamicTableSize = 0x20 // 001xxxxx
)

// writeVarInt appends n encoded as an HPACK variable-length integer with
// the given prefix bit count (3..8), ORing the low bits into the partially
// filled leading byte whose high bits are prefixFlags.
func writeVarInt(w *byteWriter, prefixBits uint, prefixFlags byte, n int) {
	max := (1 << prefixBits) - 1
	if n < max {
		w.writeU8(prefixFlags | byte(n))
		return
	}
	w.writeU8(prefixFlags | byte(max))
	n -= max
	for n >= 128 {
		w.writeU8(byte(n%128 + 128))
		n /= 128
	}
	w.writeU8(byte(n))
}

// readVarInt decodes an HPACK variable-length integer from c, given that
// the first octet has already been consumed and its low prefixBits bits
// are passed in as firstByteValue.
func readVarInt(c *byteCursor, prefixBits uint, firstByteValue byte) (int, error) {
	max := (1 << prefixBits) - 1
	value := int(firstByteValue)
	if value < max {
		return value, nil
	}
	m := 0
	for {
		b, err := c.readU8()
		if err != nil {
			return 0, err
		}
		value += int(b&0x7f) << m
		if value < 0 {
			return 0, ErrInvalidCompression
		}
		if b&0x80 == 0 {
			return value, nil
		}
		m += 7
		if m > 32 {
			return 0, ErrInvalidCompression
		}
	}
}

// writeString appends a header string literal: a 1-bit short-code flag
// plus a 7-bit-prefixed length, then either the short-code encoding or the
// literal bytes, whichever the caller has chosen.
func writeString(w *byteWriter, s string, huffman bool) {
	if huffman {
		encLen := huffmanEncodedLen(s)
		writeVarInt(w, 7, 0x80, encLen)
		w.buf = huffmanEncode(w.buf, s)
		return
	}
	writeVarInt(w, 7, 0x00, len(s))
	w.writeN([]byte(s))
}

// readString decodes a header string literal starting at c's current
// position.
func readString(c *byteCursor) (string, error) {
	first, err := c.readU8()
	if err != nil {
		return "", err
	}
	huffman := first&0x80 != 0
	length, err := readVarInt(c, 7, first&0x7f)
	if err != nil {
		return "", err
	}
	raw, err := c.readN(length)
	if err != nil {
		return "", err
	}
	if huffman {
		return huffmanDecode(raw)
	}
	return string(raw), nil
}

// Encoder turns a list of header fields into an HPACK header block. Each
// connection direction owns exactly one Encoder instance, matched by a peer
// Decoder instance on the other end.
type Encoder struct {
	table        *indexTable
	useHuffman   bool
	pendingResize bool
	maxDynamicSize int
}

// NewEncoder builds an Encoder whose dynamic table starts at maxDynamicSize
// (the size this side advertises it'll use, not what the peer allows).
func NewEncoder(maxDynamicSize int) *Encoder {
	return &Encoder{
		table:          newIndexTable(maxDynamicSize),
		useHuffman:     true,
		maxDynamicSize: maxDynamicSize,
	}
}

// SetMaxDynamicSize lowers or raises this encoder's dynamic table cap,
// queuing a dynamic-table-size-update directive to be prefixed onto the
// next header block so the peer's decoder stays synchronized.
func (e *Encoder) SetMaxDynamicSize(max int) {
	e.maxDynamicSize = max
	e.table.dynamic.SetMaxSize(max)
	e.pendingResize = true
}

// Encode appends the header block for fields to dst and returns the result.
func (e *Encoder) Encode(dst []byte, fields []HeaderField) []byte {
	w := &byteWriter{buf: dst}
	if e.pendingResize {
		writeVarInt(w, 5, repDynamicTableSize, e.maxDynamicSize)
		e.pendingResize = false
	}
	for _, h := range fields {
		e.encodeField(w, h)
	}
	return w.bytes()
}

func (e *Encoder) encodeField(w *byteWriter, h HeaderField) {
	full, nameOnly := e.table.FindIndex(h.Name, h.Value)
	if full != 0 {
		writeVarInt(w, 7, repIndexed, full)
		return
	}

	if h.Sensitive {
		w.writeU8(repLiteralNeverIdx)
		writeString(w, h.Name, e.useHuffman)
		writeString(w, h.Value, e.useHuffman)
		return
	}

	if nameOnly != 0 {
		writeVarInt(w, 6, repLiteralIncIndex, nameOnly)
	} else {
		w.writeU8(repLiteralIncIndex)
		writeString(w, h.Name, e.useHuffman)
	}
	writeString(w, h.Value, e.useHuffman)
	e.table.dynamic.Add(h)
}

// Decoder turns an HPACK header block back into header fields. Each
// connection direction owns exactly one Decoder, matched against the
// peer's Encoder.
type Decoder struct {
	table             *indexTable
	maxHeaderListSize int

	// maxAdvertised is the largest dynamic table size this side has ever
	// told the peer it will honor (via its own SETTINGS_HEADER_TABLE_SIZE).
	// A size-update directive above this bound means the peer is trying to
	// grow the table past what was negotiated.
	maxAdvertised int
}

// NewDecoder builds a Decoder whose dynamic table starts at maxDynamicSize
// (the size this side has told the peer it will honor via its own
// SETTINGS_HEADER_TABLE_SIZE).
func NewDecoder(maxDynamicSize int) *Decoder {
	return &Decoder{table: newIndexTable(maxDynamicSize), maxAdvertised: maxDynamicSize}
}

// SetMaxDynamicSize adjusts the cap this decoder enforces for entries the
// peer inserts, mirroring a local SETTINGS change. It also raises or lowers
// the bound a peer's size-update directive is allowed to request.
func (d *Decoder) SetMaxDynamicSize(max int) {
	d.table.dynamic.SetMaxSize(max)
	d.maxAdvertised = max
}

// DecodeInto decodes block, appending decoded fields to dst. A
// dynamic-table-size-update directive is only legal as the very first
// representation in a block and only up to the size this side has last
// advertised; either violation is a fatal compression error (HPACK §4.2,
// RFC 7541 §6.3) rather than something a single stream can recover from.
func (d *Decoder) DecodeInto(block []byte, dst []HeaderField) ([]HeaderField, error) {
	initialLen := len(dst)
	c := newByteCursor(block)
	for !c.done() {
		first, err := c.readU8()
		if err != nil {
			return dst, err
		}

		switch {
		case first&repIndexed != 0:
			index, err := readVarInt(c, 7, first&0x7f)
			if err != nil {
				return dst, err
			}
			if index == 0 {
				return dst, ErrInvalidCompression
			}
			h, ok := d.table.Resolve(index)
			if !ok {
				return dst, ErrInvalidCompression
			}
			dst = append(dst, h)

		case first&0xc0 == repLiteralIncIndex:
			h, err := d.decodeLiteral(c, first, 6)
			if err != nil {
				return dst, err
			}
			d.table.dynamic.Add(h)
			dst = append(dst, h)

		case first&0xe0 == repDynamicTableSize:
			if len(dst) != initialLen {
				return dst, ErrInvalidCompression
			}
			max, err := readVarInt(c, 5, first&0x1f)
			if err != nil {
				return dst, err
			}
			if max > d.maxAdvertised {
				return dst, ErrInvalidCompression
			}
			d.table.dynamic.SetMaxSize(max)

		case first&0xf0 == repLiteralNeverIdx:
			h, err := d.decodeLiteral(c, first, 4)
			if err != nil {
				return dst, err
			}
			h.Sensitive = true
			dst = append(dst, h)

		default: // repLiteralNoIndex, first&0xf0 == 0
			h, err := d.decodeLiteral(c, first, 4)
			if err != nil {
				return dst, err
			}
			dst = append(dst, h)
		}
	}
	return dst, nil
}

func (d *Decoder) decodeLiteral(c *byteCursor, first byte, prefixBits uint) (HeaderField, error) {
	mask := byte(1<<prefixBits - 1)
	nameIdx, err := readVarInt(c, prefixBits, first&mask)
	if err != nil {
		return HeaderField{}, err
	}

	var name string
	if nameIdx == 0 {
		name, err = readString(c)
		if err != nil {
			return HeaderField{}, err
		}
	} else {
		h, ok := d.table.Resolve(nameIdx)
		if !ok {
			return HeaderField{}, ErrInvalidCompression
		}
		name = h.Name
	}

	value, err := readString(c)
	if err != nil {
		return HeaderField{}, err
	}
	return HeaderField{Name: name, Value: value}, nil
}
