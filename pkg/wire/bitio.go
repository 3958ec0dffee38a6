package wire

import "encoding/binary"

// byteCursor is a read cursor over a byte slice, shared by the frame codec
// and the header-compression codec wherever they need raw big-endian
// integers rather than the HPACK variable-length integer encoding.
type byteCursor struct {
	data []byte
	pos  int
}

func newByteCursor(data []byte) *byteCursor {
	return &byteCursor{data: data}
}

func (c *byteCursor) done() bool {
	return c.pos >= len(c.data)
}

func (c *byteCursor) remaining() int {
	return len(c.data) - c.pos
}

func (c *byteCursor) readU8() (byte, error) {
	if c.remaining() < 1 {
		return 0, ErrShortFrame
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

func (c *byteCursor) readU16BE() (uint16, error) {
	if c.remaining() < 2 {
		return 0, ErrShortFrame
	}
	v := binary.BigEndian.Uint16(c.data[c.pos : c.pos+2])
	c.pos += 2
	return v, nil
}

func (c *byteCursor) readU32BE() (uint32, error) {
	if c.remaining() < 4 {
		return 0, ErrShortFrame
	}
	v := binary.BigEndian.Uint32(c.data[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *byteCursor) readU64BE() (uint64, error) {
	if c.remaining() < 8 {
		return 0, ErrShortFrame
	}
	v := binary.BigEndian.Uint64(c.data[c.pos : c.pos+8])
	c.pos += 8
	return v, nil
}

func (c *byteCursor) readN(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, ErrShortFrame
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// byteWriter is an in-memory growing buffer with the symmetric write
// operations. Frame serialization and HPACK encoding both build their
// output through one of these.
type byteWriter struct {
	buf []byte
}

func (w *byteWriter) writeU8(b byte) {
	w.buf = append(w.buf, b)
}

func (w *byteWriter) writeU16BE(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) writeU32BE(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *byteWriter) writeN(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *byteWriter) bytes() []byte { return w.buf }
