package rpc

import (
	"encoding/binary"
	"fmt"
)

// EnvelopeHeaderLen is the fixed prefix on every message: 1 compression
// flag byte plus a 4-byte big-endian length.
const EnvelopeHeaderLen = 5

// ErrShortEnvelope is returned by DecodeEnvelope when fewer than
// EnvelopeHeaderLen bytes are available.
var ErrShortEnvelope = fmt.Errorf("rpc: short envelope")

// EncodeEnvelope wraps body in the 5-byte envelope: a zero compression
// flag (this implementation never compresses) followed by the big-endian
// length and the body itself.
func EncodeEnvelope(body []byte) []byte {
	out := make([]byte, EnvelopeHeaderLen+len(body))
	out[0] = 0
	binary.BigEndian.PutUint32(out[1:5], uint32(len(body)))
	copy(out[5:], body)
	return out
}

// DecodeEnvelope reads one envelope-wrapped message from the front of buf,
// returning the compression flag, the message body, and the number of
// bytes consumed.
func DecodeEnvelope(buf []byte) (compressed bool, body []byte, consumed int, err error) {
	if len(buf) < EnvelopeHeaderLen {
		return false, nil, 0, ErrShortEnvelope
	}
	flag := buf[0]
	length := binary.BigEndian.Uint32(buf[1:5])
	total := EnvelopeHeaderLen + int(length)
	if len(buf) < total {
		return false, nil, 0, ErrShortEnvelope
	}
	return flag != 0, buf[EnvelopeHeaderLen:total], total, nil
}
