package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameType identifies the ten frame variants this protocol defines.
type FrameType uint8

const (
	FrameData         FrameType = 0x0
	FrameHeaders      FrameType = 0x1
	FramePriority     FrameType = 0x2
	FrameRSTStream    FrameType = 0x3
	FrameSettings     FrameType = 0x4
	FramePushPromise  FrameType = 0x5
	FramePing         FrameType = 0x6
	FrameGoAway       FrameType = 0x7
	FrameWindowUpdate FrameType = 0x8
	FrameContinuation FrameType = 0x9
)

func (t FrameType) String() string {
	switch t {
	case FrameData:
		return "DATA"
	case FrameHeaders:
		return "HEADERS"
	case FramePriority:
		return "PRIORITY"
	case FrameRSTStream:
		return "RST_STREAM"
	case FrameSettings:
		return "SETTINGS"
	case FramePushPromise:
		return "PUSH_PROMISE"
	case FramePing:
		return "PING"
	case FrameGoAway:
		return "GOAWAY"
	case FrameWindowUpdate:
		return "WINDOW_UPDATE"
	case FrameContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Flags is the frame flags bitfield. Bit meaning depends on the frame type
// it's attached to.
type Flags uint8

const (
	FlagEndStream  Flags = 0x01 // DATA, HEADERS
	FlagAck        Flags = 0x01 // SETTINGS, PING (same bit as END_STREAM)
	FlagEndHeaders Flags = 0x04 // HEADERS, PUSH_PROMISE, CONTINUATION
	FlagPadded     Flags = 0x08 // DATA, HEADERS, PUSH_PROMISE
	FlagPriority   Flags = 0x20 // HEADERS
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// FrameHeader is the fixed 9-byte prefix of every frame.
type FrameHeader struct {
	Length   uint32 // 24-bit payload length
	Type     FrameType
	Flags    Flags
	StreamID uint32 // 31-bit, reserved high bit always cleared
}

// InvalidTypeError is raised by ParseFrame when the type code isn't one of
// the ten known variants.
type InvalidTypeError struct {
	Type FrameType
}

func (e InvalidTypeError) Error() string {
	return fmt.Sprintf("wire: invalid frame type %d", uint8(e.Type))
}

// Frame is implemented by all ten frame variants.
type Frame interface {
	Header() FrameHeader
	Type() FrameType
	StreamID() uint32

	// serializePayload appends this frame's payload-only bytes (no header)
	// to w, returning the payload length written.
	serializePayload(w *byteWriter) uint32
}

func parseFrameHeader(b []byte) FrameHeader {
	return FrameHeader{
		Length:   uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]),
		Type:     FrameType(b[3]),
		Flags:    Flags(b[4]),
		StreamID: binary.BigEndian.Uint32(b[5:9]) & 0x7fffffff,
	}
}

func writeFrameHeader(w *byteWriter, fh FrameHeader) {
	w.writeU8(byte(fh.Length >> 16))
	w.writeU8(byte(fh.Length >> 8))
	w.writeU8(byte(fh.Length))
	w.writeU8(byte(fh.Type))
	w.writeU8(byte(fh.Flags))
	w.writeU32BE(fh.StreamID & 0x7fffffff)
}

// ParseFrame reads exactly one frame (header + payload) from the front of
// b, returning the frame and the number of bytes consumed. b must already
// contain the full frame; callers reading from a stream read the 9-byte
// header first to learn the payload length, then call ParseFrame on the
// concatenation.
func ParseFrame(b []byte) (Frame, int, error) {
	if len(b) < FrameHeaderLen {
		return nil, 0, ErrShortFrame
	}
	fh := parseFrameHeader(b)
	if fh.Length > MaxFrameSize {
		return nil, 0, ErrFrameTooLarge
	}
	total := FrameHeaderLen + int(fh.Length)
	if len(b) < total {
		return nil, 0, ErrShortFrame
	}
	payload := b[FrameHeaderLen:total]

	var (
		f   Frame
		err error
	)
	switch fh.Type {
	case FrameData:
		f, err = parseDataFrame(fh, payload)
	case FrameHeaders:
		f, err = parseHeadersFrame(fh, payload)
	case FramePriority:
		f, err = parsePriorityFrame(fh, payload)
	case FrameRSTStream:
		f, err = parseRSTStreamFrame(fh, payload)
	case FrameSettings:
		f, err = parseSettingsFrame(fh, payload)
	case FramePushPromise:
		f, err = parsePushPromiseFrame(fh, payload)
	case FramePing:
		f, err = parsePingFrame(fh, payload)
	case FrameGoAway:
		f, err = parseGoAwayFrame(fh, payload)
	case FrameWindowUpdate:
		f, err = parseWindowUpdateFrame(fh, payload)
	case FrameContinuation:
		f, err = parseContinuationFrame(fh, payload)
	default:
		return nil, 0, ConnectionError{Code: ErrCodeProtocol, Err: InvalidTypeError{Type: fh.Type}}
	}
	if err != nil {
		return nil, 0, err
	}
	return f, total, nil
}

// WriteFrame serializes f, enforcing the 24-bit payload size limit.
func WriteFrame(f Frame) ([]byte, error) {
	var body byteWriter
	length := f.serializePayload(&body)
	if length > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	var out byteWriter
	writeFrameHeader(&out, FrameHeader{
		Length:   length,
		Type:     f.Type(),
		Flags:    f.Header().Flags,
		StreamID: f.StreamID(),
	})
	out.writeN(body.bytes())
	return out.bytes(), nil
}

// ---- DATA ----

type DataFrame struct {
	FrameHeader
	Data []byte
}

func (f *DataFrame) Header() FrameHeader  { return f.FrameHeader }
func (f *DataFrame) Type() FrameType      { return FrameData }
func (f *DataFrame) StreamID() uint32     { return f.FrameHeader.StreamID }
func (f *DataFrame) EndStream() bool      { return f.Flags.Has(FlagEndStream) }

func parseDataFrame(fh FrameHeader, payload []byte) (*DataFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	return &DataFrame{FrameHeader: fh, Data: payload}, nil
}

func (f *DataFrame) serializePayload(w *byteWriter) uint32 {
	w.writeN(f.Data)
	return uint32(len(f.Data))
}

// NewDataFrame builds a DATA frame, setting END_STREAM per endStream.
func NewDataFrame(streamID uint32, data []byte, endStream bool) *DataFrame {
	var flags Flags
	if endStream {
		flags |= FlagEndStream
	}
	return &DataFrame{
		FrameHeader: FrameHeader{Type: FrameData, Flags: flags, StreamID: streamID},
		Data:        data,
	}
}

// ---- HEADERS ----

type HeadersFrame struct {
	FrameHeader
	HeaderBlock []byte
}

func (f *HeadersFrame) Header() FrameHeader { return f.FrameHeader }
func (f *HeadersFrame) Type() FrameType     { return FrameHeaders }
func (f *HeadersFrame) StreamID() uint32    { return f.FrameHeader.StreamID }
func (f *HeadersFrame) EndStream() bool     { return f.Flags.Has(FlagEndStream) }
func (f *HeadersFrame) EndHeaders() bool    { return f.Flags.Has(FlagEndHeaders) }

func parseHeadersFrame(fh FrameHeader, payload []byte) (*HeadersFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	return &HeadersFrame{FrameHeader: fh, HeaderBlock: payload}, nil
}

func (f *HeadersFrame) serializePayload(w *byteWriter) uint32 {
	w.writeN(f.HeaderBlock)
	return uint32(len(f.HeaderBlock))
}

// NewHeadersFrame builds a HEADERS frame already carrying END_HEADERS (this
// implementation never splits a header block across CONTINUATION frames on
// emit), optionally with END_STREAM.
func NewHeadersFrame(streamID uint32, block []byte, endStream bool) *HeadersFrame {
	flags := FlagEndHeaders
	if endStream {
		flags |= FlagEndStream
	}
	return &HeadersFrame{
		FrameHeader: FrameHeader{Type: FrameHeaders, Flags: flags, StreamID: streamID},
		HeaderBlock: block,
	}
}

// ---- PRIORITY ----

type PriorityFrame struct {
	FrameHeader
	StreamDependency uint32
	Weight           uint8
	Exclusive        bool
}

func (f *PriorityFrame) Header() FrameHeader { return f.FrameHeader }
func (f *PriorityFrame) Type() FrameType     { return FramePriority }
func (f *PriorityFrame) StreamID() uint32    { return f.FrameHeader.StreamID }

func parsePriorityFrame(fh FrameHeader, payload []byte) (*PriorityFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if len(payload) != 5 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	dep := binary.BigEndian.Uint32(payload[0:4])
	return &PriorityFrame{
		FrameHeader:      fh,
		Exclusive:        dep>>31 == 1,
		StreamDependency: dep & 0x7fffffff,
		Weight:           payload[4],
	}, nil
}

func (f *PriorityFrame) serializePayload(w *byteWriter) uint32 {
	dep := f.StreamDependency & 0x7fffffff
	if f.Exclusive {
		dep |= 1 << 31
	}
	w.writeU32BE(dep)
	w.writeU8(f.Weight)
	return 5
}

// ---- RST_STREAM ----

type RSTStreamFrame struct {
	FrameHeader
	ErrorCode ErrorCode
}

func (f *RSTStreamFrame) Header() FrameHeader { return f.FrameHeader }
func (f *RSTStreamFrame) Type() FrameType     { return FrameRSTStream }
func (f *RSTStreamFrame) StreamID() uint32    { return f.FrameHeader.StreamID }

func parseRSTStreamFrame(fh FrameHeader, payload []byte) (*RSTStreamFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if len(payload) != 4 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	return &RSTStreamFrame{FrameHeader: fh, ErrorCode: ErrorCode(binary.BigEndian.Uint32(payload))}, nil
}

func (f *RSTStreamFrame) serializePayload(w *byteWriter) uint32 {
	w.writeU32BE(uint32(f.ErrorCode))
	return 4
}

// NewRSTStreamFrame builds an RST_STREAM frame.
func NewRSTStreamFrame(streamID uint32, code ErrorCode) *RSTStreamFrame {
	return &RSTStreamFrame{
		FrameHeader: FrameHeader{Type: FrameRSTStream, StreamID: streamID},
		ErrorCode:   code,
	}
}

// ---- SETTINGS ----

type Setting struct {
	ID    SettingID
	Value uint32
}

type SettingsFrame struct {
	FrameHeader
	Settings []Setting
}

func (f *SettingsFrame) Header() FrameHeader { return f.FrameHeader }
func (f *SettingsFrame) Type() FrameType     { return FrameSettings }
func (f *SettingsFrame) StreamID() uint32    { return f.FrameHeader.StreamID }
func (f *SettingsFrame) IsAck() bool         { return f.Flags.Has(FlagAck) }

func parseSettingsFrame(fh FrameHeader, payload []byte) (*SettingsFrame, error) {
	if fh.StreamID != 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if fh.Length%6 != 0 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	if fh.Flags.Has(FlagAck) && fh.Length != 0 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	sf := &SettingsFrame{FrameHeader: fh}
	if fh.Flags.Has(FlagAck) {
		return sf, nil
	}
	n := len(payload) / 6
	sf.Settings = make([]Setting, n)
	for i := 0; i < n; i++ {
		off := i * 6
		sf.Settings[i] = Setting{
			ID:    SettingID(binary.BigEndian.Uint16(payload[off : off+2])),
			Value: binary.BigEndian.Uint32(payload[off+2 : off+6]),
		}
	}
	return sf, nil
}

func (f *SettingsFrame) serializePayload(w *byteWriter) uint32 {
	for _, s := range f.Settings {
		w.writeU16BE(uint16(s.ID))
		w.writeU32BE(s.Value)
	}
	return uint32(len(f.Settings) * 6)
}

// NewSettingsAck builds an empty SETTINGS frame with the ACK flag set.
func NewSettingsAck() *SettingsFrame {
	return &SettingsFrame{FrameHeader: FrameHeader{Type: FrameSettings, Flags: FlagAck}}
}

// ---- PUSH_PROMISE ----

type PushPromiseFrame struct {
	FrameHeader
	PromisedStreamID uint32
	HeaderBlock      []byte
}

func (f *PushPromiseFrame) Header() FrameHeader { return f.FrameHeader }
func (f *PushPromiseFrame) Type() FrameType     { return FramePushPromise }
func (f *PushPromiseFrame) StreamID() uint32    { return f.FrameHeader.StreamID }

func parsePushPromiseFrame(fh FrameHeader, payload []byte) (*PushPromiseFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if len(payload) < 4 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	return &PushPromiseFrame{
		FrameHeader:      fh,
		PromisedStreamID: binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff,
		HeaderBlock:      payload[4:],
	}, nil
}

func (f *PushPromiseFrame) serializePayload(w *byteWriter) uint32 {
	w.writeU32BE(f.PromisedStreamID & 0x7fffffff)
	w.writeN(f.HeaderBlock)
	return uint32(4 + len(f.HeaderBlock))
}

// ---- PING ----

type PingFrame struct {
	FrameHeader
	Data [8]byte
}

func (f *PingFrame) Header() FrameHeader { return f.FrameHeader }
func (f *PingFrame) Type() FrameType     { return FramePing }
func (f *PingFrame) StreamID() uint32    { return f.FrameHeader.StreamID }
func (f *PingFrame) IsAck() bool         { return f.Flags.Has(FlagAck) }

func parsePingFrame(fh FrameHeader, payload []byte) (*PingFrame, error) {
	if fh.StreamID != 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if len(payload) != 8 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	pf := &PingFrame{FrameHeader: fh}
	copy(pf.Data[:], payload)
	return pf, nil
}

func (f *PingFrame) serializePayload(w *byteWriter) uint32 {
	w.writeN(f.Data[:])
	return 8
}

// Ack returns the response PING frame for a non-ACK ping: same opaque data,
// ACK flag set.
func (f *PingFrame) Ack() *PingFrame {
	return &PingFrame{
		FrameHeader: FrameHeader{Type: FramePing, Flags: FlagAck},
		Data:        f.Data,
	}
}

// ---- GOAWAY ----

type GoAwayFrame struct {
	FrameHeader
	LastStreamID uint32
	ErrorCode    ErrorCode
	DebugData    []byte
}

func (f *GoAwayFrame) Header() FrameHeader { return f.FrameHeader }
func (f *GoAwayFrame) Type() FrameType     { return FrameGoAway }
func (f *GoAwayFrame) StreamID() uint32    { return f.FrameHeader.StreamID }

func parseGoAwayFrame(fh FrameHeader, payload []byte) (*GoAwayFrame, error) {
	if fh.StreamID != 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	if len(payload) < 8 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	gf := &GoAwayFrame{
		FrameHeader:  fh,
		LastStreamID: binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff,
		ErrorCode:    ErrorCode(binary.BigEndian.Uint32(payload[4:8])),
	}
	if len(payload) > 8 {
		gf.DebugData = payload[8:]
	}
	return gf, nil
}

func (f *GoAwayFrame) serializePayload(w *byteWriter) uint32 {
	w.writeU32BE(f.LastStreamID & 0x7fffffff)
	w.writeU32BE(uint32(f.ErrorCode))
	w.writeN(f.DebugData)
	return uint32(8 + len(f.DebugData))
}

// ---- WINDOW_UPDATE ----

type WindowUpdateFrame struct {
	FrameHeader
	WindowSizeIncrement uint32
}

func (f *WindowUpdateFrame) Header() FrameHeader { return f.FrameHeader }
func (f *WindowUpdateFrame) Type() FrameType     { return FrameWindowUpdate }
func (f *WindowUpdateFrame) StreamID() uint32    { return f.FrameHeader.StreamID }

func parseWindowUpdateFrame(fh FrameHeader, payload []byte) (*WindowUpdateFrame, error) {
	if len(payload) != 4 {
		return nil, ConnectionError{Code: ErrCodeFrameSize, Err: ErrInvalidFrameLength}
	}
	inc := binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff
	if inc == 0 {
		if fh.StreamID == 0 {
			return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidWindowSize}
		}
		return nil, StreamError{StreamID: fh.StreamID, Code: ErrCodeProtocol, Err: ErrInvalidWindowSize}
	}
	return &WindowUpdateFrame{FrameHeader: fh, WindowSizeIncrement: inc}, nil
}

func (f *WindowUpdateFrame) serializePayload(w *byteWriter) uint32 {
	w.writeU32BE(f.WindowSizeIncrement & 0x7fffffff)
	return 4
}

// NewWindowUpdateFrame builds a WINDOW_UPDATE frame for streamID (0 for the
// connection-wide window).
func NewWindowUpdateFrame(streamID, increment uint32) *WindowUpdateFrame {
	return &WindowUpdateFrame{
		FrameHeader:         FrameHeader{Type: FrameWindowUpdate, StreamID: streamID},
		WindowSizeIncrement: increment,
	}
}

// ---- CONTINUATION ----

type ContinuationFrame struct {
	FrameHeader
	HeaderBlock []byte
}

func (f *ContinuationFrame) Header() FrameHeader { return f.FrameHeader }
func (f *ContinuationFrame) Type() FrameType     { return FrameContinuation }
func (f *ContinuationFrame) StreamID() uint32    { return f.FrameHeader.StreamID }
func (f *ContinuationFrame) EndHeaders() bool    { return f.Flags.Has(FlagEndHeaders) }

func parseContinuationFrame(fh FrameHeader, payload []byte) (*ContinuationFrame, error) {
	if fh.StreamID == 0 {
		return nil, ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidStreamID}
	}
	return &ContinuationFrame{FrameHeader: fh, HeaderBlock: payload}, nil
}

func (f *ContinuationFrame) serializePayload(w *byteWriter) uint32 {
	w.writeN(f.HeaderBlock)
	return uint32(len(f.HeaderBlock))
}
