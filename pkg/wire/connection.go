package wire

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// framePool recycles the header+payload buffer Serve reads each frame into.
// Every frame type that aliases the payload slice (HEADERS/CONTINUATION
// blocks, GOAWAY debug data) has copied what it needs out before handleFrame
// returns, so the buffer is safe to return to the pool right after.
var framePool bytebufferpool.Pool

// Role distinguishes the two ends of a Connection; it governs which side
// of the preface handshake runs and which stream ids this side allocates.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// Settings is the negotiated SETTINGS state for one direction.
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings is what this implementation advertises in its first
// SETTINGS frame.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      DefaultHeaderTableSize,
		EnablePush:           false,
		MaxConcurrentStreams: DefaultMaxConcurrentStreams,
		InitialWindowSize:    DefaultWindowSize,
		MaxFrameSize:         DefaultMaxFrameSize,
		MaxHeaderListSize:    0,
	}
}

// StreamHandler is invoked once per stream that completes its request
// header block (END_HEADERS seen), running in its own goroutine. Servers
// use it to dispatch RPCs; the client in pkg/rpcclient passes nil and waits
// on Stream.Done instead.
type StreamHandler func(*Stream)

// Connection multiplexes one net.Conn according to the framed wire
// protocol: frame codec, header compression, per-stream state machines,
// and flow control, all serialized behind a single read loop and a write
// mutex.
type Connection struct {
	conn net.Conn
	role Role

	cfg *ConnectionConfig

	writeMu sync.Mutex
	encoder *Encoder

	streamsMu sync.Mutex
	streams   map[uint32]*Stream
	fragments map[uint32][]byte // in-progress header blocks awaiting END_HEADERS

	decoder *Decoder

	local  Settings
	remote Settings

	connFlow *connFlowControl

	nextStreamID uint32 // atomic; odd for clients, even for server push

	lastPeerStreamID uint32

	onStream StreamHandler

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error

	goAwaySent bool
}

// NewConnection wraps conn for role, applying cfg (DefaultConnectionConfig
// if nil).
func NewConnection(conn net.Conn, role Role, cfg *ConnectionConfig) *Connection {
	if cfg == nil {
		cfg = DefaultConnectionConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())

	start := uint32(2)
	if role == RoleClient {
		start = 1
	}

	c := &Connection{
		conn:          conn,
		role:          role,
		cfg:           cfg,
		encoder:       NewEncoder(cfg.HeaderTableSize),
		decoder:       NewDecoder(cfg.HeaderTableSize),
		streams:       make(map[uint32]*Stream),
		fragments:     make(map[uint32][]byte),
		local:         DefaultSettings(),
		remote:        DefaultSettings(),
		connFlow:      newConnFlowControl(cfg.InitialWindowSize),
		nextStreamID:  start,
		ctx:           ctx,
		cancel:        cancel,
	}
	c.local.InitialWindowSize = uint32(cfg.InitialWindowSize)
	c.local.MaxFrameSize = uint32(cfg.MaxFrameSize)
	c.local.HeaderTableSize = uint32(cfg.HeaderTableSize)
	c.local.MaxConcurrentStreams = uint32(cfg.MaxConcurrentStreams)
	c.local.MaxHeaderListSize = uint32(cfg.MaxHeaderListSize)
	return c
}

// Context is canceled when the connection closes.
func (c *Connection) Context() context.Context { return c.ctx }

// NextStreamID atomically allocates this side's next stream id.
func (c *Connection) NextStreamID() uint32 {
	return atomic.AddUint32(&c.nextStreamID, 2) - 2
}

// Handshake performs the preface exchange and initial SETTINGS: clients
// write the client preface then a SETTINGS frame; servers read the preface
// then reply with their own SETTINGS. Both sides then exchange SETTINGS
// ACKs via the normal read loop.
func (c *Connection) Handshake() error {
	if c.role == RoleClient {
		if _, err := c.conn.Write(ClientPreface); err != nil {
			return err
		}
	} else {
		buf := make([]byte, len(ClientPreface))
		if _, err := readFull(c.conn, buf); err != nil {
			return err
		}
		for i := range buf {
			if buf[i] != ClientPreface[i] {
				return ConnectionError{Code: ErrCodeProtocol, Err: ErrInvalidPreface}
			}
		}
	}
	return c.sendSettings()
}

func readFull(r net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// sendSettings emits this side's initial SETTINGS. Clients always announce
// EnablePush=0 (this core never initiates server push), a 4 MiB
// MaxFrameSize, and a matching MaxHeaderListSize regardless of what cfg's
// connection-wide defaults say, since those defaults exist for servers
// accepting arbitrary clients, not for the one client implementation this
// package ships.
func (c *Connection) sendSettings() error {
	if c.role == RoleClient {
		const clientMaxFrameSize = 4 * 1024 * 1024
		sf := &SettingsFrame{
			FrameHeader: FrameHeader{Type: FrameSettings},
			Settings: []Setting{
				{ID: SettingHeaderTableSize, Value: c.local.HeaderTableSize},
				{ID: SettingEnablePush, Value: 0},
				{ID: SettingMaxConcurrentStreams, Value: c.local.MaxConcurrentStreams},
				{ID: SettingInitialWindowSize, Value: c.local.InitialWindowSize},
				{ID: SettingMaxFrameSize, Value: clientMaxFrameSize},
				{ID: SettingMaxHeaderListSize, Value: clientMaxFrameSize},
			},
		}
		c.local.MaxFrameSize = clientMaxFrameSize
		c.local.MaxHeaderListSize = clientMaxFrameSize
		return c.writeFrame(sf)
	}

	sf := &SettingsFrame{
		FrameHeader: FrameHeader{Type: FrameSettings},
		Settings: []Setting{
			{ID: SettingHeaderTableSize, Value: c.local.HeaderTableSize},
			{ID: SettingEnablePush, Value: 0},
			{ID: SettingMaxConcurrentStreams, Value: c.local.MaxConcurrentStreams},
			{ID: SettingInitialWindowSize, Value: c.local.InitialWindowSize},
			{ID: SettingMaxFrameSize, Value: c.local.MaxFrameSize},
			{ID: SettingMaxHeaderListSize, Value: c.local.MaxHeaderListSize},
		},
	}
	return c.writeFrame(sf)
}

// writeFrame serializes and writes a single frame, holding the write mutex
// for the whole operation so frames from concurrent callers never interleave
// on the wire.
func (c *Connection) writeFrame(f Frame) error {
	b, err := WriteFrame(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(b)
	return err
}

// Serve runs the read loop until the connection closes or a fatal error
// occurs. onStream is invoked once per stream whose request header block
// completes.
func (c *Connection) Serve(onStream StreamHandler) error {
	c.onStream = onStream
	header := make([]byte, FrameHeaderLen)
	for {
		if _, err := readFull(c.conn, header); err != nil {
			return c.shutdown(err)
		}
		fh := parseFrameHeader(header)
		if fh.Length > uint32(c.local.MaxFrameSize) {
			return c.shutdown(c.fatal(ConnectionError{Code: ErrCodeFrameSize, Err: ErrFrameTooLarge}))
		}

		bb := framePool.Get()
		total := FrameHeaderLen + int(fh.Length)
		if cap(bb.B) < total {
			bb.B = make([]byte, total)
		} else {
			bb.B = bb.B[:total]
		}
		copy(bb.B, header)
		if _, err := readFull(c.conn, bb.B[FrameHeaderLen:]); err != nil {
			framePool.Put(bb)
			return c.shutdown(err)
		}

		f, _, err := ParseFrame(bb.B)
		if err != nil {
			framePool.Put(bb)
			if connErr, ok := err.(ConnectionError); ok {
				return c.shutdown(c.fatal(connErr))
			}
			return c.shutdown(err)
		}

		handleErr := c.handleFrame(f)
		framePool.Put(bb)
		if handleErr != nil {
			switch e := handleErr.(type) {
			case StreamError:
				c.resetStream(e.StreamID, e.Code)
			case ConnectionError:
				return c.shutdown(c.fatal(e))
			default:
				return c.shutdown(handleErr)
			}
		}
	}
}

func (c *Connection) fatal(err ConnectionError) error {
	_ = c.writeFrame(&GoAwayFrame{
		FrameHeader:  FrameHeader{Type: FrameGoAway},
		LastStreamID: c.lastPeerStreamID,
		ErrorCode:    err.Code,
	})
	return err
}

func (c *Connection) resetStream(streamID uint32, code ErrorCode) {
	_ = c.writeFrame(NewRSTStreamFrame(streamID, code))
	c.streamsMu.Lock()
	if s, ok := c.streams[streamID]; ok {
		delete(c.streams, streamID)
		c.streamsMu.Unlock()
		s.close()
		return
	}
	c.streamsMu.Unlock()
}

func (c *Connection) handleFrame(f Frame) error {
	switch fr := f.(type) {
	case *SettingsFrame:
		return c.handleSettings(fr)
	case *PingFrame:
		return c.handlePing(fr)
	case *WindowUpdateFrame:
		return c.handleWindowUpdate(fr)
	case *HeadersFrame:
		return c.handleHeaders(fr)
	case *ContinuationFrame:
		return c.handleContinuation(fr)
	case *DataFrame:
		return c.handleData(fr)
	case *RSTStreamFrame:
		return c.handleRSTStream(fr)
	case *GoAwayFrame:
		return c.shutdown(ConnectionError{Code: fr.ErrorCode, Err: ErrStreamClosed})
	case *PriorityFrame:
		return nil // priority scheduling is out of scope; frame is just acknowledged by ignoring it
	case *PushPromiseFrame:
		return nil // server push is out of scope for this core; tolerated as a no-op
	default:
		return nil
	}
}

func (c *Connection) handleSettings(fr *SettingsFrame) error {
	if fr.IsAck() {
		return nil
	}
	for _, s := range fr.Settings {
		switch s.ID {
		case SettingHeaderTableSize:
			c.remote.HeaderTableSize = s.Value
			c.encoder.SetMaxDynamicSize(int(s.Value))
		case SettingEnablePush:
			c.remote.EnablePush = s.Value != 0
		case SettingMaxConcurrentStreams:
			c.remote.MaxConcurrentStreams = s.Value
		case SettingInitialWindowSize:
			if s.Value > MaxWindowSize {
				return ConnectionError{Code: ErrCodeFlowControl, Err: ErrInvalidWindowSize}
			}
			delta := int32(s.Value) - int32(c.remote.InitialWindowSize)
			c.remote.InitialWindowSize = s.Value
			c.streamsMu.Lock()
			streams := make([]*Stream, 0, len(c.streams))
			for _, st := range c.streams {
				streams = append(streams, st)
			}
			c.streamsMu.Unlock()
			for _, st := range streams {
				if err := st.shiftSendWindow(delta); err != nil {
					return err
				}
			}
		case SettingMaxFrameSize:
			c.remote.MaxFrameSize = s.Value
		case SettingMaxHeaderListSize:
			c.remote.MaxHeaderListSize = s.Value
		}
	}
	return c.writeFrame(NewSettingsAck())
}

func (c *Connection) handlePing(fr *PingFrame) error {
	if fr.IsAck() {
		return nil
	}
	return c.writeFrame(fr.Ack())
}

func (c *Connection) handleWindowUpdate(fr *WindowUpdateFrame) error {
	if fr.StreamID() == 0 {
		if err := c.connFlow.applySendWindowUpdate(fr.WindowSizeIncrement); err != nil {
			return err
		}
		c.connFlow.broadcast()
		return nil
	}
	s := c.getStream(fr.StreamID())
	if s == nil {
		return nil // window update for a stream we've already closed; harmless
	}
	return s.applySendWindowUpdate(fr.WindowSizeIncrement)
}

func (c *Connection) handleHeaders(fr *HeadersFrame) error {
	if fr.StreamID() > c.lastPeerStreamID && c.isPeerInitiated(fr.StreamID()) {
		c.lastPeerStreamID = fr.StreamID()
	}
	s := c.getOrCreateStream(fr.StreamID())

	// Store the decoded block before the transition: reaching Closed wakes
	// Done() waiters, who then read Headers()/Trailers().
	if !fr.EndHeaders() {
		c.streamsMu.Lock()
		c.fragments[fr.StreamID()] = append(c.fragments[fr.StreamID()], fr.HeaderBlock...)
		c.streamsMu.Unlock()
	} else if err := c.finishHeaderBlock(s, fr.HeaderBlock); err != nil {
		return err
	}

	if err := s.transition(FrameHeaders, false, fr.EndStream()); err != nil {
		return err
	}
	if fr.EndStream() {
		s.markRecvEOF()
	}
	return nil
}

func (c *Connection) handleContinuation(fr *ContinuationFrame) error {
	c.streamsMu.Lock()
	c.fragments[fr.StreamID()] = append(c.fragments[fr.StreamID()], fr.HeaderBlock...)
	block := c.fragments[fr.StreamID()]
	c.streamsMu.Unlock()

	if !fr.EndHeaders() {
		return nil
	}
	s := c.getStream(fr.StreamID())
	if s == nil {
		return StreamError{StreamID: fr.StreamID(), Code: ErrCodeProtocol}
	}
	c.streamsMu.Lock()
	delete(c.fragments, fr.StreamID())
	c.streamsMu.Unlock()

	return c.finishHeaderBlock(s, block)
}

func (c *Connection) finishHeaderBlock(s *Stream, block []byte) error {
	fields, err := c.decoder.DecodeInto(block, nil)
	if err != nil {
		return ConnectionError{Code: ErrCodeCompression, Err: err}
	}
	s.mu.Lock()
	firstBlock := !s.gotHeaders
	if firstBlock {
		s.headers = fields
		s.gotHeaders = true
	} else {
		s.trailers = fields
	}
	s.mu.Unlock()

	if firstBlock && c.onStream != nil {
		go c.onStream(s)
	}
	return nil
}

func (c *Connection) handleData(fr *DataFrame) error {
	s := c.getStream(fr.StreamID())
	if s == nil {
		return StreamError{StreamID: fr.StreamID(), Code: ErrCodeStreamClosed}
	}
	n := int32(len(fr.Data))
	if c.connFlow.consumeRecvWindow(n) {
		return ConnectionError{Code: ErrCodeFlowControl, Err: ErrWindowOverflow}
	}
	if s.consumeRecvWindow(n) {
		return StreamError{StreamID: fr.StreamID(), Code: ErrCodeFlowControl, Err: ErrWindowOverflow}
	}

	s.mu.Lock()
	s.recvBuf = append(s.recvBuf, fr.Data...)
	s.mu.Unlock()
	s.dataCond.Broadcast()

	if err := s.transition(FrameData, false, fr.EndStream()); err != nil {
		return err
	}
	if fr.EndStream() {
		s.markRecvEOF()
	}

	if inc := s.needsWindowUpdate(); inc > 0 {
		if err := c.writeFrame(NewWindowUpdateFrame(fr.StreamID(), uint32(inc))); err != nil {
			return err
		}
	}
	if inc := c.connFlow.needsWindowUpdate(); inc > 0 {
		if err := c.writeFrame(NewWindowUpdateFrame(0, uint32(inc))); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) handleRSTStream(fr *RSTStreamFrame) error {
	c.streamsMu.Lock()
	s, ok := c.streams[fr.StreamID()]
	if ok {
		delete(c.streams, fr.StreamID())
	}
	c.streamsMu.Unlock()
	if ok {
		s.close()
	}
	return nil
}

func (c *Connection) isPeerInitiated(streamID uint32) bool {
	if c.role == RoleServer {
		return streamID%2 == 1
	}
	return streamID%2 == 0
}

// RemoveStream evicts streamID from the connection's table once the caller
// has fully consumed it. Safe to call more than once or on an id that's
// already gone.
func (c *Connection) RemoveStream(streamID uint32) {
	c.streamsMu.Lock()
	delete(c.streams, streamID)
	c.streamsMu.Unlock()
}

func (c *Connection) getStream(id uint32) *Stream {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	return c.streams[id]
}

func (c *Connection) getOrCreateStream(id uint32) *Stream {
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	if s, ok := c.streams[id]; ok {
		return s
	}
	s := newStream(id, int32(c.cfg.InitialWindowSize))
	s.conn = c
	c.streams[id] = s
	return s
}

// OpenStream allocates a new locally-initiated stream and registers it.
func (c *Connection) OpenStream() *Stream {
	id := c.NextStreamID()
	c.streamsMu.Lock()
	defer c.streamsMu.Unlock()
	s := newStream(id, int32(c.cfg.InitialWindowSize))
	s.conn = c
	c.streams[id] = s
	return s
}

// SendHeaders encodes and writes a HEADERS frame for fields on s, applying
// the stream's state transition first.
func (c *Connection) SendHeaders(s *Stream, fields []HeaderField, endStream bool) error {
	if err := s.transition(FrameHeaders, true, endStream); err != nil {
		return err
	}
	bb := framePool.Get()
	c.writeMu.Lock()
	bb.B = c.encoder.Encode(bb.B[:0], fields)
	c.writeMu.Unlock()
	err := c.writeFrame(NewHeadersFrame(s.id, bb.B, endStream))
	framePool.Put(bb)
	return err
}

// SendData writes data on s, split across DATA frames no larger than the
// peer's advertised max frame size and throttled by both the stream's and
// the connection's send windows: a call that would exceed available credit
// blocks until WINDOW_UPDATE frames from the peer restore it.
func (c *Connection) SendData(s *Stream, data []byte, endStream bool) error {
	maxFrame := int(c.remote.MaxFrameSize)
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}

	if len(data) == 0 {
		if err := s.transition(FrameData, true, endStream); err != nil {
			return err
		}
		return c.writeFrame(NewDataFrame(s.id, nil, endStream))
	}

	for len(data) > 0 {
		if !s.waitForSendCredit() {
			return StreamError{StreamID: s.id, Code: ErrCodeStreamClosed}
		}
		if !c.connFlow.waitForSendCredit(s.isClosed) {
			return StreamError{StreamID: s.id, Code: ErrCodeStreamClosed}
		}

		n := throttledDataSize(len(data), c.connFlow.availableSendWindow(), s.availableSendWindow(), maxFrame)
		if n == 0 {
			continue
		}
		chunk := data[:n]
		data = data[n:]
		last := len(data) == 0

		if err := s.transition(FrameData, true, last && endStream); err != nil {
			return err
		}
		if err := c.writeFrame(NewDataFrame(s.id, chunk, last && endStream)); err != nil {
			return err
		}
		s.deductSendWindow(int32(n))
		c.connFlow.deductSendWindow(int32(n))
	}

	return nil
}

// Close sends GOAWAY (if not already sent) and tears the connection down.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		_ = c.writeFrame(&GoAwayFrame{
			FrameHeader:  FrameHeader{Type: FrameGoAway},
			LastStreamID: c.lastPeerStreamID,
			ErrorCode:    ErrCodeNo,
		})
		c.goAwaySent = true
		c.closeErr = c.conn.Close()
		c.cancel()

		c.streamsMu.Lock()
		streams := make([]*Stream, 0, len(c.streams))
		for _, s := range c.streams {
			streams = append(streams, s)
		}
		c.streamsMu.Unlock()
		for _, s := range streams {
			s.close()
		}
		c.connFlow.broadcast()
	})
	return c.closeErr
}

func (c *Connection) shutdown(err error) error {
	c.Close()
	return err
}
