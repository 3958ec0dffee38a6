package wire

import (
	"sync"
)

// StreamState is one of the seven states a stream moves through over its
// lifetime.
type StreamState int

const (
	StateIdle StreamState = iota
	StateReservedLocal
	StateReservedRemote
	StateOpen
	StateHalfClosedLocal
	StateHalfClosedRemote
	StateClosed
)

func (s StreamState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReservedLocal:
		return "reserved(local)"
	case StateReservedRemote:
		return "reserved(remote)"
	case StateOpen:
		return "open"
	case StateHalfClosedLocal:
		return "half-closed(local)"
	case StateHalfClosedRemote:
		return "half-closed(remote)"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Stream tracks one multiplexed request/response exchange within a
// Connection: its lifecycle state, flow-control windows, and received
// headers/body.
type Stream struct {
	mu sync.Mutex

	id    uint32
	state StreamState

	// recvWindow is how many more DATA bytes the peer may send us before we
	// owe a WINDOW_UPDATE; sendWindow is the mirror image, how many more
	// bytes we may send before we must wait for the peer's WINDOW_UPDATE.
	recvWindow int32
	sendWindow int32

	initialRecvWindow int32

	headers    []HeaderField
	trailers   []HeaderField
	gotHeaders bool

	// recvBuf accumulates DATA payload bytes as they arrive; dataCond wakes
	// readers blocked waiting for more of it (or for end-of-stream).
	recvBuf      []byte
	recvEOF      bool
	dataCond     *sync.Cond
	readOffset   int

	// cond is signaled whenever sendWindow grows, waking any writer blocked
	// in waitForSendCredit.
	cond *sync.Cond

	// conn is the owning Connection, set once the stream is registered in
	// its stream table. Used by Stream's own convenience methods (Write,
	// WriteHeaders, Evict) so callers don't have to thread the Connection
	// around too.
	conn *Connection

	doneCh chan struct{}

	onClose func(*Stream)
}

func newStream(id uint32, initialWindow int32) *Stream {
	s := &Stream{
		id:                id,
		state:             StateIdle,
		recvWindow:        initialWindow,
		sendWindow:        initialWindow,
		initialRecvWindow: initialWindow,
	}
	s.cond = sync.NewCond(&s.mu)
	s.dataCond = sync.NewCond(&s.mu)
	return s
}

// ID reports the stream identifier.
func (s *Stream) ID() uint32 { return s.id }

// State reports the current lifecycle state.
func (s *Stream) State() StreamState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition applies the state machine for a frame of type ft in the
// direction given by sent (true = frame sent by us, false = received from peer),
// carrying endStream when set. It returns a StreamError if the transition
// is illegal for the stream's current state. Reaching Closed through this
// path (rather than an explicit RST_STREAM or connection teardown) still
// wakes every waiter blocked on the stream's conditions and Done channel.
func (s *Stream) transition(ft FrameType, sent bool, endStream bool) error {
	err := s.doTransition(ft, sent, endStream)
	if s.isClosed() {
		s.wake()
	}
	return err
}

func (s *Stream) wake() {
	s.mu.Lock()
	if s.doneCh != nil {
		select {
		case <-s.doneCh:
		default:
			close(s.doneCh)
		}
	}
	s.mu.Unlock()
	s.cond.Broadcast()
	if s.dataCond != nil {
		s.dataCond.Broadcast()
	}
}

func (s *Stream) doTransition(ft FrameType, sent bool, endStream bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateIdle:
		if ft != FrameHeaders {
			return StreamError{StreamID: s.id, Code: ErrCodeProtocol, Err: ErrStreamClosed}
		}
		if endStream {
			if sent {
				s.state = StateHalfClosedLocal
			} else {
				s.state = StateHalfClosedRemote
			}
		} else {
			s.state = StateOpen
		}
		return nil

	case StateOpen:
		if !endStream {
			return nil
		}
		if sent {
			s.state = StateHalfClosedLocal
		} else {
			s.state = StateHalfClosedRemote
		}
		return nil

	case StateHalfClosedLocal:
		// We're done sending; we can still receive until the peer ends its
		// side.
		if sent {
			return StreamError{StreamID: s.id, Code: ErrCodeStreamClosed}
		}
		if endStream {
			s.state = StateClosed
		}
		return nil

	case StateHalfClosedRemote:
		if !sent {
			return StreamError{StreamID: s.id, Code: ErrCodeStreamClosed}
		}
		if endStream {
			s.state = StateClosed
		}
		return nil

	case StateReservedLocal:
		if sent && ft == FrameHeaders {
			if endStream {
				s.state = StateClosed
			} else {
				s.state = StateHalfClosedRemote
			}
			return nil
		}
		return StreamError{StreamID: s.id, Code: ErrCodeProtocol, Err: ErrStreamClosed}

	case StateReservedRemote:
		if !sent && ft == FrameHeaders {
			if endStream {
				s.state = StateClosed
			} else {
				s.state = StateHalfClosedLocal
			}
			return nil
		}
		return StreamError{StreamID: s.id, Code: ErrCodeProtocol, Err: ErrStreamClosed}

	case StateClosed:
		return StreamError{StreamID: s.id, Code: ErrCodeStreamClosed, Err: ErrStreamClosed}
	}
	return nil
}

func (s *Stream) close() {
	s.mu.Lock()
	s.state = StateClosed
	s.recvEOF = true
	if s.doneCh != nil {
		select {
		case <-s.doneCh:
		default:
			close(s.doneCh)
		}
	}
	s.mu.Unlock()
	s.cond.Broadcast()
	if s.dataCond != nil {
		s.dataCond.Broadcast()
	}
	if s.onClose != nil {
		s.onClose(s)
	}
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

// --- flow control, stream scope ---

// consumeRecvWindow deducts n from the receive window, returning true if the
// window went negative (a flow-control violation the caller must treat as
// fatal to the stream).
func (s *Stream) consumeRecvWindow(n int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recvWindow -= n
	return s.recvWindow < 0
}

// needsWindowUpdate reports how large a WINDOW_UPDATE increment to send, or
// 0 if none is owed yet, per the "below half of initial" replenishment
// policy.
func (s *Stream) needsWindowUpdate() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recvWindow >= s.initialRecvWindow/2 {
		return 0
	}
	inc := s.initialRecvWindow - s.recvWindow
	s.recvWindow = s.initialRecvWindow
	return inc
}

// applySendWindowUpdate grows the send window by inc, reporting an overflow
// error if it would exceed the protocol maximum.
func (s *Stream) applySendWindowUpdate(inc uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := int64(s.sendWindow) + int64(inc)
	if next > MaxWindowSize {
		return StreamError{StreamID: s.id, Code: ErrCodeFlowControl, Err: ErrWindowOverflow}
	}
	s.sendWindow = int32(next)
	s.cond.Broadcast()
	return nil
}

// shiftSendWindow applies a SETTINGS_INITIAL_WINDOW_SIZE change advertised
// by the peer: every open stream's send window moves by the same delta.
func (s *Stream) shiftSendWindow(delta int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := int64(s.sendWindow) + int64(delta)
	if next > MaxWindowSize || next < -MaxWindowSize {
		return StreamError{StreamID: s.id, Code: ErrCodeFlowControl, Err: ErrWindowOverflow}
	}
	s.sendWindow = int32(next)
	s.cond.Broadcast()
	return nil
}

// availableSendWindow reports how many bytes may currently be sent on this
// stream without exceeding its send window.
func (s *Stream) availableSendWindow() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendWindow
}

// deductSendWindow reduces the send window by n after a DATA frame of that
// size is written.
func (s *Stream) deductSendWindow(n int32) {
	s.mu.Lock()
	s.sendWindow -= n
	s.mu.Unlock()
}

// waitForSendCredit blocks until the stream's send window is > 0 or the
// stream closes, returning false in the latter case.
func (s *Stream) waitForSendCredit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.sendWindow <= 0 && s.state != StateClosed {
		s.cond.Wait()
	}
	return s.state != StateClosed
}

// Headers returns the decoded request (or response) header fields. Safe to
// call once the stream's first header block has been seen; the caller is
// expected to have been woken via the Connection's StreamHandler callback.
func (s *Stream) Headers() []HeaderField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers
}

// Trailers returns the decoded trailer header fields, if any have arrived
// yet.
func (s *Stream) Trailers() []HeaderField {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trailers
}

// markRecvEOF records that no further DATA will arrive and wakes any
// blocked reader.
func (s *Stream) markRecvEOF() {
	s.mu.Lock()
	s.recvEOF = true
	s.mu.Unlock()
	s.dataCond.Broadcast()
}

// ReadData blocks until at least one more byte of body is available, the
// stream has seen END_STREAM, or the stream closes, then returns whatever
// new bytes have accumulated since the last call. A nil, nil return means
// end of stream with nothing left to deliver.
func (s *Stream) ReadData() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.readOffset >= len(s.recvBuf) && !s.recvEOF && s.state != StateClosed {
		s.dataCond.Wait()
	}
	if s.readOffset < len(s.recvBuf) {
		chunk := s.recvBuf[s.readOffset:]
		s.readOffset = len(s.recvBuf)
		return chunk, nil
	}
	return nil, nil
}

// Write sends data as one or more DATA frames through the owning
// Connection, throttled by flow control.
func (s *Stream) Write(data []byte, endStream bool) error {
	return s.conn.SendData(s, data, endStream)
}

// WriteHeaders sends fields as a HEADERS frame through the owning
// Connection.
func (s *Stream) WriteHeaders(fields []HeaderField, endStream bool) error {
	return s.conn.SendHeaders(s, fields, endStream)
}

// Evict removes this stream from its owning Connection's table. Dispatcher
// and client code call this once they're done reading from and writing to
// the stream, per the per-request lifecycle.
func (s *Stream) Evict() {
	if s.conn != nil {
		s.conn.RemoveStream(s.id)
	}
}

// Done is closed when the stream reaches the Closed state, letting callers
// select on stream completion instead of polling State().
func (s *Stream) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneCh == nil {
		s.doneCh = make(chan struct{})
		if s.state == StateClosed {
			close(s.doneCh)
		}
	}
	return s.doneCh
}
