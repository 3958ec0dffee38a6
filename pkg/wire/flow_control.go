package wire

import "sync"

// connFlowControl tracks the connection-scope (stream id 0) flow-control
// windows, mirroring the per-stream bookkeeping in Stream but without a
// lifecycle state machine attached.
type connFlowControl struct {
	mu sync.Mutex

	recvWindow        int32
	sendWindow        int32
	initialRecvWindow int32

	cond *sync.Cond
}

func newConnFlowControl(initialWindow int32) *connFlowControl {
	fc := &connFlowControl{
		recvWindow:        initialWindow,
		sendWindow:        initialWindow,
		initialRecvWindow: initialWindow,
	}
	fc.cond = sync.NewCond(&fc.mu)
	return fc
}

func (fc *connFlowControl) consumeRecvWindow(n int32) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.recvWindow -= n
	return fc.recvWindow < 0
}

func (fc *connFlowControl) needsWindowUpdate() int32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if fc.recvWindow >= fc.initialRecvWindow/2 {
		return 0
	}
	inc := fc.initialRecvWindow - fc.recvWindow
	fc.recvWindow = fc.initialRecvWindow
	return inc
}

func (fc *connFlowControl) applySendWindowUpdate(inc uint32) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	next := int64(fc.sendWindow) + int64(inc)
	if next > MaxWindowSize {
		return ConnectionError{Code: ErrCodeFlowControl, Err: ErrWindowOverflow}
	}
	fc.sendWindow = int32(next)
	fc.cond.Broadcast()
	return nil
}

func (fc *connFlowControl) availableSendWindow() int32 {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.sendWindow
}

func (fc *connFlowControl) deductSendWindow(n int32) {
	fc.mu.Lock()
	fc.sendWindow -= n
	fc.mu.Unlock()
}

// waitForSendCredit blocks until the connection window has credit, or
// closed becomes true.
func (fc *connFlowControl) waitForSendCredit(closed func() bool) bool {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for fc.sendWindow <= 0 && !closed() {
		fc.cond.Wait()
	}
	return !closed()
}

func (fc *connFlowControl) broadcast() {
	fc.mu.Lock()
	fc.cond.Broadcast()
	fc.mu.Unlock()
}

// throttledDataSize computes how many bytes of a pending DATA write of
// wanted bytes may go out right now without exceeding either the
// connection-scope or the stream-scope send window, resolving the outbound
// throttling question: a write is never split by anything other than these
// two windows and maxFrame (the peer's advertised max frame size).
func throttledDataSize(wanted int, connWindow, streamWindow int32, maxFrame int) int {
	n := wanted
	if int(connWindow) < n {
		n = int(connWindow)
	}
	if int(streamWindow) < n {
		n = int(streamWindow)
	}
	if maxFrame < n {
		n = maxFrame
	}
	if n < 0 {
		n = 0
	}
	return n
}
