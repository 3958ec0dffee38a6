package wire

import (
	"net"
	"testing"
	"time"
)

// newPipedConnection wires a server-role Connection to one end of an
// in-memory net.Pipe, returning it alongside the raw peer end the test
// drives frames through directly (no preface/handshake dance — Serve
// itself never checks for the client preface, only Handshake does).
func newPipedConnection(t *testing.T) (conn *Connection, peer net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	conn = NewConnection(local, RoleServer, nil)
	go conn.Serve(nil)
	t.Cleanup(func() { conn.Close() })
	return conn, remote
}

func writeFrameTo(t *testing.T, w net.Conn, f Frame) {
	t.Helper()
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrameFrom(t *testing.T, r net.Conn) Frame {
	t.Helper()
	header := make([]byte, FrameHeaderLen)
	if _, err := readFull(r, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	fh := parseFrameHeader(header)
	buf := make([]byte, FrameHeaderLen+int(fh.Length))
	copy(buf, header)
	if _, err := readFull(r, buf[FrameHeaderLen:]); err != nil {
		t.Fatalf("read payload: %v", err)
	}
	f, _, err := ParseFrame(buf)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	return f
}

func TestConnectionAcksPing(t *testing.T) {
	_, peer := newPipedConnection(t)
	defer peer.Close()

	ping := &PingFrame{FrameHeader: FrameHeader{Type: FramePing}}
	ping.Data = [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	writeFrameTo(t, peer, ping)

	got := readFrameFrom(t, peer)
	pf, ok := got.(*PingFrame)
	if !ok {
		t.Fatalf("got %T, want *PingFrame", got)
	}
	if !pf.IsAck() {
		t.Fatal("response PING missing ACK flag")
	}
	if pf.Data != ping.Data {
		t.Fatalf("response data = %v, want %v", pf.Data, ping.Data)
	}
}

func TestConnectionRSTStreamClosesLocalStream(t *testing.T) {
	conn, peer := newPipedConnection(t)
	defer peer.Close()

	s := conn.OpenStream()
	if conn.getStream(s.id) == nil {
		t.Fatal("stream not registered after OpenStream")
	}

	writeFrameTo(t, peer, NewRSTStreamFrame(s.id, ErrCodeCancel))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("stream never closed after peer RST_STREAM")
	}
	if conn.getStream(s.id) != nil {
		t.Fatal("stream still registered after peer RST_STREAM")
	}
}

func TestConnectionGoAwayShutsDown(t *testing.T) {
	conn, peer := newPipedConnection(t)
	defer peer.Close()

	writeFrameTo(t, peer, &GoAwayFrame{
		FrameHeader:  FrameHeader{Type: FrameGoAway},
		LastStreamID: 0,
		ErrorCode:    ErrCodeNo,
	})

	// The connection replies with its own GOAWAY as part of shutdown.
	got := readFrameFrom(t, peer)
	if _, ok := got.(*GoAwayFrame); !ok {
		t.Fatalf("got %T, want *GoAwayFrame", got)
	}

	select {
	case <-conn.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("connection context never canceled after receiving GOAWAY")
	}
}

func TestConnectionSettingsShiftsStreamSendWindow(t *testing.T) {
	conn, peer := newPipedConnection(t)
	defer peer.Close()

	s := conn.OpenStream()
	before := s.availableSendWindow()

	sf := &SettingsFrame{
		FrameHeader: FrameHeader{Type: FrameSettings},
		Settings: []Setting{
			{ID: SettingInitialWindowSize, Value: uint32(before) + 1000},
		},
	}
	writeFrameTo(t, peer, sf)

	// Drain the SETTINGS ACK the connection sends back.
	got := readFrameFrom(t, peer)
	ack, ok := got.(*SettingsFrame)
	if !ok || !ack.IsAck() {
		t.Fatalf("got %T (ack=%v), want a SETTINGS ACK", got, ok)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.availableSendWindow() == before+1000 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("availableSendWindow() = %d, want %d", s.availableSendWindow(), before+1000)
}

func TestConnectionTreatsPushPromiseAsNoOp(t *testing.T) {
	conn, peer := newPipedConnection(t)
	defer peer.Close()

	s := conn.OpenStream()
	writeFrameTo(t, peer, &PushPromiseFrame{
		FrameHeader:      FrameHeader{Type: FramePushPromise, StreamID: s.id},
		PromisedStreamID: 2,
		HeaderBlock:      nil,
	})

	// The connection must tolerate it and keep serving: a PING sent right
	// after should still get answered, proving Serve's read loop is alive.
	ping := &PingFrame{FrameHeader: FrameHeader{Type: FramePing}}
	writeFrameTo(t, peer, ping)

	got := readFrameFrom(t, peer)
	pf, ok := got.(*PingFrame)
	if !ok || !pf.IsAck() {
		t.Fatalf("got %T (ack=%v), want a PING ACK proving the connection survived PUSH_PROMISE", got, ok)
	}

	select {
	case <-conn.Context().Done():
		t.Fatal("connection was torn down by PUSH_PROMISE")
	default:
	}
}

func TestConnectionHeadersOnlyRequestReachesRecvEOF(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	conn := NewConnection(local, RoleServer, nil)
	t.Cleanup(func() { conn.Close() })

	received := make(chan *Stream, 1)
	go conn.Serve(func(s *Stream) { received <- s })

	peer := remote
	writeFrameTo(t, peer, NewHeadersFrame(1, []byte{0x82}, true))

	var s *Stream
	select {
	case s = <-received:
	case <-time.After(time.Second):
		t.Fatal("onStream never called for headers-only request")
	}

	done := make(chan struct{})
	go func() {
		chunk, err := s.ReadData()
		if err != nil {
			t.Errorf("ReadData: %v", err)
		} else if chunk != nil {
			t.Errorf("ReadData() chunk = %v, want nil at end of a bodyless request", chunk)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ReadData never returned for a HEADERS+END_STREAM request with no DATA")
	}
}

func TestClientInitialSettingsMatchRequiredValues(t *testing.T) {
	local, remote := net.Pipe()
	defer local.Close()
	defer remote.Close()

	client := NewConnection(local, RoleClient, nil)
	go client.Handshake()

	preface := make([]byte, len(ClientPreface))
	if _, err := readFull(remote, preface); err != nil {
		t.Fatalf("read preface: %v", err)
	}

	got := readFrameFrom(t, remote)
	sf, ok := got.(*SettingsFrame)
	if !ok {
		t.Fatalf("got %T, want *SettingsFrame", got)
	}

	const want4MiB = 4 * 1024 * 1024
	values := make(map[SettingID]uint32, len(sf.Settings))
	for _, s := range sf.Settings {
		values[s.ID] = s.Value
	}

	if v, ok := values[SettingEnablePush]; !ok || v != 0 {
		t.Errorf("SettingEnablePush = %v (present=%v), want 0", v, ok)
	}
	if v, ok := values[SettingMaxFrameSize]; !ok || v != want4MiB {
		t.Errorf("SettingMaxFrameSize = %v (present=%v), want %d", v, ok, want4MiB)
	}
	if v, ok := values[SettingMaxHeaderListSize]; !ok || v != want4MiB {
		t.Errorf("SettingMaxHeaderListSize = %v (present=%v), want %d", v, ok, want4MiB)
	}
}
