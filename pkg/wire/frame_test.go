package wire

import (
	"bytes"
	"testing"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	fh := FrameHeader{Length: 20, Type: FrameHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 3}
	var w byteWriter
	writeFrameHeader(&w, fh)
	if len(w.bytes()) != FrameHeaderLen {
		t.Fatalf("header length = %d, want %d", len(w.bytes()), FrameHeaderLen)
	}
	got := parseFrameHeader(w.bytes())
	if got != fh {
		t.Fatalf("parseFrameHeader() = %+v, want %+v", got, fh)
	}
}

func TestFrameHeaderStreamIDMasksReservedBit(t *testing.T) {
	b := []byte{0, 0, 0, byte(FrameData), 0, 0x80, 0, 0, 0x05}
	fh := parseFrameHeader(b)
	if fh.StreamID != 5 {
		t.Fatalf("StreamID = %d, want 5 (reserved bit must be masked off)", fh.StreamID)
	}
}

func TestDataFrameRoundTrip(t *testing.T) {
	f := NewDataFrame(7, []byte("payload"), true)
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, n, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if n != len(b) {
		t.Fatalf("consumed %d bytes, want %d", n, len(b))
	}
	df, ok := parsed.(*DataFrame)
	if !ok {
		t.Fatalf("parsed type = %T, want *DataFrame", parsed)
	}
	if !bytes.Equal(df.Data, []byte("payload")) {
		t.Fatalf("Data = %q, want %q", df.Data, "payload")
	}
	if !df.EndStream() {
		t.Fatal("EndStream() = false, want true")
	}
	if df.StreamID() != 7 {
		t.Fatalf("StreamID() = %d, want 7", df.StreamID())
	}
}

func TestHeadersFrameRoundTrip(t *testing.T) {
	f := NewHeadersFrame(9, []byte{0x82, 0x86}, false)
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, _, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	hf := parsed.(*HeadersFrame)
	if !hf.EndHeaders() {
		t.Fatal("EndHeaders() = false, want true (NewHeadersFrame always sets it)")
	}
	if hf.EndStream() {
		t.Fatal("EndStream() = true, want false")
	}
}

func TestSettingsFrameRoundTrip(t *testing.T) {
	f := &SettingsFrame{
		FrameHeader: FrameHeader{Type: FrameSettings},
		Settings: []Setting{
			{ID: SettingInitialWindowSize, Value: 1 << 20},
			{ID: SettingMaxFrameSize, Value: DefaultMaxFrameSize},
		},
	}
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, _, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	sf := parsed.(*SettingsFrame)
	if len(sf.Settings) != 2 {
		t.Fatalf("len(Settings) = %d, want 2", len(sf.Settings))
	}
	if sf.Settings[0].Value != 1<<20 {
		t.Fatalf("Settings[0].Value = %d, want %d", sf.Settings[0].Value, 1<<20)
	}
}

func TestSettingsAckHasNoPayload(t *testing.T) {
	ack := NewSettingsAck()
	if !ack.IsAck() {
		t.Fatal("IsAck() = false, want true")
	}
	b, err := WriteFrame(ack)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if len(b) != FrameHeaderLen {
		t.Fatalf("ACK frame length = %d, want %d (no payload)", len(b), FrameHeaderLen)
	}
}

func TestWindowUpdateFrame(t *testing.T) {
	f := NewWindowUpdateFrame(4, 65535)
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, _, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	wf := parsed.(*WindowUpdateFrame)
	if wf.WindowSizeIncrement != 65535 {
		t.Fatalf("WindowSizeIncrement = %d, want 65535", wf.WindowSizeIncrement)
	}
}

func TestWindowUpdateZeroIncrementRejected(t *testing.T) {
	b := []byte{0, 0, 4, byte(FrameWindowUpdate), 0, 0, 0, 0, 1, 0, 0, 0, 0}
	_, _, err := ParseFrame(b)
	if err == nil {
		t.Fatal("ParseFrame() = nil error, want rejection of zero window increment")
	}
}

func TestRSTStreamFrame(t *testing.T) {
	f := NewRSTStreamFrame(11, ErrCodeCancel)
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, _, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	rf := parsed.(*RSTStreamFrame)
	if rf.ErrorCode != ErrCodeCancel {
		t.Fatalf("ErrorCode = %v, want %v", rf.ErrorCode, ErrCodeCancel)
	}
}

func TestPingAck(t *testing.T) {
	ping := &PingFrame{FrameHeader: FrameHeader{Type: FramePing}, Data: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	ack := ping.Ack()
	if !ack.IsAck() {
		t.Fatal("Ack().IsAck() = false, want true")
	}
	if ack.Data != ping.Data {
		t.Fatalf("Ack().Data = %v, want %v (opaque data must be echoed)", ack.Data, ping.Data)
	}
}

func TestGoAwayFrameWithDebugData(t *testing.T) {
	f := &GoAwayFrame{
		FrameHeader:  FrameHeader{Type: FrameGoAway},
		LastStreamID: 99,
		ErrorCode:    ErrCodeProtocol,
		DebugData:    []byte("bad frame"),
	}
	b, err := WriteFrame(f)
	if err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	parsed, _, err := ParseFrame(b)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	gf := parsed.(*GoAwayFrame)
	if gf.LastStreamID != 99 {
		t.Fatalf("LastStreamID = %d, want 99", gf.LastStreamID)
	}
	if !bytes.Equal(gf.DebugData, []byte("bad frame")) {
		t.Fatalf("DebugData = %q, want %q", gf.DebugData, "bad frame")
	}
}

func TestParseFrameRejectsUnknownType(t *testing.T) {
	b := []byte{0, 0, 0, 0xFE, 0, 0, 0, 0, 0}
	_, _, err := ParseFrame(b)
	if err == nil {
		t.Fatal("ParseFrame() = nil error, want error on unknown frame type")
	}
	if _, ok := err.(ConnectionError); !ok {
		t.Fatalf("err type = %T, want ConnectionError", err)
	}
}

func TestParseFrameShortInput(t *testing.T) {
	_, _, err := ParseFrame([]byte{0, 0, 1})
	if err != ErrShortFrame {
		t.Fatalf("err = %v, want ErrShortFrame", err)
	}
}

func TestDataFrameRejectsStreamZero(t *testing.T) {
	b := []byte{0, 0, 0, byte(FrameData), 0, 0, 0, 0, 0}
	_, _, err := ParseFrame(b)
	if err == nil {
		t.Fatal("ParseFrame() = nil error, want rejection of DATA on stream 0")
	}
}
