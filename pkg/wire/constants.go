package wire

// Frame size limits.
const (
	// MaxFrameSize is the largest payload length a frame header can carry
	// (24-bit field).
	MaxFrameSize = 1<<24 - 1

	// DefaultMaxFrameSize is the max frame size a server advertises and
	// enforces on inbound frames (clients advertise 4 MiB, see sendSettings),
	// and the outbound DATA frame limit assumed until the peer's SETTINGS
	// frame gives its own.
	DefaultMaxFrameSize = 16384

	// FrameHeaderLen is the length of the fixed frame header.
	FrameHeaderLen = 9
)

// Window size limits.
const (
	// MaxWindowSize is the largest value a flow-control window may reach
	// (31-bit field).
	MaxWindowSize = 1<<31 - 1

	// DefaultWindowSize is the initial stream/connection window before any
	// SETTINGS negotiation.
	DefaultWindowSize = 65535

	// ConnectionStreamID is the pseudo-stream id used for connection-scoped
	// control frames.
	ConnectionStreamID = 0
)

// Settings parameter ids.
const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// SettingID identifies a SETTINGS parameter.
type SettingID uint16

// Default setting values applied when a peer hasn't said otherwise.
const (
	DefaultHeaderTableSize      = 4096
	DefaultMaxConcurrentStreams = 100
)

// ClientPreface is the 24-byte string every client writes immediately after
// connecting, before any frame.
var ClientPreface = []byte("PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n")

// Maximum values.
const (
	MaxStreamID = 1<<31 - 1
)
