package wire

import (
	"errors"
	"fmt"
)

// ErrorCode is a frame-level error code, carried on RST_STREAM and GOAWAY.
type ErrorCode uint32

const (
	ErrCodeNo              ErrorCode = 0x0
	ErrCodeProtocol        ErrorCode = 0x1
	ErrCodeInternal        ErrorCode = 0x2
	ErrCodeFlowControl     ErrorCode = 0x3
	ErrCodeSettingsTimeout ErrorCode = 0x4
	ErrCodeStreamClosed    ErrorCode = 0x5
	ErrCodeFrameSize       ErrorCode = 0x6
	ErrCodeRefusedStream   ErrorCode = 0x7
	ErrCodeCancel          ErrorCode = 0x8
	ErrCodeCompression     ErrorCode = 0x9
	ErrCodeConnect         ErrorCode = 0xa
)

func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNo:
		return "NO_ERROR"
	case ErrCodeProtocol:
		return "PROTOCOL_ERROR"
	case ErrCodeInternal:
		return "INTERNAL_ERROR"
	case ErrCodeFlowControl:
		return "FLOW_CONTROL_ERROR"
	case ErrCodeSettingsTimeout:
		return "SETTINGS_TIMEOUT"
	case ErrCodeStreamClosed:
		return "STREAM_CLOSED"
	case ErrCodeFrameSize:
		return "FRAME_SIZE_ERROR"
	case ErrCodeRefusedStream:
		return "REFUSED_STREAM"
	case ErrCodeCancel:
		return "CANCEL"
	case ErrCodeCompression:
		return "COMPRESSION_ERROR"
	case ErrCodeConnect:
		return "CONNECT_ERROR"
	default:
		return fmt.Sprintf("ERROR_CODE(%d)", uint32(e))
	}
}

// Protocol-level sentinel errors.
var (
	ErrInvalidPreface     = errors.New("wire: invalid connection preface")
	ErrFrameTooLarge      = errors.New("wire: frame size exceeds maximum")
	ErrInvalidFrameType   = errors.New("wire: invalid frame type")
	ErrInvalidStreamID    = errors.New("wire: invalid stream id")
	ErrInvalidFrameLength = errors.New("wire: invalid frame length")
	ErrInvalidWindowSize  = errors.New("wire: invalid window update")
	ErrShortFrame         = errors.New("wire: short frame")
	ErrWindowOverflow     = errors.New("wire: flow control window overflow")

	ErrInvalidCompression = errors.New("wire: invalid compression")
	ErrHuffmanPadding     = errors.New("wire: invalid short-code padding")

	ErrStreamClosed = errors.New("wire: stream closed")
)

// ConnectionError is fatal to the whole connection: the caller must close
// the underlying pipe and tear the connection down.
type ConnectionError struct {
	Code ErrorCode
	Err  error
}

func (e ConnectionError) Error() string {
	if e.Err != nil {
		return "wire: " + e.Code.String() + ": " + e.Err.Error()
	}
	return "wire: " + e.Code.String()
}

func (e ConnectionError) Unwrap() error { return e.Err }

// StreamError is fatal only to the stream it names; the connection and its
// other streams survive.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
	Err      error
}

func (e StreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: stream %d: %s: %v", e.StreamID, e.Code, e.Err)
	}
	return fmt.Sprintf("wire: stream %d: %s", e.StreamID, e.Code)
}

func (e StreamError) Unwrap() error { return e.Err }
