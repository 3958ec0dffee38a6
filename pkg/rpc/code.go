// Package rpc implements the RPC framing layered on top of the wire
// protocol: the message envelope, status codes, and the BadStatus error
// type handlers raise to report an application-level failure.
package rpc

import "fmt"

// Code is one of the standard seventeen status codes carried in the
// grpc-status trailer.
type Code int

const (
	OK                 Code = 0
	Canceled           Code = 1
	Unknown            Code = 2
	InvalidArgument    Code = 3
	DeadlineExceeded   Code = 4
	NotFound           Code = 5
	AlreadyExists      Code = 6
	PermissionDenied   Code = 7
	ResourceExhausted  Code = 8
	FailedPrecondition Code = 9
	Aborted            Code = 10
	OutOfRange         Code = 11
	Unimplemented      Code = 12
	Internal           Code = 13
	Unavailable        Code = 14
	DataLoss           Code = 15
	Unauthenticated    Code = 16
)

func (c Code) String() string {
	switch c {
	case OK:
		return "OK"
	case Canceled:
		return "Canceled"
	case Unknown:
		return "Unknown"
	case InvalidArgument:
		return "InvalidArgument"
	case DeadlineExceeded:
		return "DeadlineExceeded"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case PermissionDenied:
		return "PermissionDenied"
	case ResourceExhausted:
		return "ResourceExhausted"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Aborted:
		return "Aborted"
	case OutOfRange:
		return "OutOfRange"
	case Unimplemented:
		return "Unimplemented"
	case Internal:
		return "Internal"
	case Unavailable:
		return "Unavailable"
	case DataLoss:
		return "DataLoss"
	case Unauthenticated:
		return "Unauthenticated"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// BadStatus is the error handlers raise to fail an RPC with a specific
// status code and message. The dispatcher recovers it locally: the
// connection and stream remain healthy, only the response trailer reflects
// the failure.
type BadStatus struct {
	Code    Code
	Message string
}

func (e *BadStatus) Error() string {
	return fmt.Sprintf("rpc: %s: %s", e.Code, e.Message)
}

// NewBadStatus builds a BadStatus with a formatted message.
func NewBadStatus(code Code, format string, args ...interface{}) *BadStatus {
	return &BadStatus{Code: code, Message: fmt.Sprintf(format, args...)}
}
