package rpc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lattice-io/h2rpc/pkg/wire"
)

// ContentType is the value this implementation sets on every RPC request
// and response; it tolerates variants on requests it receives.
const ContentType = "application/grpc"

// ErrMalformedPath is returned by SplitPath when the path doesn't have the
// expected "/service/method" shape.
var ErrMalformedPath = fmt.Errorf("rpc: malformed path")

// SplitPath splits an RPC request path into its service and method name,
// matching "/" + service_name + "/" + method_name.
func SplitPath(path string) (service, method string, err error) {
	parts := strings.Split(path, "/")
	if len(parts) != 3 || parts[0] != "" {
		return "", "", ErrMalformedPath
	}
	return parts[1], parts[2], nil
}

// RequestHeaders builds the pseudo-headers and content-type for an RPC
// request to service/method.
func RequestHeaders(service, method string) []wire.HeaderField {
	return []wire.HeaderField{
		{Name: ":method", Value: "POST"},
		{Name: ":path", Value: "/" + service + "/" + method},
		{Name: "content-type", Value: ContentType},
	}
}

// ResponseHeaders builds the initial response HEADERS fields: :status and
// content-type.
func ResponseHeaders() []wire.HeaderField {
	return []wire.HeaderField{
		{Name: ":status", Value: "200"},
		{Name: "content-type", Value: ContentType},
	}
}

// StatusTrailers builds the trailer HEADERS fields for code/message: always
// grpc-status, and grpc-message (URL-encoded) only when code is non-zero
// and message is non-empty.
func StatusTrailers(code Code, message string) []wire.HeaderField {
	fields := []wire.HeaderField{
		{Name: "grpc-status", Value: strconv.Itoa(int(code))},
	}
	if code != OK && message != "" {
		fields = append(fields, wire.HeaderField{
			Name:  "grpc-message",
			Value: url.QueryEscape(message),
		})
	}
	return fields
}

// ParseStatusTrailers extracts the status code and decoded message from a
// trailer header list, defaulting to OK with no message if grpc-status is
// absent.
func ParseStatusTrailers(fields []wire.HeaderField) (Code, string) {
	code := OK
	message := ""
	for _, h := range fields {
		switch h.Name {
		case "grpc-status":
			if n, err := strconv.Atoi(h.Value); err == nil {
				code = Code(n)
			}
		case "grpc-message":
			if decoded, err := url.QueryUnescape(h.Value); err == nil {
				message = decoded
			} else {
				message = h.Value
			}
		}
	}
	return code, message
}

// HeaderValue returns the value of the first header field named name, and
// whether it was present.
func HeaderValue(fields []wire.HeaderField, name string) (string, bool) {
	for _, h := range fields {
		if h.Name == name {
			return h.Value, true
		}
	}
	return "", false
}
