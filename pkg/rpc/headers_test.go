package rpc

import (
	"testing"

	"github.com/lattice-io/h2rpc/pkg/wire"
)

func TestSplitPathValid(t *testing.T) {
	service, method, err := SplitPath("/example.Greeter/SayHello")
	if err != nil {
		t.Fatalf("SplitPath: %v", err)
	}
	if service != "example.Greeter" || method != "SayHello" {
		t.Fatalf("got (%q, %q), want (%q, %q)", service, method, "example.Greeter", "SayHello")
	}
}

func TestSplitPathMalformed(t *testing.T) {
	cases := []string{"", "/onlyservice", "noleadingslash/a/b", "/a/b/c"}
	for _, p := range cases {
		if _, _, err := SplitPath(p); err != ErrMalformedPath {
			t.Errorf("SplitPath(%q) err = %v, want ErrMalformedPath", p, err)
		}
	}
}

func TestRequestHeaders(t *testing.T) {
	fields := RequestHeaders("example.Greeter", "SayHello")
	path, ok := HeaderValue(fields, ":path")
	if !ok || path != "/example.Greeter/SayHello" {
		t.Fatalf(":path = %q, %v, want %q", path, ok, "/example.Greeter/SayHello")
	}
	ct, ok := HeaderValue(fields, "content-type")
	if !ok || ct != ContentType {
		t.Fatalf("content-type = %q, %v, want %q", ct, ok, ContentType)
	}
}

func TestResponseHeaders(t *testing.T) {
	fields := ResponseHeaders()
	status, ok := HeaderValue(fields, ":status")
	if !ok || status != "200" {
		t.Fatalf(":status = %q, %v, want %q", status, ok, "200")
	}
}

func TestStatusTrailersOK(t *testing.T) {
	fields := StatusTrailers(OK, "")
	if len(fields) != 1 {
		t.Fatalf("got %d fields, want 1 (no grpc-message on OK)", len(fields))
	}
	v, ok := HeaderValue(fields, "grpc-status")
	if !ok || v != "0" {
		t.Fatalf("grpc-status = %q, %v, want %q", v, ok, "0")
	}
}

func TestStatusTrailersErrorIncludesEscapedMessage(t *testing.T) {
	fields := StatusTrailers(InvalidArgument, "bad field: x=y")
	code, msg := ParseStatusTrailers(fields)
	if code != InvalidArgument {
		t.Fatalf("code = %v, want InvalidArgument", code)
	}
	if msg != "bad field: x=y" {
		t.Fatalf("msg = %q, want %q", msg, "bad field: x=y")
	}
}

func TestParseStatusTrailersDefaultsToOK(t *testing.T) {
	code, msg := ParseStatusTrailers(nil)
	if code != OK || msg != "" {
		t.Fatalf("got (%v, %q), want (OK, \"\")", code, msg)
	}
}

func TestHeaderValueMissing(t *testing.T) {
	_, ok := HeaderValue([]wire.HeaderField{{Name: "a", Value: "1"}}, "b")
	if ok {
		t.Fatal("HeaderValue() ok = true, want false for missing header")
	}
}
