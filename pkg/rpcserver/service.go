// Package rpcserver implements the server-side dispatcher: a handler
// chain that turns a completed request stream into a response, framed
// according to the RPC conventions in pkg/rpc.
package rpcserver

import (
	"fmt"
	"sync"
)

// Service handles the methods of one RPC service, identified by the
// service_name component of the request path.
type Service interface {
	// Handle dispatches method against body, returning the raw response
	// message bytes (not envelope-wrapped; the dispatcher wraps it) or a
	// *rpc.BadStatus to fail the call with a specific status.
	Handle(method string, body []byte) ([]byte, error)
}

// Registry maps service names to their Service implementation.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Service)}
}

// Register adds or replaces the Service bound to name.
func (r *Registry) Register(name string, svc Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[name] = svc
}

// Lookup resolves name to its Service.
func (r *Registry) Lookup(name string) (Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// ErrUnknownService names the unknown-service failure. The RPC-framing
// handler does not return it: an unknown service is reported as a NotFound
// BadStatus whose message names the service.
var ErrUnknownService = fmt.Errorf("rpcserver: unknown service")
