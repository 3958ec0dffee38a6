package rpcserver

import (
	"github.com/lattice-io/h2rpc/pkg/rpc"
	"github.com/lattice-io/h2rpc/pkg/wire"
)

// Dispatcher drives one Connection's accepted streams through a handler
// chain, terminating in the RPC-framing handler that looks up the target
// Service and wraps its response according to the envelope/trailer
// conventions in pkg/rpc.
type Dispatcher struct {
	registry *Registry
	chain    []Handler
}

// NewDispatcher builds a Dispatcher whose chain runs middleware (in order)
// before the built-in RPC-framing handler.
func NewDispatcher(registry *Registry, middleware ...Handler) *Dispatcher {
	chain := make([]Handler, 0, len(middleware)+1)
	chain = append(chain, middleware...)
	chain = append(chain, &rpcFramingHandler{registry: registry})
	return &Dispatcher{registry: registry, chain: chain}
}

// Serve runs conn's read loop, dispatching every completed request stream
// to the handler chain. It blocks until the connection closes.
func (d *Dispatcher) Serve(conn *wire.Connection) error {
	return conn.Serve(d.handleStream)
}

// ListenAndServe opens addr with cfg's listener and per-connection socket
// tuning applied, then accepts connections until the listener is closed,
// handshaking and serving each one on its own goroutine.
func (d *Dispatcher) ListenAndServe(addr string, cfg *wire.ServerConfig) error {
	if cfg == nil {
		cfg = wire.DefaultServerConfig()
	}
	ln, err := wire.Listen(addr, cfg.Socket)
	if err != nil {
		return err
	}
	defer ln.Close()

	for {
		netConn, err := wire.AcceptTuned(ln, cfg.Socket)
		if err != nil {
			return err
		}
		go func() {
			conn := wire.NewConnection(netConn, wire.RoleServer, &cfg.Connection)
			if err := conn.Handshake(); err != nil {
				netConn.Close()
				return
			}
			_ = d.Serve(conn)
		}()
	}
}

// handleStream synthesizes a request from s's headers and accumulated
// body, runs it through the chain, then emits the response frames:
// HEADERS (status+content-type), DATA (body), trailer HEADERS
// (grpc-status/grpc-message).
func (d *Dispatcher) handleStream(s *wire.Stream) {
	headers := s.Headers()
	path, _ := rpc.HeaderValue(headers, ":path")

	body, err := readFullBody(s)
	if err != nil {
		return
	}

	service, method, splitErr := rpc.SplitPath(path)

	ctx := &Context{
		Stream:     s,
		Service:    service,
		Method:     method,
		Body:       body,
		StatusCode: rpc.OK,
		chain:      d.chain,
	}
	if splitErr != nil {
		ctx.StatusCode = rpc.InvalidArgument
		ctx.StatusMessage = splitErr.Error()
	} else if err := ctx.CallNext(); err != nil {
		if bad, ok := err.(*rpc.BadStatus); ok {
			ctx.StatusCode = bad.Code
			ctx.StatusMessage = bad.Message
		} else {
			ctx.StatusCode = rpc.Internal
			ctx.StatusMessage = err.Error()
		}
	}

	writeResponse(s, ctx)
	s.Evict()
}

func writeResponse(s *wire.Stream, ctx *Context) {
	if err := s.WriteHeaders(rpc.ResponseHeaders(), false); err != nil {
		return
	}
	if err := s.Write(rpc.EncodeEnvelope(ctx.RespBody), false); err != nil {
		return
	}
	_ = s.WriteHeaders(rpc.StatusTrailers(ctx.StatusCode, ctx.StatusMessage), true)
}

func readFullBody(s *wire.Stream) ([]byte, error) {
	var body []byte
	for {
		chunk, err := s.ReadData()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			return body, nil
		}
		body = append(body, chunk...)
	}
}

// rpcFramingHandler is the terminal link: it decodes the envelope, looks
// up the service, and calls its handler.
type rpcFramingHandler struct {
	registry *Registry
}

func (h *rpcFramingHandler) Call(ctx *Context) error {
	_, msg, _, err := rpc.DecodeEnvelope(ctx.Body)
	if err != nil {
		return rpc.NewBadStatus(rpc.InvalidArgument, "malformed envelope: %v", err)
	}

	svc, ok := h.registry.Lookup(ctx.Service)
	if !ok {
		return rpc.NewBadStatus(rpc.NotFound, "unknown service %q", ctx.Service)
	}

	resp, err := svc.Handle(ctx.Method, msg)
	if err != nil {
		if bad, ok := err.(*rpc.BadStatus); ok {
			return bad
		}
		return rpc.NewBadStatus(rpc.Unknown, "%v", err)
	}
	ctx.RespBody = resp
	return nil
}
