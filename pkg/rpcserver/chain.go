package rpcserver

import (
	"github.com/lattice-io/h2rpc/pkg/rpc"
	"github.com/lattice-io/h2rpc/pkg/wire"
)

// Context carries one request through the handler chain. Handlers read
// the incoming request fields and write the response fields; once the chain
// returns, the Dispatcher emits the response frames from those fields.
type Context struct {
	Stream  *wire.Stream
	Service string
	Method  string
	Body    []byte

	RespBody      []byte
	StatusCode    rpc.Code
	StatusMessage string

	chain []Handler
	pos   int
}

// Handler is one link of the chain: it may act before and/or after
// delegating to the rest of the chain via CallNext.
type Handler interface {
	Call(ctx *Context) error
}

// CallNext invokes the next handler in the chain, or does nothing if this
// is the last one.
func (c *Context) CallNext() error {
	if c.pos >= len(c.chain) {
		return nil
	}
	h := c.chain[c.pos]
	c.pos++
	return h.Call(c)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx *Context) error

func (f HandlerFunc) Call(ctx *Context) error { return f(ctx) }
