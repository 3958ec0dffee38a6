package wire

import (
	"fmt"
	"net"
)

// Dial opens a TCP connection to addr and applies the platform socket
// tuning from cfg before handing the connection back. A zero-value
// SocketConfig disables every tunable; it never fails the dial.
func Dial(addr string, cfg SocketConfig) (net.Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := applyPlatformSocketOptions(conn, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("wire: tuning dialed socket: %w", err)
	}
	return conn, nil
}

// Listen opens a TCP listener on addr and applies the platform listener
// tuning from cfg. Per-connection tuning (TCP_NODELAY, keepalive) still
// needs to run again on each Accept'd conn via AcceptTuned.
func Listen(addr string, cfg SocketConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	if err := applyPlatformListenerOptions(ln, cfg); err != nil {
		ln.Close()
		return nil, fmt.Errorf("wire: tuning listener: %w", err)
	}
	return ln, nil
}

// AcceptTuned accepts one connection off ln and applies cfg's per-connection
// socket options to it.
func AcceptTuned(ln net.Listener, cfg SocketConfig) (net.Conn, error) {
	conn, err := ln.Accept()
	if err != nil {
		return nil, err
	}
	if err := applyPlatformSocketOptions(conn, cfg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("wire: tuning accepted socket: %w", err)
	}
	return conn, nil
}
