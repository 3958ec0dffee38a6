//go:build !linux

package wire

import "net"

// applyPlatformSocketOptions is a portable fallback: net.TCPConn already
// exposes SetNoDelay directly, so no raw syscalls are needed off Linux.
func applyPlatformSocketOptions(conn net.Conn, cfg SocketConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if cfg.NoDelay {
		if err := tcpConn.SetNoDelay(true); err != nil {
			return err
		}
	}
	if cfg.KeepAlive {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if cfg.KeepAlivePer > 0 {
			_ = tcpConn.SetKeepAlivePeriod(cfg.KeepAlivePer)
		}
	}
	return nil
}

// applyPlatformListenerOptions is a no-op off Linux: there's no portable
// listener-level tuning worth doing before Accept.
func applyPlatformListenerOptions(l net.Listener, cfg SocketConfig) error {
	return nil
}
