//go:build linux

package wire

import (
	"net"

	"golang.org/x/sys/unix"
)

// applyPlatformSocketOptions tunes a connection's TCP options using
// golang.org/x/sys/unix rather than the raw syscall package, so the option
// constants stay correct across kernel/Go version skew.
func applyPlatformSocketOptions(conn net.Conn, cfg SocketConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var opErr error
	err = rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			if opErr != nil {
				return
			}
		}
		if cfg.KeepAlive {
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1); err != nil {
				opErr = err
				return
			}
			if cfg.KeepAlivePer > 0 {
				secs := int(cfg.KeepAlivePer.Seconds())
				if secs < 1 {
					secs = 1
				}
				_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, secs)
				_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, secs)
			}
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// applyPlatformListenerOptions tunes a TCP listener before Accept is called.
func applyPlatformListenerOptions(l net.Listener, cfg SocketConfig) error {
	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()

	fd := int(file.Fd())
	if cfg.NoDelay {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	}
	return nil
}
