//go:build linux

package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// vsockConn is a connected AF_VSOCK stream. The embedded *os.File is
// registered with the runtime poller, so deadlines behave like net.Conn's.
type vsockConn struct {
	*os.File
	cid  uint32
	port uint32
}

// dialVsock connects to cid:port, giving up at the earlier of timeout and
// the ctx deadline
func dialVsock(ctx context.Context, cid, port uint32, timeout time.Duration) (net.Conn, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create vsock socket: %w", err)
	}

	connectErr := unix.Connect(fd, &unix.SockaddrVM{CID: cid, Port: port})
	if connectErr != nil && !errors.Is(connectErr, unix.EINPROGRESS) {
		unix.Close(fd)
		return nil, fmt.Errorf("vsock connect failed: %w", connectErr)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("vsock:%d:%d", cid, port))
	if connectErr != nil {
		if err := awaitConnect(ctx, f, timeout); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &vsockConn{File: f, cid: cid, port: port}, nil
}

// awaitConnect waits for an in-progress connect to become writable and
// reports its SO_ERROR
func awaitConnect(ctx context.Context, f *os.File, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := f.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("vsock socket is not pollable: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = f.SetWriteDeadline(time.Unix(1, 0)) })
	defer stop()

	raw, err := f.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	first := true
	waitErr := raw.Write(func(fd uintptr) bool {
		// the first call runs before any readiness event
		if first {
			first = false
			return false
		}
		code, err := unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_ERROR)
		switch {
		case err != nil:
			sockErr = err
		case code != 0:
			sockErr = unix.Errno(code)
		}
		return true
	})
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(waitErr, os.ErrDeadlineExceeded):
		return fmt.Errorf("vsock connect timeout")
	case waitErr != nil:
		return fmt.Errorf("vsock connect failed: %w", waitErr)
	case sockErr != nil:
		return fmt.Errorf("vsock connect error: %w", sockErr)
	}
	return f.SetWriteDeadline(time.Time{})
}

func (c *vsockConn) LocalAddr() net.Addr {
	return &vsockAddr{cid: unix.VMADDR_CID_ANY}
}

func (c *vsockConn) RemoteAddr() net.Addr {
	return &vsockAddr{cid: c.cid, port: c.port}
}

type vsockAddr struct {
	cid  uint32
	port uint32
}

func (a *vsockAddr) Network() string { return "vsock" }
func (a *vsockAddr) String() string  { return fmt.Sprintf("%d:%d", a.cid, a.port) }

var _ net.Conn = (*vsockConn)(nil)
