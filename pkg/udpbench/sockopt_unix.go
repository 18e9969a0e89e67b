//go:build unix

package udpbench

import (
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// isNoBufferSpace reports a full interface output queue. The send is retried.
func isNoBufferSpace(err error) bool {
	return errors.Is(err, unix.ENOBUFS)
}

func effectiveBufferSize(conn datagramConn, dir Direction) (int, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return 0, errors.New("no raw socket")
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, err
	}

	opt := unix.SO_RCVBUF
	if dir == DIR_SEND {
		opt = unix.SO_SNDBUF
	}

	var size int
	var serr error
	err = raw.Control(func(fd uintptr) {
		size, serr = unix.GetsockoptInt(int(fd), unix.SOL_SOCKET, opt)
	})
	if err != nil {
		return 0, err
	}
	if serr != nil {
		return 0, errors.Wrap(serr, "getsockopt")
	}

	return size, nil
}
