//go:build !unix

package udpbench

import "github.com/pkg/errors"

func isNoBufferSpace(err error) bool {
	return false
}

func effectiveBufferSize(conn datagramConn, dir Direction) (int, error) {
	return 0, errors.New("buffer size not available on this platform")
}
