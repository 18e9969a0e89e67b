package udpbench

import (
	"fmt"
	"strings"
)

// Peer is the address a remote peer announced on its sockname line.
type Peer struct {
	Addr string
	Port string
}

func (p Peer) String() string {
	return fmt.Sprintf("%s %s %s", PEERNAME_PREFIX, p.Addr, p.Port)
}

func socknameLine(addr, port string) string {
	return fmt.Sprintf("%s %s %s", SOCKNAME_PREFIX, addr, port)
}

// parseSockname accepts exactly "sockname: <addr> <port>". Words are
// separated by single spaces, so empty words count and make the line invalid.
func parseSockname(line string) (Peer, error) {
	line = strings.TrimSuffix(line, "\n")

	// prefix, addr, port and the end of line
	words := strings.SplitN(line, " ", 4)
	word := func(i int) (string, bool) {
		if i < len(words) {
			return words[i], true
		}
		return "", false
	}

	if w, ok := word(0); !ok || w != SOCKNAME_PREFIX {
		return Peer{}, &HandshakeError{Reason: "no sockname", Line: line}
	}
	addr, ok := word(1)
	if !ok || addr == "" {
		return Peer{}, &HandshakeError{Reason: "no addr"}
	}
	port, ok := word(2)
	if !ok || port == "" {
		return Peer{}, &HandshakeError{Reason: "no port"}
	}
	if rest, ok := word(3); ok {
		return Peer{}, &HandshakeError{Reason: "bad sockname", Line: rest}
	}

	return Peer{Addr: addr, Port: port}, nil
}
