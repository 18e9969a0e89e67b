package udpbench

import (
	"context"
	"net"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// datagramConn is the part of *net.UDPConn a session uses.
type datagramConn interface {
	Write(b []byte) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	SetReadDeadline(t time.Time) error
	SetReadBuffer(bytes int) error
	SetWriteBuffer(bytes int) error
	LocalAddr() net.Addr
	Close() error
}

// Session owns the datagram socket of one run.
type Session struct {
	conn   datagramConn
	family Family
	dir    Direction
}

func (s *Session) Family() Family {
	return s.family
}

func (s *Session) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// udpBind binds the first usable address of host and service. An empty host
// means any address.
func udpBind(ctx context.Context, host, service string) (*Session, error) {
	return udpEstablish(ctx, host, service, DIR_RECV)
}

// udpConnect connects to the first usable address of host and service.
func udpConnect(ctx context.Context, host, service string) (*Session, error) {
	return udpEstablish(ctx, host, service, DIR_SEND)
}

func udpEstablish(ctx context.Context, host, service string, dir Direction) (*Session, error) {
	passive := dir == DIR_RECV

	candidates, err := resolve(ctx, host, service, passive)
	if err != nil {
		return nil, err
	}

	cause := "connect"
	if passive {
		cause = "bind"
	}

	var lastErr error
	for _, ap := range candidates {
		network := "udp4"
		family := FAMILY_IPV4
		if !ap.Addr().Is4() {
			network = "udp6"
			family = FAMILY_IPV6
		}
		addr := net.UDPAddrFromAddrPort(ap)

		var conn *net.UDPConn
		if passive {
			conn, err = net.ListenUDP(network, addr)
		} else {
			conn, err = net.DialUDP(network, nil, addr)
		}
		if err != nil {
			Log.Debugf("%s %v failed: %v", cause, ap, err)
			lastErr = err
			continue
		}

		Log.Debugf("%s %v succeed, family %v", cause, ap, family)

		return &Session{conn: conn, family: family, dir: dir}, nil
	}

	return nil, &ResolveError{Cause: failedSyscall(lastErr, cause), Err: lastErr}
}

// failedSyscall tells a failed socket(2) apart from a failed bind or connect.
func failedSyscall(err error, fallback string) string {
	var serr *os.SyscallError
	if errors.As(err, &serr) && serr.Syscall == "socket" {
		return "socket"
	}
	return fallback
}

// resolve returns the candidate addresses in the order they are tried.
func resolve(ctx context.Context, host, service string, passive bool) ([]netip.AddrPort, error) {
	port, err := lookupPort(ctx, service)
	if err != nil {
		return nil, &ResolveError{Cause: "getaddrinfo", Err: err}
	}

	var addrs []netip.Addr
	switch {
	case host == "" && passive:
		addrs = []netip.Addr{netip.IPv4Unspecified(), netip.IPv6Unspecified()}
	case host == "":
		addrs = []netip.Addr{netip.AddrFrom4([4]byte{127, 0, 0, 1}), netip.IPv6Loopback()}
	default:
		if ip, perr := netip.ParseAddr(host); perr == nil {
			addrs = []netip.Addr{ip}
			break
		}
		addrs, err = net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, &ResolveError{Cause: "getaddrinfo", Err: err}
		}
	}

	candidates := make([]netip.AddrPort, 0, len(addrs))
	for _, ip := range addrs {
		candidates = append(candidates, netip.AddrPortFrom(ip.Unmap(), port))
	}

	return candidates, nil
}

func lookupPort(ctx context.Context, service string) (uint16, error) {
	if n, err := strconv.ParseUint(service, 10, 16); err == nil {
		return uint16(n), nil
	}

	n, err := net.DefaultResolver.LookupPort(ctx, "udp", service)
	if err != nil {
		return 0, err
	}

	return uint16(n), nil
}

// Sockname returns the numeric local address and port.
func (s *Session) Sockname() (string, string, error) {
	ua, ok := s.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", "", errors.Errorf("getsockname: unexpected address %v", s.conn.LocalAddr())
	}

	ap := ua.AddrPort()
	addr := ap.Addr()
	if s.family == FAMILY_IPV4 {
		addr = addr.Unmap()
	}

	return addr.String(), strconv.Itoa(int(ap.Port())), nil
}

// SetBufferSize sets the send buffer of a sender or the receive buffer of a
// receiver. Zero keeps the system default.
func (s *Session) SetBufferSize(size int) error {
	if size == 0 {
		return nil
	}

	var err error
	if s.dir == DIR_SEND {
		err = s.conn.SetWriteBuffer(size)
	} else {
		err = s.conn.SetReadBuffer(size)
	}
	if err != nil {
		return errors.Wrapf(err, "setsockopt buffer size %d", size)
	}

	if effective, err := effectiveBufferSize(s.conn, s.dir); err == nil {
		Log.Debugf("%v buffer size requested %d, effective %d", s.dir, size, effective)
	}

	return nil
}
