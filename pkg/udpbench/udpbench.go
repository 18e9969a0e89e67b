package udpbench

import (
	"context"
	"fmt"
	"io"
	"time"
)

type Direction int

const (
	DIR_NONE Direction = iota
	DIR_SEND
	DIR_RECV
)

const (
	SEND_NAME = "send"
	RECV_NAME = "recv"
)

func (d Direction) String() string {
	switch d {
	case DIR_SEND:
		return SEND_NAME
	case DIR_RECV:
		return RECV_NAME
	}
	return "none"
}

// Complement is the direction the remote peer runs in.
func (d Direction) Complement() Direction {
	switch d {
	case DIR_SEND:
		return DIR_RECV
	case DIR_RECV:
		return DIR_SEND
	}
	return DIR_NONE
}

const (
	DEFAULT_SERVICE = "12345"
	DEFAULT_TIMEOUT = 1 // sec
	DEFAULT_SSH     = "ssh"

	IP_MAXPACKET = 65535
	MAX_BUFSIZE  = 1<<31 - 1

	IPV4_HEADER_LEN = 20
	IPV6_HEADER_LEN = 40
	UDP_HEADER_LEN  = 8

	RECV_TIMEOUT  = 100 * time.Millisecond // per receive once the first packet arrived
	RECV_GRACE    = 3                      // sec added to the local receiver alarm
	REMOTE_GRACE  = 1                      // sec added to the timeout of a launched receiver
	MIN_IDLE_TIME = time.Second
)

const (
	SOCKNAME_PREFIX = "sockname:"
	PEERNAME_PREFIX = "peername:"

	REPORT_FORMAT = "%s: count %d, length %d, duration %d.%06d, bit/s %.6g"
)

// BenchTest holds one invocation: the parsed settings, the session and the
// optional remote peer.
type BenchTest struct {
	dir      Direction
	hostname string
	service  string
	timeout  uint // sec
	setting  *benchSetting

	remoteHost string
	launcher   *Launcher
	remote     *RemoteProcess

	session *Session
	payload []byte
	alarm   *alarm

	out io.Writer
	now func() time.Time

	// dial and listen are replaced in tests
	dial   func(ctx context.Context, host, service string) (*Session, error)
	listen func(ctx context.Context, host, service string) (*Session, error)
}

type benchSetting struct {
	bufferSize int
	length     uint
	rate       uint // packets per second, sender only, 0 is unlimited
}

func (test *BenchTest) String() string {
	return fmt.Sprintf("dir:%v\thost:%v\tport:%v\ttimeout:%v\tbufsize:%v\tlength:%v\trate:%v\tremote:%v",
		test.dir, test.hostname, test.service, test.timeout, test.setting.bufferSize,
		test.setting.length, test.setting.rate, test.remoteHost)
}
