package udpbench

import (
	"net"
	"net/netip"
	"os"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2019, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeRead is what one ReadFrom call does.
type fakeRead struct {
	after time.Duration // clock advance before the call returns
	n     int
	err   error
	alarm bool // raise the alarm before returning
}

func packet(after time.Duration, n int) fakeRead {
	return fakeRead{after: after, n: n}
}

func idleRead() fakeRead {
	return fakeRead{after: RECV_TIMEOUT, err: os.ErrDeadlineExceeded}
}

func idleReads(count int) []fakeRead {
	reads := make([]fakeRead, count)
	for i := range reads {
		reads[i] = idleRead()
	}
	return reads
}

func alarmRead(after time.Duration) fakeRead {
	return fakeRead{after: after, err: os.ErrDeadlineExceeded, alarm: true}
}

// fakeConn plays a script of reads and writes against a fake clock. It also
// records the buffer tuning calls.
type fakeConn struct {
	test  *BenchTest
	clock *fakeClock

	reads []fakeRead

	writeErrs   []error // returned by the first writes, in order
	writes      int
	alarmWrites int // raise the alarm after this many successful writes

	deadlines   []time.Time
	deadlineErr error

	readBufferCalls  []int
	writeBufferCalls []int
	bufferErr        error

	local  net.Addr
	closed bool
}

func (c *fakeConn) raise() {
	c.test.alarm.raise(c.clock.Now(), nil)
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	if len(c.reads) == 0 {
		c.raise()
		return 0, nil, os.ErrDeadlineExceeded
	}
	r := c.reads[0]
	c.reads = c.reads[1:]

	c.clock.Advance(r.after)
	if r.alarm {
		c.raise()
	}
	if r.err != nil {
		return 0, nil, r.err
	}
	return r.n, nil, nil
}

func (c *fakeConn) Write(b []byte) (int, error) {
	if len(c.writeErrs) > 0 {
		err := c.writeErrs[0]
		c.writeErrs = c.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	c.writes++
	c.clock.Advance(time.Millisecond)
	if c.writes == c.alarmWrites {
		c.raise()
	}
	return len(b), nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.deadlines = append(c.deadlines, t)
	return c.deadlineErr
}

func (c *fakeConn) SetReadBuffer(bytes int) error {
	c.readBufferCalls = append(c.readBufferCalls, bytes)
	return c.bufferErr
}

func (c *fakeConn) SetWriteBuffer(bytes int) error {
	c.writeBufferCalls = append(c.writeBufferCalls, bytes)
	return c.bufferErr
}

func (c *fakeConn) LocalAddr() net.Addr {
	if c.local == nil {
		return &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 12345}
	}
	return c.local
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// newFakeTest returns a test in dir whose session is a fakeConn.
func newFakeTest(dir Direction, length uint) (*BenchTest, *fakeConn) {
	test := NewBenchTest()
	test.Init()
	test.dir = dir
	test.timeout = 0
	test.setting.length = length

	clock := newFakeClock()
	test.now = clock.Now

	conn := &fakeConn{test: test, clock: clock}
	session := &Session{conn: conn, family: FAMILY_IPV4, dir: dir}
	test.session = session
	test.payload = make([]byte, length)

	return test, conn
}

var cmpAddrPort = cmp.Comparer(func(a, b netip.AddrPort) bool { return a == b })
