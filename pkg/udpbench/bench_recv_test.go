package udpbench

import (
	"bytes"
	"context"
	"math"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/pkg/errors"
	"gotest.tools/assert"
)

func receiverWith(t *testing.T, length uint, reads ...[]fakeRead) (*BenchTest, *fakeConn) {
	test, conn := newFakeTest(DIR_RECV, length)
	for _, r := range reads {
		conn.reads = append(conn.reads, r...)
	}
	test.alarm = alarmCreate(context.Background(), 0, nil)
	t.Cleanup(test.alarm.stop)
	return test, conn
}

func packets(count int, after time.Duration, n int) []fakeRead {
	reads := make([]fakeRead, count)
	for i := range reads {
		reads[i] = packet(after, n)
	}
	return reads
}

func TestReceiveSplitsIdleTail(t *testing.T) {
	test, _ := receiverWith(t, 100,
		packets(1, 0, 100),
		packets(10, 10*time.Millisecond, 100),
		idleReads(15),
		[]fakeRead{alarmRead(50 * time.Millisecond)},
	)

	m, err := test.udpReceive()
	assert.NilError(t, err)

	assert.Equal(t, m.Dir, DIR_RECV)
	assert.Equal(t, m.Count, uint64(11))
	assert.Equal(t, m.Length, uint(128))
	// idle starts one receive timeout before the first timeout
	assert.Equal(t, m.Duration, 100*time.Millisecond)
	assert.Equal(t, m.Idle, 1550*time.Millisecond)
	assert.Assert(t, math.Abs(m.BitRate()-14080) < 1e-6)
}

func TestReceiveIdleResyncsOnLatePacket(t *testing.T) {
	test, _ := receiverWith(t, 64,
		packets(1, 0, 64),
		packets(5, 10*time.Millisecond, 64),
		idleReads(3),
		packets(1, 10*time.Millisecond, 64),
		idleReads(20),
		[]fakeRead{alarmRead(0)},
	)

	m, err := test.udpReceive()
	assert.NilError(t, err)

	assert.Equal(t, m.Count, uint64(7))
	assert.Equal(t, m.Duration, 360*time.Millisecond)
	assert.Equal(t, m.Idle, 2*time.Second)
}

func TestReceiveRejectsShortIdle(t *testing.T) {
	test, _ := receiverWith(t, 100,
		packets(1, 0, 100),
		packets(1, 10*time.Millisecond, 100),
		idleReads(5),
		[]fakeRead{alarmRead(0)},
	)

	m, err := test.udpReceive()

	var idle *IdleError
	assert.Assert(t, errors.As(err, &idle))
	assert.Equal(t, idle.Measurement, m)
	assert.Equal(t, m.Idle, 500*time.Millisecond)
	assert.ErrorContains(t, err, "not enough idle time: 0.500000")
	assert.Equal(t, ExitCode(err), EXIT_FAIL)
}

func TestReceiveWithoutTimeoutHasNoIdle(t *testing.T) {
	test, _ := receiverWith(t, 100,
		packets(1, 0, 100),
		packets(20, 50*time.Millisecond, 100),
		[]fakeRead{alarmRead(20 * time.Millisecond)},
	)

	m, err := test.udpReceive()

	var idle *IdleError
	assert.Assert(t, errors.As(err, &idle))
	assert.Equal(t, m.Idle, time.Duration(0))
	assert.Equal(t, m.Duration, 1020*time.Millisecond)
	assert.Equal(t, m.Count, uint64(21))
}

func TestReceiveUsesLastPacketLength(t *testing.T) {
	test, _ := receiverWith(t, 100,
		packets(1, 0, 100),
		packets(1, time.Millisecond, 60),
		idleReads(12),
	)
	test.session.family = FAMILY_IPV6

	m, err := test.udpReceive()
	assert.NilError(t, err)
	assert.Equal(t, m.Length, uint(60+48))
}

func TestReceiveAlarmBeforeFirstPacket(t *testing.T) {
	test, _ := receiverWith(t, 100, []fakeRead{alarmRead(time.Second)})

	_, err := test.udpReceive()
	assert.ErrorContains(t, err, "recv 1")
}

func TestReceiveFatalError(t *testing.T) {
	test, _ := receiverWith(t, 100,
		packets(1, 0, 100),
		[]fakeRead{{err: syscall.ECONNREFUSED}},
	)

	_, err := test.udpReceive()
	assert.ErrorContains(t, err, "recv")
	assert.Assert(t, errors.Is(err, syscall.ECONNREFUSED))
}

func TestWakeReceiverSetsDeadline(t *testing.T) {
	_, conn := newFakeTest(DIR_RECV, 100)
	now := conn.clock.Now()

	wakeReceiver(conn)(now)
	assert.DeepEqual(t, conn.deadlines, []time.Time{now})

	// a closed socket only gets logged
	conn.deadlineErr = net.ErrClosed
	wakeReceiver(conn)(now.Add(time.Second))
	assert.Equal(t, len(conn.deadlines), 2)
}

func TestReceiverAlarmRaisedByContext(t *testing.T) {
	test, _ := newFakeTest(DIR_RECV, 100)
	ctx, cancel := context.WithCancel(context.Background())
	test.createReceiverAlarm(ctx)
	defer test.alarm.stop()

	cancel()
	<-test.alarm.Context().Done()
	assert.Assert(t, test.alarm.signaled())
}

func runFakeReceiver(t *testing.T, reads ...[]fakeRead) (string, error) {
	test, conn := newFakeTest(DIR_RECV, 100)
	for _, r := range reads {
		conn.reads = append(conn.reads, r...)
	}
	session := test.session
	test.listen = func(ctx context.Context, host, service string) (*Session, error) {
		return session, nil
	}

	var out bytes.Buffer
	test.SetOutput(&out)

	err := test.RunTest(context.Background())
	assert.NilError(t, test.FreeTest())
	assert.Assert(t, conn.closed)

	return out.String(), err
}

func TestRunReceiverReports(t *testing.T) {
	out, err := runFakeReceiver(t,
		packets(1, 0, 100),
		packets(10, 10*time.Millisecond, 100),
		idleReads(15),
		[]fakeRead{alarmRead(50 * time.Millisecond)},
	)
	assert.NilError(t, err)
	assert.Equal(t, out, "sockname: 127.0.0.1 12345\n"+
		"recv: count 11, length 128, duration 0.100000, bit/s 14080\n")
}

func TestRunReceiverNoReportOnShortIdle(t *testing.T) {
	out, err := runFakeReceiver(t,
		packets(1, 0, 100),
		idleReads(3),
		[]fakeRead{alarmRead(0)},
	)

	var idle *IdleError
	assert.Assert(t, errors.As(err, &idle))
	assert.Equal(t, out, "sockname: 127.0.0.1 12345\n")
}
