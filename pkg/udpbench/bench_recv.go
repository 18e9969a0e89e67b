package udpbench

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
)

func (test *BenchTest) createReceiverAlarm(ctx context.Context) {
	var dur time.Duration
	if test.timeout > 0 {
		dur = time.Duration(test.timeout+RECV_GRACE) * time.Second
	}

	test.alarm = alarmCreate(ctx, dur, wakeReceiver(test.session.conn))
}

// wakeReceiver returns the alarm proc that interrupts a blocked receive, like
// EINTR does.
func wakeReceiver(conn datagramConn) alarmProc {
	return func(now time.Time) {
		if err := conn.SetReadDeadline(now); err != nil {
			Log.Debugf("Wake receiver failed: %v", err)
		}
	}
}

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}

// udpReceive times the transfer from the first packet to the last one seen
// before the trailing idle period.
func (test *BenchTest) udpReceive() (Measurement, error) {
	conn := test.session.conn
	payload := test.payload

	// wait for the first packet to start timing
	rcvlen, _, err := conn.ReadFrom(payload)
	if err != nil {
		return Measurement{}, errors.Wrap(err, "recv 1")
	}

	begin := test.now()
	var idle time.Time

	count := uint64(1)
	bored := 0
	for !test.alarm.signaled() {
		if err := conn.SetReadDeadline(test.now().Add(RECV_TIMEOUT)); err != nil {
			return Measurement{}, errors.Wrap(err, "setsockopt recv timeout")
		}

		n, _, err := conn.ReadFrom(payload)
		if err != nil {
			if !isTimeout(err) {
				return Measurement{}, errors.Wrap(err, "recv")
			}
			if test.alarm.signaled() {
				break
			}
			bored++
			if bored == 1 {
				// packet was seen before timeout
				idle = test.now().Add(-RECV_TIMEOUT)
				if idle.Before(begin) {
					idle = begin
				}
			}
			continue
		}
		bored = 0
		count++
		rcvlen = n
	}

	end := test.now()

	var duration, idleDur time.Duration
	if !idle.IsZero() {
		duration = idle.Sub(begin)
		idleDur = end.Sub(idle)
	} else {
		duration = end.Sub(begin)
	}

	m := newMeasurement(DIR_RECV, test.session.family, count, uint(rcvlen), duration)
	m.Idle = idleDur
	Log.Infof("Receiver done. count = %v, idle = %v", m.Count, m.Idle)

	if m.Idle < MIN_IDLE_TIME {
		return m, &IdleError{Measurement: m}
	}

	return m, nil
}
