package udpbench

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

func (test *BenchTest) createSenderAlarm(ctx context.Context) {
	test.alarm = alarmCreate(ctx, time.Duration(test.timeout)*time.Second, nil)
}

func (test *BenchTest) fillPayload() error {
	test.payload = make([]byte, test.setting.length)
	if _, err := rand.Read(test.payload); err != nil {
		return errors.Wrap(err, "random udp payload")
	}
	return nil
}

func (test *BenchTest) newLimiter() *rate.Limiter {
	if test.setting.rate == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(test.setting.rate), 1)
}

// udpSend sends the payload until the alarm is raised.
func (test *BenchTest) udpSend() (Measurement, error) {
	conn := test.session.conn
	limiter := test.newLimiter()

	begin := test.now()

	var count uint64
	for !test.alarm.signaled() {
		if limiter != nil {
			if err := limiter.Wait(test.alarm.Context()); err != nil {
				// only the alarm cancels the wait
				break
			}
		}

		if _, err := conn.Write(test.payload); err != nil {
			if isNoBufferSpace(err) {
				continue
			}
			return Measurement{}, errors.Wrap(err, "send")
		}
		count++
	}

	end := test.now()

	m := newMeasurement(DIR_SEND, test.session.family, count, uint(len(test.payload)), end.Sub(begin))
	Log.Infof("Sender done. count = %v, bits = %v", m.Count, m.Bits())

	return m, nil
}
