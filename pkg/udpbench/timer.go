package udpbench

import (
	"context"
	"sync/atomic"
	"time"
)

// alarm is the only cancellation of a transfer. Once raised it stays raised.
// The transfer loops poll signaled() on every iteration, the timer goroutine
// never touches the transfer state itself.
type alarm struct {
	timer  *time.Timer
	done   chan bool
	fired  atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

type alarmProc func(now time.Time)

// alarmCreate arms a one-shot alarm after dur. A zero dur creates no timer,
// the alarm is then raised only when ctx is cancelled from outside.
func alarmCreate(ctx context.Context, dur time.Duration, proc alarmProc) *alarm {
	a := &alarm{done: make(chan bool, 1)}
	// not derived from ctx, only raise and stop cancel it
	a.ctx, a.cancel = context.WithCancel(context.Background())

	var expired <-chan time.Time
	if dur > 0 {
		a.timer = time.NewTimer(dur)
		expired = a.timer.C
	}

	go func() {
		if a.timer != nil {
			defer a.timer.Stop()
		}

		select {
		case <-a.done:
			Log.Debugf("Alarm recv done. dur: %v", dur)

			return
		case t := <-expired:
			Log.Debugf("Alarm expired after %v", dur)
			a.raise(t, proc)
		case <-ctx.Done():
			Log.Debugf("Alarm raised by context: %v", ctx.Err())
			a.raise(time.Now(), proc)
		}
	}()

	return a
}

func (a *alarm) raise(now time.Time, proc alarmProc) {
	a.fired.Store(true)
	a.cancel()
	if proc != nil {
		proc(now)
	}
}

func (a *alarm) signaled() bool {
	return a != nil && a.fired.Load()
}

// Context is cancelled when the alarm is raised or stopped. Once raised,
// signaled is already true when Done is closed.
func (a *alarm) Context() context.Context {
	return a.ctx
}

func (a *alarm) stop() {
	if a == nil {
		return
	}
	select {
	case a.done <- true:
	default:
	}
	a.cancel()
}
