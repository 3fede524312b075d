package fiber

import (
	"context"
	"time"

	"github.com/joeycumines/go-fiberevent"
)

// AlarmFunc is the callback of an alarm. Its result controls repetition:
// zero stops the alarm, a positive value schedules the next call that long
// after now, and a negative value schedules it that long after the previous
// target time (keeping a fixed period).
type AlarmFunc func(ctx context.Context) time.Duration

// AddAlarmAt runs cb in a new fiber at the time at. If at has already
// passed, cb runs immediately when firePast is set, and otherwise no alarm
// is created and nil is returned. The alarm fiber can be cancelled with
// [Scheduler.CancelAlarm].
func (s *Scheduler) AddAlarmAt(ctx context.Context, at time.Time, cb AlarmFunc, firePast bool) *Fiber {
	if !firePast && !time.Now().Before(at) {
		return nil
	}
	return s.Spawn(ctx, func(ctx context.Context) error {
		target := at
		for {
			if err := SleepUntil(ctx, fiberevent.At(target)); err != nil {
				return err
			}
			repeat := cb(ctx)
			switch {
			case repeat == 0:
				return nil
			case repeat > 0:
				target = time.Now().Add(repeat)
			default:
				target = target.Add(-repeat)
			}
		}
	})
}

// AddAlarmIn is like [Scheduler.AddAlarmAt], with a time d from now.
func (s *Scheduler) AddAlarmIn(ctx context.Context, d time.Duration, cb AlarmFunc, firePast bool) *Fiber {
	return s.AddAlarmAt(ctx, time.Now().Add(d), cb, firePast)
}

// CancelAlarm stops an alarm created by AddAlarmAt or AddAlarmIn. It is a
// no-op for nil, or for an alarm that already finished.
func (s *Scheduler) CancelAlarm(f *Fiber) {
	s.Kill(f)
}
