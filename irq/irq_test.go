package irq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joeycumines/go-fiberevent"
	"github.com/joeycumines/go-fiberevent/fiber"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) *fiber.Scheduler {
	t.Helper()
	st, err := fiberevent.New(fiberevent.WithCores(2))
	require.NoError(t, err)
	s, err := fiber.NewScheduler(st.Core(1))
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
		require.NoError(t, st.Close())
	})
	return s
}

func run(t *testing.T, s *fiber.Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.Run(ctx))
}

func TestLine_WaitCollapsesRaises(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)
	l, err := Enable(s.Core())
	require.NoError(t, err)
	require.True(t, l.Event().Valid())

	var counts []uint64
	s.Spawn(context.Background(), func(ctx context.Context) error {
		l.Raise()
		l.Raise()
		n, err := l.Wait(ctx)
		if err != nil {
			return err
		}
		counts = append(counts, n)

		go func() {
			time.Sleep(time.Millisecond)
			l.Raise()
		}()
		n, err = l.Wait(ctx)
		if err != nil {
			return err
		}
		counts = append(counts, n)
		return nil
	})

	run(t, s)
	assert.Equal(t, []uint64{2, 1}, counts)
	assert.Equal(t, uint64(3), l.Raised())
}

func TestLine_Disable(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)
	l, err := Enable(s.Core())
	require.NoError(t, err)
	slot := l.Event().Slot()

	l.Disable()
	l.Disable()
	assert.False(t, l.Event().Valid())
	assert.Equal(t, fiberevent.SlotFree, s.Core().State().Slot(slot).Kind)

	l.Raise()
	assert.Zero(t, l.Raised())

	_, err = l.Wait(context.Background())
	assert.ErrorIs(t, err, fiberevent.ErrEventDisabled)
}

func TestHandle(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)
	l, err := Enable(s.Core())
	require.NoError(t, err)

	var (
		total   uint64
		cleaned error
	)
	stop := errors.New("enough")
	h := Handle(context.Background(), s, l, func(_ context.Context, n uint64) error {
		total += n
		if total >= 5 {
			return stop
		}
		go l.Raise()
		return nil
	}, func(err error) {
		cleaned = err
	})
	require.NotNil(t, h.Fiber())

	l.Raise()
	run(t, s)

	assert.GreaterOrEqual(t, total, uint64(5))
	assert.ErrorIs(t, cleaned, stop)
	assert.ErrorIs(t, h.Fiber().Err(), stop)
}

func TestHandle_Stop(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t)
	l, err := Enable(s.Core())
	require.NoError(t, err)

	var (
		calls   int
		cleaned error
	)
	h := Handle(context.Background(), s, l, func(context.Context, uint64) error {
		calls++
		return nil
	}, func(err error) {
		cleaned = err
	})

	s.Spawn(context.Background(), func(ctx context.Context) error {
		l.Raise()
		if err := fiber.Sleep(ctx, 2*time.Millisecond); err != nil {
			return err
		}
		h.Stop()
		return nil
	})

	run(t, s)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, cleaned, fiber.ErrKilled)
}
