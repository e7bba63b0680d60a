package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/telemetry-agent/pkg/metrics"
)

func newTestScheduler(t *testing.T) (*Scheduler, *metrics.Set) {
	t.Helper()
	m := metrics.NewNopSet()
	s := New(zaptest.NewLogger(t), m)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, m
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestScheduler(t)
	noop := func(context.Context) error { return nil }

	assert.Error(t, s.Register(Job{Interval: time.Second, Task: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Task: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: -time.Second, Task: noop}))
	assert.Error(t, s.Register(Job{Name: "a", Interval: time.Second}))

	require.NoError(t, s.Register(Job{Name: "a", Interval: time.Second, Task: noop}))
	assert.ErrorIs(t, s.Register(Job{Name: "a", Interval: time.Second, Task: noop}), ErrDuplicateJob)
	require.NoError(t, s.Register(Job{Name: "b", Interval: time.Second, Task: noop}))

	assert.Equal(t, []string{"a", "b"}, s.Jobs())
}

func TestStartTwiceAndRegisterAfterStart(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.Start(context.Background()))

	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	err := s.Register(Job{Name: "late", Interval: time.Second, Task: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestFirstTickRunsImmediately(t *testing.T) {
	s, _ := newTestScheduler(t)
	var ticks atomic.Int32
	require.NoError(t, s.Register(Job{Name: "slow-cadence", Interval: time.Hour, Task: func(context.Context) error {
		ticks.Add(1)
		return nil
	}}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestFailingTickDoesNotStopJob(t *testing.T) {
	s, m := newTestScheduler(t)
	var ticks atomic.Int32
	require.NoError(t, s.Register(Job{Name: "flaky", Interval: 10 * time.Millisecond, Task: func(context.Context) error {
		n := ticks.Add(1)
		if n%2 == 1 {
			return errors.New("transient")
		}
		return nil
	}}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return ticks.Load() >= 4 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.JobTicks.WithLabelValues("flaky", resultError)), 2.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.JobTicks.WithLabelValues("flaky", resultOK)), 1.0)
}

func TestPanickingTickIsRecovered(t *testing.T) {
	s, m := newTestScheduler(t)
	var ticks atomic.Int32
	require.NoError(t, s.Register(Job{Name: "panicky", Interval: 10 * time.Millisecond, Task: func(context.Context) error {
		ticks.Add(1)
		panic("collector exploded")
	}}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.JobTicks.WithLabelValues("panicky", resultPanic)), 2.0)
}

func TestTicksOfOneJobNeverOverlap(t *testing.T) {
	s, _ := newTestScheduler(t)
	var running, maxRunning, ticks atomic.Int32
	require.NoError(t, s.Register(Job{Name: "overrun", Interval: 5 * time.Millisecond, Task: func(context.Context) error {
		cur := running.Add(1)
		for {
			prev := maxRunning.Load()
			if cur <= prev || maxRunning.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond) // four intervals
		running.Add(-1)
		ticks.Add(1)
		return nil
	}}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), maxRunning.Load())
}

func TestSlowJobDoesNotDelayOthers(t *testing.T) {
	s, _ := newTestScheduler(t)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	var fast atomic.Int32
	require.NoError(t, s.Register(Job{Name: "stuck", Interval: 10 * time.Millisecond, Task: func(ctx context.Context) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}}))
	require.NoError(t, s.Register(Job{Name: "fast", Interval: 10 * time.Millisecond, Task: func(context.Context) error {
		fast.Add(1)
		return nil
	}}))
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return fast.Load() >= 5 }, 2*time.Second, 5*time.Millisecond)
}

func TestShutdownStopsJobsAndCancelsInFlightTicks(t *testing.T) {
	s := New(zaptest.NewLogger(t), nil)
	started := make(chan struct{})
	var cancelled atomic.Bool
	require.NoError(t, s.Register(Job{Name: "long", Interval: time.Hour, Task: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}}))
	require.NoError(t, s.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.True(t, cancelled.Load())
}

func TestShutdownTimesOutOnStuckTick(t *testing.T) {
	// the stuck tick finishes after the test returns, so it must not log through t
	s := New(zap.NewNop(), nil)
	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, s.Register(Job{Name: "ignores-ctx", Interval: time.Hour, Task: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))
	require.NoError(t, s.Start(context.Background()))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Shutdown(ctx), context.DeadlineExceeded)
}

func TestShutdownBeforeStart(t *testing.T) {
	s := New(nil, nil)
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestRunOnceRecordsDuration(t *testing.T) {
	m := metrics.NewNopSet()
	s := New(zaptest.NewLogger(t), m)
	s.RunOnce(context.Background(), Job{Name: "once", Interval: time.Second, Task: func(context.Context) error { return nil }})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobTicks.WithLabelValues("once", resultOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.JobDuration, "agent_job_duration_seconds"))
}
