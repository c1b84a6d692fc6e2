package workerloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuxedocomputers/tccd/internal/metrics"
)

func TestRunTicksUntilCanceled(t *testing.T) {
	var count int64
	loop := &Loop{
		Name:     "test",
		Interval: 5 * time.Millisecond,
		Tick: func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 3
	}, time.Second, time.Millisecond)

	cancel()
	<-done
}

func TestRunImmediatelyTicksBeforeFirstInterval(t *testing.T) {
	ran := make(chan struct{}, 1)
	loop := &Loop{
		Name:           "test",
		Interval:       time.Hour,
		RunImmediately: true,
		Tick: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("tick did not run immediately")
	}
}

func TestTickErrorsAreCountedNotFatal(t *testing.T) {
	collector := metrics.NewInMemoryCollector()
	var count int64
	loop := &Loop{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Metrics:  collector,
		Tick: func(ctx context.Context) error {
			atomic.AddInt64(&count, 1)
			return errors.New("transient sysfs read failure")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&count) >= 2
	}, time.Second, time.Millisecond)
	cancel()

	stats := collector.GetStats()
	assert.GreaterOrEqual(t, stats.WorkerTicksByName["flaky"], int64(2))
}
