// Package workerloop provides the ticker-driven run loop shared by the
// daemon's periodic workers (coordinator, fan control, hardware monitor,
// water cooler). Each wraps a Loop with its own TickFunc instead of
// hand-rolling a ticker+goroutine.
package workerloop

import (
	"context"
	"fmt"
	"time"

	"github.com/tuxedocomputers/tccd/internal/daemonerrors"
	"github.com/tuxedocomputers/tccd/internal/logging"
	"github.com/tuxedocomputers/tccd/internal/metrics"
)

// TickFunc performs one worker iteration. A returned error is logged and
// counted but never stops the loop; a worker that can't read a sysfs node
// this tick should just try again next tick.
type TickFunc func(ctx context.Context) error

// Loop runs a TickFunc on a fixed interval until its context is canceled.
type Loop struct {
	Name     string
	Interval time.Duration
	Tick     TickFunc
	Logger   logging.Logger
	Metrics  metrics.Collector

	// RunImmediately, if true, performs one Tick before the first ticker
	// fire instead of waiting a full Interval. Workers whose state needs
	// to be warm before the coordinator's first orchestration pass (fan,
	// hardware monitor) set this.
	RunImmediately bool
}

// Run blocks, invoking Tick every Interval, until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	logger := l.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	collector := l.Metrics
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	if l.RunImmediately {
		l.runOnce(ctx, logger, collector)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker loop stopping", "worker", l.Name)
			return
		case <-ticker.C:
			l.runOnce(ctx, logger, collector)
		}
	}
}

func (l *Loop) runOnce(ctx context.Context, logger logging.Logger, collector metrics.Collector) {
	defer func() {
		if r := recover(); r != nil {
			err := daemonerrors.Wrap(fmt.Errorf("panic: %v", r), daemonerrors.KindIOTransient, l.Name+" tick")
			logging.LogError(logger, err, l.Name+" tick")
		}
	}()
	start := time.Now()
	if err := l.Tick(ctx); err != nil {
		logging.LogError(logger, err, l.Name+" tick")
	}
	duration := time.Since(start)
	collector.RecordWorkerTick(l.Name, duration)
}
