// Package executor runs the periodic realtime task.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/metrics"
)

// ErrNoTask is returned by Run and RunSteps when no task is set.
var ErrNoTask = errors.New("executor: no task registered")

// Task is invoked once per period with the tick time in seconds.
type Task func(now float64)

// Executor calls a single task at a fixed period. The task always runs
// on the goroutine that called Run or RunSteps.
type Executor struct {
	dt      float64
	period  time.Duration
	task    Task
	logger  *zap.SugaredLogger
	metrics *metrics.Executor

	ticks    atomic.Uint64
	stopped  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(dt float64, logger *zap.SugaredLogger, reg prometheus.Registerer) (*Executor, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: executor period must be positive, got %g", dynamo.ErrInvalidConfig, dt)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Executor{
		dt:      dt,
		period:  time.Duration(dt * float64(time.Second)),
		logger:  logger,
		metrics: metrics.NewExecutor(reg),
		stopCh:  make(chan struct{}),
	}, nil
}

func (e *Executor) SetTask(fn Task) { e.task = fn }

func (e *Executor) Period() float64 { return e.dt }

func (e *Executor) Ticks() uint64 { return e.ticks.Load() }

// Now is the time of the next tick.
func (e *Executor) Now() float64 { return float64(e.ticks.Load()) * e.dt }

func (e *Executor) Stopped() bool { return e.stopped.Load() }

// Stop ends Run or RunSteps after the current tick. It is idempotent and
// may be called from inside the task.
func (e *Executor) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		close(e.stopCh)
		e.logger.Infow("Executor stopped", "ticks", e.ticks.Load())
	})
}

// Run invokes the task on a wall-clock ticker until Stop is called or
// ctx is done. Ticks that take longer than the period are counted as
// overruns; missed ticks are not replayed.
func (e *Executor) Run(ctx context.Context) error {
	if e.task == nil {
		return ErrNoTask
	}
	e.logger.Infow("Executor started", "period", e.period)

	ticker := time.NewTicker(e.period)
	defer ticker.Stop()

	for !e.stopped.Load() {
		e.invoke(true)
		if e.stopped.Load() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.stopCh:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// RunSteps invokes the task up to n times back to back, without waiting
// for the wall clock. It returns the number of ticks run.
func (e *Executor) RunSteps(ctx context.Context, n int) (int, error) {
	if e.task == nil {
		return 0, ErrNoTask
	}
	for i := 0; i < n; i++ {
		if e.stopped.Load() {
			return i, nil
		}
		if err := ctx.Err(); err != nil {
			return i, err
		}
		e.invoke(false)
	}
	return n, nil
}

func (e *Executor) invoke(realtime bool) {
	now := float64(e.ticks.Load()) * e.dt
	start := time.Now()
	e.task(now)
	elapsed := time.Since(start)

	e.ticks.Add(1)
	e.metrics.Ticks.Inc()
	e.metrics.TickSeconds.Observe(elapsed.Seconds())
	if realtime && elapsed > e.period {
		e.metrics.Overruns.Inc()
		e.logger.Warnw("Task overran its period", "elapsed", elapsed, "period", e.period, "tick", e.ticks.Load())
	}
}
