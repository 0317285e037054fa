// Veridex Risk Worker - Anti-Counterfeit Risk Scoring and Anomaly Detection
// Copyright 2026 Veridex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/veridex/riskworker

// Package scheduler runs the analysis tasks on their configured intervals.
//
// Each task gets its own goroutine and ticker so a slow channel scan never
// delays the pattern detectors. Every task runs once immediately on startup,
// then on each tick. A tick that arrives while the previous run of the same
// task is still in flight is skipped, never queued: the next tick will see
// fresher data anyway. A panic inside one task run is recovered, logged, and
// counted as a failure without taking down the other tasks or the process.
package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/veridex/riskworker/internal/logging"
	"github.com/veridex/riskworker/internal/metrics"
)

// Task is one periodically scheduled unit of analysis work.
type Task struct {
	// Name identifies the task in logs and metrics labels.
	Name string

	// Interval is the tick cadence. Tasks with a non-positive interval are
	// rejected at construction.
	Interval time.Duration

	// Run executes one pass. A returned error marks the run failed; the task
	// stays scheduled and retries on the next tick.
	Run func(ctx context.Context) error

	// inFlight guards against overlapping runs of the same task.
	inFlight atomic.Bool
}

// Scheduler drives a fixed set of tasks. It implements suture.Service so the
// supervisor restarts it if the scheduling loop itself ever fails.
type Scheduler struct {
	tasks  []*Task
	logger zerolog.Logger

	// runs tracks dispatched task runs so Serve can wait them out.
	runs sync.WaitGroup
}

// New creates a scheduler over the given tasks. Tasks with no name, no Run
// function, or a non-positive interval indicate a wiring bug and panic.
func New(tasks []*Task) *Scheduler {
	for _, t := range tasks {
		if t.Name == "" || t.Run == nil || t.Interval <= 0 {
			panic("scheduler: task must have a name, a Run function, and a positive interval")
		}
	}
	return &Scheduler{
		tasks:  tasks,
		logger: logging.With().Str("component", "scheduler").Logger(),
	}
}

// Serve implements suture.Service. It starts one loop per task, blocks until
// the context is canceled, and waits for in-flight runs to return.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Starting analysis scheduler")

	var wg sync.WaitGroup
	for _, task := range s.tasks {
		wg.Add(1)
		go func(t *Task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(task)
	}
	wg.Wait()
	s.runs.Wait()

	s.logger.Info().Msg("Analysis scheduler stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logging.
func (s *Scheduler) String() string {
	return "analysis-scheduler"
}

// loop drives one task: immediate first run, then ticker-paced runs until the
// context is canceled.
func (s *Scheduler) loop(ctx context.Context, t *Task) {
	logger := s.logger.With().Str("task", t.Name).Logger()
	logger.Info().Dur("interval", t.Interval).Msg("Task scheduled")

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	s.dispatch(ctx, t, logger)

	for {
		select {
		case <-ticker.C:
			s.dispatch(ctx, t, logger)
		case <-ctx.Done():
			return
		}
	}
}

// dispatch starts one run of the task unless the previous run is still in
// flight, in which case the tick is dropped and counted.
func (s *Scheduler) dispatch(ctx context.Context, t *Task, logger zerolog.Logger) {
	if !t.inFlight.CompareAndSwap(false, true) {
		metrics.TaskOverlapSkips.WithLabelValues(t.Name).Inc()
		logger.Warn().Msg("Previous run still in flight, skipping tick")
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer t.inFlight.Store(false)
		runOnce(ctx, t, logger)
	}()
}

// runOnce executes one task run with panic isolation. A panicking task is
// treated as a failed run: the panic value and stack are logged and the task
// remains scheduled.
func runOnce(ctx context.Context, t *Task, logger zerolog.Logger) {
	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Task run panicked")
			metrics.TaskRuns.WithLabelValues(t.Name, "failure").Inc()
			metrics.TaskDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
			return
		}
		metrics.ObserveTask(t.Name, start, err)
	}()

	logger.Debug().Msg("Task run starting")
	err = t.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug().Err(err).Msg("Task run aborted by shutdown")
			return
		}
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Task run failed")
		return
	}
	logger.Debug().Dur("duration", time.Since(start)).Msg("Task run complete")
}
