//-------------------------------------------------------------------------
//
// pgEdge Stock Summary Ingest
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package scheduler triggers ingest invocations on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pgEdge/pgedge-stock-ingest/internal/config"
	"github.com/pgEdge/pgedge-stock-ingest/internal/ingest"
	"github.com/pgEdge/pgedge-stock-ingest/internal/logging"
)

// Runner performs one invocation. *ingest.Ingester satisfies it.
type Runner interface {
	Run(ctx context.Context) ingest.Response
}

// Scheduler runs invocations on a cron schedule. A tick that fires while
// the previous invocation is still running is skipped.
type Scheduler struct {
	cron       *cron.Cron
	schedule   cron.Schedule
	location   *time.Location
	runner     Runner
	runOnStart bool

	startTime time.Time

	// Statistics
	total      atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	skipped    atomic.Int64
	written    atomic.Int64
	lastStatus atomic.Int64
}

// New creates a Scheduler for cfg. The cron expression and timezone are
// validated here.
func New(cfg config.ScheduleConfig, runner Runner) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	schedule, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}

	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		schedule:   schedule,
		location:   loc,
		runner:     runner,
		runOnStart: cfg.RunOnStart,
	}, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.location))
}

// Run schedules invocations until ctx is cancelled, then waits for a
// running invocation to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.startTime = time.Now()
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.tick(ctx) }))

	logging.Info().
		Str("timezone", s.location.String()).
		Time("next_run", s.Next(s.startTime)).
		Msg("Starting scheduler")

	s.cron.Start()

	if s.runOnStart {
		logging.Info().Msg("Running initial invocation")
		s.tick(ctx)
	}

	<-ctx.Done()

	logging.Info().Msg("Stopping scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	started := time.Now()
	resp := s.runner.Run(ctx)
	s.record(resp)

	logging.Info().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Time("next_run", s.Next(time.Now())).
		Msg("Invocation finished")
}

func (s *Scheduler) record(resp ingest.Response) {
	s.total.Add(1)
	s.lastStatus.Store(int64(resp.StatusCode))
	if !resp.OK() {
		s.failed.Add(1)
		return
	}
	s.succeeded.Add(1)

	var body ingest.SuccessBody
	if err := resp.Decode(&body); err == nil {
		s.written.Add(int64(body.RecordsProcessed))
		s.skipped.Add(int64(body.RecordsSkipped))
	}
}

// Stats is a snapshot of the scheduler counters.
type Stats struct {
	Invocations int64
	Succeeded   int64
	Failed      int64
	Written     int64
	Skipped     int64
	LastStatus  int
}

// Stats returns the current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Invocations: s.total.Load(),
		Succeeded:   s.succeeded.Load(),
		Failed:      s.failed.Load(),
		Written:     s.written.Load(),
		Skipped:     s.skipped.Load(),
		LastStatus:  int(s.lastStatus.Load()),
	}
}

// PrintSummary logs a final summary of the scheduled invocations.
func (s *Scheduler) PrintSummary() {
	st := s.Stats()
	logging.Info().
		Dur("uptime", time.Since(s.startTime)).
		Int64("invocations", st.Invocations).
		Int64("succeeded", st.Succeeded).
		Int64("failed", st.Failed).
		Int64("records_written", st.Written).
		Int64("records_skipped", st.Skipped).
		Int("last_status", st.LastStatus).
		Msg("Final summary")
}

// cronLogger routes cron's own messages to the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logging.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logging.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
