package trigger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/geoqc/pkg/observability"
)

// Scheduler runs validation on a cron schedule. A run that is still going
// when the next one is due causes that next run to be skipped.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	run      RunFunc
	logger   *observability.Logger

	failures atomic.Int32
}

// NewScheduler parses spec, a standard five-field cron expression or a
// descriptor such as "@hourly" or "@every 15m"
func NewScheduler(spec string, run RunFunc, logger *observability.Logger) (*Scheduler, error) {
	if run == nil {
		return nil, fmt.Errorf("run function is required")
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, observability.FormatText, nil)
	}
	return &Scheduler{spec: spec, schedule: schedule, run: run, logger: logger}, nil
}

// Next returns the first activation after t
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to finish
func (s *Scheduler) Run(ctx context.Context) error {
	clog := cronLogger{s.logger}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.SkipIfStillRunning(clog)))

	c.Schedule(s.schedule, cron.FuncJob(func() {
		defer observability.RecoverPanicWithCallback(s.logger, "scheduled run", s.failed)
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("Running scheduled validation")
		if err := s.run(ctx); err != nil {
			s.failed(err)
			return
		}
		s.failures.Store(0)
	}))

	c.Start()
	s.logger.WithField("schedule", s.spec).Infof("Scheduler started, next run at %s",
		s.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	s.logger.Info("Stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// ConsecutiveFailures is the number of scheduled runs that failed or
// panicked since the last successful one
func (s *Scheduler) ConsecutiveFailures() int {
	return int(s.failures.Load())
}

func (s *Scheduler) failed(err error) {
	n := s.failures.Add(1)
	s.logger.WithError(err).WithField("consecutive_failures", n).Error("Scheduled validation failed")
}

// cronLogger adapts the process logger to cron's logging interface
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
