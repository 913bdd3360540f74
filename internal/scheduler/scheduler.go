// Package scheduler runs ETL cycles on a fixed interval inside a daily
// local-time window.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/tamperlog/internal/domain"
	"github.com/rpattn/tamperlog/internal/logging"
	"github.com/rpattn/tamperlog/internal/metrics"

	"go.uber.org/zap"
)

// Runner runs one ETL cycle.
type Runner interface {
	RunCycle(ctx context.Context) (domain.RunSummary, error)
}

// Options configures a Scheduler.
type Options struct {
	Interval time.Duration
	Window   Window
	// OnCycle is called after every attempted cycle, including failed ones.
	OnCycle func(summary domain.RunSummary, err error)
}

// Scheduler drives a Runner. Cycles never overlap.
type Scheduler struct {
	runner  Runner
	opts    Options
	logger  *zap.Logger
	metrics *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a scheduler. logger and m may be nil.
func New(runner Runner, opts Options, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:  runner,
		opts:    opts,
		logger:  logger.Named("scheduler"),
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// Run loops until ctx is cancelled. Cycle failures are logged and never end
// the loop. It returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.Float64("interval_seconds", s.opts.Interval.Seconds()),
		zap.String("timezone", s.timezone()),
		zap.Int("allowed_start_hour", s.opts.Window.StartHour),
		zap.Int("allowed_end_hour", s.opts.Window.EndHour),
	)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		started := s.now()
		if s.opts.Window.Contains(started) {
			s.metrics.SetWindowOpen(true)
			s.runOnce(ctx)
		} else {
			s.metrics.SetWindowOpen(false)
			s.logger.Debug("outside allowed window, skipping cycle",
				zap.String("local_time", s.opts.Window.local(started).Format(time.DateTime)),
			)
		}

		wait := s.opts.Interval - s.now().Sub(started)
		if wait < 0 {
			wait = 0
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	var (
		summary domain.RunSummary
		err     error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("etl cycle panicked: %v", p)
			}
		}()
		summary, err = s.runner.RunCycle(ctx)
	}()

	if err != nil && ctx.Err() == nil {
		logging.Critical(s.logger, "ETL execution failed",
			zap.String("run_id", summary.RunID),
			zap.Int64("final_last_tamper_log_id", summary.EndWatermark),
			zap.Error(err),
		)
	}
	if s.opts.OnCycle != nil {
		s.opts.OnCycle(summary, err)
	}
}

func (s *Scheduler) timezone() string {
	if s.opts.Window.Location == nil {
		return time.Local.String()
	}
	return s.opts.Window.Location.String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
