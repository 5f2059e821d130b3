// Package scheduler runs the periodic performance report batch.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"fundledger/internal/logger"
	"fundledger/internal/services"
)

// Cron modes accepted by REPORTS_CRON_MODE.
const (
	Mode30Second = "30-second"
	Mode1Minute  = "1-minute"
	Mode2Minute  = "2-minute"
	Mode5Minute  = "5-minute"
	Mode10Minute = "10-minute"
	ModeDaily    = "daily"
	ModeDisabled = "disabled"
)

// Specs use the six-field format with a leading seconds column.
var modeSpecs = map[string]string{
	Mode30Second: "*/30 * * * * *",
	Mode1Minute:  "0 * * * * *",
	Mode2Minute:  "0 */2 * * * *",
	Mode5Minute:  "0 */5 * * * *",
	Mode10Minute: "0 */10 * * * *",
	ModeDaily:    "0 0 1 * * *",
}

// ModeSpec returns the cron spec for mode. An empty mode selects the
// two-minute default. ok is false when the mode is disabled.
func ModeSpec(mode string) (spec string, ok bool, err error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = Mode2Minute
	}
	if mode == ModeDisabled {
		return "", false, nil
	}
	spec, found := modeSpecs[mode]
	if !found {
		return "", false, fmt.Errorf("unknown report cron mode %q", mode)
	}
	return spec, true, nil
}

// ReportGenerator produces the day's report for every user portfolio.
type ReportGenerator interface {
	GenerateAllReports(ctx context.Context, date time.Time) (*services.BatchSummary, error)
}

// Scheduler triggers the report batch on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	reports ReportGenerator
	baseCtx context.Context
	log     *zap.SugaredLogger
	mode    string
	spec    string
	now     func() time.Time
}

// New builds a scheduler for mode. Jobs receive baseCtx, so cancelling it
// aborts an in-flight batch.
func New(baseCtx context.Context, reports ReportGenerator, mode string) (*Scheduler, error) {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	spec, enabled, err := ModeSpec(mode)
	if err != nil {
		return nil, err
	}

	log := logger.Named("scheduler")
	s := &Scheduler{
		reports: reports,
		baseCtx: baseCtx,
		log:     log,
		mode:    mode,
		spec:    spec,
		now:     time.Now,
	}
	if !enabled {
		return s, nil
	}

	cl := cronLogger{log}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(s.baseCtx) }); err != nil {
		return nil, fmt.Errorf("failed to schedule report batch: %w", err)
	}
	return s, nil
}

// Enabled reports whether the scheduler has a job registered.
func (s *Scheduler) Enabled() bool {
	return s.cron != nil
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	if s.cron == nil {
		s.log.Infow("report scheduler disabled", "mode", s.mode)
		return
	}
	s.cron.Start()
	s.log.Infow("report scheduler started", "mode", s.mode, "spec", s.spec)
}

// Stop prevents new runs and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Infow("report scheduler stopped")
}

// RunOnce generates today's reports for every user portfolio and logs the
// summary. Errors are logged, never returned.
func (s *Scheduler) RunOnce(ctx context.Context) {
	started := s.now()
	summary, err := s.reports.GenerateAllReports(ctx, started.UTC())
	if err != nil {
		s.log.Errorw("scheduled report batch failed", "error", err)
		return
	}

	s.log.Infow("scheduled report batch finished",
		"total", summary.Total,
		"success", summary.Success,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"duration", time.Since(started).String(),
	)
}

// cronLogger adapts the zap logger to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
