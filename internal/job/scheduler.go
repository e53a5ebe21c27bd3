// Package job runs the periodic background tasks.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
)

// DefaultSoutenanceDoneCron runs the completion sweep once an hour.
const DefaultSoutenanceDoneCron = "@hourly"

// DefaultInactiveUsersCron runs the dormant-account sweep once a day.
const DefaultInactiveUsersCron = "@daily"

// runTimeout bounds a single run of any job.
const runTimeout = 4 * time.Minute

// SoutenanceCompleter marks soutenances whose window has passed as done.
type SoutenanceCompleter interface {
	CompleteDue(ctx context.Context) (int, error)
}

// UserDeactivator disables accounts that stayed without a login too long.
type UserDeactivator interface {
	DeactivateInactive(ctx context.Context, after time.Duration) (int64, error)
}

// Scheduler owns the cron instance.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler registers the jobs. Empty specs fall back to the defaults; the
// inactive-user job is skipped when cfg.InactiveAfter is not positive.
func NewScheduler(cfg config.JobsConfig, completer SoutenanceCompleter, users UserDeactivator, logger *zap.Logger) (*Scheduler, error) {
	if cfg.SoutenanceDoneCron == "" {
		cfg.SoutenanceDoneCron = DefaultSoutenanceDoneCron
	}
	if cfg.InactiveUsersCron == "" {
		cfg.InactiveUsersCron = DefaultInactiveUsersCron
	}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{logger}),
		cron.SkipIfStillRunning(cronLogger{logger}),
	))
	s := &Scheduler{cron: c, logger: logger}

	if _, err := c.AddFunc(cfg.SoutenanceDoneCron, func() { s.completeSoutenances(completer) }); err != nil {
		return nil, fmt.Errorf("soutenance_done_cron: %w", err)
	}

	if cfg.InactiveAfter > 0 {
		after := cfg.InactiveAfter
		if _, err := c.AddFunc(cfg.InactiveUsersCron, func() { s.deactivateUsers(users, after) }); err != nil {
			return nil, fmt.Errorf("inactive_users_cron: %w", err)
		}
	}

	logger.Info("background jobs registered",
		zap.String("soutenance_done_cron", cfg.SoutenanceDoneCron),
		zap.String("inactive_users_cron", cfg.InactiveUsersCron),
		zap.Duration("inactive_after", cfg.InactiveAfter),
	)
	return s, nil
}

func (s *Scheduler) completeSoutenances(completer SoutenanceCompleter) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := completer.CompleteDue(ctx)
	if err != nil {
		s.logger.Error("complete due soutenances failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("soutenances marked done", zap.Int("count", n))
	}
}

func (s *Scheduler) deactivateUsers(users UserDeactivator, after time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	n, err := users.DeactivateInactive(ctx, after)
	if err != nil {
		s.logger.Error("deactivate inactive users failed", zap.Error(err))
		return
	}
	s.logger.Info("inactive user sweep finished", zap.Int64("deactivated", n))
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("background jobs did not stop in time")
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
