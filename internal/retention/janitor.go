// Package retention purges old metric records on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/pagepulse/pagepulse/internal/storage"
)

const purgeTimeout = 5 * time.Minute

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// Janitor deletes metric records older than maxAge. Alerts are kept.
type Janitor struct {
	logger   *zap.Logger
	store    storage.MetricStore
	cron     *cron.Cron
	schedule string
	maxAge   time.Duration
	now      func() time.Time
}

// NewJanitor validates schedule, a standard five-field cron expression or a
// descriptor such as @daily, and registers the purge job
func NewJanitor(store storage.MetricStore, schedule string, maxAge time.Duration, logger *zap.Logger) (*Janitor, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("retention max age must be positive, got %s", maxAge)
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}

	named := logger.Named("retention")
	cl := &cronLogger{logger: named.Named("cron")}

	j := &Janitor{
		logger:   named,
		store:    store,
		schedule: schedule,
		maxAge:   maxAge,
		now:      time.Now,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	if _, err := j.cron.AddFunc(schedule, j.runScheduled); err != nil {
		return nil, fmt.Errorf("failed to add cron job: %w", err)
	}
	return j, nil
}

// Start starts the cron scheduler
func (j *Janitor) Start() {
	j.cron.Start()
	j.logger.Info("Retention janitor started",
		zap.String("schedule", j.schedule),
		zap.Duration("max_age", j.maxAge))
}

// Stop stops the scheduler and waits for a running purge to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info("Retention janitor stopped")
}

func (j *Janitor) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	if _, err := j.Purge(ctx); err != nil {
		j.logger.Error("Failed to purge metric records", zap.Error(err))
	}
}

// Purge deletes every metric record created before now minus maxAge
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.maxAge)

	deleted, err := j.store.DeleteRecordsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	j.logger.Info("Purged metric records",
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted))
	return deleted, nil
}
