package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/claim-service/internal/service"
)

// UsageResetJob periodically zeroes every user's usage counter. The
// schedule comes from the stored limit config, falling back to the
// environment when none is set there.
type UsageResetJob struct {
	usage    *service.UsageService
	limits   *service.LimitService
	fallback string
	logger   *zap.Logger
	cron     *cron.Cron
}

// NewUsageResetJob builds the job.
func NewUsageResetJob(usage *service.UsageService, limits *service.LimitService, fallbackSpec string, logger *zap.Logger) *UsageResetJob {
	return &UsageResetJob{
		usage:    usage,
		limits:   limits,
		fallback: fallbackSpec,
		logger:   logger,
	}
}

// Start resolves the schedule and starts the cron runner. A missing
// schedule disables the job without error.
func (j *UsageResetJob) Start(ctx context.Context) error {
	spec := j.fallback
	if cfg, err := j.limits.GetConfig(ctx); err == nil && cfg.ResetCron != "" {
		spec = cfg.ResetCron
	} else if err != nil {
		j.logger.Warn("limit config unavailable, using fallback reset schedule", zap.Error(err))
	}
	if spec == "" {
		j.logger.Info("usage reset job disabled, no schedule configured")
		return nil
	}

	runner := cron.New()
	_, err := runner.AddFunc(spec, j.run)
	if err != nil {
		return err
	}
	runner.Start()
	j.cron = runner
	j.logger.Info("usage reset job scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts the cron runner and waits for a running reset to finish.
func (j *UsageResetJob) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

func (j *UsageResetJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	affected, err := j.usage.ResetAll(ctx, nil, "scheduled reset")
	if err != nil {
		j.logger.Error("scheduled usage reset failed", zap.Error(err))
		return
	}
	j.logger.Info("scheduled usage reset completed", zap.Int64("users_affected", affected))
}
