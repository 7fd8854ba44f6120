package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/oevi/oevi/internal/dashboard"
	"github.com/oevi/oevi/internal/shared"
)

// DashboardWarmupJob pre-populates the dashboard summary cache so the first
// page load of the day hits Redis instead of Postgres.
type DashboardWarmupJob struct {
	Dashboard *dashboard.Service
	Logger    *slog.Logger
	clock     func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(svc *dashboard.Service, logger *slog.Logger) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Dashboard: svc,
		Logger:    logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeDashboardWarmup tasks. An empty period in the
// payload warms the current month.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboard == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	period, err := j.resolvePeriod(payload.Period)
	if err != nil {
		return asynq.SkipRetry
	}

	logger := j.logger().With(slog.String("period", period.String()))
	logger.Info("starting dashboard warmup")
	start := j.clock()

	if _, err := j.Dashboard.Summarize(ctx, period); err != nil {
		logger.Error("dashboard warmup failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed dashboard warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DashboardWarmupJob) resolvePeriod(raw string) (shared.Period, error) {
	if raw == "" {
		now := j.clock()
		return shared.Period{Kind: shared.PeriodExact, Year: now.Year(), Month: now.Month()}, nil
	}
	return shared.ParsePeriod(raw)
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskTypeDashboardWarmup))
}
