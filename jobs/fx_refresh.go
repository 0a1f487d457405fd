package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/fx"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
)

const (
	// TaskFXRefresh re-fetches exchange rates into the shared cache.
	TaskFXRefresh = "fx:refresh"
)

// FXRefreshPayload carries scheduling metadata.
type FXRefreshPayload struct {
	Reason string `json:"reason"`
}

// RateRefresher fetches fresh rates and stores them in the cache.
type RateRefresher interface {
	Refresh(ctx context.Context) (fx.RateSet, error)
}

// FXOutcomeRecorder receives refresh outcomes.
type FXOutcomeRecorder interface {
	FXRefreshed(outcome string)
}

// FXRefreshJob keeps the cached rate set warm.
type FXRefreshJob struct {
	Refresher RateRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	Outcomes  FXOutcomeRecorder
}

// NewFXRefreshJob constructs the job handler.
func NewFXRefreshJob(refresher RateRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *FXRefreshJob {
	return &FXRefreshJob{Refresher: refresher, Logger: logger, Metrics: metrics}
}

// NewFXRefreshTask creates an Asynq task for refreshing exchange rates.
func NewFXRefreshTask(reason string) (*asynq.Task, error) {
	if reason == "" {
		reason = "cron"
	}
	body, err := json.Marshal(FXRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFXRefresh, body, asynq.Queue(QueueDefault), asynq.Timeout(30*time.Second)), nil
}

// Handle executes the refresh.
func (j *FXRefreshJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Refresher == nil {
		return errors.New("fx refresh: refresher not configured")
	}
	var payload FXRefreshPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskFXRefresh)
	rates, err := j.Refresher.Refresh(ctx)
	if err != nil {
		j.outcome("failed")
		j.log().Error("refresh exchange rates", slog.String("reason", payload.Reason), slog.Any("error", err))
		return tracker.End(err)
	}
	j.outcome("ok")
	j.log().Info("exchange rates refreshed",
		slog.String("reason", payload.Reason),
		slog.String("usd_try", rates.USDTRY.String()),
		slog.String("eur_try", rates.EURTRY.String()),
	)
	return tracker.End(nil)
}

func (j *FXRefreshJob) outcome(o string) {
	if j.Outcomes != nil {
		j.Outcomes.FXRefreshed(o)
	}
}

func (j *FXRefreshJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *FXRefreshJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskFXRefresh))
	}
	return slog.Default().With(slog.String("job", TaskFXRefresh))
}
