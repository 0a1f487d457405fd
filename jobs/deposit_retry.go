package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/transfer"
)

const (
	// TaskTransferDepositRetry re-posts the deposit leg of a partial transfer.
	TaskTransferDepositRetry = "transfer:deposit-retry"

	depositRetryMax = 10
)

// DepositRetryPayload carries the movement that failed to post.
type DepositRetryPayload struct {
	Movement transfer.Movement `json:"movement"`
}

// NewDepositRetryTask creates an Asynq task for the deposit leg. The task id is
// derived from the transfer so a deposit is never queued twice.
func NewDepositRetryTask(m transfer.Movement) (*asynq.Task, error) {
	if m.TransferID == "" {
		return nil, errors.New("deposit retry: transfer id required")
	}
	if m.Type != transfer.InGoingVirement {
		return nil, fmt.Errorf("deposit retry: unexpected movement type %s", m.Type)
	}
	body, err := json.Marshal(DepositRetryPayload{Movement: m})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTransferDepositRetry, body,
		asynq.Queue(QueueCritical),
		asynq.TaskID("deposit:"+m.TransferID),
		asynq.MaxRetry(depositRetryMax),
		asynq.Timeout(time.Minute),
	), nil
}

// DepositRetryJob posts a queued deposit through the ledger.
type DepositRetryJob struct {
	Ledger  transfer.Ledger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewDepositRetryJob constructs the job handler.
func NewDepositRetryJob(ledger transfer.Ledger, logger *slog.Logger, metrics *jobmetrics.Metrics) *DepositRetryJob {
	return &DepositRetryJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle posts the deposit. Returning an error hands the task back to asynq
// for another attempt.
func (j *DepositRetryJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("deposit retry: ledger not configured")
	}
	var payload DepositRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	m := payload.Movement
	if m.TransferID == "" || m.AccountID == "" || !m.Entering.IsPositive() {
		j.log().Error("discarding invalid deposit retry", slog.String("transfer_id", m.TransferID))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTransferDepositRetry)
	id, err := j.Ledger.Post(ctx, m)
	if err != nil {
		j.metrics().AddRetry(TaskTransferDepositRetry, string(m.AccountKind))
		j.log().Warn("deposit retry failed",
			slog.String("transfer_id", m.TransferID),
			slog.String("account", m.AccountID),
			slog.Any("error", err),
		)
		return tracker.End(err)
	}
	j.log().Info("deposit posted on retry",
		slog.String("transfer_id", m.TransferID),
		slog.String("movement_id", id),
		slog.String("amount", m.Entering.String()),
	)
	return tracker.End(nil)
}

func (j *DepositRetryJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DepositRetryJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTransferDepositRetry))
	}
	return slog.Default().With(slog.String("job", TaskTransferDepositRetry))
}
