package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/retailpos/pos-backend/internal/inventory"
	jobmetrics "github.com/retailpos/pos-backend/internal/jobs"
	"github.com/retailpos/pos-backend/internal/shared"
)

// DriftSource lists stock rows out of balance with their movements.
type DriftSource interface {
	LedgerDrift(ctx context.Context) ([]inventory.Drift, error)
}

// LedgerReconcileJob checks that every stock quantity equals the sum of its
// movement deltas. It only reads; drift is logged and counted for an operator.
type LedgerReconcileJob struct {
	Source  DriftSource
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	LockTTL time.Duration
	clock   func() time.Time
}

// NewLedgerReconcileJob initialises the reconciliation handler.
func NewLedgerReconcileJob(source DriftSource, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerReconcileJob {
	return &LedgerReconcileJob{
		Source:  source,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		LockTTL: 5 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one reconciliation pass. A run that finds another worker
// holding the lock exits quietly.
func (j *LedgerReconcileJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	var payload LedgerReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	logger := j.logger()
	if !payload.ScheduledFor.IsZero() {
		logger = logger.With(slog.Time("scheduled_for", payload.ScheduledFor))
	}
	if j.Locker != nil {
		lock, err := j.Locker.Obtain(ctx, shared.LedgerReconcileLockKey, j.LockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Info("ledger reconcile already running elsewhere, skipping")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.Warn("release reconcile lock", slog.Any("error", err))
			}
		}()
	}

	start := j.now()
	tracker := j.Metrics.Track(TaskLedgerReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	drift, err := j.Source.LedgerDrift(ctx)
	if err != nil {
		logger.Error("ledger reconcile failed", slog.Any("error", err))
		return err
	}
	perBranch := make(map[int64]int)
	for _, d := range drift {
		logger.Warn("stock ledger drift",
			slog.Int64("branch_id", d.BranchID),
			slog.Int64("sku_id", d.SkuID),
			slog.Int("quantity", d.Quantity),
			slog.Int("ledger_sum", d.LedgerSum),
		)
		perBranch[d.BranchID]++
	}
	for branchID, count := range perBranch {
		j.Metrics.AddDrift(branchID, count)
	}
	logger.Info("completed ledger reconcile",
		slog.Int("drifted_rows", len(drift)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LedgerReconcileJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default().With(slog.String("job", TaskLedgerReconcile))
	}
	return j.Logger.With(slog.String("job", TaskLedgerReconcile))
}

func (j *LedgerReconcileJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}
