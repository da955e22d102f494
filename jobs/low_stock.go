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

// StockSource lists stock rows.
type StockSource interface {
	ListStock(ctx context.Context, filter inventory.StockFilter) ([]inventory.Stock, error)
}

// LowStockScanJob logs rows that fell below their minimum or ran out.
type LowStockScanJob struct {
	Source  StockSource
	Locker  *redislock.Client
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the scan handler.
func NewLowStockScanJob(source StockSource, locker *redislock.Client, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Source: source, Locker: locker, Logger: logger, Metrics: metrics}
}

// LowStockReport summarises one scan.
type LowStockReport struct {
	Low map[int64]int
	Out map[int64]int
}

// Handle executes the scan for the payload's branch, or all branches.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Source == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	logger := j.logger().With(slog.Int64("branch_id", payload.BranchID))

	if j.Locker != nil && payload.BranchID > 0 {
		lock, err := j.Locker.Obtain(ctx, shared.BranchLockKey(payload.BranchID), 30*time.Second, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			logger.Debug("low stock scan already running for branch")
			return nil
		}
		if err != nil {
			return err
		}
		defer func() {
			_ = lock.Release(context.WithoutCancel(ctx))
		}()
	}

	tracker := j.Metrics.Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	report, err := j.Scan(ctx, payload.BranchID)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	branches := make(map[int64]struct{}, len(report.Low)+len(report.Out))
	for id := range report.Low {
		branches[id] = struct{}{}
	}
	for id := range report.Out {
		branches[id] = struct{}{}
	}
	if payload.BranchID > 0 {
		branches[payload.BranchID] = struct{}{}
	}
	for id := range branches {
		j.Metrics.SetLowStock(id, report.Low[id], report.Out[id])
	}
	logger.Info("completed low stock scan", slog.Int("branches", len(branches)))
	return nil
}

// Scan collects LOW and OUT rows, logging each one.
func (j *LowStockScanJob) Scan(ctx context.Context, branchID int64) (LowStockReport, error) {
	report := LowStockReport{Low: make(map[int64]int), Out: make(map[int64]int)}
	low, err := j.Source.ListStock(ctx, inventory.StockFilter{BranchID: branchID, BelowMinimum: true})
	if err != nil {
		return LowStockReport{}, err
	}
	out, err := j.Source.ListStock(ctx, inventory.StockFilter{BranchID: branchID, OutOfStock: true})
	if err != nil {
		return LowStockReport{}, err
	}
	logger := j.logger()
	for _, s := range low {
		logger.Warn("stock below minimum",
			slog.Int64("branch_id", s.BranchID),
			slog.Int64("sku_id", s.SkuID),
			slog.Int("quantity", s.Quantity),
			slog.Int("minimum", s.Minimum))
		report.Low[s.BranchID]++
	}
	for _, s := range out {
		logger.Warn("stock exhausted", slog.Int64("branch_id", s.BranchID), slog.Int64("sku_id", s.SkuID))
		report.Out[s.BranchID]++
	}
	return report, nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default().With(slog.String("job", TaskLowStockScan))
	}
	return j.Logger.With(slog.String("job", TaskLowStockScan))
}
