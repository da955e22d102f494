package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile compares stock rows with their movement ledger.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskLowStockScan reports rows below their minimum.
	TaskLowStockScan = "inventory:low-stock"
)

// LedgerReconcilePayload carries scheduling metadata.
type LedgerReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerReconcileTask constructs a reconciliation task.
func NewLedgerReconcileTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerReconcilePayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault)), nil
}

// LowStockScanPayload scopes a scan to one branch; zero scans every branch.
type LowStockScanPayload struct {
	BranchID int64 `json:"branch_id"`
}

// NewLowStockScanTask constructs a low-stock scan task.
func NewLowStockScanTask(branchID int64) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{BranchID: branchID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
