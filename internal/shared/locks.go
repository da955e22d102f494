package shared

import "fmt"

// LedgerReconcileLockKey is the redis key guarding the ledger reconciliation job.
const LedgerReconcileLockKey = "inventory:ledger:reconcile:lock"

// BranchLockKey builds redis keys for per-branch background work.
func BranchLockKey(branchID int64) string {
	return fmt.Sprintf("inventory:branch:%d:lock", branchID)
}
