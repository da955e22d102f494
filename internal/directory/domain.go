// Package directory resolves branches, staff and customers referenced by sales and stock operations.
package directory

import (
	"time"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Branch is a physical store location holding stock.
type Branch struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Status    shared.Status `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Staff is a user who issues or voids invoices.
type Staff struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	BranchID *int64        `json:"branchId,omitempty"`
	Status   shared.Status `json:"status"`
}

// Customer is the invoice recipient.
type Customer struct {
	ID     int64         `json:"id"`
	Name   string        `json:"name"`
	TaxID  string        `json:"taxId,omitempty"`
	Status shared.Status `json:"status"`
}
