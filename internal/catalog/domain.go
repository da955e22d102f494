// Package catalog exposes sellable SKU lookups used by pricing, inventory and invoicing.
package catalog

import (
	"time"

	"github.com/retailpos/pos-backend/internal/shared"
)

// Sku is a sellable product/presentation pair.
type Sku struct {
	ID             int64         `json:"id"`
	ProductID      int64         `json:"productId"`
	PresentationID int64         `json:"presentationId"`
	Name           string        `json:"name"`
	Barcode        string        `json:"barcode,omitempty"`
	Status         shared.Status `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}
