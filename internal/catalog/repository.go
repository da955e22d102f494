package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Repository reads sellable SKUs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetSku loads a SKU by id.
func (r *Repository) GetSku(ctx context.Context, id int64) (Sku, error) {
	var sku Sku
	var barcode *string
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, presentation_id, name, barcode, status, created_at
FROM sellable_skus WHERE id = $1`, id).Scan(&sku.ID, &sku.ProductID, &sku.PresentationID, &sku.Name, &barcode, &status, &sku.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Sku{}, shared.NotFoundf("sku %d", id)
		}
		return Sku{}, fmt.Errorf("catalog: get sku: %w", err)
	}
	if barcode != nil {
		sku.Barcode = *barcode
	}
	sku.Status = shared.Status(status)
	return sku, nil
}

// UpdateStatus writes the SKU status.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status shared.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE sellable_skus SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("catalog: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("sku %d", id)
	}
	return nil
}
