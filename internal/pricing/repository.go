package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Repository persists prices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const priceColumns = `id, sku_id, branch_id, sale_price, discount_pct, valid_from, valid_to, status, created_at`

func scanPrice(row pgx.Row) (Price, error) {
	var p Price
	var status string
	err := row.Scan(&p.ID, &p.SkuID, &p.BranchID, &p.SalePrice, &p.DiscountPct, &p.ValidFrom, &p.ValidTo, &status, &p.CreatedAt)
	p.Status = shared.Status(status)
	return p, err
}

// FindEffective returns the newest active price covering asOf. A nil branchID
// searches global rows only.
func (r *Repository) FindEffective(ctx context.Context, skuID int64, branchID *int64, asOf time.Time) (Price, error) {
	sql := `SELECT ` + priceColumns + ` FROM prices
WHERE sku_id = $1 AND status = 'ACTIVE' AND valid_from <= $2 AND (valid_to IS NULL OR valid_to >= $2)`
	args := []any{skuID, asOf}
	if branchID == nil {
		sql += ` AND branch_id IS NULL`
	} else {
		sql += ` AND branch_id = $3`
		args = append(args, *branchID)
	}
	sql += ` ORDER BY valid_from DESC, id DESC LIMIT 1`

	p, err := scanPrice(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return Price{}, ErrNoPrice
		}
		return Price{}, fmt.Errorf("pricing: find effective: %w", err)
	}
	return p, nil
}

// Get loads a price by id.
func (r *Repository) Get(ctx context.Context, id int64) (Price, error) {
	p, err := scanPrice(r.pool.QueryRow(ctx, `SELECT `+priceColumns+` FROM prices WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Price{}, shared.NotFoundf("price %d", id)
		}
		return Price{}, fmt.Errorf("pricing: get: %w", err)
	}
	return p, nil
}

// Insert stores a new price row.
func (r *Repository) Insert(ctx context.Context, p Price) (Price, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO prices (sku_id, branch_id, sale_price, discount_pct, valid_from, valid_to, status)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+priceColumns,
		p.SkuID, p.BranchID, p.SalePrice, p.DiscountPct, p.ValidFrom, p.ValidTo, string(p.Status))
	out, err := scanPrice(row)
	if err != nil {
		return Price{}, fmt.Errorf("pricing: insert: %w", err)
	}
	return out, nil
}

// Deactivate closes the price window at `at`.
func (r *Repository) Deactivate(ctx context.Context, id int64, at time.Time) (Price, error) {
	row := r.pool.QueryRow(ctx, `UPDATE prices SET status = 'INACTIVE', valid_to = $2
WHERE id = $1 AND status = 'ACTIVE' RETURNING `+priceColumns, id, at)
	out, err := scanPrice(row)
	if err != nil {
		if db.IsNoRows(err) {
			return Price{}, shared.NotFoundf("active price %d", id)
		}
		return Price{}, fmt.Errorf("pricing: deactivate: %w", err)
	}
	return out, nil
}

// ListBySku returns every price row for a SKU, newest first.
func (r *Repository) ListBySku(ctx context.Context, skuID int64) ([]Price, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+priceColumns+` FROM prices WHERE sku_id = $1
ORDER BY valid_from DESC, id DESC`, skuID)
	if err != nil {
		return nil, fmt.Errorf("pricing: list: %w", err)
	}
	defer rows.Close()
	var out []Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
