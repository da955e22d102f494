package directory

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Repository reads directory rows from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetBranch(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, name, status, created_at FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Name, &status, &b.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Branch{}, shared.NotFoundf("branch %d", id)
		}
		return Branch{}, fmt.Errorf("directory: get branch: %w", err)
	}
	b.Status = shared.Status(status)
	return b, nil
}

func (r *Repository) GetStaff(ctx context.Context, id int64) (Staff, error) {
	var s Staff
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, name, branch_id, status FROM staff WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.BranchID, &status)
	if err != nil {
		if db.IsNoRows(err) {
			return Staff{}, shared.NotFoundf("staff %d", id)
		}
		return Staff{}, fmt.Errorf("directory: get staff: %w", err)
	}
	s.Status = shared.Status(status)
	return s, nil
}

func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	var taxID *string
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, name, tax_id, status FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &taxID, &status)
	if err != nil {
		if db.IsNoRows(err) {
			return Customer{}, shared.NotFoundf("customer %d", id)
		}
		return Customer{}, fmt.Errorf("directory: get customer: %w", err)
	}
	if taxID != nil {
		c.TaxID = *taxID
	}
	c.Status = shared.Status(status)
	return c, nil
}

// UpdateBranchStatus writes the branch status.
func (r *Repository) UpdateBranchStatus(ctx context.Context, id int64, status shared.Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE branches SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("directory: update branch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFoundf("branch %d", id)
	}
	return nil
}
