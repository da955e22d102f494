package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailpos/pos-backend/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the ledger writes available inside one transaction.
// Every quantity change goes through a locked row.
type TxRepository interface {
	// LockStock locks an existing row; ErrStockNotFound when absent.
	LockStock(ctx context.Context, branchID, skuID int64) (Stock, error)
	// EnsureStock creates the row at zero when absent, then locks it.
	EnsureStock(ctx context.Context, branchID, skuID int64) (Stock, error)
	SetQuantity(ctx context.Context, branchID, skuID int64, quantity int) error
	SetMinimum(ctx context.Context, branchID, skuID int64, minimum int) error
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	tx dbtx
}

// NewTxRepository binds the ledger writes to an open transaction.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxRepository(tx))
	})
}

const stockColumns = `branch_id, sku_id, quantity, minimum, updated_at`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.BranchID, &s.SkuID, &s.Quantity, &s.Minimum, &s.UpdatedAt)
	return s, err
}

func (r *txRepository) LockStock(ctx context.Context, branchID, skuID int64) (Stock, error) {
	s, err := scanStock(r.tx.QueryRow(ctx, `SELECT `+stockColumns+` FROM branch_stock
WHERE branch_id = $1 AND sku_id = $2 FOR UPDATE`, branchID, skuID))
	if err != nil {
		if db.IsNoRows(err) {
			return Stock{BranchID: branchID, SkuID: skuID}, ErrStockNotFound
		}
		return Stock{}, fmt.Errorf("inventory: lock stock: %w", err)
	}
	return s, nil
}

func (r *txRepository) EnsureStock(ctx context.Context, branchID, skuID int64) (Stock, error) {
	_, err := r.tx.Exec(ctx, `INSERT INTO branch_stock (branch_id, sku_id, quantity, minimum)
VALUES ($1, $2, 0, 0) ON CONFLICT (branch_id, sku_id) DO NOTHING`, branchID, skuID)
	if err != nil {
		return Stock{}, fmt.Errorf("inventory: ensure stock: %w", err)
	}
	return r.LockStock(ctx, branchID, skuID)
}

func (r *txRepository) SetQuantity(ctx context.Context, branchID, skuID int64, quantity int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE branch_stock SET quantity = $3, updated_at = NOW()
WHERE branch_id = $1 AND sku_id = $2`, branchID, skuID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: set quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (r *txRepository) SetMinimum(ctx context.Context, branchID, skuID int64, minimum int) error {
	tag, err := r.tx.Exec(ctx, `UPDATE branch_stock SET minimum = $3, updated_at = NOW()
WHERE branch_id = $1 AND sku_id = $2`, branchID, skuID, minimum)
	if err != nil {
		return fmt.Errorf("inventory: set minimum: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_movements (branch_id, sku_id, kind, delta, reference)
VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		m.BranchID, m.SkuID, string(m.Kind), m.Delta, m.Reference).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: insert movement: %w", err)
	}
	return m, nil
}

// GetStock reads a stock row without locking.
func (r *Repository) GetStock(ctx context.Context, branchID, skuID int64) (Stock, error) {
	s, err := scanStock(r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM branch_stock
WHERE branch_id = $1 AND sku_id = $2`, branchID, skuID))
	if err != nil {
		if db.IsNoRows(err) {
			return Stock{BranchID: branchID, SkuID: skuID}, ErrStockNotFound
		}
		return Stock{}, fmt.Errorf("inventory: get stock: %w", err)
	}
	return s, nil
}

// ListStock returns stock rows matching filter.
func (r *Repository) ListStock(ctx context.Context, filter StockFilter) ([]Stock, error) {
	var where []string
	var args []any
	if filter.BranchID != 0 {
		args = append(args, filter.BranchID)
		where = append(where, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if filter.SkuID != 0 {
		args = append(args, filter.SkuID)
		where = append(where, fmt.Sprintf("sku_id = $%d", len(args)))
	}
	if filter.BelowMinimum {
		where = append(where, "quantity > 0 AND quantity < minimum")
	}
	if filter.OutOfStock {
		where = append(where, "quantity = 0")
	}
	sql := `SELECT ` + stockColumns + ` FROM branch_stock`
	if len(where) > 0 {
		sql += " WHERE " + strings.Join(where, " AND ")
	}
	sql += " ORDER BY branch_id, sku_id"

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list stock: %w", err)
	}
	defer rows.Close()
	var out []Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func movementWhere(filter MovementFilter) (string, []any) {
	var where []string
	var args []any
	if filter.BranchID != 0 {
		args = append(args, filter.BranchID)
		where = append(where, fmt.Sprintf("branch_id = $%d", len(args)))
	}
	if filter.SkuID != 0 {
		args = append(args, filter.SkuID)
		where = append(where, fmt.Sprintf("sku_id = $%d", len(args)))
	}
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListMovements returns movements newest first.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	where, args := movementWhere(filter)
	args = append(args, filter.Limit)
	sql := `SELECT id, branch_id, sku_id, kind, delta, reference, created_at FROM stock_movements` +
		where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &m.BranchID, &m.SkuID, &kind, &m.Delta, &m.Reference, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Kind = MovementKind(kind)
		out = append(out, m)
	}
	return out, rows.Err()
}

// SummarizeMovements groups movements by kind.
func (r *Repository) SummarizeMovements(ctx context.Context, filter MovementFilter) ([]MovementSummary, error) {
	where, args := movementWhere(filter)
	rows, err := r.pool.Query(ctx, `SELECT kind, COUNT(*), COALESCE(SUM(delta), 0) FROM stock_movements`+
		where+` GROUP BY kind ORDER BY kind`, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: summarize movements: %w", err)
	}
	defer rows.Close()
	var out []MovementSummary
	for rows.Next() {
		var s MovementSummary
		var kind string
		if err := rows.Scan(&kind, &s.Count, &s.Net); err != nil {
			return nil, err
		}
		s.Kind = MovementKind(kind)
		out = append(out, s)
	}
	return out, rows.Err()
}

// LedgerDrift lists stock rows whose quantity differs from the sum of their movements.
func (r *Repository) LedgerDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.branch_id, s.sku_id, s.quantity, COALESCE(m.total, 0)
FROM branch_stock s
LEFT JOIN (
    SELECT branch_id, sku_id, SUM(delta) AS total FROM stock_movements GROUP BY branch_id, sku_id
) m ON m.branch_id = s.branch_id AND m.sku_id = s.sku_id
WHERE s.quantity <> COALESCE(m.total, 0)
ORDER BY s.branch_id, s.sku_id`)
	if err != nil {
		return nil, fmt.Errorf("inventory: ledger drift: %w", err)
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.BranchID, &d.SkuID, &d.Quantity, &d.LedgerSum); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
