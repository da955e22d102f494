package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/platform/db"
	"github.com/retailpos/pos-backend/internal/shared"
)

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the writes of one invoicing transaction. It embeds the
// ledger writes so stock moves commit or roll back with the invoice.
type TxRepository interface {
	inventory.TxRepository
	NextNumber(ctx context.Context, series string) (int64, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	InsertLines(ctx context.Context, invoiceID int64, lines []Line) ([]Line, error)
	InsertPayments(ctx context.Context, invoiceID int64, payments []Payment) ([]Payment, error)
	// LockInvoice reads status and lines with the invoice row locked.
	LockInvoice(ctx context.Context, id int64) (VoidState, error)
	MarkVoided(ctx context.Context, id, staffID int64, at time.Time, reason string) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txRepository struct {
	inventory.TxRepository
	tx querier
}

// WithTx executes fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("invoicing repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{TxRepository: inventory.NewTxRepository(tx), tx: tx})
	})
}

const invoiceColumns = `id, number, series, issued_at, customer_id, staff_id, branch_id, currency,
subtotal, discount_total, total, status, voided_by, voided_at, COALESCE(void_reason, '')`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	var status string
	err := row.Scan(&inv.ID, &inv.Number, &inv.Series, &inv.IssuedAt, &inv.CustomerID, &inv.StaffID,
		&inv.BranchID, &inv.Currency, &inv.Subtotal, &inv.DiscountTotal, &inv.Total, &status,
		&inv.VoidedBy, &inv.VoidedAt, &inv.VoidReason)
	inv.Status = Status(status)
	return inv, err
}

func (r *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO invoices
    (number, series, customer_id, staff_id, branch_id, currency, subtotal, discount_total, total, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, issued_at`,
		inv.Number, inv.Series, inv.CustomerID, inv.StaffID, inv.BranchID, inv.Currency,
		inv.Subtotal, inv.DiscountTotal, inv.Total, string(inv.Status)).Scan(&inv.ID, &inv.IssuedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Invoice{}, fmt.Errorf("%w: invoice %s", shared.ErrDuplicate, inv.Display())
		}
		return Invoice{}, fmt.Errorf("invoicing: insert invoice: %w", err)
	}
	return inv, nil
}

func (r *txRepository) InsertLines(ctx context.Context, invoiceID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		line.InvoiceID = invoiceID
		err := r.tx.QueryRow(ctx, `INSERT INTO invoice_lines
    (invoice_id, sku_id, quantity, unit_price, discount_pct, discount_amount, line_subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			invoiceID, line.SkuID, line.Quantity, line.UnitPrice, line.DiscountPct,
			line.DiscountAmount, line.LineSubtotal).Scan(&line.ID)
		if err != nil {
			return nil, fmt.Errorf("invoicing: insert line: %w", err)
		}
		out = append(out, line)
	}
	return out, nil
}

func (r *txRepository) InsertPayments(ctx context.Context, invoiceID int64, payments []Payment) ([]Payment, error) {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		p.InvoiceID = invoiceID
		err := r.tx.QueryRow(ctx, `INSERT INTO payments
    (invoice_id, method, amount, reference, authorized_by, gateway_tx_id)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, '')) RETURNING id, created_at`,
			invoiceID, string(p.Method), p.Amount, p.Reference, p.AuthorizedBy, p.GatewayTxID).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("invoicing: insert payment: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *txRepository) LockInvoice(ctx context.Context, id int64) (VoidState, error) {
	var st VoidState
	var status string
	err := r.tx.QueryRow(ctx, `SELECT id, number, series, branch_id, status, voided_by, voided_at, COALESCE(void_reason, '')
FROM invoices WHERE id = $1 FOR UPDATE`, id).Scan(&st.ID, &st.Number, &st.Series, &st.BranchID, &status,
		&st.VoidedBy, &st.VoidedAt, &st.VoidReason)
	if err != nil {
		if db.IsNoRows(err) {
			return VoidState{}, ErrInvoiceNotFound
		}
		return VoidState{}, fmt.Errorf("invoicing: lock invoice: %w", err)
	}
	st.Status = Status(status)
	st.Lines, err = loadLines(ctx, r.tx, id)
	if err != nil {
		return VoidState{}, err
	}
	return st, nil
}

func (r *txRepository) MarkVoided(ctx context.Context, id, staffID int64, at time.Time, reason string) error {
	tag, err := r.tx.Exec(ctx, `UPDATE invoices SET status = $2, voided_by = $3, voided_at = $4, void_reason = $5
WHERE id = $1 AND status = $6`, id, string(StatusVoided), staffID, at, reason, string(StatusIssued))
	if err != nil {
		return fmt.Errorf("invoicing: mark voided: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// Get returns an invoice with its lines and payments.
func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, fmt.Errorf("invoicing: get invoice: %w", err)
	}
	if inv.Lines, err = loadLines(ctx, r.pool, id); err != nil {
		return Invoice{}, err
	}
	if inv.Payments, err = loadPayments(ctx, r.pool, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// List returns invoice headers, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.BranchID != 0 {
		add("branch_id = $%d", filter.BranchID)
	}
	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.StaffID != 0 {
		add("staff_id = $%d", filter.StaffID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("issued_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("issued_at <= $%d", filter.To)
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY issued_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("invoicing: list invoices: %w", err)
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func loadLines(ctx context.Context, q querier, invoiceID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, sku_id, quantity, unit_price, discount_pct, discount_amount, line_subtotal
FROM invoice_lines WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: load lines: %w", err)
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.SkuID, &l.Quantity, &l.UnitPrice, &l.DiscountPct,
			&l.DiscountAmount, &l.LineSubtotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func loadPayments(ctx context.Context, q querier, invoiceID int64) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT id, invoice_id, method, amount, COALESCE(reference, ''),
COALESCE(authorized_by, ''), COALESCE(gateway_tx_id, ''), created_at
FROM payments WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("invoicing: load payments: %w", err)
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var method string
		if err := rows.Scan(&p.ID, &p.InvoiceID, &method, &p.Amount, &p.Reference, &p.AuthorizedBy,
			&p.GatewayTxID, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Method = PaymentMethod(method)
		out = append(out, p)
	}
	return out, rows.Err()
}
