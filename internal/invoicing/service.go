package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/pricing"
	"github.com/retailpos/pos-backend/internal/shared"
)

// RepositoryPort abstracts invoice persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, error)
}

// Directory resolves the parties of an invoice.
type Directory interface {
	Customer(ctx context.Context, id int64) (directory.Customer, error)
	Staff(ctx context.Context, id int64) (directory.Staff, error)
	ActiveBranch(ctx context.Context, id int64) (directory.Branch, error)
}

// Catalog resolves sellable SKUs.
type Catalog interface {
	ActiveSku(ctx context.Context, id int64) (catalog.Sku, error)
}

// PriceResolver supplies prices for lines sent without one.
type PriceResolver interface {
	Resolve(ctx context.Context, skuID, branchID int64, asOf time.Time) (pricing.Resolution, error)
}

// StockReader reads stock without locking for the early availability check.
type StockReader interface {
	GetStock(ctx context.Context, branchID, skuID int64) (inventory.Stock, error)
}

// IdempotencyPort guards POST /invoices replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// StockNotifier is told about branches whose stock went down.
type StockNotifier interface {
	NotifyStockChanged(ctx context.Context, branchID int64) error
}

// MetricsRecorder counts invoice outcomes.
type MetricsRecorder interface {
	RecordInvoice(outcome string)
	RecordStockRejection(operation string)
}

// ServiceDeps groups collaborators. Directory, Catalog and Stock are required.
type ServiceDeps struct {
	Directory     Directory
	Catalog       Catalog
	Stock         StockReader
	Prices        PriceResolver
	Idempotency   IdempotencyPort
	Audit         AuditPort
	Notifier      StockNotifier
	Metrics       MetricsRecorder
	Logger        *slog.Logger
	Currency      string
	DefaultSeries string
	Now           func() time.Time
}

// Service issues and voids invoices.
type Service struct {
	repo RepositoryPort
	deps ServiceDeps
	now  func() time.Time
}

const (
	defaultListLimit = 50
	maxListLimit     = 500

	idempotencyModule = "invoicing.create"

	outcomeIssued   = "issued"
	outcomeRejected = "rejected"
	outcomeVoided   = "voided"
)

// NewService builds Service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Currency == "" {
		deps.Currency = "USD"
	}
	if deps.DefaultSeries == "" {
		deps.DefaultSeries = DefaultSeries
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, deps: deps, now: now}
}

// CreateInvoice validates the request, checks parties, prices and stock, then
// numbers and persists the invoice, its lines, its payments and the stock
// decrements in one transaction. idempotencyKey may be empty.
func (s *Service) CreateInvoice(ctx context.Context, req CreateInvoiceRequest, idempotencyKey string) (Invoice, error) {
	inv, err := s.createInvoice(ctx, req, idempotencyKey)
	if err != nil {
		s.recordOutcome(outcomeRejected)
		if errors.Is(err, shared.ErrInsufficientStock) {
			s.stockRejected("invoice")
		}
		return Invoice{}, err
	}
	s.recordOutcome(outcomeIssued)
	return inv, nil
}

func (s *Service) createInvoice(ctx context.Context, req CreateInvoiceRequest, idempotencyKey string) (Invoice, error) {
	if err := req.validate(); err != nil {
		return Invoice{}, err
	}
	series := strings.TrimSpace(req.Series)
	if series == "" {
		series = s.deps.DefaultSeries
	}

	if _, err := s.deps.Directory.Customer(ctx, req.CustomerID); err != nil {
		return Invoice{}, err
	}
	if _, err := s.deps.Directory.Staff(ctx, req.StaffID); err != nil {
		return Invoice{}, err
	}
	if _, err := s.deps.Directory.ActiveBranch(ctx, req.BranchID); err != nil {
		return Invoice{}, err
	}

	lines, totals, err := s.priceLines(ctx, req)
	if err != nil {
		return Invoice{}, err
	}
	if err := s.checkAvailability(ctx, req.BranchID, lines); err != nil {
		return Invoice{}, err
	}

	total := totals.Total()
	payments := make([]Payment, 0, len(req.Payments))
	amounts := make([]decimal.Decimal, 0, len(req.Payments))
	for _, p := range req.Payments {
		amount := p.Amount.Round(2)
		amounts = append(amounts, amount)
		payments = append(payments, Payment{
			Method:       p.Method,
			Amount:       amount,
			Reference:    p.Reference,
			AuthorizedBy: p.AuthorizedBy,
			GatewayTxID:  p.GatewayTxID,
		})
	}
	paid := SumPayments(amounts)
	if !WithinTolerance(total, paid) {
		return Invoice{}, &shared.MismatchError{Total: total, Paid: paid, Difference: paid.Sub(total)}
	}

	inserted := false
	if idempotencyKey != "" && s.deps.Idempotency != nil {
		if err := s.deps.Idempotency.CheckAndInsert(ctx, idempotencyKey, idempotencyModule); err != nil {
			return Invoice{}, err
		}
		inserted = true
	}

	var created Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, series)
		if err != nil {
			return err
		}
		inv, err := tx.InsertInvoice(ctx, Invoice{
			Number:        number,
			Series:        series,
			CustomerID:    req.CustomerID,
			StaffID:       req.StaffID,
			BranchID:      req.BranchID,
			Currency:      s.deps.Currency,
			Subtotal:      totals.Subtotal,
			DiscountTotal: totals.DiscountTotal,
			Total:         total,
			Status:        StatusIssued,
		})
		if err != nil {
			return err
		}
		if inv.Lines, err = tx.InsertLines(ctx, inv.ID, lines); err != nil {
			return err
		}
		reference := saleReference(series, number)
		for _, line := range inv.Lines {
			if _, err := inventory.ReserveForSale(ctx, tx, req.BranchID, line.SkuID, line.Quantity, reference); err != nil {
				return err
			}
		}
		if inv.Payments, err = tx.InsertPayments(ctx, inv.ID, payments); err != nil {
			return err
		}
		created = inv
		return nil
	})
	if err != nil {
		if inserted {
			if derr := s.deps.Idempotency.Delete(ctx, idempotencyKey); derr != nil {
				s.deps.Logger.Warn("release idempotency key", slog.String("key", idempotencyKey), slog.Any("error", derr))
			}
		}
		return Invoice{}, err
	}

	s.record(ctx, req.StaffID, "invoice.create", created.ID, map[string]any{
		"number": created.Display(), "branch_id": created.BranchID, "total": created.Total.StringFixed(2),
	})
	s.notify(ctx, created.BranchID)
	return created, nil
}

// priceLines validates every line against the catalog and computes totals.
// The first failing line aborts the whole request.
func (s *Service) priceLines(ctx context.Context, req CreateInvoiceRequest) ([]Line, Totals, error) {
	var totals Totals
	lines := make([]Line, 0, len(req.Lines))
	asOf := s.now()
	for _, lr := range req.Lines {
		if _, err := s.deps.Catalog.ActiveSku(ctx, lr.SkuID); err != nil {
			return nil, Totals{}, err
		}
		unit, pct, err := s.linePrice(ctx, req.BranchID, lr, asOf)
		if err != nil {
			return nil, Totals{}, err
		}
		lt := CalculateLineTotals(lr.Quantity, unit, pct)
		totals.Add(lt)
		lines = append(lines, Line{
			SkuID:          lr.SkuID,
			Quantity:       lr.Quantity,
			UnitPrice:      unit,
			DiscountPct:    pct,
			DiscountAmount: lt.Discount,
			LineSubtotal:   lt.Net,
		})
	}
	return lines, totals, nil
}

func (s *Service) linePrice(ctx context.Context, branchID int64, lr LineRequest, asOf time.Time) (decimal.Decimal, decimal.Decimal, error) {
	pct := decimal.Zero
	if lr.DiscountPct != nil {
		pct = lr.DiscountPct.Round(2)
	}
	if lr.UnitPrice != nil {
		return lr.UnitPrice.Round(2), pct, nil
	}
	if s.deps.Prices == nil {
		return decimal.Zero, decimal.Zero, shared.Validationf("unit price required for sku %d", lr.SkuID)
	}
	res, err := s.deps.Prices.Resolve(ctx, lr.SkuID, branchID, asOf)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	if lr.DiscountPct == nil {
		pct = res.DiscountPct
	}
	return res.UnitPrice, pct, nil
}

// checkAvailability is an early exit only. ReserveForSale repeats the check
// under the row lock.
func (s *Service) checkAvailability(ctx context.Context, branchID int64, lines []Line) error {
	requested := make(map[int64]int, len(lines))
	order := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, seen := requested[l.SkuID]; !seen {
			order = append(order, l.SkuID)
		}
		requested[l.SkuID] += l.Quantity
	}
	for _, skuID := range order {
		stock, err := s.deps.Stock.GetStock(ctx, branchID, skuID)
		if err != nil {
			if inventory.IsStockNotFound(err) {
				return shared.NotFoundf("no stock row for sku %d at branch %d", skuID, branchID)
			}
			return err
		}
		if stock.Quantity < requested[skuID] {
			return &shared.StockError{BranchID: branchID, SkuID: skuID, Available: stock.Quantity, Requested: requested[skuID]}
		}
	}
	return nil
}

// VoidInvoice cancels an issued invoice and returns its units to stock.
func (s *Service) VoidInvoice(ctx context.Context, id int64, req VoidRequest) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, shared.Validationf("invoice id required")
	}
	if err := req.validate(); err != nil {
		return Invoice{}, err
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if current.Status == StatusVoided {
		return Invoice{}, voidedError(current.ID, current.VoidedBy, current.VoidedAt, current.VoidReason)
	}
	if _, err := s.deps.Directory.Staff(ctx, req.StaffID); err != nil {
		return Invoice{}, err
	}

	reason := strings.TrimSpace(req.Reason)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st, err := tx.LockInvoice(ctx, id)
		if err != nil {
			return err
		}
		if st.Status == StatusVoided {
			return voidedError(st.ID, st.VoidedBy, st.VoidedAt, st.VoidReason)
		}
		reference := voidReference(st.Series, st.Number)
		for _, line := range st.Lines {
			if _, err := inventory.ReleaseFromVoid(ctx, tx, st.BranchID, line.SkuID, line.Quantity, reference); err != nil {
				return err
			}
		}
		return tx.MarkVoided(ctx, id, req.StaffID, s.now().UTC(), reason)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.recordOutcome(outcomeVoided)
	s.record(ctx, req.StaffID, "invoice.void", id, map[string]any{"number": current.Display(), "reason": reason})
	return s.repo.Get(ctx, id)
}

func voidedError(id int64, by *int64, at *time.Time, reason string) error {
	e := &shared.VoidedError{InvoiceID: id, Reason: reason}
	if by != nil {
		e.VoidedBy = *by
	}
	if at != nil {
		e.VoidedAt = *at
	}
	return e
}

// Get returns an invoice with lines and payments.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	if id <= 0 {
		return Invoice{}, shared.Validationf("invoice id required")
	}
	return s.repo.Get(ctx, id)
}

// List returns invoice headers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Validationf("unknown status %q", filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.Validationf("dateTo before dateFrom")
	}
	filter.Limit = shared.ClampLimit(filter.Limit, defaultListLimit, maxListLimit)
	return s.repo.List(ctx, filter)
}

// Payments lists the payments of an invoice with the computed paid total.
func (s *Service) Payments(ctx context.Context, id int64) (Payments, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return Payments{}, err
	}
	payments := inv.Payments
	if payments == nil {
		payments = []Payment{}
	}
	amounts := make([]decimal.Decimal, 0, len(payments))
	for _, p := range payments {
		amounts = append(amounts, p.Amount)
	}
	return Payments{InvoiceID: inv.ID, Total: inv.Total, PaidTotal: SumPayments(amounts), Payments: payments}, nil
}

func (s *Service) recordOutcome(outcome string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordInvoice(outcome)
	}
}

func (s *Service) stockRejected(op string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordStockRejection(op)
	}
}

func (s *Service) notify(ctx context.Context, branchID int64) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.NotifyStockChanged(ctx, branchID); err != nil {
		s.deps.Logger.Warn("notify stock change", slog.Int64("branch_id", branchID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, invoiceID int64, meta map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	err := s.deps.Audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "invoice",
		EntityID: fmt.Sprintf("%d", invoiceID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil {
		s.deps.Logger.Warn("audit invoice", slog.String("action", action), slog.Any("error", err))
	}
}
