package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, branchID, skuID int64) (Stock, error)
	ListStock(ctx context.Context, filter StockFilter) ([]Stock, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	SummarizeMovements(ctx context.Context, filter MovementFilter) ([]MovementSummary, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// BranchLookup resolves branches that may receive stock events.
type BranchLookup interface {
	ActiveBranch(ctx context.Context, id int64) (directory.Branch, error)
}

// SkuLookup resolves SKUs.
type SkuLookup interface {
	Sku(ctx context.Context, id int64) (catalog.Sku, error)
}

// StockNotifier is told about branches whose stock went down after commit.
type StockNotifier interface {
	NotifyStockChanged(ctx context.Context, branchID int64) error
}

// MetricsRecorder counts rejected stock operations.
type MetricsRecorder interface {
	RecordStockRejection(operation string)
}

// ServiceDeps groups optional collaborators. Nil members are skipped.
type ServiceDeps struct {
	Audit    AuditPort
	Branches BranchLookup
	Skus     SkuLookup
	Notifier StockNotifier
	Metrics  MetricsRecorder
	Logger   *slog.Logger
}

// Service coordinates stock ledger operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	branches BranchLookup
	skus     SkuLookup
	notifier StockNotifier
	metrics  MetricsRecorder
	logger   *slog.Logger
}

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 1000
)

// NewService builds Service.
func NewService(repo RepositoryPort, deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    deps.Audit,
		branches: deps.Branches,
		skus:     deps.Skus,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger,
	}
}

// GetStock returns the row for branch/sku; a missing row reads as zero.
func (s *Service) GetStock(ctx context.Context, branchID, skuID int64) (Stock, error) {
	if branchID <= 0 || skuID <= 0 {
		return Stock{}, shared.Validationf("branch and sku required")
	}
	stock, err := s.repo.GetStock(ctx, branchID, skuID)
	if IsStockNotFound(err) {
		return Stock{BranchID: branchID, SkuID: skuID}, nil
	}
	return stock, err
}

// Adjust applies a signed manual correction.
func (s *Service) Adjust(ctx context.Context, in AdjustInput) (AdjustResult, error) {
	if err := shared.Validate(in); err != nil {
		return AdjustResult{}, err
	}
	if err := s.checkRefs(ctx, in.SkuID, in.BranchID); err != nil {
		return AdjustResult{}, err
	}
	reference := in.Reason
	if reference == "" {
		reference = "manual adjustment"
	}
	var result AdjustResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		change, mv, err := adjust(ctx, tx, in.BranchID, in.SkuID, in.Delta, MovementAdjustment, reference)
		if err != nil {
			return err
		}
		result = AdjustResult{SkuID: in.SkuID, Change: change, Movement: mv}
		return nil
	})
	if err != nil {
		s.rejected("adjust", err)
		return AdjustResult{}, err
	}
	s.record(ctx, in.ActorID, "inventory.adjust", in.BranchID, in.SkuID, map[string]any{
		"delta": in.Delta, "before": result.Change.Before, "after": result.Change.After, "reason": in.Reason,
	})
	if in.Delta < 0 {
		s.notify(ctx, in.BranchID)
	}
	return result, nil
}

// Receive books inbound stock from a purchase or a customer return.
func (s *Service) Receive(ctx context.Context, in ReceiveInput) (AdjustResult, error) {
	if in.Kind == "" {
		in.Kind = MovementPurchase
	}
	if err := shared.Validate(in); err != nil {
		return AdjustResult{}, err
	}
	if err := s.checkRefs(ctx, in.SkuID, in.BranchID); err != nil {
		return AdjustResult{}, err
	}
	var result AdjustResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		change, mv, err := adjust(ctx, tx, in.BranchID, in.SkuID, in.Quantity, in.Kind, in.Reference)
		if err != nil {
			return err
		}
		result = AdjustResult{SkuID: in.SkuID, Change: change, Movement: mv}
		return nil
	})
	if err != nil {
		return AdjustResult{}, err
	}
	s.record(ctx, in.ActorID, "inventory.receive", in.BranchID, in.SkuID, map[string]any{
		"quantity": in.Quantity, "kind": string(in.Kind), "reference": in.Reference,
	})
	return result, nil
}

// Transfer moves stock between branches in a single transaction. Both
// movements share a TRF reference.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (TransferResult, error) {
	if in.FromBranchID != 0 && in.FromBranchID == in.ToBranchID {
		return TransferResult{}, ErrSameBranch
	}
	if err := shared.Validate(in); err != nil {
		return TransferResult{}, err
	}
	if err := s.checkRefs(ctx, in.SkuID, in.FromBranchID, in.ToBranchID); err != nil {
		return TransferResult{}, err
	}
	reference := "TRF-" + uuid.NewString()
	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = transfer(ctx, tx, in, reference)
		return err
	})
	if err != nil {
		s.rejected("transfer", err)
		return TransferResult{}, err
	}
	s.record(ctx, in.ActorID, "inventory.transfer", in.FromBranchID, in.SkuID, map[string]any{
		"to_branch_id": in.ToBranchID, "quantity": in.Quantity, "reference": reference,
	})
	s.notify(ctx, in.FromBranchID)
	return result, nil
}

// SetMinimum stores the low-stock threshold without touching quantity.
func (s *Service) SetMinimum(ctx context.Context, in MinimumInput) (Stock, error) {
	if err := shared.Validate(in); err != nil {
		return Stock{}, err
	}
	if err := s.checkRefs(ctx, in.SkuID, in.BranchID); err != nil {
		return Stock{}, err
	}
	var stock Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.EnsureStock(ctx, in.BranchID, in.SkuID)
		if err != nil {
			return err
		}
		if err := tx.SetMinimum(ctx, in.BranchID, in.SkuID, in.Minimum); err != nil {
			return err
		}
		current.Minimum = in.Minimum
		stock = current
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	if stock.Quantity < stock.Minimum {
		s.notify(ctx, in.BranchID)
	}
	return stock, nil
}

// BranchInventory lists a branch's stock with states and statistics. With
// alertsOnly set, rows in state OK are dropped from Items; Stats still covers
// every row.
func (s *Service) BranchInventory(ctx context.Context, branchID int64, alertsOnly bool) (BranchInventory, error) {
	if branchID <= 0 {
		return BranchInventory{}, shared.Validationf("branch id required")
	}
	rows, err := s.repo.ListStock(ctx, StockFilter{BranchID: branchID})
	if err != nil {
		return BranchInventory{}, err
	}
	inv := BranchInventory{BranchID: branchID, Items: make([]BranchRow, 0, len(rows))}
	for _, row := range rows {
		state := row.State()
		inv.Stats.Total++
		switch state {
		case StateOut:
			inv.Stats.OutOfStock++
		case StateLow:
			inv.Stats.InStock++
			inv.Stats.Alerts++
		default:
			inv.Stats.InStock++
		}
		if alertsOnly && state == StateOK {
			continue
		}
		inv.Items = append(inv.Items, BranchRow{Stock: row, State: state})
	}
	return inv, nil
}

// SkuAvailability lists one SKU across all branches.
func (s *Service) SkuAvailability(ctx context.Context, skuID int64) (SkuAvailability, error) {
	if skuID <= 0 {
		return SkuAvailability{}, shared.Validationf("sku id required")
	}
	if s.skus != nil {
		if _, err := s.skus.Sku(ctx, skuID); err != nil {
			return SkuAvailability{}, err
		}
	}
	rows, err := s.repo.ListStock(ctx, StockFilter{SkuID: skuID})
	if err != nil {
		return SkuAvailability{}, err
	}
	out := SkuAvailability{SkuID: skuID, Branches: make([]Stock, 0, len(rows))}
	for _, row := range rows {
		out.Total += row.Quantity
		if row.Quantity > 0 {
			out.BranchesStock++
		}
		out.Branches = append(out.Branches, row)
	}
	return out, nil
}

// Alerts lists rows with 0 < quantity < minimum, largest shortfall first.
// A zero branchID covers every branch.
func (s *Service) Alerts(ctx context.Context, branchID int64) ([]Alert, error) {
	rows, err := s.repo.ListStock(ctx, StockFilter{BranchID: branchID, BelowMinimum: true})
	if err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(rows))
	for _, row := range rows {
		alerts = append(alerts, Alert{Stock: row, Shortfall: row.Minimum - row.Quantity})
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Shortfall > alerts[j].Shortfall
	})
	return alerts, nil
}

// OutOfStock lists rows with zero quantity.
func (s *Service) OutOfStock(ctx context.Context, branchID int64) ([]Stock, error) {
	return s.repo.ListStock(ctx, StockFilter{BranchID: branchID, OutOfStock: true})
}

// Movements lists ledger entries newest first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, shared.Validationf("unknown movement kind %q", filter.Kind)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, shared.Validationf("date range is inverted")
	}
	filter.Limit = shared.ClampLimit(filter.Limit, defaultMovementLimit, maxMovementLimit)
	return s.repo.ListMovements(ctx, filter)
}

// MovementSummary aggregates movements by kind.
func (s *Service) MovementSummary(ctx context.Context, filter MovementFilter) ([]MovementSummary, error) {
	filter.Kind = ""
	filter.Limit = 0
	return s.repo.SummarizeMovements(ctx, filter)
}

func (s *Service) checkRefs(ctx context.Context, skuID int64, branchIDs ...int64) error {
	if s.skus != nil {
		if _, err := s.skus.Sku(ctx, skuID); err != nil {
			return err
		}
	}
	if s.branches != nil {
		for _, id := range branchIDs {
			if _, err := s.branches.ActiveBranch(ctx, id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) rejected(op string, err error) {
	if s.metrics != nil && errors.Is(err, shared.ErrInsufficientStock) {
		s.metrics.RecordStockRejection(op)
	}
}

func (s *Service) notify(ctx context.Context, branchID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStockChanged(ctx, branchID); err != nil {
		s.logger.Warn("notify stock change", slog.Int64("branch_id", branchID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, branchID, skuID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["branch_id"] = branchID
	meta["sku_id"] = skuID
	entityID := fmt.Sprintf("%d:%d", branchID, skuID)
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "branch_stock", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit inventory", slog.String("action", action), slog.Any("error", err))
	}
}
