package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/shared"
)

// ErrNoPrice indicates no active price covers the requested instant.
var ErrNoPrice = fmt.Errorf("%w: no effective price", shared.ErrNotFound)

// Store abstracts price persistence.
type Store interface {
	FindEffective(ctx context.Context, skuID int64, branchID *int64, asOf time.Time) (Price, error)
	Get(ctx context.Context, id int64) (Price, error)
	Insert(ctx context.Context, p Price) (Price, error)
	Deactivate(ctx context.Context, id int64, at time.Time) (Price, error)
	ListBySku(ctx context.Context, skuID int64) ([]Price, error)
}

// SkuLookup resolves SKUs.
type SkuLookup interface {
	Sku(ctx context.Context, id int64) (catalog.Sku, error)
}

// BranchLookup resolves branches.
type BranchLookup interface {
	Branch(ctx context.Context, id int64) (directory.Branch, error)
}

// Service resolves and maintains prices.
type Service struct {
	store    Store
	cache    *Cache
	skus     SkuLookup
	branches BranchLookup
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewService builds Service. cache, skus and branches may be nil.
func NewService(store Store, cache *Cache, skus SkuLookup, branches BranchLookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		cache:    cache,
		skus:     skus,
		branches: branches,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resolve returns the effective price of skuID at branchID. Branch-specific
// rows always win over global ones.
func (s *Service) Resolve(ctx context.Context, skuID, branchID int64, asOf time.Time) (Resolution, error) {
	if skuID <= 0 || branchID <= 0 {
		return Resolution{}, shared.Validationf("sku and branch required")
	}
	if asOf.IsZero() {
		asOf = s.now()
	}
	key, err := s.cache.BuildKey(ctx, resolutionKey(skuID, branchID, asOf)...)
	if err != nil {
		s.logger.Warn("pricing cache key", slog.Any("error", err))
		return s.resolve(ctx, skuID, branchID, asOf)
	}
	val, err, _ := s.singleflight(ctx, key, func(ctx context.Context) (any, error) {
		var out Resolution
		var loadErr error
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			res, err := s.resolve(ctx, skuID, branchID, asOf)
			loadErr = err
			return res, err
		})
		if err != nil && loadErr == nil {
			s.logger.Warn("pricing cache unavailable", slog.String("key", key), slog.Any("error", err))
			return s.resolve(ctx, skuID, branchID, asOf)
		}
		return out, err
	})
	if err != nil {
		return Resolution{}, err
	}
	return val.(Resolution), nil
}

func (s *Service) resolve(ctx context.Context, skuID, branchID int64, asOf time.Time) (Resolution, error) {
	scope := ScopeBranch
	p, err := s.store.FindEffective(ctx, skuID, &branchID, asOf)
	if errors.Is(err, ErrNoPrice) {
		scope = ScopeGlobal
		p, err = s.store.FindEffective(ctx, skuID, nil, asOf)
	}
	if err != nil {
		if errors.Is(err, ErrNoPrice) {
			return Resolution{}, fmt.Errorf("%w for sku %d at branch %d", ErrNoPrice, skuID, branchID)
		}
		return Resolution{}, err
	}
	return Resolution{
		PriceID:     p.ID,
		SkuID:       skuID,
		BranchID:    branchID,
		UnitPrice:   p.SalePrice,
		DiscountPct: p.DiscountPct,
		FinalPrice:  FinalPrice(p.SalePrice, p.DiscountPct),
		Scope:       scope,
	}, nil
}

func (s *Service) singleflight(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := s.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}

// Create validates and stores a price row.
func (s *Service) Create(ctx context.Context, in CreateInput) (Price, error) {
	if err := shared.Validate(in); err != nil {
		return Price{}, err
	}
	if in.SalePrice.IsNegative() {
		return Price{}, shared.Validationf("salePrice must be >= 0")
	}
	if in.DiscountPct.IsNegative() || in.DiscountPct.GreaterThan(hundred) {
		return Price{}, shared.Validationf("discountPct must be between 0 and 100")
	}
	validFrom := s.now()
	if in.ValidFrom != nil {
		validFrom = in.ValidFrom.UTC()
	}
	if in.ValidTo != nil && in.ValidTo.Before(validFrom) {
		return Price{}, shared.Validationf("validTo precedes validFrom")
	}
	if s.skus != nil {
		if _, err := s.skus.Sku(ctx, in.SkuID); err != nil {
			return Price{}, err
		}
	}
	if in.BranchID != nil && s.branches != nil {
		if _, err := s.branches.Branch(ctx, *in.BranchID); err != nil {
			return Price{}, err
		}
	}
	p, err := s.store.Insert(ctx, Price{
		SkuID:       in.SkuID,
		BranchID:    in.BranchID,
		SalePrice:   in.SalePrice.Round(2),
		DiscountPct: in.DiscountPct.Round(2),
		ValidFrom:   validFrom,
		ValidTo:     in.ValidTo,
		Status:      shared.StatusActive,
	})
	if err != nil {
		return Price{}, err
	}
	s.bump(ctx)
	return p, nil
}

// Deactivate retires a price: status INACTIVE and valid_to set to now.
func (s *Service) Deactivate(ctx context.Context, id int64) (Price, error) {
	if id <= 0 {
		return Price{}, shared.Validationf("price id required")
	}
	p, err := s.store.Deactivate(ctx, id, s.now())
	if err != nil {
		return Price{}, err
	}
	s.bump(ctx)
	return p, nil
}

// Get returns one price row regardless of status.
func (s *Service) Get(ctx context.Context, id int64) (Price, error) {
	if id <= 0 {
		return Price{}, shared.Validationf("price id required")
	}
	return s.store.Get(ctx, id)
}

// List returns every price row for a SKU.
func (s *Service) List(ctx context.Context, skuID int64) ([]Price, error) {
	if skuID <= 0 {
		return nil, shared.Validationf("sku id required")
	}
	return s.store.ListBySku(ctx, skuID)
}

func (s *Service) bump(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("pricing cache bump", slog.Any("error", err))
	}
}
