package invoicing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/pricing"
	"github.com/retailpos/pos-backend/internal/shared"
)

type fixture struct {
	store    *memoryStore
	service  *Service
	metrics  *countingMetrics
	notifier *recordingNotifier
	idem     *memoryIdempotency
}

func newFixture(t testing.TB, opts ...func(*ServiceDeps)) *fixture {
	t.Helper()
	f := &fixture{
		store:    newMemoryStore(),
		metrics:  &countingMetrics{},
		notifier: &recordingNotifier{},
		idem:     &memoryIdempotency{},
	}
	deps := ServiceDeps{
		Directory:   newStubDirectory(),
		Catalog:     stubCatalog{inactive: map[int64]bool{99: true}},
		Stock:       f.store,
		Idempotency: f.idem,
		Notifier:    f.notifier,
		Metrics:     f.metrics,
		Currency:    "USD",
		Now:         func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.service = NewService(f.store, deps)
	return f
}

func price(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func cashRequest(skuID int64, qty int, unit, paid string) CreateInvoiceRequest {
	return CreateInvoiceRequest{
		CustomerID: 1,
		StaffID:    1,
		BranchID:   1,
		Lines:      []LineRequest{{SkuID: skuID, Quantity: qty, UnitPrice: price(unit)}},
		Payments:   []PaymentRequest{{Method: MethodCash, Amount: dec(paid)}},
	}
}

func TestCreateInvoiceDecrementsStock(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)

	inv, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 2, "10.00", "20.00"), "")
	require.NoError(t, err)

	assert.Equal(t, StatusIssued, inv.Status)
	assert.Equal(t, DefaultSeries, inv.Series)
	assert.EqualValues(t, 1, inv.Number)
	assert.Equal(t, "USD", inv.Currency)
	assert.True(t, dec("20.00").Equal(inv.Subtotal))
	assert.True(t, decimal.Zero.Equal(inv.DiscountTotal))
	assert.True(t, dec("20.00").Equal(inv.Total))
	require.Len(t, inv.Lines, 1)
	require.Len(t, inv.Payments, 1)
	assert.True(t, dec("20.00").Equal(inv.Lines[0].LineSubtotal))

	assert.Equal(t, 8, f.store.quantity(1, 10))
	assert.Equal(t, f.store.quantity(1, 10), f.store.ledgerSum(1, 10))
	assert.Equal(t, 1, f.metrics.outcomes[outcomeIssued])
	assert.Equal(t, []int64{1}, f.notifier.branches)

	f.store.mu.Lock()
	last := f.store.movements[len(f.store.movements)-1]
	f.store.mu.Unlock()
	assert.Equal(t, inventory.MovementSale, last.Kind)
	assert.Equal(t, -2, last.Delta)
	assert.Equal(t, "Invoice A-1", last.Reference)
}

func TestCreateInvoicePaymentMismatchPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	movements := f.store.movementCount()

	_, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 2, "10.00", "19.00"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPaymentMismatch)
	var mismatch *shared.MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.True(t, dec("-1.00").Equal(mismatch.Difference))
	assert.Contains(t, err.Error(), "difference -1.00")

	assert.Zero(t, f.store.invoiceCount())
	assert.Zero(t, f.store.lastNumber(DefaultSeries))
	assert.Equal(t, 10, f.store.quantity(1, 10))
	assert.Equal(t, movements, f.store.movementCount())
	assert.Equal(t, 1, f.metrics.outcomes[outcomeRejected])
}

func TestPaymentToleranceBoundary(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)

	_, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 2, "10.00", "20.01"), "")
	require.NoError(t, err)

	_, err = f.service.CreateInvoice(context.Background(), cashRequest(10, 2, "10.00", "20.02"), "")
	assert.ErrorIs(t, err, shared.ErrPaymentMismatch)

	_, err = f.service.CreateInvoice(context.Background(), cashRequest(10, 2, "10.00", "19.99"), "")
	require.NoError(t, err)
	assert.Equal(t, 6, f.store.quantity(1, 10))
}

func TestCreateInvoiceValidation(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	ctx := context.Background()

	cases := map[string]func(*CreateInvoiceRequest){
		"missing customer":  func(r *CreateInvoiceRequest) { r.CustomerID = 0 },
		"missing staff":     func(r *CreateInvoiceRequest) { r.StaffID = 0 },
		"no lines":          func(r *CreateInvoiceRequest) { r.Lines = nil },
		"no payments":       func(r *CreateInvoiceRequest) { r.Payments = nil },
		"zero quantity":     func(r *CreateInvoiceRequest) { r.Lines[0].Quantity = 0 },
		"negative price":    func(r *CreateInvoiceRequest) { r.Lines[0].UnitPrice = price("-1") },
		"discount over 100": func(r *CreateInvoiceRequest) { r.Lines[0].DiscountPct = price("100.5") },
		"zero payment":      func(r *CreateInvoiceRequest) { r.Payments[0].Amount = decimal.Zero },
		"sub-cent payment":  func(r *CreateInvoiceRequest) { r.Payments[0].Amount = dec("0.004") },
		"unknown method":    func(r *CreateInvoiceRequest) { r.Payments[0].Method = "BARTER" },
		"no price source":   func(r *CreateInvoiceRequest) { r.Lines[0].UnitPrice = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := cashRequest(10, 2, "10.00", "20.00")
			mutate(&req)
			_, err := f.service.CreateInvoice(ctx, req, "")
			assert.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	assert.Zero(t, f.store.invoiceCount())
	assert.Equal(t, 10, f.store.quantity(1, 10))
}

func TestPaymentRoundingToZeroIsRejected(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)

	req := cashRequest(10, 2, "10.00", "20.00")
	req.Payments = append(req.Payments, PaymentRequest{Method: MethodCash, Amount: dec("0.004")})
	_, err := f.service.CreateInvoice(context.Background(), req, "")
	require.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "payment 2")

	assert.Zero(t, f.store.invoiceCount())
	assert.Zero(t, f.store.lastNumber(DefaultSeries))
	assert.Equal(t, 10, f.store.quantity(1, 10))

	req.Payments[1].Amount = dec("0.005")
	req.Payments[0].Amount = dec("19.99")
	inv, err := f.service.CreateInvoice(context.Background(), req, "")
	require.NoError(t, err)
	require.Len(t, inv.Payments, 2)
	for _, p := range inv.Payments {
		assert.True(t, p.Amount.IsPositive(), "stored amount %s", p.Amount)
	}
	assert.Equal(t, "0.01", inv.Payments[1].Amount.StringFixed(2))
}

func TestCreateInvoiceReferenceChecks(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	f.store.seed(3, 10, 10)
	ctx := context.Background()

	req := cashRequest(10, 1, "10.00", "10.00")
	req.CustomerID = 42
	_, err := f.service.CreateInvoice(ctx, req, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	req = cashRequest(10, 1, "10.00", "10.00")
	req.BranchID = 3
	_, err = f.service.CreateInvoice(ctx, req, "")
	assert.ErrorIs(t, err, shared.ErrInactive)

	_, err = f.service.CreateInvoice(ctx, cashRequest(99, 1, "10.00", "10.00"), "")
	assert.ErrorIs(t, err, shared.ErrInactive)

	_, err = f.service.CreateInvoice(ctx, cashRequest(11, 1, "10.00", "10.00"), "")
	assert.ErrorIs(t, err, shared.ErrNotFound, "missing stock row")

	req = cashRequest(10, 1, "10.00", "10.00")
	req.Series = "Z"
	_, err = f.service.CreateInvoice(ctx, req, "")
	assert.ErrorIs(t, err, ErrUnknownSeries)
	assert.Equal(t, 10, f.store.quantity(1, 10))
}

func TestCreateInvoiceInsufficientStockNamesSku(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 3)

	_, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 5, "1.00", "5.00"), "")
	var stockErr *shared.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.EqualValues(t, 10, stockErr.SkuID)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)
	assert.Equal(t, 1, f.metrics.stock)
}

func TestCreateInvoiceAggregatesSameSkuLines(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	req := CreateInvoiceRequest{
		CustomerID: 1, StaffID: 1, BranchID: 1,
		Lines: []LineRequest{
			{SkuID: 10, Quantity: 6, UnitPrice: price("1.00")},
			{SkuID: 10, Quantity: 6, UnitPrice: price("1.00")},
		},
		Payments: []PaymentRequest{{Method: MethodCash, Amount: dec("12.00")}},
	}
	_, err := f.service.CreateInvoice(context.Background(), req, "")
	var stockErr *shared.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, 12, stockErr.Requested)
	assert.Equal(t, 10, f.store.quantity(1, 10))
}

func TestLockedRecheckRollsBackEverything(t *testing.T) {
	f := newFixture(t, func(d *ServiceDeps) { d.Stock = staleStock{} })
	f.store.seed(1, 10, 5)
	f.store.seed(1, 11, 1)
	movements := f.store.movementCount()

	req := CreateInvoiceRequest{
		CustomerID: 1, StaffID: 1, BranchID: 1,
		Lines: []LineRequest{
			{SkuID: 10, Quantity: 2, UnitPrice: price("1.00")},
			{SkuID: 11, Quantity: 4, UnitPrice: price("1.00")},
		},
		Payments: []PaymentRequest{{Method: MethodCash, Amount: dec("6.00")}},
	}
	_, err := f.service.CreateInvoice(context.Background(), req, "")
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	assert.Zero(t, f.store.invoiceCount())
	assert.Zero(t, f.store.lastNumber(DefaultSeries), "sequence must roll back")
	assert.Equal(t, 5, f.store.quantity(1, 10))
	assert.Equal(t, 1, f.store.quantity(1, 11))
	assert.Equal(t, movements, f.store.movementCount())

	inv, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 1, "1.00", "1.00"), "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, inv.Number)
}

func TestConcurrentInvoicesAreGapless(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 1000)
	const n = 30

	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 1, "2.50", "2.50"), "")
			if err == nil {
				numbers <- inv.Number
			}
		}()
	}
	wg.Wait()
	close(numbers)

	var got []int64
	for num := range numbers {
		got = append(got, num)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, n)
	for i, num := range got {
		assert.EqualValues(t, i+1, num)
	}
	assert.Equal(t, 1000-n, f.store.quantity(1, 10))
	assert.Equal(t, f.store.quantity(1, 10), f.store.ledgerSum(1, 10))
}

func TestSeriesNumberIndependently(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 1000)
	f.store.sequences["B"] = 100
	const perSeries = 15

	var wg sync.WaitGroup
	var mu sync.Mutex
	got := map[string][]int64{}
	for i := 0; i < perSeries*2; i++ {
		series := DefaultSeries
		if i%2 == 1 {
			series = "B"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := cashRequest(10, 1, "2.50", "2.50")
			req.Series = series
			inv, err := f.service.CreateInvoice(context.Background(), req, "")
			if err != nil {
				t.Errorf("series %s: %v", series, err)
				return
			}
			mu.Lock()
			got[inv.Series] = append(got[inv.Series], inv.Number)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for series, start := range map[string]int64{DefaultSeries: 0, "B": 100} {
		numbers := got[series]
		sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
		require.Len(t, numbers, perSeries, series)
		for i, num := range numbers {
			assert.EqualValues(t, start+int64(i)+1, num, series)
		}
	}
	assert.EqualValues(t, perSeries, f.store.lastNumber(DefaultSeries))
	assert.EqualValues(t, 100+perSeries, f.store.lastNumber("B"))
}

func TestConcurrentInvoicesNeverOversell(t *testing.T) {
	f := newFixture(t, func(d *ServiceDeps) { d.Stock = staleStock{} })
	f.store.seed(1, 10, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.CreateInvoice(context.Background(), cashRequest(10, 1, "1.00", "1.00"), "")
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Zero(t, f.store.quantity(1, 10))
	assert.EqualValues(t, 5, f.store.lastNumber(DefaultSeries))
	assert.Equal(t, 0, f.store.ledgerSum(1, 10))
}

func TestVoidRestoresStock(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	f.store.seed(1, 11, 4)
	ctx := context.Background()

	req := CreateInvoiceRequest{
		CustomerID: 1, StaffID: 1, BranchID: 1,
		Lines: []LineRequest{
			{SkuID: 10, Quantity: 3, UnitPrice: price("4.00"), DiscountPct: price("10")},
			{SkuID: 11, Quantity: 4, UnitPrice: price("2.00")},
		},
		Payments: []PaymentRequest{
			{Method: MethodCash, Amount: dec("10.00")},
			{Method: MethodDebitCard, Amount: dec("8.80"), GatewayTxID: "gw-1"},
		},
	}
	inv, err := f.service.CreateInvoice(ctx, req, "")
	require.NoError(t, err)
	assert.True(t, dec("20.00").Equal(inv.Subtotal))
	assert.True(t, dec("1.20").Equal(inv.DiscountTotal))
	assert.True(t, dec("18.80").Equal(inv.Total))
	assert.Equal(t, 7, f.store.quantity(1, 10))
	assert.Zero(t, f.store.quantity(1, 11))

	voided, err := f.service.VoidInvoice(ctx, inv.ID, VoidRequest{StaffID: 2, Reason: "  customer returned goods "})
	require.NoError(t, err)
	assert.Equal(t, StatusVoided, voided.Status)
	require.NotNil(t, voided.VoidedBy)
	assert.EqualValues(t, 2, *voided.VoidedBy)
	assert.Equal(t, "customer returned goods", voided.VoidReason)

	for _, sku := range []int64{10, 11} {
		assert.Equal(t, f.store.quantity(1, sku), f.store.ledgerSum(1, sku))
	}
	assert.Equal(t, 10, f.store.quantity(1, 10))
	assert.Equal(t, 4, f.store.quantity(1, 11))
	assert.Equal(t, 1, f.metrics.outcomes[outcomeVoided])

	f.store.mu.Lock()
	last := f.store.movements[len(f.store.movements)-1]
	f.store.mu.Unlock()
	assert.Equal(t, inventory.MovementReturn, last.Kind)
	assert.Equal(t, "Void Invoice A-1", last.Reference)
}

func TestVoidTwiceReportsOriginalMetadata(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	ctx := context.Background()

	inv, err := f.service.CreateInvoice(ctx, cashRequest(10, 2, "10.00", "20.00"), "")
	require.NoError(t, err)
	first, err := f.service.VoidInvoice(ctx, inv.ID, VoidRequest{StaffID: 1, Reason: "wrong customer"})
	require.NoError(t, err)

	_, err = f.service.VoidInvoice(ctx, inv.ID, VoidRequest{StaffID: 2, Reason: "again"})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrAlreadyVoided)
	var voided *shared.VoidedError
	require.True(t, errors.As(err, &voided))
	assert.EqualValues(t, 1, voided.VoidedBy)
	assert.Equal(t, "wrong customer", voided.Reason)

	after, err := f.service.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, first.VoidReason, after.VoidReason)
	assert.Equal(t, *first.VoidedBy, *after.VoidedBy)
	assert.Equal(t, 10, f.store.quantity(1, 10))
}

func TestVoidValidation(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	ctx := context.Background()
	inv, err := f.service.CreateInvoice(ctx, cashRequest(10, 1, "1.00", "1.00"), "")
	require.NoError(t, err)

	_, err = f.service.VoidInvoice(ctx, inv.ID, VoidRequest{StaffID: 1, Reason: "   "})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.VoidInvoice(ctx, inv.ID, VoidRequest{Reason: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = f.service.VoidInvoice(ctx, inv.ID, VoidRequest{StaffID: 77, Reason: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.service.VoidInvoice(ctx, 12345, VoidRequest{StaffID: 1, Reason: "x"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 9, f.store.quantity(1, 10))
}

type fixedPrices struct{}

func (fixedPrices) Resolve(ctx context.Context, skuID, branchID int64, asOf time.Time) (pricing.Resolution, error) {
	if skuID != 10 {
		return pricing.Resolution{}, pricing.ErrNoPrice
	}
	return pricing.Resolution{SkuID: skuID, UnitPrice: dec("5.00"), DiscountPct: dec("10"), Scope: pricing.ScopeGlobal}, nil
}

func TestCreateInvoiceResolvesMissingPrices(t *testing.T) {
	f := newFixture(t, func(d *ServiceDeps) { d.Prices = fixedPrices{} })
	f.store.seed(1, 10, 10)
	f.store.seed(1, 11, 10)
	req := CreateInvoiceRequest{
		CustomerID: 1, StaffID: 1, BranchID: 1,
		Lines:    []LineRequest{{SkuID: 10, Quantity: 2}},
		Payments: []PaymentRequest{{Method: MethodCash, Amount: dec("9.00")}},
	}
	inv, err := f.service.CreateInvoice(context.Background(), req, "")
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(inv.Lines[0].UnitPrice))
	assert.True(t, dec("10").Equal(inv.Lines[0].DiscountPct))
	assert.True(t, dec("9.00").Equal(inv.Total))

	req.Lines = []LineRequest{{SkuID: 11, Quantity: 1}}
	_, err = f.service.CreateInvoice(context.Background(), req, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestIdempotencyKeyBlocksReplay(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	ctx := context.Background()

	_, err := f.service.CreateInvoice(ctx, cashRequest(10, 20, "1.00", "20.00"), "key-1")
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)

	_, err = f.service.CreateInvoice(ctx, cashRequest(10, 1, "1.00", "1.00"), "key-2")
	require.NoError(t, err)
	_, err = f.service.CreateInvoice(ctx, cashRequest(10, 1, "1.00", "1.00"), "key-2")
	assert.ErrorIs(t, err, shared.ErrDuplicate)
	assert.Equal(t, 9, f.store.quantity(1, 10))
}

func TestIdempotencyKeyReleasedOnTransactionFailure(t *testing.T) {
	f := newFixture(t, func(d *ServiceDeps) { d.Stock = staleStock{} })
	f.store.seed(1, 10, 1)
	ctx := context.Background()

	_, err := f.service.CreateInvoice(ctx, cashRequest(10, 2, "1.00", "2.00"), "key-1")
	assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	_, err = f.service.CreateInvoice(ctx, cashRequest(10, 1, "1.00", "1.00"), "key-1")
	require.NoError(t, err)
}

func TestGetIsStableAndPaymentsSum(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 10)
	ctx := context.Background()
	req := cashRequest(10, 3, "3.33", "5.00")
	req.Payments = append(req.Payments, PaymentRequest{Method: MethodTransfer, Amount: dec("4.99"), Reference: "TX-9"})
	inv, err := f.service.CreateInvoice(ctx, req, "")
	require.NoError(t, err)

	a, err := f.service.Get(ctx, inv.ID)
	require.NoError(t, err)
	b, err := f.service.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	view, err := f.service.Payments(ctx, inv.ID)
	require.NoError(t, err)
	assert.Len(t, view.Payments, 2)
	assert.True(t, dec("9.99").Equal(view.PaidTotal))
	assert.True(t, dec("9.99").Equal(view.Total))

	_, err = f.service.Payments(ctx, 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListFiltersAndClamps(t *testing.T) {
	f := newFixture(t)
	f.store.seed(1, 10, 100)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := f.service.CreateInvoice(ctx, cashRequest(10, 1, "1.00", "1.00"), "")
		require.NoError(t, err)
	}

	all, err := f.service.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Greater(t, all[0].ID, all[1].ID)

	one, err := f.service.List(ctx, ListFilter{Limit: 1, Status: StatusIssued})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	_, err = f.service.List(ctx, ListFilter{Status: "PENDING"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	now := time.Now()
	_, err = f.service.List(ctx, ListFilter{From: now, To: now.Add(-time.Hour)})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
