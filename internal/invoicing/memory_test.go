package invoicing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/retailpos/pos-backend/internal/catalog"
	"github.com/retailpos/pos-backend/internal/directory"
	"github.com/retailpos/pos-backend/internal/inventory"
	"github.com/retailpos/pos-backend/internal/shared"
)

type stockKey struct {
	branchID int64
	skuID    int64
}

// memoryStore serializes transactions and restores its state when fn fails,
// standing in for the row locks and rollback of PostgreSQL.
type memoryStore struct {
	mu        sync.Mutex
	stock     map[stockKey]inventory.Stock
	movements []inventory.Movement
	sequences map[string]int64
	invoices  map[int64]Invoice
	nextID    int64
}

type memoryTx struct {
	s *memoryStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		stock:     make(map[stockKey]inventory.Stock),
		sequences: map[string]int64{DefaultSeries: 0},
		invoices:  make(map[int64]Invoice),
	}
}

func (s *memoryStore) seed(branchID, skuID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{branchID, skuID}] = inventory.Stock{BranchID: branchID, SkuID: skuID, Quantity: qty}
	if qty > 0 {
		s.nextID++
		s.movements = append(s.movements, inventory.Movement{
			ID: s.nextID, BranchID: branchID, SkuID: skuID, Kind: inventory.MovementPurchase, Delta: qty, Reference: "seed",
		})
	}
}

func (s *memoryStore) quantity(branchID, skuID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[stockKey{branchID, skuID}].Quantity
}

func (s *memoryStore) ledgerSum(branchID, skuID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := 0
	for _, m := range s.movements {
		if m.BranchID == branchID && m.SkuID == skuID {
			sum += m.Delta
		}
	}
	return sum
}

func (s *memoryStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

func (s *memoryStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func (s *memoryStore) lastNumber(series string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequences[series]
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stock := make(map[stockKey]inventory.Stock, len(s.stock))
	for k, v := range s.stock {
		stock[k] = v
	}
	sequences := make(map[string]int64, len(s.sequences))
	for k, v := range s.sequences {
		sequences[k] = v
	}
	invoices := make(map[int64]Invoice, len(s.invoices))
	for k, v := range s.invoices {
		invoices[k] = v
	}
	movements := len(s.movements)
	nextID := s.nextID
	if err := fn(ctx, &memoryTx{s: s}); err != nil {
		s.stock = stock
		s.sequences = sequences
		s.invoices = invoices
		s.movements = s.movements[:movements]
		s.nextID = nextID
		return err
	}
	return nil
}

func (s *memoryStore) GetStock(ctx context.Context, branchID, skuID int64) (inventory.Stock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stock[stockKey{branchID, skuID}]
	if !ok {
		return inventory.Stock{BranchID: branchID, SkuID: skuID}, inventory.ErrStockNotFound
	}
	return st, nil
}

func (s *memoryStore) Get(ctx context.Context, id int64) (Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (s *memoryStore) List(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Invoice
	for _, inv := range s.invoices {
		if filter.BranchID != 0 && inv.BranchID != filter.BranchID {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		inv.Lines, inv.Payments = nil, nil
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (t *memoryTx) LockStock(ctx context.Context, branchID, skuID int64) (inventory.Stock, error) {
	st, ok := t.s.stock[stockKey{branchID, skuID}]
	if !ok {
		return inventory.Stock{BranchID: branchID, SkuID: skuID}, inventory.ErrStockNotFound
	}
	return st, nil
}

func (t *memoryTx) EnsureStock(ctx context.Context, branchID, skuID int64) (inventory.Stock, error) {
	k := stockKey{branchID, skuID}
	if _, ok := t.s.stock[k]; !ok {
		t.s.stock[k] = inventory.Stock{BranchID: branchID, SkuID: skuID}
	}
	return t.s.stock[k], nil
}

func (t *memoryTx) SetQuantity(ctx context.Context, branchID, skuID int64, quantity int) error {
	k := stockKey{branchID, skuID}
	st, ok := t.s.stock[k]
	if !ok {
		return inventory.ErrStockNotFound
	}
	st.Quantity = quantity
	t.s.stock[k] = st
	return nil
}

func (t *memoryTx) SetMinimum(ctx context.Context, branchID, skuID int64, minimum int) error {
	k := stockKey{branchID, skuID}
	st, ok := t.s.stock[k]
	if !ok {
		return inventory.ErrStockNotFound
	}
	st.Minimum = minimum
	t.s.stock[k] = st
	return nil
}

func (t *memoryTx) InsertMovement(ctx context.Context, m inventory.Movement) (inventory.Movement, error) {
	t.s.nextID++
	m.ID = t.s.nextID
	m.CreatedAt = time.Now()
	t.s.movements = append(t.s.movements, m)
	return m, nil
}

func (t *memoryTx) NextNumber(ctx context.Context, series string) (int64, error) {
	last, ok := t.s.sequences[series]
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownSeries, series)
	}
	t.s.sequences[series] = last + 1
	return last + 1, nil
}

func (t *memoryTx) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	for _, existing := range t.s.invoices {
		if existing.Series == inv.Series && existing.Number == inv.Number {
			return Invoice{}, shared.ErrDuplicate
		}
	}
	t.s.nextID++
	inv.ID = t.s.nextID
	inv.IssuedAt = time.Now()
	t.s.invoices[inv.ID] = inv
	return inv, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, invoiceID int64, lines []Line) ([]Line, error) {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		t.s.nextID++
		l.ID = t.s.nextID
		l.InvoiceID = invoiceID
		out = append(out, l)
	}
	inv := t.s.invoices[invoiceID]
	inv.Lines = out
	t.s.invoices[invoiceID] = inv
	return out, nil
}

func (t *memoryTx) InsertPayments(ctx context.Context, invoiceID int64, payments []Payment) ([]Payment, error) {
	out := make([]Payment, 0, len(payments))
	for _, p := range payments {
		t.s.nextID++
		p.ID = t.s.nextID
		p.InvoiceID = invoiceID
		p.CreatedAt = time.Now()
		out = append(out, p)
	}
	inv := t.s.invoices[invoiceID]
	inv.Payments = out
	t.s.invoices[invoiceID] = inv
	return out, nil
}

func (t *memoryTx) LockInvoice(ctx context.Context, id int64) (VoidState, error) {
	inv, ok := t.s.invoices[id]
	if !ok {
		return VoidState{}, ErrInvoiceNotFound
	}
	return VoidState{
		ID: inv.ID, Number: inv.Number, Series: inv.Series, BranchID: inv.BranchID, Status: inv.Status,
		VoidedBy: inv.VoidedBy, VoidedAt: inv.VoidedAt, VoidReason: inv.VoidReason, Lines: inv.Lines,
	}, nil
}

func (t *memoryTx) MarkVoided(ctx context.Context, id, staffID int64, at time.Time, reason string) error {
	inv, ok := t.s.invoices[id]
	if !ok || inv.Status != StatusIssued {
		return ErrInvoiceNotFound
	}
	inv.Status = StatusVoided
	inv.VoidedBy = &staffID
	inv.VoidedAt = &at
	inv.VoidReason = reason
	t.s.invoices[id] = inv
	return nil
}

// stubDirectory knows customers, staff and branches by id.
type stubDirectory struct {
	customers map[int64]bool
	staff     map[int64]bool
	branches  map[int64]shared.Status
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{
		customers: map[int64]bool{1: true},
		staff:     map[int64]bool{1: true, 2: true},
		branches:  map[int64]shared.Status{1: shared.StatusActive, 2: shared.StatusActive, 3: shared.StatusInactive},
	}
}

func (d *stubDirectory) Customer(ctx context.Context, id int64) (directory.Customer, error) {
	if !d.customers[id] {
		return directory.Customer{}, shared.NotFoundf("customer %d", id)
	}
	return directory.Customer{ID: id, Status: shared.StatusActive}, nil
}

func (d *stubDirectory) Staff(ctx context.Context, id int64) (directory.Staff, error) {
	if !d.staff[id] {
		return directory.Staff{}, shared.NotFoundf("staff %d", id)
	}
	return directory.Staff{ID: id, Status: shared.StatusActive}, nil
}

func (d *stubDirectory) ActiveBranch(ctx context.Context, id int64) (directory.Branch, error) {
	status, ok := d.branches[id]
	if !ok {
		return directory.Branch{}, shared.NotFoundf("branch %d", id)
	}
	if !status.IsActive() {
		return directory.Branch{}, fmt.Errorf("%w: branch %d", shared.ErrInactive, id)
	}
	return directory.Branch{ID: id, Status: status}, nil
}

// stubCatalog treats every positive sku as active except those listed.
type stubCatalog struct {
	inactive map[int64]bool
}

func (c stubCatalog) ActiveSku(ctx context.Context, id int64) (catalog.Sku, error) {
	if c.inactive[id] {
		return catalog.Sku{}, fmt.Errorf("%w: sku %d", shared.ErrInactive, id)
	}
	return catalog.Sku{ID: id, Status: shared.StatusActive}, nil
}

// staleStock pretends every branch holds plenty so only the locked re-check
// can reject a sale.
type staleStock struct{}

func (staleStock) GetStock(ctx context.Context, branchID, skuID int64) (inventory.Stock, error) {
	return inventory.Stock{BranchID: branchID, SkuID: skuID, Quantity: 1_000_000}, nil
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdempotency) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	stock    int
}

func (m *countingMetrics) RecordInvoice(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.outcomes == nil {
		m.outcomes = make(map[string]int)
	}
	m.outcomes[outcome]++
}

func (m *countingMetrics) RecordStockRejection(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock++
}

type recordingNotifier struct {
	mu       sync.Mutex
	branches []int64
}

func (n *recordingNotifier) NotifyStockChanged(ctx context.Context, branchID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.branches = append(n.branches, branchID)
	return nil
}
