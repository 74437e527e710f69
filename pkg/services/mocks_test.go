package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/repositories"
)

// mockTx counts Commit/Rollback calls. Rollback after Commit is a no-op.
type mockTx struct {
	commits   int
	rollbacks int
	commitErr error
}

func (t *mockTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.commits++
	return nil
}

func (t *mockTx) Rollback(ctx context.Context) error {
	if t.commits > 0 {
		return nil
	}
	t.rollbacks++
	return nil
}

type mockTxManager struct {
	begins    int
	beginErr  error
	commitErr error
	tx        *mockTx
}

func (m *mockTxManager) Begin(ctx context.Context) (context.Context, database.Transaction, error) {
	if m.beginErr != nil {
		return nil, nil, m.beginErr
	}
	m.begins++
	m.tx = &mockTx{commitErr: m.commitErr}
	return ctx, m.tx, nil
}

// mockProductRepository serves a fixed catalog.
type mockProductRepository struct {
	catalog map[string]*models.ProductMetadata

	findErr   error
	createErr error
	updateErr error
	getErr    error
	existsErr error

	findCalls       int
	capturedLookups []string
	created         *models.ProductMetadata
}

func newMockProductRepository(ids ...string) *mockProductRepository {
	m := &mockProductRepository{catalog: make(map[string]*models.ProductMetadata)}
	for _, id := range ids {
		m.catalog[id] = &models.ProductMetadata{ProductID: id}
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, product *models.ProductMetadata) error {
	m.created = product
	if m.createErr != nil {
		return m.createErr
	}
	m.catalog[product.ProductID] = product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *models.ProductMetadata) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.catalog[product.ProductID]; !ok {
		return apperrors.ErrNotFound
	}
	m.catalog[product.ProductID] = product
	return nil
}

func (m *mockProductRepository) GetByID(ctx context.Context, productID string) (*models.ProductMetadata, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.catalog[productID], nil
}

func (m *mockProductRepository) Exists(ctx context.Context, productID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.catalog[productID]
	return ok, nil
}

func (m *mockProductRepository) FindExisting(ctx context.Context, productIDs []string) ([]string, error) {
	m.findCalls++
	m.capturedLookups = productIDs
	if m.findErr != nil {
		return nil, m.findErr
	}
	var found []string
	for _, id := range productIDs {
		if _, ok := m.catalog[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

// mockShelfRepository keeps shelves in memory, keyed by shopper then product.
type mockShelfRepository struct {
	shelves map[string]map[string]decimal.Decimal

	lockErr     error
	hasShelfErr error
	scoresErr   error
	updateErr   error
	flushErr    error
	listErr     error

	locked       []string
	scoreCalls   int
	updateCalls  int
	flushes      []int
	listViews    []*models.ProductView
	listTotal    int64
	capturedList models.ShelfQuery
}

func newMockShelfRepository() *mockShelfRepository {
	return &mockShelfRepository{shelves: make(map[string]map[string]decimal.Decimal)}
}

func (m *mockShelfRepository) rows(shopperID string) int {
	return len(m.shelves[shopperID])
}

func (m *mockShelfRepository) LockShelf(ctx context.Context, shopperID string) error {
	if m.lockErr != nil {
		return m.lockErr
	}
	m.locked = append(m.locked, shopperID)
	return nil
}

func (m *mockShelfRepository) HasShelf(ctx context.Context, shopperID string) (bool, error) {
	if m.hasShelfErr != nil {
		return false, m.hasShelfErr
	}
	return m.rows(shopperID) > 0, nil
}

func (m *mockShelfRepository) GetScores(ctx context.Context, shopperID string, productIDs []string) (map[string]decimal.Decimal, error) {
	m.scoreCalls++
	if m.scoresErr != nil {
		return nil, m.scoresErr
	}
	out := make(map[string]decimal.Decimal)
	for _, id := range productIDs {
		if score, ok := m.shelves[shopperID][id]; ok {
			out[id] = score
		}
	}
	return out, nil
}

func (m *mockShelfRepository) UpdateScore(ctx context.Context, shopperID, productID string, score decimal.Decimal) error {
	m.updateCalls++
	if m.updateErr != nil {
		return m.updateErr
	}
	m.shelves[shopperID][productID] = score
	return nil
}

func (m *mockShelfRepository) NewWriter(batchSize int) repositories.ShelfWriter {
	return &mockShelfWriter{repo: m, batchSize: batchSize}
}

func (m *mockShelfRepository) ListByShopper(ctx context.Context, query models.ShelfQuery) ([]*models.ProductView, int64, error) {
	m.capturedList = query
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.listViews, m.listTotal, nil
}

// sortedIDs returns the product ids on a shopper's shelf in lexical order.
func (m *mockShelfRepository) sortedIDs(shopperID string) []string {
	ids := make([]string, 0, len(m.shelves[shopperID]))
	for id := range m.shelves[shopperID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type mockShelfWriter struct {
	repo      *mockShelfRepository
	batchSize int
	pending   []*models.ShopperProductEntry
}

func (w *mockShelfWriter) Insert(ctx context.Context, entry *models.ShopperProductEntry) error {
	w.pending = append(w.pending, entry)
	if len(w.pending) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

func (w *mockShelfWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if w.repo.flushErr != nil {
		return w.repo.flushErr
	}
	w.repo.flushes = append(w.repo.flushes, len(w.pending))
	for _, e := range w.pending {
		shelf, ok := w.repo.shelves[e.ShopperID]
		if !ok {
			shelf = make(map[string]decimal.Decimal)
			w.repo.shelves[e.ShopperID] = shelf
		}
		if _, dup := shelf[e.ProductID]; dup {
			return apperrors.ErrConflict
		}
		shelf[e.ProductID] = e.RelevancyScore
	}
	w.pending = nil
	return nil
}
