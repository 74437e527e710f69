package handlers

import (
	"context"
	"net/http"

	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/services"
)

// mockProductService implements services.ProductService for handler tests.
type mockProductService struct {
	product   *models.ProductMetadata
	createErr error
	updateErr error
	getErr    error

	capturedProduct *models.ProductMetadata
	capturedID      string
}

func (m *mockProductService) CreateProduct(ctx context.Context, product *models.ProductMetadata) error {
	m.capturedProduct = product
	return m.createErr
}

func (m *mockProductService) UpdateProduct(ctx context.Context, product *models.ProductMetadata) (*models.ProductMetadata, error) {
	m.capturedProduct = product
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return product, nil
}

func (m *mockProductService) GetProduct(ctx context.Context, productID string) (*models.ProductMetadata, error) {
	m.capturedID = productID
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.product, nil
}

// mockShelfService implements services.ShelfService for handler tests.
type mockShelfService struct {
	result  *services.ShelfResult
	page    *models.Page[*models.ProductView]
	err     error
	listErr error

	capturedShopper string
	capturedItems   []models.ShelfItem
	capturedQuery   models.ShelfQuery
}

func (m *mockShelfService) CreateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (*services.ShelfResult, error) {
	m.capturedShopper = shopperID
	m.capturedItems = items
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockShelfService) UpdateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (*services.ShelfResult, error) {
	m.capturedShopper = shopperID
	m.capturedItems = items
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *mockShelfService) ListShopperProducts(ctx context.Context, query models.ShelfQuery) (*models.Page[*models.ProductView], error) {
	m.capturedQuery = query
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.page, nil
}

// passthroughScope stands in for the database scope middleware.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}
