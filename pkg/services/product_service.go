package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/repositories"
)

// ProductService manages catalog records.
type ProductService interface {
	// CreateProduct returns apperrors.ErrAlreadyExists if the id is taken.
	CreateProduct(ctx context.Context, product *models.ProductMetadata) error
	// UpdateProduct returns apperrors.ErrNotFound if the id is unknown.
	UpdateProduct(ctx context.Context, product *models.ProductMetadata) (*models.ProductMetadata, error)
	GetProduct(ctx context.Context, productID string) (*models.ProductMetadata, error)
}

type productService struct {
	productRepo repositories.ProductRepository
	logger      *zap.Logger
}

// NewProductService creates a new product service with dependencies.
func NewProductService(productRepo repositories.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger.Named("product"),
	}
}

var _ ProductService = (*productService)(nil)

func (s *productService) CreateProduct(ctx context.Context, product *models.ProductMetadata) error {
	exists, err := s.productRepo.Exists(ctx, product.ProductID)
	if err != nil {
		return fmt.Errorf("check product %s: %w", product.ProductID, err)
	}
	if exists {
		return apperrors.ErrAlreadyExists
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		// Lost a race with a concurrent create of the same id.
		if errors.Is(err, apperrors.ErrConflict) {
			return apperrors.ErrAlreadyExists
		}
		return err
	}

	s.logger.Info("Product metadata created", zap.String("product_id", product.ProductID))
	return nil
}

func (s *productService) UpdateProduct(ctx context.Context, product *models.ProductMetadata) (*models.ProductMetadata, error) {
	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product metadata updated", zap.String("product_id", product.ProductID))
	return product, nil
}

func (s *productService) GetProduct(ctx context.Context, productID string) (*models.ProductMetadata, error) {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperrors.ErrNotFound
	}
	return product, nil
}
