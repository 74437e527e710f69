package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
)

// ProductRepository provides data access for the product catalog.
type ProductRepository interface {
	Create(ctx context.Context, product *models.ProductMetadata) error
	Update(ctx context.Context, product *models.ProductMetadata) error
	GetByID(ctx context.Context, productID string) (*models.ProductMetadata, error)
	Exists(ctx context.Context, productID string) (bool, error)
	// FindExisting returns the subset of productIDs present in the catalog.
	FindExisting(ctx context.Context, productIDs []string) ([]string, error)
}

type productRepository struct{}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository() ProductRepository {
	return &productRepository{}
}

var _ ProductRepository = (*productRepository)(nil)

func (r *productRepository) Create(ctx context.Context, product *models.ProductMetadata) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	query := `
		INSERT INTO product_metadata (product_id, category, brand, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err = q.QueryRow(ctx, query, product.ProductID, product.Category, product.Brand, now, now).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("product %s: %w", product.ProductID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create product metadata: %w", err)
	}

	return nil
}

func (r *productRepository) Update(ctx context.Context, product *models.ProductMetadata) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE product_metadata
		SET category = $2, brand = $3, updated_at = NOW()
		WHERE product_id = $1
		RETURNING created_at, updated_at`

	err = q.QueryRow(ctx, query, product.ProductID, product.Category, product.Brand).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to update product metadata: %w", err)
	}

	return nil
}

func (r *productRepository) GetByID(ctx context.Context, productID string) (*models.ProductMetadata, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT product_id, category, brand, created_at, updated_at
		FROM product_metadata
		WHERE product_id = $1`

	var p models.ProductMetadata
	err = q.QueryRow(ctx, query, productID).Scan(&p.ProductID, &p.Category, &p.Brand, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get product metadata: %w", err)
	}

	return &p, nil
}

func (r *productRepository) Exists(ctx context.Context, productID string) (bool, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM product_metadata WHERE product_id = $1)`, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check product metadata: %w", err)
	}
	return exists, nil
}

func (r *productRepository) FindExisting(ctx context.Context, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return []string{}, nil
	}

	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `SELECT product_id FROM product_metadata WHERE product_id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product ids: %w", err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan product ids: %w", err)
	}
	return found, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
