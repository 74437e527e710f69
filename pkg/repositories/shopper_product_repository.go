package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
)

// DefaultInsertBatchSize is the number of shelf rows sent per insert batch
// when no batch size is configured.
const DefaultInsertBatchSize = 50

// ShopperProductRepository provides data access for shopper shelves.
type ShopperProductRepository interface {
	// LockShelf serializes shelf writers for one shopper until the enclosing
	// transaction ends. It must run inside a transaction.
	LockShelf(ctx context.Context, shopperID string) error
	// HasShelf reports whether the shopper has at least one shelf entry.
	HasShelf(ctx context.Context, shopperID string) (bool, error)
	// GetScores returns the stored score of each of productIDs already on the
	// shopper's shelf. Products not on the shelf are absent from the map.
	GetScores(ctx context.Context, shopperID string, productIDs []string) (map[string]decimal.Decimal, error)
	UpdateScore(ctx context.Context, shopperID, productID string, score decimal.Decimal) error
	// NewWriter returns a buffered writer for new entries. Callers must Flush it.
	NewWriter(batchSize int) ShelfWriter
	// ListByShopper returns one page of the shelf joined with catalog fields,
	// ordered by score descending, plus the total number of matching entries.
	ListByShopper(ctx context.Context, query models.ShelfQuery) ([]*models.ProductView, int64, error)
}

type shopperProductRepository struct{}

// NewShopperProductRepository creates a new ShopperProductRepository.
func NewShopperProductRepository() ShopperProductRepository {
	return &shopperProductRepository{}
}

var _ ShopperProductRepository = (*shopperProductRepository)(nil)

func (r *shopperProductRepository) LockShelf(ctx context.Context, shopperID string) error {
	scope, ok := database.GetScope(ctx)
	if !ok || scope.Tx == nil {
		return fmt.Errorf("lock shelf %s: %w", shopperID, database.ErrNoTransaction)
	}

	if _, err := scope.Tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('shopper_shelf'), hashtext($1))`, shopperID); err != nil {
		return fmt.Errorf("failed to lock shelf: %w", err)
	}
	return nil
}

func (r *shopperProductRepository) HasShelf(ctx context.Context, shopperID string) (bool, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM shopper_product WHERE shopper_id = $1)`, shopperID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check shelf: %w", err)
	}
	return exists, nil
}

func (r *shopperProductRepository) GetScores(ctx context.Context, shopperID string, productIDs []string) (map[string]decimal.Decimal, error) {
	scores := make(map[string]decimal.Decimal, len(productIDs))
	if len(productIDs) == 0 {
		return scores, nil
	}

	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT product_id, relevancy_score
		FROM shopper_product
		WHERE shopper_id = $1 AND product_id = ANY($2)`

	rows, err := q.Query(ctx, query, shopperID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load shelf scores: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			score     decimal.Decimal
		)
		if err := rows.Scan(&productID, &score); err != nil {
			return nil, fmt.Errorf("failed to scan shelf score: %w", err)
		}
		scores[productID] = score
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shelf scores: %w", err)
	}

	return scores, nil
}

func (r *shopperProductRepository) UpdateScore(ctx context.Context, shopperID, productID string, score decimal.Decimal) error {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE shopper_product
		SET relevancy_score = $3, updated_at = NOW()
		WHERE shopper_id = $1 AND product_id = $2`

	tag, err := q.Exec(ctx, query, shopperID, productID, score)
	if err != nil {
		return fmt.Errorf("failed to update shelf score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *shopperProductRepository) NewWriter(batchSize int) ShelfWriter {
	if batchSize <= 0 {
		batchSize = DefaultInsertBatchSize
	}
	return &batchShelfWriter{batchSize: batchSize}
}

func (r *shopperProductRepository) ListByShopper(ctx context.Context, sq models.ShelfQuery) ([]*models.ProductView, int64, error) {
	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return nil, 0, err
	}

	where, args := shelfFilter(sq)

	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM shopper_product sp
		JOIN product_metadata pm ON pm.product_id = sp.product_id
		WHERE ` + where
	if err := q.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count shelf entries: %w", err)
	}

	limitArg := len(args) + 1
	args = append(args, sq.PageSize, sq.Offset())
	pageQuery := `
		SELECT sp.product_id, sp.relevancy_score, pm.category, pm.brand
		FROM shopper_product sp
		JOIN product_metadata pm ON pm.product_id = sp.product_id
		WHERE ` + where + `
		ORDER BY sp.relevancy_score DESC, sp.id ASC
		LIMIT $` + strconv.Itoa(limitArg) + ` OFFSET $` + strconv.Itoa(limitArg+1)

	rows, err := q.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list shelf entries: %w", err)
	}
	defer rows.Close()

	views := make([]*models.ProductView, 0, sq.PageSize)
	for rows.Next() {
		var v models.ProductView
		if err := rows.Scan(&v.ProductID, &v.RelevancyScore, &v.Category, &v.Brand); err != nil {
			return nil, 0, fmt.Errorf("failed to scan shelf entry: %w", err)
		}
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate shelf entries: %w", err)
	}

	return views, total, nil
}

// shelfFilter builds the WHERE clause shared by the count and page queries.
func shelfFilter(sq models.ShelfQuery) (string, []any) {
	conditions := []string{"sp.shopper_id = $1"}
	args := []any{sq.ShopperID}

	if sq.Category != nil {
		args = append(args, *sq.Category)
		conditions = append(conditions, "pm.category = $"+strconv.Itoa(len(args)))
	}
	if sq.Brand != nil {
		args = append(args, *sq.Brand)
		conditions = append(conditions, "pm.brand = $"+strconv.Itoa(len(args)))
	}

	return strings.Join(conditions, " AND "), args
}
