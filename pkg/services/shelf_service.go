package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
	"github.com/ekaya-inc/shopper-shelf/pkg/metrics"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/repositories"
)

// FailureKind classifies an expected, non-error rejection of a shelf request.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureInvalidInput  FailureKind = "invalid_input"
	FailureAlreadyExists FailureKind = "already_exists"
	FailureValidation    FailureKind = "validation_error"
)

// ShelfResult is the outcome of a create or update call that reached a
// decision. Store failures are returned as errors instead.
type ShelfResult struct {
	Success bool
	Message string
	Failure FailureKind
	Data    any
}

// ShelfCreated is the data of a successful CreateShelf.
type ShelfCreated struct {
	ShopperID  string `json:"shopperId"`
	TotalItems int    `json:"totalItems"`
}

// MissingProducts is the data of a create rejected for unknown product ids.
type MissingProducts struct {
	MissingProductIDs []string `json:"missingProductIds"`
}

// ShelfChanges is the data of an UpdateShelf call.
type ShelfChanges struct {
	InsertedProductIDs []string `json:"insertedProductIds"`
	UpdatedProductIDs  []string `json:"updatedProductIds"`
	NotSavedProductIDs []string `json:"notSavedProductIds"`
}

// ShelfService reconciles incoming shelves with stored ones and serves
// paginated shelf reads.
type ShelfService interface {
	// CreateShelf stores a first shelf for a shopper. Any unknown product id
	// rejects the whole request.
	CreateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (*ShelfResult, error)
	// UpdateShelf inserts new products and rescores changed ones. Unknown
	// product ids are skipped and reported.
	UpdateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (*ShelfResult, error)
	ListShopperProducts(ctx context.Context, query models.ShelfQuery) (*models.Page[*models.ProductView], error)
}

type shelfService struct {
	txManager   database.TxManager
	productRepo repositories.ProductRepository
	shelfRepo   repositories.ShopperProductRepository
	batchSize   int
	logger      *zap.Logger
}

// NewShelfService creates a new shelf service with dependencies.
// batchSize bounds how many new entries are buffered before a write.
func NewShelfService(
	txManager database.TxManager,
	productRepo repositories.ProductRepository,
	shelfRepo repositories.ShopperProductRepository,
	batchSize int,
	logger *zap.Logger,
) ShelfService {
	if batchSize <= 0 {
		batchSize = repositories.DefaultInsertBatchSize
	}
	return &shelfService{
		txManager:   txManager,
		productRepo: productRepo,
		shelfRepo:   shelfRepo,
		batchSize:   batchSize,
		logger:      logger.Named("shelf"),
	}
}

var _ ShelfService = (*shelfService)(nil)

// emptyData renders as {} in responses that carry no data.
var emptyData = struct{}{}

func failure(kind FailureKind, message string) *ShelfResult {
	return &ShelfResult{Message: message, Failure: kind, Data: emptyData}
}

func (s *shelfService) CreateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (res *ShelfResult, err error) {
	defer func() { s.record("create", res, err) }()

	if strings.TrimSpace(shopperID) == "" {
		return failure(FailureInvalidInput, "Invalid shopperId"), nil
	}

	s.logger.Info("Creating shelf", zap.String("shopper_id", shopperID))

	txCtx, tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := s.shelfRepo.LockShelf(txCtx, shopperID); err != nil {
		return nil, s.storeError("create", shopperID, err)
	}

	exists, err := s.shelfRepo.HasShelf(txCtx, shopperID)
	if err != nil {
		return nil, s.storeError("create", shopperID, err)
	}
	if exists {
		return failure(FailureAlreadyExists, "Shelf already exists for shopperId="+shopperID+". Use updateShelf."), nil
	}

	order, incoming, outOfRange := buildIncoming(items)
	if len(order) == 0 {
		return failure(FailureInvalidInput, "No valid products found in shelf payload"), nil
	}
	if len(outOfRange) > 0 {
		return scoreOutOfRange(outOfRange), nil
	}

	valid, missing, err := s.partition(txCtx, order)
	if err != nil {
		return nil, s.storeError("create", shopperID, err)
	}
	if len(missing) > 0 {
		metrics.RecordShelfItems(metrics.OutcomeSkipped, len(missing))
		s.logger.Info("Shelf rejected, unknown products",
			zap.String("shopper_id", shopperID),
			zap.Strings("missing_product_ids", logging.TruncateIDs(missing, 20)))
		return &ShelfResult{
			Message: "ProductIds missing in product metadata: " + formatIDs(missing),
			Failure: FailureValidation,
			Data:    MissingProducts{MissingProductIDs: missing},
		}, nil
	}

	writer := s.shelfRepo.NewWriter(s.batchSize)
	for _, productID := range valid {
		entry := &models.ShopperProductEntry{
			ShopperID:      shopperID,
			ProductID:      productID,
			RelevancyScore: incoming[productID],
		}
		if err := writer.Insert(txCtx, entry); err != nil {
			return nil, s.storeError("create", shopperID, err)
		}
	}
	if err := writer.Flush(txCtx); err != nil {
		return nil, s.storeError("create", shopperID, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, s.storeError("create", shopperID, err)
	}

	metrics.RecordShelfItems(metrics.OutcomeInserted, len(valid))
	s.logger.Info("Shelf created",
		zap.String("shopper_id", shopperID),
		zap.Int("total_items", len(valid)))

	return &ShelfResult{
		Success: true,
		Message: "Shopper shelf created successfully",
		Data:    ShelfCreated{ShopperID: shopperID, TotalItems: len(valid)},
	}, nil
}

func (s *shelfService) UpdateShelf(ctx context.Context, shopperID string, items []models.ShelfItem) (res *ShelfResult, err error) {
	defer func() { s.record("update", res, err) }()

	if strings.TrimSpace(shopperID) == "" {
		return failure(FailureInvalidInput, "Invalid shopperId"), nil
	}

	s.logger.Info("Updating shelf", zap.String("shopper_id", shopperID))

	order, incoming, outOfRange := buildIncoming(items)
	if len(order) == 0 {
		return failure(FailureInvalidInput, "Shelf payload is empty"), nil
	}
	if len(outOfRange) > 0 {
		return scoreOutOfRange(outOfRange), nil
	}

	txCtx, tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := s.shelfRepo.LockShelf(txCtx, shopperID); err != nil {
		return nil, s.storeError("update", shopperID, err)
	}

	valid, missing, err := s.partition(txCtx, order)
	if err != nil {
		return nil, s.storeError("update", shopperID, err)
	}
	metrics.RecordShelfItems(metrics.OutcomeSkipped, len(missing))

	if len(valid) == 0 {
		return &ShelfResult{
			Message: "No valid products found for shopperId=" + shopperID,
			Failure: FailureValidation,
			Data: ShelfChanges{
				InsertedProductIDs: []string{},
				UpdatedProductIDs:  []string{},
				NotSavedProductIDs: missing,
			},
		}, nil
	}

	existing, err := s.shelfRepo.GetScores(txCtx, shopperID, valid)
	if err != nil {
		return nil, s.storeError("update", shopperID, err)
	}

	inserted := []string{}
	updated := []string{}
	unchanged := 0
	writer := s.shelfRepo.NewWriter(s.batchSize)

	for _, productID := range valid {
		score := incoming[productID]

		current, ok := existing[productID]
		if !ok {
			entry := &models.ShopperProductEntry{
				ShopperID:      shopperID,
				ProductID:      productID,
				RelevancyScore: score,
			}
			if err := writer.Insert(txCtx, entry); err != nil {
				return nil, s.storeError("update", shopperID, err)
			}
			inserted = append(inserted, productID)
			continue
		}

		if score.Equal(current) {
			unchanged++
			continue
		}
		if err := s.shelfRepo.UpdateScore(txCtx, shopperID, productID, score); err != nil {
			return nil, s.storeError("update", shopperID, err)
		}
		updated = append(updated, productID)
	}

	if err := writer.Flush(txCtx); err != nil {
		return nil, s.storeError("update", shopperID, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, s.storeError("update", shopperID, err)
	}

	metrics.RecordShelfItems(metrics.OutcomeInserted, len(inserted))
	metrics.RecordShelfItems(metrics.OutcomeUpdated, len(updated))
	metrics.RecordShelfItems(metrics.OutcomeUnchanged, unchanged)
	s.logger.Info("Shelf updated",
		zap.String("shopper_id", shopperID),
		zap.Int("inserted", len(inserted)),
		zap.Int("updated", len(updated)),
		zap.Int("unchanged", unchanged),
		zap.Int("skipped", len(missing)))

	return &ShelfResult{
		Success: true,
		Message: fmt.Sprintf("Processed shelf for shopperId=%s (inserted=%d, updated=%d, skipped=%d)",
			shopperID, len(inserted), len(updated), len(missing)),
		Data: ShelfChanges{
			InsertedProductIDs: inserted,
			UpdatedProductIDs:  updated,
			NotSavedProductIDs: missing,
		},
	}, nil
}

func (s *shelfService) ListShopperProducts(ctx context.Context, query models.ShelfQuery) (page *models.Page[*models.ProductView], err error) {
	defer func() { s.record("list", nil, err) }()

	query.Category = normalizeFilter(query.Category)
	query.Brand = normalizeFilter(query.Brand)

	views, total, err := s.shelfRepo.ListByShopper(ctx, query)
	if err != nil {
		s.logger.Error("Failed to fetch products for shopper",
			zap.String("shopper_id", query.ShopperID),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("list shelf for %s: %w", query.ShopperID, err)
	}

	return models.NewPage(views, query.PageNumber, query.PageSize, total), nil
}

// partition splits ids into those present in the catalog and those missing,
// both in the order of ids.
func (s *shelfService) partition(ctx context.Context, ids []string) (valid, missing []string, err error) {
	found, err := s.productRepo.FindExisting(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	known := make(map[string]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}

	valid = make([]string, 0, len(found))
	missing = []string{}
	for _, id := range ids {
		if _, ok := known[id]; ok {
			valid = append(valid, id)
		} else {
			missing = append(missing, id)
		}
	}
	return valid, missing, nil
}

func (s *shelfService) storeError(op, shopperID string, err error) error {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("shopper_id", shopperID),
		zap.String("error", logging.SanitizeError(err)),
	}
	if errors.Is(err, apperrors.ErrConflict) {
		s.logger.Warn("Concurrent shelf write conflict", fields...)
	} else {
		s.logger.Error("Shelf persistence failure", fields...)
	}
	return fmt.Errorf("%s shelf for %s: %w", op, shopperID, err)
}

func (s *shelfService) record(op string, res *ShelfResult, err error) {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		metrics.RecordShelfOperation(op, metrics.ResultConflict)
	case err != nil:
		metrics.RecordShelfOperation(op, metrics.ResultError)
	case res != nil && !res.Success:
		metrics.RecordShelfOperation(op, metrics.ResultRejected)
	default:
		metrics.RecordShelfOperation(op, metrics.ResultSuccess)
	}
}

// buildIncoming drops incomplete items and dedupes by product id. The last
// score wins; ids keep the position of their first occurrence. Scores are
// rounded to the stored scale; ids whose final score cannot be stored are
// returned in outOfRange.
func buildIncoming(items []models.ShelfItem) (order []string, scores map[string]decimal.Decimal, outOfRange []string) {
	order = make([]string, 0, len(items))
	scores = make(map[string]decimal.Decimal, len(items))
	fits := make(map[string]bool, len(items))

	for _, item := range items {
		if !item.Complete() {
			continue
		}
		if _, seen := scores[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		scores[item.ProductID], fits[item.ProductID] = models.NormalizeScore(item.RelevancyScore.Decimal)
	}

	for _, id := range order {
		if !fits[id] {
			outOfRange = append(outOfRange, id)
		}
	}
	return order, scores, outOfRange
}

func scoreOutOfRange(ids []string) *ShelfResult {
	return failure(FailureInvalidInput, "relevancyScore out of range for productIds: "+formatIDs(ids))
}

func normalizeFilter(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	return v
}

func formatIDs(ids []string) string {
	return "[" + strings.Join(ids, ", ") + "]"
}
