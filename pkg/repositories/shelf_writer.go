package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/database"
	"github.com/ekaya-inc/shopper-shelf/pkg/metrics"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
)

// ShelfWriter buffers new shelf entries and sends them in batches.
// Entries are written through the querier in the context passed to each call,
// so a writer used inside a transaction writes on that transaction.
type ShelfWriter interface {
	// Insert buffers entry and flushes once the buffer reaches the batch size.
	Insert(ctx context.Context, entry *models.ShopperProductEntry) error
	// Flush sends any buffered entries.
	Flush(ctx context.Context) error
}

type batchShelfWriter struct {
	batchSize int
	pending   []*models.ShopperProductEntry
}

var _ ShelfWriter = (*batchShelfWriter)(nil)

func (w *batchShelfWriter) Insert(ctx context.Context, entry *models.ShopperProductEntry) error {
	w.pending = append(w.pending, entry)
	if len(w.pending) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

func (w *batchShelfWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	entries := w.pending
	w.pending = nil

	q, err := database.QuerierFrom(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO shopper_product (shopper_id, product_id, relevancy_score, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query, e.ShopperID, e.ProductID, e.RelevancyScore)
	}

	br := q.SendBatch(ctx, batch)
	defer br.Close()

	for _, e := range entries {
		if err := br.QueryRow().Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("shelf entry %s/%s: %w", e.ShopperID, e.ProductID, apperrors.ErrConflict)
			}
			return fmt.Errorf("batch insert shelf entry: %w", err)
		}
	}

	metrics.RecordWriteBatch(len(entries))
	return nil
}
