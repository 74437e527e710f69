package repositories

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/metrics"
)

// knownProductsKey is the Redis set of product ids confirmed to exist.
const knownProductsKey = "catalog:known-products"

// cachedProductRepository answers FindExisting from a Redis set of known
// product ids before falling back to the database. Products are never
// deleted, so only positive answers are cached.
type cachedProductRepository struct {
	ProductRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository wraps inner with a Redis existence cache.
// A nil client returns inner unchanged.
func NewCachedProductRepository(inner ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) ProductRepository {
	if client == nil {
		return inner
	}
	return &cachedProductRepository{
		ProductRepository: inner,
		client:            client,
		ttl:               ttl,
		logger:            logger.Named("catalog-cache"),
	}
}

var _ ProductRepository = (*cachedProductRepository)(nil)

func (r *cachedProductRepository) FindExisting(ctx context.Context, productIDs []string) ([]string, error) {
	if len(productIDs) == 0 {
		return []string{}, nil
	}

	members := make([]any, len(productIDs))
	for i, id := range productIDs {
		members[i] = id
	}

	known, err := r.client.SMIsMember(ctx, knownProductsKey, members...).Result()
	if err != nil {
		metrics.CatalogCacheErrors.Inc()
		r.logger.Warn("Catalog cache lookup failed, using database", zap.Error(err))
		return r.ProductRepository.FindExisting(ctx, productIDs)
	}

	found := make([]string, 0, len(productIDs))
	var misses []string
	for i, id := range productIDs {
		if known[i] {
			found = append(found, id)
		} else {
			misses = append(misses, id)
		}
	}
	metrics.RecordCatalogCache(len(found), len(misses))

	if len(misses) == 0 {
		return found, nil
	}

	fromDB, err := r.ProductRepository.FindExisting(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(fromDB) > 0 {
		r.remember(ctx, fromDB)
	}

	return append(found, fromDB...), nil
}

// remember adds ids to the known set. Failures are logged and ignored.
func (r *cachedProductRepository) remember(ctx context.Context, ids []string) {
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, knownProductsKey, members...)
	if r.ttl > 0 {
		pipe.Expire(ctx, knownProductsKey, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CatalogCacheErrors.Inc()
		r.logger.Warn("Failed to update catalog cache", zap.Int("ids", len(ids)), zap.Error(err))
	}
}
