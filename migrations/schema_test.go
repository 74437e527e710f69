//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/shopper-shelf/pkg/testhelpers"
)

func TestSchema_ShopperProduct(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	columns := map[string]string{
		"id":              "bigint",
		"shopper_id":      "text",
		"product_id":      "text",
		"relevancy_score": "numeric",
		"created_at":      "timestamp with time zone",
		"updated_at":      "timestamp with time zone",
	}

	for colName, expectedType := range columns {
		var dataType string
		err := testDB.DB.QueryRow(ctx, `
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = 'shopper_product'
			AND column_name = $1
		`, colName).Scan(&dataType)
		require.NoError(t, err, "Column %s should exist", colName)
		assert.Equal(t, expectedType, dataType, "Column %s should have type %s", colName, expectedType)
	}

	var precision, scale int
	err := testDB.DB.QueryRow(ctx, `
		SELECT numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_name = 'shopper_product' AND column_name = 'relevancy_score'
	`).Scan(&precision, &scale)
	require.NoError(t, err)
	assert.Equal(t, 19, precision)
	assert.Equal(t, 10, scale)
}

func TestSchema_ConstraintsAndIndexes(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	ctx := context.Background()

	var constraintExists bool
	err := testDB.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conname = 'uq_shopper_product' AND contype = 'u'
		)
	`).Scan(&constraintExists)
	require.NoError(t, err)
	assert.True(t, constraintExists, "uq_shopper_product unique constraint should exist")

	for _, index := range []string{"idx_shopper_relevancy", "idx_product_metadata_category_brand"} {
		var indexExists bool
		err := testDB.DB.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = $1)
		`, index).Scan(&indexExists)
		require.NoError(t, err)
		assert.True(t, indexExists, "index %s should exist", index)
	}
}
