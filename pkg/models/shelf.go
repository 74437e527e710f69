package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Scores are rendered as JSON numbers rather than quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ScoreScale is the number of fractional digits a stored relevancy score keeps.
const ScoreScale = 10

// maxScore bounds |score| for the NUMERIC(19,10) column, exclusive.
var maxScore = decimal.New(1, 19-ScoreScale)

// NormalizeScore rounds d to ScoreScale fractional digits, the precision the
// store keeps. ok is false when the rounded value does not fit the column.
func NormalizeScore(d decimal.Decimal) (score decimal.Decimal, ok bool) {
	score = d.Round(ScoreScale)
	return score, score.Abs().LessThan(maxScore)
}

// ShopperProductEntry is one ranked product on a shopper's shelf.
// Stored in the shopper_product table, unique per (shopper_id, product_id).
// ProductID references product_metadata; catalog fields are never loaded with
// the entry.
type ShopperProductEntry struct {
	ID             int64           `json:"id"`
	ShopperID      string          `json:"shopperId"`
	ProductID      string          `json:"productId"`
	RelevancyScore decimal.Decimal `json:"relevancyScore"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// ShelfItem is one incoming (productId, relevancyScore) pair of a shelf payload.
type ShelfItem struct {
	ProductID      string              `json:"productId"`
	RelevancyScore decimal.NullDecimal `json:"relevancyScore"`
}

// Complete reports whether both the product id and the score are present.
func (i ShelfItem) Complete() bool {
	return i.ProductID != "" && i.RelevancyScore.Valid
}

// ProductView is a shelf entry enriched with its catalog category and brand.
type ProductView struct {
	ProductID      string          `json:"productId"`
	RelevancyScore decimal.Decimal `json:"relevancyScore"`
	Category       *string         `json:"category"`
	Brand          *string         `json:"brand"`
}

// Page is one zero-indexed page of a larger ordered result.
type Page[T any] struct {
	Content     []T   `json:"content"`
	CurrentPage int   `json:"currentPage"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
}

// NewPage builds a page, deriving TotalPages as ceil(totalItems / pageSize).
// A nil content slice is normalized to an empty one.
func NewPage[T any](content []T, pageNumber, pageSize int, totalItems int64) *Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((totalItems + int64(pageSize) - 1) / int64(pageSize))
	}
	return &Page[T]{
		Content:     content,
		CurrentPage: pageNumber,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
	}
}

// ShelfQuery selects one page of a shopper's shelf. Nil Category or Brand
// means no filter on that field.
type ShelfQuery struct {
	ShopperID  string
	Category   *string
	Brand      *string
	PageSize   int
	PageNumber int
}

// Offset returns the number of rows skipped before the requested page.
func (q ShelfQuery) Offset() int {
	return q.PageSize * q.PageNumber
}
