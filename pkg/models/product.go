package models

import "time"

// ProductMetadata is a catalog record keyed by an externally assigned product id.
// Stored in the product_metadata table.
type ProductMetadata struct {
	ProductID string    `json:"productId"`
	Category  *string   `json:"category"`
	Brand     *string   `json:"brand"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
