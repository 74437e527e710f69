package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/services"
)

// ExternalHandler serves shelf reads to external consumers.
type ExternalHandler struct {
	shelfService services.ShelfService
	logger       *zap.Logger
}

// NewExternalHandler creates a new external read handler.
func NewExternalHandler(shelfService services.ShelfService, logger *zap.Logger) *ExternalHandler {
	return &ExternalHandler{
		shelfService: shelfService,
		logger:       logger,
	}
}

// RegisterRoutes registers the external routes on the given mux.
func (h *ExternalHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /external/{shopperId}/products", scope(h.ListProducts))
}

// ListProducts handles GET /external/{shopperId}/products
func (h *ExternalHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	shopperID := r.PathValue("shopperId")
	limit, page := ParsePageParams(r)

	result, err := h.shelfService.ListShopperProducts(r.Context(), models.ShelfQuery{
		ShopperID:  shopperID,
		Category:   optionalQuery(r, "category"),
		Brand:      optionalQuery(r, "brand"),
		PageSize:   limit,
		PageNumber: page,
	})
	if err != nil {
		h.logger.Error("Failed to fetch products for shopper",
			zap.String("shopper_id", shopperID),
			zap.String("error", logging.SanitizeError(err)))
		if err := ErrorResponse(w, http.StatusInternalServerError, "Failed to fetch products for shopper"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	body := ApiResponse{Success: true, Message: "Products fetched successfully", Data: result}
	if err := WriteJSON(w, http.StatusOK, body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
