package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/services"
)

// ShopperShelfRequest is the body of POST and PUT /internal/shopper-products.
type ShopperShelfRequest struct {
	ShopperID string             `json:"shopperId"`
	Shelf     []models.ShelfItem `json:"shelf"`
}

const conflictMessage = "Concurrent shelf update, retry the request"

// ShopperProductsHandler handles shelf write requests.
type ShopperProductsHandler struct {
	shelfService services.ShelfService
	logger       *zap.Logger
}

// NewShopperProductsHandler creates a new shelf write handler.
func NewShopperProductsHandler(shelfService services.ShelfService, logger *zap.Logger) *ShopperProductsHandler {
	return &ShopperProductsHandler{
		shelfService: shelfService,
		logger:       logger,
	}
}

// RegisterRoutes registers the shelf write routes on the given mux.
func (h *ShopperProductsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/internal/shopper-products"

	mux.HandleFunc("POST "+base, scope(h.Create))
	mux.HandleFunc("PUT "+base, scope(h.Update))
}

// Create handles POST /internal/shopper-products
// Every rejected result maps to 400.
func (h *ShopperProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ShopperShelfRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.shelfService.CreateShelf(r.Context(), req.ShopperID, req.Shelf)
	if err != nil {
		h.writeFailure(w, req.ShopperID, err, "Failed to create shopper shelf")
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadRequest
	}
	h.writeResult(w, status, result)
}

// Update handles PUT /internal/shopper-products
// Only invalid input maps to 400; partial and all-skipped updates return 200.
func (h *ShopperProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ShopperShelfRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := h.shelfService.UpdateShelf(r.Context(), req.ShopperID, req.Shelf)
	if err != nil {
		h.writeFailure(w, req.ShopperID, err, "Failed to replace shopper shelf")
		return
	}

	status := http.StatusOK
	if result.Failure == services.FailureInvalidInput {
		status = http.StatusBadRequest
	}
	h.writeResult(w, status, result)
}

func (h *ShopperProductsHandler) writeResult(w http.ResponseWriter, status int, result *services.ShelfResult) {
	data := result.Data
	if data == nil {
		data = emptyData
	}
	body := ApiResponse{Success: result.Success, Message: result.Message, Data: data}
	if err := WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ShopperProductsHandler) writeFailure(w http.ResponseWriter, shopperID string, err error, message string) {
	status := http.StatusInternalServerError
	if errors.Is(err, apperrors.ErrConflict) {
		status = http.StatusConflict
		message = conflictMessage
	} else {
		h.logger.Error(message,
			zap.String("shopper_id", shopperID),
			zap.String("error", logging.SanitizeError(err)))
	}

	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
