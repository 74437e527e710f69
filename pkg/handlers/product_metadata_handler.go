package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/shopper-shelf/pkg/apperrors"
	"github.com/ekaya-inc/shopper-shelf/pkg/logging"
	"github.com/ekaya-inc/shopper-shelf/pkg/models"
	"github.com/ekaya-inc/shopper-shelf/pkg/services"
	"github.com/ekaya-inc/shopper-shelf/pkg/validation"
)

// ProductMetadataRequest is the body of POST and PUT /internal/product-metadata.
type ProductMetadataRequest struct {
	ProductID string  `json:"productId" validate:"required,max=255"`
	Category  *string `json:"category" validate:"omitempty,max=255"`
	Brand     *string `json:"brand" validate:"omitempty,max=255"`
}

func (req *ProductMetadataRequest) toModel() *models.ProductMetadata {
	return &models.ProductMetadata{
		ProductID: req.ProductID,
		Category:  req.Category,
		Brand:     req.Brand,
	}
}

// ProductMetadataHandler handles catalog HTTP requests.
type ProductMetadataHandler struct {
	productService services.ProductService
	logger         *zap.Logger
}

// NewProductMetadataHandler creates a new product metadata handler.
func NewProductMetadataHandler(productService services.ProductService, logger *zap.Logger) *ProductMetadataHandler {
	return &ProductMetadataHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers the product metadata routes on the given mux.
func (h *ProductMetadataHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	base := "/internal/product-metadata"

	mux.HandleFunc("POST "+base, scope(h.Create))
	mux.HandleFunc("PUT "+base, scope(h.Update))
	mux.HandleFunc("GET "+base+"/{productId}", scope(h.Get))
}

// Create handles POST /internal/product-metadata
func (h *ProductMetadataHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	product := req.toModel()
	if err := h.productService.CreateProduct(r.Context(), product); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			h.respondError(w, http.StatusBadRequest, "Product metadata with productId "+req.ProductID+" already exists")
			return
		}
		h.logger.Error("Failed to create product metadata",
			zap.String("product_id", req.ProductID),
			zap.String("error", logging.SanitizeError(err)))
		h.respondError(w, http.StatusInternalServerError, "Failed to create product metadata")
		return
	}

	h.respond(w, http.StatusCreated, ApiResponse{Success: true, Message: "Product metadata created successfully", Data: product})
}

// Update handles PUT /internal/product-metadata
func (h *ProductMetadataHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), req.toModel())
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.respondError(w, http.StatusBadRequest, "Product metadata with productId "+req.ProductID+" does not exist")
			return
		}
		h.logger.Error("Failed to update product metadata",
			zap.String("product_id", req.ProductID),
			zap.String("error", logging.SanitizeError(err)))
		h.respondError(w, http.StatusInternalServerError, "Failed to update product metadata")
		return
	}

	h.respond(w, http.StatusOK, ApiResponse{Success: true, Message: "Product metadata updated successfully", Data: product})
}

// Get handles GET /internal/product-metadata/{productId}
func (h *ProductMetadataHandler) Get(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	product, err := h.productService.GetProduct(r.Context(), productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, "Product metadata with productId "+productID+" does not exist")
			return
		}
		h.logger.Error("Failed to get product metadata",
			zap.String("product_id", productID),
			zap.String("error", logging.SanitizeError(err)))
		h.respondError(w, http.StatusInternalServerError, "Failed to get product metadata")
		return
	}

	h.respond(w, http.StatusOK, ApiResponse{Success: true, Message: "Product metadata fetched successfully", Data: product})
}

func (h *ProductMetadataHandler) decode(w http.ResponseWriter, r *http.Request) (*ProductMetadataRequest, bool) {
	var req ProductMetadataRequest
	if !decodeBody(w, r, &req) {
		return nil, false
	}

	if err := validation.ValidateStruct(&req); err != nil {
		var verr *validation.RequestValidationError
		data := any(emptyData)
		if errors.As(err, &verr) {
			data = map[string]any{"fields": verr.Fields}
		}
		h.respond(w, http.StatusBadRequest, ApiResponse{Success: false, Message: err.Error(), Data: data})
		return nil, false
	}
	return &req, true
}

func (h *ProductMetadataHandler) respond(w http.ResponseWriter, status int, body ApiResponse) {
	if err := WriteJSON(w, status, body); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *ProductMetadataHandler) respondError(w http.ResponseWriter, status int, message string) {
	if err := ErrorResponse(w, status, message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}
