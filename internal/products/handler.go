package products

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/product-service/internal/domain"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Router is satisfied by *http.ServeMux and telemetry.RouteMux.
type Router interface {
	HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request))
}

// Routes registers the product endpoints on mux.
func (h *Handler) Routes(mux Router) {
	mux.HandleFunc("GET /products", h.HandleList)
	mux.HandleFunc("POST /products", h.HandleCreate)
	mux.HandleFunc("GET /products/{id}", h.HandleGet)
	mux.HandleFunc("PUT /products/{id}", h.HandleUpdate)
	mux.HandleFunc("DELETE /products/{id}", h.HandleDelete)
	mux.HandleFunc("POST /products/{id}/stock/remove", h.HandleRemoveStock)
	mux.HandleFunc("POST /products/{id}/stock/add", h.HandleAddStock)
	mux.HandleFunc("POST /products/{id}/discontinue", h.HandleDiscontinue)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		items []domain.Product
		err   error
	)

	if raw := r.URL.Query().Get("supplier_id"); raw != "" {
		supplierID, parseErr := uuid.Parse(raw)
		if parseErr != nil {
			h.writeError(w, http.StatusBadRequest, "invalid supplier id")
			return
		}
		items, err = h.service.ListBySupplier(r.Context(), supplierID)
	} else {
		items, err = h.service.ListProducts(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("products listed", "count", len(items))
	h.writeJSON(w, http.StatusOK, items)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.CreateProduct(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "failed to create product")
		return
	}

	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to get product")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req domain.ProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, err, "failed to update product")
		return
	}

	h.logger.Info("product updated", "product_id", id.String())
	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type stockRequest struct {
	Quantity int `json:"quantity"`
}

type stockResponse struct {
	Updated bool `json:"updated"`
}

func (h *Handler) HandleRemoveStock(w http.ResponseWriter, r *http.Request) {
	h.handleStock(w, r, "remove", h.service.RemoveStock)
}

func (h *Handler) HandleAddStock(w http.ResponseWriter, r *http.Request) {
	h.handleStock(w, r, "add", h.service.AddStock)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request, op string, apply func(ctx context.Context, id uuid.UUID, quantity int) (bool, error)) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := apply(r.Context(), id, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err, "failed to "+op+" stock")
		return
	}

	h.logger.Info("stock "+op+" processed", "product_id", id.String(), "quantity", req.Quantity, "updated", updated)
	h.writeJSON(w, http.StatusOK, stockResponse{Updated: updated})
}

func (h *Handler) HandleDiscontinue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.Discontinue(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "failed to discontinue product")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, ErrInvalidProduct), errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidSupplier):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrAlreadyDiscontinued), errors.Is(err, ErrHasPendingOrders), errors.Is(err, ErrDuplicateSKU):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(logMsg, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
