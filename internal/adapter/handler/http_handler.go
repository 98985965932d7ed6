package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mfsilva/order-ledger/internal/core/domain"
	"github.com/mfsilva/order-ledger/internal/core/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) Register(r chi.Router) {
	r.Get("/order", h.listOrders)
	r.Post("/order", h.createOrder)
	r.Get("/order/{id}", h.getOrder)
	r.Put("/order/quantity/{id}", h.updateQuantity)
	r.Put("/order/status/{id}", h.updateStatus)
	r.Delete("/order/{id}", h.deleteOrder)
}

type orderDTO struct {
	ID                int64     `json:"id"`
	ProductID         int64     `json:"productId"`
	Quantity          int       `json:"quantity"`
	UnitPriceSnapshot float64   `json:"unitPriceSnapshot"`
	TotalValue        float64   `json:"totalValue"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type productDTO struct {
	ID    int64   `json:"id"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

func toOrderDTO(o *domain.Order) orderDTO {
	return orderDTO{
		ID:                o.ID,
		ProductID:         o.ProductID,
		Quantity:          o.Quantity,
		UnitPriceSnapshot: o.UnitPrice,
		TotalValue:        o.Total,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

type createOrderRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type createOrderResponse struct {
	ID      int64       `json:"id"`
	Order   orderDTO    `json:"order"`
	Product *productDTO `json:"product,omitempty"`
}

type affectedResponse struct {
	Message      string `json:"message"`
	AffectedRows int64  `json:"affectedRows"`
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, product, err := h.orderService.Create(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		// An unacknowledged adjustment leaves a pending row behind; tell the
		// caller which order the reconciler now owns.
		if order != nil && errors.Is(err, domain.ErrUpstreamUnavailable) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":  err.Error(),
				"id":     order.ID,
				"status": string(order.Status),
			})
			return
		}
		writeError(w, err)
		return
	}

	resp := createOrderResponse{ID: order.ID, Order: toOrderDTO(order)}
	if product != nil {
		resp.Product = &productDTO{ID: product.ID, Price: product.Price, Stock: product.Stock}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orderService.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderService.ListAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]orderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *OrderHandler) updateQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	affected, err := h.orderService.UpdateQuantity(r.Context(), id, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, affectedResponse{Message: "order quantity updated", AffectedRows: affected})
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	affected, err := h.orderService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, affectedResponse{Message: "order status updated", AffectedRows: affected})
}

func (h *OrderHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	affected, err := h.orderService.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, affectedResponse{Message: "order removed", AffectedRows: affected})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInsufficientStock):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
