package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/readify/bookstore/internal/domain"
	"github.com/readify/bookstore/internal/messaging"
)

var meter = otel.Meter("github.com/readify/bookstore/internal/orders")

type Handler struct {
	repo     *OrderRepository
	producer *messaging.Producer
	logger   *slog.Logger

	placedCounter metric.Int64Counter
}

func NewHandler(repo *OrderRepository, producer *messaging.Producer, logger *slog.Logger) *Handler {
	placedCounter, _ := meter.Int64Counter("orders.placed",
		metric.WithDescription("Number of orders placed successfully"),
	)

	return &Handler{
		repo:          repo,
		producer:      producer,
		logger:        logger,
		placedCounter: placedCounter,
	}
}

type orderItemRequest struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}

type placeOrderRequest struct {
	User            string             `json:"user"`
	OrderItems      []orderItemRequest `json:"orderItems"`
	ShippingAddress string             `json:"shippingAddress"`
	BillingAddress  string             `json:"billingAddress"`
}

func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.OrderItems) == 0 {
		h.writeError(w, http.StatusBadRequest, "Order must contain at least one item.")
		return
	}
	if req.User == "" {
		h.writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	for _, item := range req.OrderItems {
		if item.Quantity <= 0 {
			h.writeError(w, http.StatusBadRequest, "item quantity must be positive")
			return
		}
	}

	lines := make([]PlacementLine, len(req.OrderItems))
	for i, item := range req.OrderItems {
		lines[i] = PlacementLine{BookID: item.BookID, Quantity: item.Quantity}
	}

	order, err := h.repo.PlaceOrder(r.Context(), req.User, lines, req.ShippingAddress, req.BillingAddress)
	if err != nil {
		var notFound *BookNotFoundError
		var noStock *InsufficientStockError
		switch {
		case errors.As(err, &notFound):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &noStock):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to place order", "error", err, "user_id", req.User)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			Items:       order.Items,
			TotalAmount: order.TotalAmount,
			Timestamp:   time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), order.ID, event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.placedCounter.Add(r.Context(), 1)
	h.logger.Info("order placed", "order_id", order.ID, "user_id", order.UserID, "total_amount", order.TotalAmount)
	h.writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Order Placed Successfully",
		"order":   order,
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	orders, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list orders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	order, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if order == nil {
		h.writeError(w, http.StatusNotFound, "Cannot find any order with ID "+id)
		return
	}

	h.writeJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	orders, err := h.repo.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders by user", "error", err, "user_id", userID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if len(orders) == 0 {
		h.writeError(w, http.StatusNotFound, "No orders found for this user")
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Status.Valid() {
		h.writeError(w, http.StatusBadRequest, "unknown order status: "+string(req.Status))
		return
	}

	order, err := h.repo.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			h.writeError(w, http.StatusNotFound, "Cannot find any order with ID "+id)
		case errors.Is(err, ErrInvalidTransition):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update order status", "error", err, "id", id)
			h.writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.Info("order status updated", "order_id", order.ID, "status", order.Status)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Order Updated Successfully",
		"order":   order,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			h.writeError(w, http.StatusNotFound, "Cannot find any order with ID "+id)
			return
		}
		h.logger.Error("failed to delete order", "error", err, "id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order deleted", "order_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "Order Deleted Successfully"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}
