package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	d "github.com/fjod/go_cart/store-order/internal/domain"
	"github.com/fjod/go_cart/store-order/internal/observability"
	"github.com/fjod/go_cart/store-order/internal/repository"
	"github.com/fjod/go_cart/store-order/internal/service"
)

const maxRequestBodySize = 1 << 20

type OrderService interface {
	CreateOrder(ctx context.Context, in service.CreateOrderInput) (*service.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*service.Order, error)
	RecordPayment(ctx context.Context, orderID string, in service.PaymentInput) (*service.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*service.Order, error)
}

type OrdersHandler struct {
	svc     OrderService
	timeout time.Duration
	logger  *zap.Logger
}

func NewOrdersHandler(svc OrderService, timeout time.Duration, logger *zap.Logger) *OrdersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrdersHandler{svc: svc, timeout: timeout, logger: logger}
}

type ItemRequest struct {
	SKU      string          `json:"sku"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type CreateOrderRequest struct {
	Description string        `json:"description"`
	Items       []ItemRequest `json:"items"`
	Customer    *d.Customer   `json:"customer,omitempty"`
}

type PaymentRequest struct {
	ReferenceID string          `json:"reference_id"`
	Processor   string          `json:"processor"`
	Amount      decimal.Decimal `json:"amount"`
	Action      string          `json:"action"`
	Successful  bool            `json:"successful"`
	Metadata    string          `json:"metadata,omitempty"`
}

type ItemDTO struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	Total    string `json:"total"`
}

type PaymentDTO struct {
	Created     time.Time `json:"created"`
	ReferenceID string    `json:"reference_id"`
	Processor   string    `json:"processor"`
	Amount      string    `json:"amount"`
	Action      string    `json:"action"`
	Successful  bool      `json:"successful"`
	Metadata    string    `json:"metadata,omitempty"`
}

type OrderResponseDTO struct {
	OrderID     string      `json:"order_id"`
	Created     time.Time   `json:"created"`
	Amount      string      `json:"amount"`
	Currency    string      `json:"currency"`
	Description string      `json:"description,omitempty"`
	IPAddress   string      `json:"ip_address"`
	Paid        bool        `json:"paid"`
	Closed      bool        `json:"closed"`
	Items       []ItemDTO   `json:"items"`
	Customer    *d.Customer `json:"customer,omitempty"`
	Payment     *PaymentDTO `json:"payment,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_argument", "at least one item is required")
		return
	}

	in := service.CreateOrderInput{
		IPAddress:   clientIP(r),
		Description: req.Description,
		Items:       make([]service.ItemInput, 0, len(req.Items)),
		Customer:    req.Customer,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, service.ItemInput{
			SKU:      item.SKU,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	order, err := h.svc.CreateOrder(ctx, in)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/orders/"+order.ID())
	respondJSON(w, http.StatusCreated, convertOrder(order))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.svc.FetchOrder(ctx, orderID)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// POST /api/v1/orders/{order_id}/payments
func (h *OrdersHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	var req PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.svc.RecordPayment(ctx, orderID, service.PaymentInput{
		ReferenceID: req.ReferenceID,
		Processor:   req.Processor,
		Amount:      req.Amount,
		Action:      req.Action,
		Successful:  req.Successful,
		Metadata:    req.Metadata,
	})
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.svc.CancelOrder(ctx, orderID)
	if err != nil {
		h.handleServiceError(ctx, w, err)
		return
	}

	respondJSON(w, http.StatusOK, convertOrder(order))
}

func convertOrder(o *service.Order) OrderResponseDTO {
	header := o.Header()
	items := o.Items()

	dto := OrderResponseDTO{
		OrderID:     header.OrderID,
		Created:     header.Created,
		Amount:      header.Amount.StringFixed(d.MoneyPlaces),
		Currency:    header.Currency,
		Description: header.Description,
		IPAddress:   header.IPAddress,
		Paid:        o.IsPaid(),
		Closed:      o.IsClosed(),
		Items:       make([]ItemDTO, 0, len(items)),
		Customer:    o.Customer(),
	}
	for _, item := range items {
		dto.Items = append(dto.Items, ItemDTO{
			SKU:      item.SKU,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(d.MoneyPlaces),
			Total:    item.Total().StringFixed(d.MoneyPlaces),
		})
	}
	if p := o.Payment(); p != nil {
		dto.Payment = &PaymentDTO{
			Created:     p.Created,
			ReferenceID: p.ReferenceID,
			Processor:   p.Processor,
			Amount:      p.Amount.StringFixed(d.MoneyPlaces),
			Action:      p.Action,
			Successful:  p.Successful,
			Metadata:    p.Metadata,
		}
	}
	return dto
}

func (h *OrdersHandler) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, d.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, d.ErrPreconditionViolation):
		respondError(w, http.StatusBadRequest, "invalid_argument", err.Error())
	case errors.Is(err, d.ErrOrderPaid):
		respondError(w, http.StatusConflict, "order_paid", err.Error())
	case errors.Is(err, d.ErrOrderClosed),
		errors.Is(err, d.ErrItemsImmutable),
		errors.Is(err, d.ErrHeaderImmutable):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, repository.ErrDuplicateOrder):
		respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		observability.WithTrace(ctx, h.logger).Error("order request failed",
			zap.String("request_id", getRequestID(ctx)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body: "+err.Error())
		return false
	}
	return true
}

// clientIP returns the request origin without the port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
