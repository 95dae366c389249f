// Package handler exposes payment order endpoints: creation when a payment
// link goes out, the vendor status webhook, and reads.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"onboard/internal/order"
	"onboard/internal/transport/http/shared"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/order-mocks.go -package=mocks Service

// Service is the order lifecycle service.
type Service interface {
	Create(ctx context.Context, input order.CreateInput) (*order.Order, error)
	HandleExternalStatus(ctx context.Context, externalID, externalStatus string) (*order.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*order.Order, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*order.Order, error)
}

// Handler handles order endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the operator-facing order routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.handleCreate)
	r.Get("/orders/{orderID}", h.handleGet)
	r.Get("/customers/{customerID}/orders", h.handleList)
}

// RegisterWebhook registers the vendor-facing status webhook. It stays off
// the operator-auth chain; the vendor authenticates out of band.
func (h *Handler) RegisterWebhook(r chi.Router) {
	r.Post("/orders/{externalID}/status", h.handleStatusWebhook)
}

type createRequest struct {
	CustomerID  string `json:"customer_id"`
	ExternalID  string `json:"external_id"`
	AmountPaise int64  `json:"amount_paise"`
	Currency    string `json:"currency"`
	PaymentLink string `json:"payment_link"`
}

type orderResponse struct {
	ID          string `json:"id"`
	CustomerID  string `json:"customer_id"`
	ExternalID  string `json:"external_id,omitempty"`
	AmountPaise int64  `json:"amount_paise"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	PaymentLink string `json:"payment_link,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

func toResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:          o.ID.String(),
		CustomerID:  o.CustomerID.String(),
		ExternalID:  o.ExternalID,
		AmountPaise: o.AmountPaise,
		Currency:    o.Currency,
		Status:      o.Status.String(),
		PaymentLink: o.PaymentLink,
		UpdatedAt:   o.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid customer id"))
		return
	}
	o, err := h.service.Create(r.Context(), order.CreateInput{
		CustomerID:  customerID,
		ExternalID:  req.ExternalID,
		AmountPaise: req.AmountPaise,
		Currency:    req.Currency,
		PaymentLink: req.PaymentLink,
	})
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(o))
}

type webhookRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleStatusWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	externalID := chi.URLParam(r, "externalID")

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	o, err := h.service.HandleExternalStatus(ctx, externalID, req.Status)
	if err != nil {
		h.logger.WarnContext(ctx, "order webhook rejected",
			"external_id", externalID,
			"vendor_status", req.Status,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid order id"))
		return
	}
	o, err := h.service.Get(r.Context(), orderID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid customer id"))
		return
	}
	orders, err := h.service.ListByCustomer(r.Context(), customerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toResponse(o))
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}
