// Package handler exposes customer resolution, sync, and verification
// decision endpoints. It delegates to the resolver and projector without
// embedding business logic.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"onboard/internal/customer/models"
	"onboard/internal/customer/resolver"
	"onboard/internal/kyc/projector"
	"onboard/internal/kyc/status"
	"onboard/internal/transport/http/shared"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// Resolver reconciles identity across the external systems.
type Resolver interface {
	Resolve(ctx context.Context, input resolver.Input, systems []id.SystemType) (*models.Customer, error)
}

// Projector drives connection statuses and periodic sync.
type Projector interface {
	SyncAll(ctx context.Context, customerID uuid.UUID) (projector.SyncReport, error)
	Accept(ctx context.Context, customerID uuid.UUID) (status.Status, error)
	Reject(ctx context.Context, customerID uuid.UUID, reason string) error
}

// Finder reads customers.
type Finder interface {
	FindByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

// Handler handles customer endpoints.
type Handler struct {
	resolver  Resolver
	projector Projector
	customers Finder
	logger    *slog.Logger
}

func New(r Resolver, p Projector, customers Finder, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:  r,
		projector: p,
		customers: customers,
		logger:    logger,
	}
}

// Register registers the customer routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/customers/resolve", h.handleResolve)
	r.Get("/customers/{customerID}", h.handleGet)
	r.Post("/customers/{customerID}/sync", h.handleSync)
	r.Post("/customers/{customerID}/kyc/accept", h.handleAccept)
	r.Post("/customers/{customerID}/kyc/reject", h.handleReject)
}

type resolveRequest struct {
	TaxID          string `json:"tax_id"`
	FullName       string `json:"full_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DateOfBirth    string `json:"date_of_birth"`
	TermsAccepted  bool   `json:"terms_accepted"`
	DataSharing    bool   `json:"data_sharing"`
	ElectronicDocs bool   `json:"electronic_docs"`
	AccountID      string `json:"account_id"`
}

type connectionResponse struct {
	System          string `json:"system"`
	KYCStatus       string `json:"kyc_status"`
	KYCID           string `json:"kyc_id,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

type customerResponse struct {
	ID          string               `json:"id"`
	FullName    string               `json:"full_name"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	DateOfBirth string               `json:"date_of_birth"`
	Connections []connectionResponse `json:"connections"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	taxID, err := id.ParseTaxID(req.TaxID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeValidation, "tax id", err))
		return
	}

	customer, err := h.resolver.Resolve(ctx, resolver.Input{
		TaxID:       taxID,
		FullName:    req.FullName,
		Email:       req.Email,
		Phone:       req.Phone,
		DateOfBirth: req.DateOfBirth,
		Consent: models.ConsentFlags{
			TermsAccepted:  req.TermsAccepted,
			DataSharing:    req.DataSharing,
			ElectronicDocs: req.ElectronicDocs,
		},
		OperatorID: requestcontext.OperatorID(ctx),
		AccountID:  req.AccountID,
	}, id.AllSystems())
	if err != nil {
		h.logger.WarnContext(ctx, "resolve failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCustomerResponse(customer))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid customer id"))
		return
	}
	customer, err := h.customers.FindByID(r.Context(), customerID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeNotFound, "customer", err))
		return
	}
	shared.WriteJSON(w, http.StatusOK, toCustomerResponse(customer))
}

type syncResponse struct {
	Success bool              `json:"success"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid customer id"))
		return
	}

	report, err := h.projector.SyncAll(ctx, customerID)
	if err != nil && !dErrors.Is(err, dErrors.CodePartialSync) {
		shared.WriteError(w, err)
		return
	}

	resp := syncResponse{Success: report.Success}
	if len(report.Errors) > 0 {
		resp.Errors = make(map[string]string, len(report.Errors))
		for system, syncErr := range report.Errors {
			resp.Errors[system.String()] = string(dErrors.CodeOf(syncErr))
		}
	}
	httpStatus := http.StatusOK
	if !report.Success {
		httpStatus = http.StatusMultiStatus
	}
	shared.WriteJSON(w, httpStatus, resp)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid customer id"))
		return
	}
	next, err := h.projector.Accept(r.Context(), customerID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"kyc_status": next.String()})
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	customerID, err := uuid.Parse(chi.URLParam(r, "customerID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid customer id"))
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.projector.Reject(r.Context(), customerID, req.Reason); err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{"kyc_status": status.BasicDetailsEntered.String()})
}

// toCustomerResponse omits tokens and the raw tax identifier; neither belongs
// on the wire.
func toCustomerResponse(c *models.Customer) customerResponse {
	resp := customerResponse{
		ID:          c.ID.String(),
		FullName:    c.FullName,
		Email:       c.Email,
		Phone:       c.Phone,
		DateOfBirth: c.DateOfBirth,
	}
	for _, system := range id.AllSystems() {
		conn := c.Connection(system)
		if conn == nil {
			continue
		}
		resp.Connections = append(resp.Connections, connectionResponse{
			System:          conn.System.String(),
			KYCStatus:       conn.KYCStatus.String(),
			KYCID:           conn.KYCID,
			RejectionReason: conn.RejectionReason,
			UpdatedAt:       conn.UpdatedAt.Format(time.RFC3339),
		})
	}
	return resp
}
