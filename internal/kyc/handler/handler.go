// Package handler exposes the step-by-step onboarding endpoints. Each step
// posts a partial payload keyed by tax identifier; the profile service merges
// it and talks to the verification vendors.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/gateway/bankverify"
	"onboard/internal/kyc/profile"
	"onboard/internal/transport/http/shared"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// Service is the profile accumulator.
type Service interface {
	SubmitBasicDetails(ctx context.Context, input profile.BasicDetailsInput) (*profile.CustomerProfile, error)
	VerifyIdentity(ctx context.Context, input profile.IdentityInput) (*profile.CustomerProfile, error)
	VerifyBankAccount(ctx context.Context, input profile.BankAccountInput) (*profile.CustomerProfile, error)
	VerifyChequeImage(ctx context.Context, input profile.ChequeInput) (*profile.CustomerProfile, error)
	SubmitSelfie(ctx context.Context, input profile.CaptureInput) (*profile.CustomerProfile, error)
	SubmitSignature(ctx context.Context, input profile.CaptureInput) (*profile.CustomerProfile, error)
	FetchFromVault(ctx context.Context, input profile.VaultFetchInput) (*profile.CustomerProfile, error)
	FinalSubmit(ctx context.Context, input profile.FinalSubmitInput) (*profile.CustomerProfile, error)
}

// Handler handles onboarding endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register registers the onboarding routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/onboarding/basic-details", h.handleBasicDetails)
	r.Post("/onboarding/verify-identity", h.handleVerifyIdentity)
	r.Post("/onboarding/verify-bank", h.handleVerifyBank)
	r.Post("/onboarding/verify-cheque", h.handleVerifyCheque)
	r.Post("/onboarding/selfie", h.handleSelfie)
	r.Post("/onboarding/signature", h.handleSignature)
	r.Post("/onboarding/vault-fetch", h.handleVaultFetch)
	r.Post("/onboarding/submit", h.handleSubmit)
}

type stepRequest struct {
	TaxID        string `json:"tax_id"`
	SessionToken string `json:"session_token"`

	FullName    string `json:"full_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`

	AddressLine1 string `json:"address_line1,omitempty"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PinCode      string `json:"pin_code,omitempty"`

	Nominees []nomineePayload `json:"nominees,omitempty"`

	AccountNumber string `json:"account_number,omitempty"`
	IFSC          string `json:"ifsc,omitempty"`
	HolderName    string `json:"holder_name,omitempty"`

	ImageURL string `json:"image_url,omitempty"`
}

type nomineePayload struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	SharePercent int    `json:"share_percent"`
}

type profileResponse struct {
	SessionToken     string  `json:"session_token,omitempty"`
	FullName         string  `json:"full_name,omitempty"`
	BankVerified     bool    `json:"bank_verified"`
	ReviewRequired   bool    `json:"review_required"`
	WatchlistHits    int     `json:"watchlist_hits"`
	SelfieURL        string  `json:"selfie_url,omitempty"`
	SignatureURL     string  `json:"signature_url,omitempty"`
	ChequeURL        string  `json:"cheque_url,omitempty"`
	AllDetailsFilled bool    `json:"all_details_filled"`
	SubmittedBy      string  `json:"submitted_by,omitempty"`
	SubmittedAt      *string `json:"submitted_at,omitempty"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (stepRequest, id.TaxID, bool) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return req, "", false
	}
	taxID, err := id.ParseTaxID(req.TaxID)
	if err != nil {
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeValidation, "tax id", err))
		return req, "", false
	}
	return req, taxID, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, p *profile.CustomerProfile, err error) {
	if err != nil {
		ctx := r.Context()
		h.logger.WarnContext(ctx, "onboarding step failed",
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	resp := profileResponse{
		SessionToken:     p.SessionToken,
		FullName:         p.FullName,
		BankVerified:     p.BankAccount.Verified,
		ReviewRequired:   p.ReviewRequired,
		WatchlistHits:    len(p.WatchlistHits),
		SelfieURL:        p.SelfieURL,
		SignatureURL:     p.SignatureURL,
		ChequeURL:        p.ChequeURL,
		AllDetailsFilled: p.AllDetailsFilled,
		SubmittedBy:      p.SubmittedBy,
	}
	if p.SubmittedAt != nil {
		submittedAt := p.SubmittedAt.Format(time.RFC3339)
		resp.SubmittedAt = &submittedAt
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBasicDetails(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	input := profile.BasicDetailsInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		DateOfBirth:  req.DateOfBirth,
		Address: profile.Address{
			Line1:   req.AddressLine1,
			Line2:   req.AddressLine2,
			City:    req.City,
			State:   req.State,
			PinCode: req.PinCode,
		},
	}
	for _, n := range req.Nominees {
		input.Nominees = append(input.Nominees, profile.Nominee{
			Name:         n.Name,
			Relationship: n.Relationship,
			SharePercent: n.SharePercent,
		})
	}
	p, err := h.service.SubmitBasicDetails(r.Context(), input)
	h.respond(w, r, p, err)
}

func (h *Handler) handleVerifyIdentity(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.VerifyIdentity(r.Context(), profile.IdentityInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		FullName:     req.FullName,
		DateOfBirth:  req.DateOfBirth,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) bankAccount(req stepRequest) (bankverify.Account, error) {
	ifsc, err := id.ParseIFSC(req.IFSC)
	if err != nil {
		return bankverify.Account{}, dErrors.Wrap(dErrors.CodeValidation, "ifsc", err)
	}
	return bankverify.Account{
		Number:     req.AccountNumber,
		IFSC:       ifsc,
		HolderName: req.HolderName,
	}, nil
}

func (h *Handler) handleVerifyBank(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	account, err := h.bankAccount(req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.service.VerifyBankAccount(r.Context(), profile.BankAccountInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		Account:      account,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) handleVerifyCheque(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	account, err := h.bankAccount(req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	p, err := h.service.VerifyChequeImage(r.Context(), profile.ChequeInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		ImageURL:     req.ImageURL,
		Account:      account,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) handleSelfie(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.SubmitSelfie(r.Context(), profile.CaptureInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		LiveURL:      req.ImageURL,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) handleSignature(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.SubmitSignature(r.Context(), profile.CaptureInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		LiveURL:      req.ImageURL,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) handleVaultFetch(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.FetchFromVault(r.Context(), profile.VaultFetchInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
		FullName:     req.FullName,
	})
	h.respond(w, r, p, err)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, taxID, ok := h.decode(w, r)
	if !ok {
		return
	}
	p, err := h.service.FinalSubmit(r.Context(), profile.FinalSubmitInput{
		TaxID:        taxID,
		SessionToken: req.SessionToken,
	})
	h.respond(w, r, p, err)
}
