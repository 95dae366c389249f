package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/kyc/profile"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

// serviceStub returns the same profile and error for every step; individual
// tests inspect the captured inputs.
type serviceStub struct {
	profile *profile.CustomerProfile
	err     error

	gotBasic  profile.BasicDetailsInput
	gotBank   profile.BankAccountInput
	gotSubmit profile.FinalSubmitInput
}

func (s *serviceStub) SubmitBasicDetails(_ context.Context, input profile.BasicDetailsInput) (*profile.CustomerProfile, error) {
	s.gotBasic = input
	return s.profile, s.err
}

func (s *serviceStub) VerifyIdentity(context.Context, profile.IdentityInput) (*profile.CustomerProfile, error) {
	return s.profile, s.err
}

func (s *serviceStub) VerifyBankAccount(_ context.Context, input profile.BankAccountInput) (*profile.CustomerProfile, error) {
	s.gotBank = input
	return s.profile, s.err
}

func (s *serviceStub) VerifyChequeImage(context.Context, profile.ChequeInput) (*profile.CustomerProfile, error) {
	return s.profile, s.err
}

func (s *serviceStub) SubmitSelfie(context.Context, profile.CaptureInput) (*profile.CustomerProfile, error) {
	return s.profile, s.err
}

func (s *serviceStub) SubmitSignature(context.Context, profile.CaptureInput) (*profile.CustomerProfile, error) {
	return s.profile, s.err
}

func (s *serviceStub) FetchFromVault(context.Context, profile.VaultFetchInput) (*profile.CustomerProfile, error) {
	return s.profile, s.err
}

func (s *serviceStub) FinalSubmit(_ context.Context, input profile.FinalSubmitInput) (*profile.CustomerProfile, error) {
	s.gotSubmit = input
	return s.profile, s.err
}

func newOnboardingRouter(svc *serviceStub) *chi.Mux {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func postJSON(t *testing.T, router *chi.Mux, path, body string) (int, map[string]any) {
	t.Helper()
	httpReq := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	httpReq.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	router.ServeHTTP(rr, httpReq)

	var res map[string]any
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	}
	return rr.Code, res
}

func openProfile(t *testing.T) *profile.CustomerProfile {
	t.Helper()
	taxID, err := id.ParseTaxID("ABCPX1234D")
	require.NoError(t, err)
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	return &profile.CustomerProfile{
		TaxID:        taxID,
		SessionToken: "sess-1",
		FullName:     "Asha Venkatesan",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestHandleBasicDetails(t *testing.T) {
	t.Run("forwards demographics and nominees to the service", func(t *testing.T) {
		svc := &serviceStub{profile: openProfile(t)}
		router := newOnboardingRouter(svc)

		body := `{"tax_id":"ABCPX1234D","session_token":"sess-1","full_name":"Asha Venkatesan",` +
			`"city":"Chennai","pin_code":"600001",` +
			`"nominees":[{"name":"Ravi Venkatesan","relationship":"spouse","share_percent":100}]}`
		code, got := postJSON(t, router, "/onboarding/basic-details", body)

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "sess-1", got["session_token"])
		assert.Equal(t, "Asha Venkatesan", got["full_name"])
		assert.NotContains(t, got, "tax_id")

		assert.Equal(t, "Chennai", svc.gotBasic.Address.City)
		require.Len(t, svc.gotBasic.Nominees, 1)
		assert.Equal(t, 100, svc.gotBasic.Nominees[0].SharePercent)
	})

	t.Run("malformed tax id fails before the service is called", func(t *testing.T) {
		svc := &serviceStub{}
		router := newOnboardingRouter(svc)

		code, got := postJSON(t, router, "/onboarding/basic-details", `{"tax_id":"not-a-pan"}`)

		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, string(dErrors.CodeValidation), got["error"])
		assert.Empty(t, svc.gotBasic.TaxID)
	})

	t.Run("invalid json is a bad request", func(t *testing.T) {
		router := newOnboardingRouter(&serviceStub{})

		code, got := postJSON(t, router, "/onboarding/basic-details", `{"tax_id":`)

		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, string(dErrors.CodeBadRequest), got["error"])
	})
}

func TestHandleVerifyBank(t *testing.T) {
	t.Run("parses the account and forwards it", func(t *testing.T) {
		p := openProfile(t)
		p.BankAccount.Verified = true
		svc := &serviceStub{profile: p}
		router := newOnboardingRouter(svc)

		body := `{"tax_id":"ABCPX1234D","account_number":"0012345678","ifsc":"HDFC0000123","holder_name":"Asha Venkatesan"}`
		code, got := postJSON(t, router, "/onboarding/verify-bank", body)

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, got["bank_verified"])
		assert.Equal(t, "0012345678", svc.gotBank.Account.Number)
		assert.Equal(t, "HDFC0000123", svc.gotBank.Account.IFSC.String())
	})

	t.Run("invalid ifsc fails before the service is called", func(t *testing.T) {
		svc := &serviceStub{}
		router := newOnboardingRouter(svc)

		body := `{"tax_id":"ABCPX1234D","account_number":"0012345678","ifsc":"bad","holder_name":"Asha Venkatesan"}`
		code, got := postJSON(t, router, "/onboarding/verify-bank", body)

		require.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, string(dErrors.CodeValidation), got["error"])
		assert.Empty(t, svc.gotBank.Account.Number)
	})
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   dErrors.Code
	}{
		{
			name:       "sealed profile conflicts",
			err:        dErrors.New(dErrors.CodeDuplicateIdentity, "profile already submitted"),
			wantStatus: http.StatusConflict,
			wantCode:   dErrors.CodeDuplicateIdentity,
		},
		{
			name:       "vendor failure is a bad gateway",
			err:        dErrors.New(dErrors.CodeGateway, "identity vendor unavailable"),
			wantStatus: http.StatusBadGateway,
			wantCode:   dErrors.CodeGateway,
		},
		{
			name:       "name mismatch is a validation error",
			err:        dErrors.New(dErrors.CodeValidation, "name does not match identity record"),
			wantStatus: http.StatusBadRequest,
			wantCode:   dErrors.CodeValidation,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newOnboardingRouter(&serviceStub{err: tc.err})

			code, got := postJSON(t, router, "/onboarding/verify-identity", `{"tax_id":"ABCPX1234D"}`)

			require.Equal(t, tc.wantStatus, code)
			assert.Equal(t, string(tc.wantCode), got["error"])
		})
	}
}

func TestHandleSubmit(t *testing.T) {
	t.Run("returns the sealed profile with the submission time", func(t *testing.T) {
		p := openProfile(t)
		p.AllDetailsFilled = true
		p.SubmittedBy = "op-77"
		submittedAt := p.UpdatedAt
		p.SubmittedAt = &submittedAt
		svc := &serviceStub{profile: p}
		router := newOnboardingRouter(svc)

		code, got := postJSON(t, router, "/onboarding/submit", `{"tax_id":"ABCPX1234D","session_token":"sess-1"}`)

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, got["all_details_filled"])
		assert.Equal(t, "op-77", got["submitted_by"])
		assert.Equal(t, submittedAt.Format(time.RFC3339), got["submitted_at"])
		assert.Equal(t, id.TaxID("ABCPX1234D"), svc.gotSubmit.TaxID)
	})
}
