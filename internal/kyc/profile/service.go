package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"onboard/internal/customer/models"
	custstore "onboard/internal/customer/store"
	"onboard/internal/events"
	"onboard/internal/gateway/bankverify"
	"onboard/internal/gateway/biometric"
	vaultgw "onboard/internal/gateway/vault"
	"onboard/internal/gateway/watchlist"
	"onboard/internal/kyc/metrics"
	"onboard/internal/kyc/status"
	"onboard/internal/kyc/vault"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// StatusApplier advances one connection's verification status. Satisfied by
// the customer registry; the accumulator never mutates statuses directly.
type StatusApplier interface {
	ApplyStatus(ctx context.Context, customerID uuid.UUID, system id.SystemType, ev status.Event) (status.Status, error)
}

// Service accumulates a customer profile across onboarding steps. Every step
// merges a targeted patch onto the single profile row for the tax identifier;
// a sealed profile rejects all further submissions.
type Service struct {
	profiles  Store
	customers custstore.Store
	statuses  StatusApplier

	watchlist  watchlist.Gateway
	bankverify bankverify.Gateway
	biometric  biometric.Gateway
	vaultDocs  vaultgw.Gateway
	vaultToken *vault.TokenSource

	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type ServiceConfig struct {
	Profiles  Store
	Customers custstore.Store
	Statuses  StatusApplier

	Watchlist  watchlist.Gateway
	BankVerify bankverify.Gateway
	Biometric  biometric.Gateway
	VaultDocs  vaultgw.Gateway
	VaultToken *vault.TokenSource

	Publisher events.Publisher
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(nil)
	}
	return &Service{
		profiles:   cfg.Profiles,
		customers:  cfg.Customers,
		statuses:   cfg.Statuses,
		watchlist:  cfg.Watchlist,
		bankverify: cfg.BankVerify,
		biometric:  cfg.Biometric,
		vaultDocs:  cfg.VaultDocs,
		vaultToken: cfg.VaultToken,
		publisher:  cfg.Publisher,
		logger:     logger,
		metrics:    m,
	}
}

// BasicDetailsInput is the first onboarding step payload.
type BasicDetailsInput struct {
	TaxID        id.TaxID
	SessionToken string
	FullName     string
	Email        string
	Phone        string
	DateOfBirth  string
	Address      Address
	Nominees     []Nominee
}

// SubmitBasicDetails records demographics and nominees, links the profile to
// an already-resolved customer when one exists for the tax identifier, and
// advances that customer's connections past the entry state.
func (s *Service) SubmitBasicDetails(ctx context.Context, input BasicDetailsInput) (*CustomerProfile, error) {
	if input.FullName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "full name is required")
	}
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	patch := Patch{
		SessionToken: ptr(input.SessionToken),
		FullName:     ptr(input.FullName),
		Email:        ptr(input.Email),
		Phone:        ptr(input.Phone),
		DateOfBirth:  ptr(input.DateOfBirth),
		Address:      &input.Address,
	}
	if input.Nominees != nil {
		patch.Nominees = &input.Nominees
	}
	customer := s.adoptCustomer(ctx, p)
	if err := s.save(ctx, p, patch); err != nil {
		return nil, err
	}
	if customer != nil {
		s.applyToConnections(ctx, customer, status.EventBasicDetails)
	}
	return p, nil
}

// IdentityInput carries the declared identity for screening.
type IdentityInput struct {
	TaxID        id.TaxID
	SessionToken string
	FullName     string
	DateOfBirth  string
}

// VerifyIdentity screens the declared identity against sanctions and
// politically-exposed-person lists. Hits mark the profile for manual review;
// they never block progression.
func (s *Service) VerifyIdentity(ctx context.Context, input IdentityInput) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	name := input.FullName
	if name == "" {
		name = p.FullName
	}
	result, err := s.watchlist.Screen(ctx, input.TaxID, name, input.DateOfBirth)
	if err != nil {
		return nil, err
	}
	patch := Patch{SessionToken: ptr(input.SessionToken)}
	if len(result.Hits) > 0 {
		hits := make([]WatchlistHit, 0, len(result.Hits))
		for _, h := range result.Hits {
			hits = append(hits, WatchlistHit{List: h.List, Name: h.Name, Score: h.Score, Source: h.Source})
		}
		patch.WatchlistHits = &hits
		patch.ReviewRequired = ptr(true)
		s.metrics.WatchlistFlags.Inc()
		s.logger.WarnContext(ctx, "watchlist hits recorded",
			"tax_id_hash", input.TaxID.Hash(),
			"hits", len(result.Hits),
		)
	}
	if err := s.save(ctx, p, patch); err != nil {
		return nil, err
	}
	return p, nil
}

// BankAccountInput is the declared settlement account.
type BankAccountInput struct {
	TaxID        id.TaxID
	SessionToken string
	Account      bankverify.Account
}

// VerifyBankAccount runs a penny-drop check on the declared account. The
// account persists as verified only when the bank-reported holder name
// matches the declared one; a mismatch rejects the step with nothing written.
func (s *Service) VerifyBankAccount(ctx context.Context, input BankAccountInput) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	result, err := s.bankverify.VerifyPennyDrop(ctx, input.Account)
	if err != nil {
		return nil, err
	}
	if !result.Verified || !nameMatches(result.AccountName, input.Account.HolderName) {
		s.metrics.StepRejections.WithLabelValues("bank_account").Inc()
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"account holder mismatch: bank reports %q", result.AccountName)
	}
	account := BankAccount{
		Number:     input.Account.Number,
		IFSC:       input.Account.IFSC,
		HolderName: input.Account.HolderName,
		Verified:   true,
	}
	if err := s.save(ctx, p, Patch{SessionToken: ptr(input.SessionToken), BankAccount: &account}); err != nil {
		return nil, err
	}
	return p, nil
}

// ChequeInput is a cancelled cheque image with the account it should prove.
type ChequeInput struct {
	TaxID        id.TaxID
	SessionToken string
	ImageURL     string
	Account      bankverify.Account
}

// VerifyChequeImage extracts account data from a cancelled cheque and
// cross-checks it against the declared account before any write. A recovered
// number or IFSC that disagrees with the declaration rejects the step.
func (s *Service) VerifyChequeImage(ctx context.Context, input ChequeInput) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	recovered, err := s.bankverify.VerifyChequeImage(ctx, input.ImageURL)
	if err != nil {
		return nil, err
	}
	if recovered.AccountNumber != input.Account.Number || recovered.IFSC != input.Account.IFSC {
		s.metrics.StepRejections.WithLabelValues("cheque").Inc()
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"cheque does not match declared account: recovered %s/%s",
			recovered.AccountNumber, recovered.IFSC)
	}
	drop, err := s.bankverify.VerifyPennyDrop(ctx, input.Account)
	if err != nil {
		return nil, err
	}
	account := BankAccount{
		Number:     input.Account.Number,
		IFSC:       input.Account.IFSC,
		HolderName: input.Account.HolderName,
		Verified:   drop.Verified && nameMatches(drop.AccountName, input.Account.HolderName),
	}
	patch := Patch{
		SessionToken: ptr(input.SessionToken),
		ChequeURL:    ptr(input.ImageURL),
		BankAccount:  &account,
	}
	if err := s.save(ctx, p, patch); err != nil {
		return nil, err
	}
	return p, nil
}

// CaptureInput is a live biometric capture referencing a stored image.
type CaptureInput struct {
	TaxID        id.TaxID
	SessionToken string
	LiveURL      string
}

// SubmitSelfie compares the live capture to the vault reference document and
// stores the vendor's accepted-capture URL on a match.
func (s *Service) SubmitSelfie(ctx context.Context, input CaptureInput) (*CustomerProfile, error) {
	return s.submitCapture(ctx, input, "selfie", s.biometric.CompareFace, func(patch *Patch, url string) {
		patch.SelfieURL = ptr(url)
	})
}

// SubmitSignature compares the signature capture to the reference document
// and stores the vendor's accepted-capture URL on a match.
func (s *Service) SubmitSignature(ctx context.Context, input CaptureInput) (*CustomerProfile, error) {
	return s.submitCapture(ctx, input, "signature", s.biometric.CompareSignature, func(patch *Patch, url string) {
		patch.SignatureURL = ptr(url)
	})
}

func (s *Service) submitCapture(
	ctx context.Context,
	input CaptureInput,
	step string,
	compare func(ctx context.Context, liveURL, referenceURL string) (biometric.CompareResult, error),
	set func(patch *Patch, url string),
) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	result, err := compare(ctx, input.LiveURL, p.VaultProofURL)
	if err != nil {
		return nil, err
	}
	if !result.Match {
		s.metrics.StepRejections.WithLabelValues(step).Inc()
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"%s does not match reference document (confidence %.2f)", step, result.Confidence)
	}
	patch := Patch{SessionToken: ptr(input.SessionToken)}
	set(&patch, result.StoredURL)
	if err := s.save(ctx, p, patch); err != nil {
		return nil, err
	}
	return p, nil
}

// VaultFetchInput requests identity proofs from the document vault.
type VaultFetchInput struct {
	TaxID        id.TaxID
	SessionToken string
	FullName     string
}

// FetchFromVault obtains a signed access grant, pulls the customer's identity
// proofs, and cross-validates each proof's tax identifier against the declared
// one. Any disagreement rejects the whole fetch; nothing from a mismatched
// document set reaches the profile.
func (s *Service) FetchFromVault(ctx context.Context, input VaultFetchInput) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	name := input.FullName
	if name == "" {
		name = p.FullName
	}
	grant, source, err := s.vaultToken.Grant(ctx, name, input.TaxID)
	if err != nil {
		return nil, err
	}
	s.metrics.VaultTokenIssued.WithLabelValues(source).Inc()
	docs, err := s.vaultDocs.FetchIdentityDocuments(ctx, grant.DocID, grant.VendorToken)
	if err != nil {
		return nil, err
	}
	patch := Patch{SessionToken: ptr(input.SessionToken)}
	for _, proof := range docs.Proofs {
		if proof.TaxID != "" && proof.TaxID != input.TaxID.String() {
			s.metrics.StepRejections.WithLabelValues("vault").Inc()
			return nil, dErrors.Newf(dErrors.CodeValidation,
				"vault document %s names a different tax identifier", proof.Kind)
		}
		if proof.Kind == "tax_card" {
			patch.VaultProofURL = ptr(proof.ImageURL)
			if p.FullName == "" && proof.Name != "" {
				patch.FullName = ptr(proof.Name)
			}
		}
	}
	if patch.VaultProofURL == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "vault returned no tax card document")
	}
	if err := s.save(ctx, p, patch); err != nil {
		return nil, err
	}
	return p, nil
}

// FinalSubmitInput seals the profile.
type FinalSubmitInput struct {
	TaxID        id.TaxID
	SessionToken string
}

// FinalSubmit seals the profile: it snapshots the acting operator, emits the
// one-time document generation event, and drives every connection of the
// linked customer into the initiated verification state. A second call for
// the same tax identifier is rejected by the sealed guard.
func (s *Service) FinalSubmit(ctx context.Context, input FinalSubmitInput) (*CustomerProfile, error) {
	p, err := s.loadOpen(ctx, input.TaxID)
	if err != nil {
		return nil, err
	}
	customer := s.adoptCustomer(ctx, p)
	now := requestcontext.Now(ctx)
	p.AllDetailsFilled = true
	p.SubmittedBy = requestcontext.OperatorID(ctx)
	p.SubmittedAt = &now
	if err := s.save(ctx, p, Patch{SessionToken: ptr(input.SessionToken)}); err != nil {
		return nil, err
	}
	s.metrics.ProfilesSealed.Inc()

	if customer != nil {
		s.applyToConnections(ctx, customer, status.EventInitiate)
		event := events.New(events.TypeDocumentGeneration, customer.ID, now)
		event.TaxIDHash = p.TaxID.Hash()
		event.Fields["operator_id"] = p.SubmittedBy
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "publish document generation event",
				"customer_id", customer.ID, "error", err)
		}
	} else {
		s.logger.WarnContext(ctx, "profile sealed without a linked customer",
			"tax_id_hash", p.TaxID.Hash())
	}
	return p, nil
}

// Profile returns the accumulated profile for a tax identifier.
func (s *Service) Profile(ctx context.Context, taxID id.TaxID) (*CustomerProfile, error) {
	p, err := s.profiles.FindByTaxID(ctx, taxID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

// loadOpen fetches the profile for the tax identifier, creating a fresh one
// when none exists. A sealed profile means the identity already completed
// onboarding, so every further submission is a duplicate.
func (s *Service) loadOpen(ctx context.Context, taxID id.TaxID) (*CustomerProfile, error) {
	if taxID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tax identifier is required")
	}
	p, err := s.profiles.FindByTaxID(ctx, taxID)
	if errors.Is(err, sentinel.ErrNotFound) {
		now := requestcontext.Now(ctx)
		return &CustomerProfile{
			ID:        uuid.New(),
			TaxID:     taxID,
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}
	if p.Sealed() {
		return nil, dErrors.New(dErrors.CodeDuplicateIdentity,
			"identity already completed onboarding")
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *CustomerProfile, patch Patch) error {
	patch.Apply(p, requestcontext.Now(ctx))
	if err := s.profiles.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}

// adoptCustomer links the profile to the resolved customer for its tax
// identifier, if one exists. Returns the customer so callers can drive its
// connections.
func (s *Service) adoptCustomer(ctx context.Context, p *CustomerProfile) *models.Customer {
	customer, err := s.customers.FindByTaxID(ctx, p.TaxID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "customer lookup failed",
				"tax_id_hash", p.TaxID.Hash(), "error", err)
		}
		return nil
	}
	if p.CustomerID == nil {
		customerID := customer.ID
		p.CustomerID = &customerID
	}
	return customer
}

// applyToConnections advances every connection of the customer. Transition
// refusals are expected when a connection already moved past the event and
// are logged, not returned.
func (s *Service) applyToConnections(ctx context.Context, customer *models.Customer, ev status.Event) {
	for system := range customer.Connections {
		if _, err := s.statuses.ApplyStatus(ctx, customer.ID, system, ev); err != nil {
			s.logger.WarnContext(ctx, "status transition skipped",
				"customer_id", customer.ID, "system", system, "event", ev, "error", err)
		}
	}
}

func nameMatches(reported, declared string) bool {
	return strings.EqualFold(strings.TrimSpace(reported), strings.TrimSpace(declared))
}
