// Package resolver reconciles a person's identity across the external
// verification systems into exactly one local customer aggregate.
//
// Resolution is fail-closed: when two distinct local customers claim the same
// pair of external identities it raises an integrity error and performs zero
// writes. Partial external success is tolerated; the failed system is picked
// up by a later call through the tax-identifier fallback.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/customer/metrics"
	"onboard/internal/customer/models"
	"onboard/internal/customer/store"
	"onboard/internal/gateway/verification"
	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// Input carries the identity fields submitted at the basic-details step.
type Input struct {
	TaxID       id.TaxID
	FullName    string
	Email       string
	Phone       string
	DateOfBirth string
	Consent     models.ConsentFlags
	// OperatorID and AccountID link the assisting advisor to the customer.
	OperatorID string
	AccountID  string
}

// Resolver owns the reconciliation routine. One generic path serves every
// system; per-system behaviour lives entirely in the gateway map.
type Resolver struct {
	customers store.Store
	gateways  map[id.SystemType]verification.Gateway
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func New(customers store.Store, gateways map[id.SystemType]verification.Gateway, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{
		customers: customers,
		gateways:  gateways,
		logger:    logger,
		metrics:   m,
		tracer:    otel.Tracer("onboard/resolver"),
	}
}

// externalIdentity is one system's create-or-fetch result.
type externalIdentity struct {
	system   id.SystemType
	identity verification.Identity
}

// Resolve establishes the customer for input across the target systems:
// create-or-fetch each external identity, locate local candidates by
// (system, foreign id), adopt or create the aggregate, attach missing
// connections, and push changed credentials back out.
func (r *Resolver) Resolve(ctx context.Context, input Input, systems []id.SystemType) (*models.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.String("tax_id_hash", input.TaxID.Hash())))
	defer span.End()

	if input.TaxID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "tax identifier is required")
	}
	if len(systems) == 0 {
		systems = id.AllSystems()
	}

	identities := r.establishExternalIdentities(ctx, input, systems)
	if len(identities) == 0 {
		return nil, dErrors.Newf(dErrors.CodeGateway, "identity creation failed on all %d systems", len(systems))
	}

	customer, err := r.pickCandidate(ctx, identities, input.TaxID)
	if err != nil {
		return nil, err
	}

	created := customer == nil
	now := requestcontext.Now(ctx)
	if created {
		customer = models.NewCustomer(input.TaxID, input.FullName, input.Email, input.Phone,
			input.DateOfBirth, input.Consent, now)
	}

	changed := r.attachConnections(customer, identities, now)

	if err := r.customers.Upsert(ctx, customer); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist customer", err)
	}
	if err := r.linkOperator(ctx, customer, input, now); err != nil {
		return nil, err
	}

	r.pushCredentials(ctx, customer, input, changed)

	outcome := "matched"
	if created {
		outcome = "created"
	} else if len(changed) > 0 {
		outcome = "adopted"
	}
	r.metrics.CustomersResolved.WithLabelValues(outcome).Inc()

	return customer, nil
}

// establishExternalIdentities calls create-or-fetch on every target system.
// A failure on one system is logged and skipped, never rolled back.
func (r *Resolver) establishExternalIdentities(ctx context.Context, input Input, systems []id.SystemType) []externalIdentity {
	fields := verification.IdentityFields{
		TaxID:       input.TaxID,
		FullName:    input.FullName,
		Email:       input.Email,
		Phone:       input.Phone,
		DateOfBirth: input.DateOfBirth,
	}

	identities := make([]externalIdentity, 0, len(systems))
	for _, system := range systems {
		gw, ok := r.gateways[system]
		if !ok {
			r.logger.WarnContext(ctx, "no gateway configured, skipping system", "system", system.String())
			continue
		}
		identity, err := gw.CreateIdentity(ctx, fields)
		if err != nil {
			r.logger.WarnContext(ctx, "identity creation failed, will retry on next resolve",
				"system", system.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
			continue
		}
		identities = append(identities, externalIdentity{system: system, identity: identity})
	}
	return identities
}

// pickCandidate looks up a local customer per established identity and
// decides which aggregate to adopt. Returns nil when a new customer must be
// created, and an integrity error when distinct customers collide.
func (r *Resolver) pickCandidate(ctx context.Context, identities []externalIdentity, taxID id.TaxID) (*models.Customer, error) {
	var adopted *models.Customer
	for _, ext := range identities {
		candidate, err := r.customers.FindByConnection(ctx, ext.system, ext.identity.ForeignID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				continue
			}
			return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup by connection", err)
		}
		if adopted == nil {
			adopted = candidate
			continue
		}
		if adopted.ID != candidate.ID {
			r.metrics.IntegrityConflicts.Inc()
			r.logger.ErrorContext(ctx, "distinct customers claim the same identity pair",
				"customer_a", adopted.ID.String(),
				"customer_b", candidate.ID.String(),
				"tax_id_hash", taxID.Hash(),
			)
			return nil, dErrors.Newf(dErrors.CodeIntegrity,
				"customers %s and %s both claim the resolved identity pair", adopted.ID, candidate.ID)
		}
	}
	if adopted != nil {
		return adopted, nil
	}

	// No connection matched: the customer may exist without either system
	// attached yet (earlier partial failure). Fall back to the natural key.
	customer, err := r.customers.FindByTaxID(ctx, taxID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeInternal, "lookup by tax id", err)
	}
	return customer, nil
}

// attachConnections writes each established identity onto the aggregate and
// reports which systems were newly created or changed.
func (r *Resolver) attachConnections(customer *models.Customer, identities []externalIdentity, now time.Time) []id.SystemType {
	var changed []id.SystemType
	for _, ext := range identities {
		existing := customer.Connection(ext.system)
		if existing != nil && existing.ForeignID == ext.identity.ForeignID &&
			existing.AccessToken == ext.identity.AccessToken {
			continue
		}

		// New connections enter the flow with basic details already captured.
		kycStatus, _ := status.Transition(status.Unverified, status.EventBasicDetails)
		if existing != nil {
			kycStatus = existing.KYCStatus
		}
		customer.PutConnection(&models.Connection{
			System:       ext.system,
			ForeignID:    ext.identity.ForeignID,
			AccessToken:  ext.identity.AccessToken,
			RefreshToken: ext.identity.RefreshToken,
			TokenExpiry:  ext.identity.TokenExpiry,
			KYCStatus:    kycStatus,
			UpdatedAt:    now,
		})
		changed = append(changed, ext.system)
	}
	if len(changed) > 0 {
		customer.UpdatedAt = now
	}
	return changed
}

func (r *Resolver) linkOperator(ctx context.Context, customer *models.Customer, input Input, now time.Time) error {
	if input.OperatorID == "" {
		return nil
	}
	links, err := r.customers.OperatorLinks(ctx, customer.ID)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "list operator links", err)
	}
	err = r.customers.LinkOperator(ctx, models.OperatorLink{
		CustomerID:   customer.ID,
		OperatorID:   input.OperatorID,
		AccountID:    input.AccountID,
		FirstContact: len(links) == 0,
		CreatedAt:    now,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "link operator", err)
	}
	return nil
}

// pushCredentials mirrors changed local state back to each system's gateway
// so external and local records agree. Push failures are logged and left for
// the next resolve; they never fail the resolution.
func (r *Resolver) pushCredentials(ctx context.Context, customer *models.Customer, input Input, changed []id.SystemType) {
	fields := verification.IdentityFields{
		TaxID:       input.TaxID,
		FullName:    input.FullName,
		Email:       input.Email,
		Phone:       input.Phone,
		DateOfBirth: input.DateOfBirth,
	}
	for _, system := range changed {
		conn := customer.Connection(system)
		gw, ok := r.gateways[system]
		if conn == nil || !ok {
			continue
		}
		if err := gw.UpdateIdentity(ctx, conn.ForeignID, fields); err != nil {
			r.logger.WarnContext(ctx, "credential push-back failed",
				"system", system.String(),
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
	}
}
