// Package projector consumes per-connection status changes, from periodic
// sync and from explicit operator decisions, and fires events at specific
// lifecycle edges. It is the only writer of statuses outside first-time
// connection attachment.
package projector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/customer/registry"
	"onboard/internal/customer/store"
	"onboard/internal/events"
	"onboard/internal/gateway/verification"
	"onboard/internal/kyc/metrics"
	"onboard/internal/kyc/status"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// DefaultRefreshWindow is how close to expiry a token gets before sync
// refreshes it.
const DefaultRefreshWindow = 10 * time.Minute

// vendorStatuses maps each vendor's progress vocabulary onto the canonical
// lifecycle. An empty target means the vendor reported no progress. Unmapped
// strings are an error, never a silent default.
var vendorStatuses = map[string]status.Status{
	"pending":       "",
	"basic_details": status.BasicDetailsEntered,
	"initiated":     status.Initiated,
	"submitted":     status.Submitted,
	"under_review":  status.Submitted,
	"verified":      status.Verified,
	"rejected":      status.Rejected,
}

// forwardEvents drives one step up the happy path toward each status.
var forwardEvents = map[status.Status]status.Event{
	status.BasicDetailsEntered: status.EventBasicDetails,
	status.Initiated:           status.EventInitiate,
	status.Submitted:           status.EventSubmit,
	status.Verified:            status.EventVerify,
}

// forwardOrder is the happy path in rank order.
var forwardOrder = []status.Status{
	status.BasicDetailsEntered,
	status.Initiated,
	status.Submitted,
	status.Verified,
}

// SyncReport is the outcome of one multi-connection sync. Connections that
// synced keep their updates even when Success is false.
type SyncReport struct {
	Success bool
	Errors  map[id.SystemType]error
}

// Projector projects connection status changes into lifecycle events.
type Projector struct {
	customers store.Store
	registry  *registry.Registry
	gateways  map[id.SystemType]verification.Gateway
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer

	refreshWindow time.Duration
}

func New(
	customers store.Store,
	reg *registry.Registry,
	gateways map[id.SystemType]verification.Gateway,
	publisher events.Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Projector {
	return &Projector{
		customers:     customers,
		registry:      reg,
		gateways:      gateways,
		publisher:     publisher,
		logger:        logger,
		metrics:       m,
		tracer:        otel.Tracer("onboard/projector"),
		refreshWindow: DefaultRefreshWindow,
	}
}

// Apply advances one connection by a single event and fires any edge events
// the move crosses.
func (p *Projector) Apply(ctx context.Context, customerID uuid.UUID, system id.SystemType, ev status.Event) (status.Status, error) {
	next, err := p.registry.ApplyStatus(ctx, customerID, system, ev)
	if err != nil {
		return "", err
	}
	p.fireEdges(ctx, customerID, system, next)
	return next, nil
}

// Accept records the customer's acceptance of assisted verification and, when
// it completes the pair, unlocks product access.
func (p *Projector) Accept(ctx context.Context, customerID uuid.UUID) (status.Status, error) {
	return p.Apply(ctx, customerID, id.SystemAssisted, status.EventVerify)
}

// Reject records the customer's rejection: the assisted connection drops back
// to the entry state with the reason kept for operator follow-up.
func (p *Projector) Reject(ctx context.Context, customerID uuid.UUID, reason string) error {
	if reason == "" {
		return dErrors.New(dErrors.CodeValidation, "rejection reason is required")
	}
	if _, err := p.registry.ApplyStatus(ctx, customerID, id.SystemAssisted, status.EventReject); err != nil {
		return err
	}
	next, err := p.registry.ApplyStatus(ctx, customerID, id.SystemAssisted, status.EventReset)
	if err != nil {
		return err
	}

	conn, err := p.registry.Connection(ctx, customerID, id.SystemAssisted)
	if err != nil {
		return err
	}
	conn.RejectionReason = reason
	if err := p.registry.PutConnection(ctx, customerID, conn); err != nil {
		return err
	}

	event := events.New(events.TypeKYCRejected, customerID, requestcontext.Now(ctx))
	event.System = id.SystemAssisted.String()
	event.Fields["reason"] = reason
	event.Fields["status"] = next.String()
	p.publish(ctx, event)
	return nil
}

// SyncAll polls every connection of the customer in parallel: refreshes the
// token when it nears expiry, maps the vendor's reported progress onto the
// lifecycle, and fetches the canonical KYC id once verified. A failure on one
// connection never blocks or discards the other's updates.
func (p *Projector) SyncAll(ctx context.Context, customerID uuid.UUID) (SyncReport, error) {
	ctx, span := p.tracer.Start(ctx, "projector.SyncAll",
		trace.WithAttributes(attribute.String("customer_id", customerID.String())))
	defer span.End()

	customer, err := p.customers.FindByID(ctx, customerID)
	if err != nil {
		return SyncReport{}, dErrors.Wrap(dErrors.CodeNotFound, "load customer", err)
	}

	report := SyncReport{Errors: make(map[id.SystemType]error)}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for system := range customer.Connections {
		wg.Add(1)
		go func(system id.SystemType) {
			defer wg.Done()
			if err := p.syncConnection(ctx, customerID, system); err != nil {
				p.metrics.SyncFailures.WithLabelValues(system.String()).Inc()
				p.logger.ErrorContext(ctx, "connection sync failed",
					"customer_id", customerID, "system", system, "error", err)
				mu.Lock()
				report.Errors[system] = err
				mu.Unlock()
			}
		}(system)
	}
	wg.Wait()

	report.Success = len(report.Errors) == 0
	if !report.Success {
		return report, dErrors.Newf(dErrors.CodePartialSync,
			"%d of %d connections failed to sync", len(report.Errors), len(customer.Connections))
	}
	return report, nil
}

func (p *Projector) syncConnection(ctx context.Context, customerID uuid.UUID, system id.SystemType) error {
	conn, err := p.registry.Connection(ctx, customerID, system)
	if err != nil {
		return err
	}
	gw, ok := p.gateways[system]
	if !ok {
		return dErrors.Newf(dErrors.CodeInternal, "no gateway configured for %s", system)
	}

	if registry.TokenExpiring(conn, requestcontext.Now(ctx), p.refreshWindow) {
		if conn, err = p.registry.RefreshToken(ctx, customerID, system); err != nil {
			return err
		}
	}

	identity, err := gw.GetIdentity(ctx, verification.Credentials{
		ForeignID:   conn.ForeignID,
		AccessToken: conn.AccessToken,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeGateway, system.String()+": get identity", err)
	}

	current := conn.KYCStatus
	if err := p.advanceTo(ctx, customerID, system, current, identity.VendorStatus); err != nil {
		return err
	}

	// The status write above persists regardless of what the id fetch does.
	return p.ensureKYCID(ctx, customerID, system, gw)
}

// advanceTo moves the connection from current toward the vendor-reported
// status one legal step at a time, firing edge events along the way. A
// vendor status behind the local one is logged and ignored.
func (p *Projector) advanceTo(ctx context.Context, customerID uuid.UUID, system id.SystemType, current status.Status, vendorStatus string) error {
	target, ok := vendorStatuses[vendorStatus]
	if !ok {
		return dErrors.Newf(dErrors.CodeGateway,
			"%s reported unmapped status %q", system, vendorStatus)
	}
	if target == "" || target == current {
		return nil
	}
	if target == status.Rejected {
		_, err := p.Apply(ctx, customerID, system, status.EventReject)
		return err
	}
	if target.Before(current) {
		p.logger.WarnContext(ctx, "vendor reported stale status",
			"system", system, "local", current, "vendor", target)
		return nil
	}
	for _, step := range forwardOrder {
		if !current.Before(step) || target.Before(step) {
			continue
		}
		next, err := p.Apply(ctx, customerID, system, forwardEvents[step])
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// ensureKYCID fetches and stores the canonical KYC id for a verified
// connection that does not have one yet.
func (p *Projector) ensureKYCID(ctx context.Context, customerID uuid.UUID, system id.SystemType, gw verification.Gateway) error {
	conn, err := p.registry.Connection(ctx, customerID, system)
	if err != nil {
		return err
	}
	if conn.KYCStatus != status.Verified || conn.KYCID != "" {
		return nil
	}
	kycID, err := gw.GetKYCID(ctx, verification.Credentials{
		ForeignID:   conn.ForeignID,
		AccessToken: conn.AccessToken,
	})
	if err != nil {
		return dErrors.Wrap(dErrors.CodeGateway, system.String()+": get kyc id", err)
	}
	conn.KYCID = kycID
	return p.registry.PutConnection(ctx, customerID, conn)
}

// fireEdges publishes the events tied to specific status edges: entering the
// submitted state notifies the operator and customer, and the second
// connection reaching verified unlocks gated product access.
func (p *Projector) fireEdges(ctx context.Context, customerID uuid.UUID, system id.SystemType, next status.Status) {
	now := requestcontext.Now(ctx)
	switch next {
	case status.Submitted:
		event := events.New(events.TypeKYCSubmitted, customerID, now)
		event.System = system.String()
		p.publish(ctx, event)
	case status.Verified:
		if !p.allVerified(ctx, customerID) {
			return
		}
		event := events.New(events.TypeKYCUnlocked, customerID, now)
		p.publish(ctx, event)
	}
}

func (p *Projector) allVerified(ctx context.Context, customerID uuid.UUID) bool {
	customer, err := p.customers.FindByID(ctx, customerID)
	if err != nil {
		p.logger.ErrorContext(ctx, "load customer for unlock check",
			"customer_id", customerID, "error", err)
		return false
	}
	if len(customer.Connections) == 0 {
		return false
	}
	for _, conn := range customer.Connections {
		if conn.KYCStatus != status.Verified {
			return false
		}
	}
	return true
}

func (p *Projector) publish(ctx context.Context, event events.Event) {
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "publish event",
			"type", event.Type, "customer_id", event.CustomerID, "error", err)
	}
}
