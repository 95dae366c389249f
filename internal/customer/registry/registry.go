// Package registry manages per-customer per-system connection records:
// credential reads, token refresh, and status writes. Every status write goes
// through the transition table; the registry never invents a status value.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

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

// Registry exposes connection-level operations on the customer aggregate.
type Registry struct {
	customers store.Store
	gateways  map[id.SystemType]verification.Gateway
	logger    *slog.Logger
	metrics   *metrics.Metrics
	// refreshGroup collapses concurrent refreshes for the same connection so
	// two callers cannot invalidate each other's tokens.
	refreshGroup singleflight.Group
}

func New(customers store.Store, gateways map[id.SystemType]verification.Gateway, logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		customers: customers,
		gateways:  gateways,
		logger:    logger,
		metrics:   m,
	}
}

// Connection returns the customer's connection for the given system.
func (r *Registry) Connection(ctx context.Context, customerID uuid.UUID, system id.SystemType) (*models.Connection, error) {
	customer, err := r.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, translateStoreErr(err, "customer")
	}
	conn := customer.Connection(system)
	if conn == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no %s connection for customer", system)
	}
	return conn, nil
}

// PutConnection attaches or replaces a connection on the customer. Only the
// connection's own row is written.
func (r *Registry) PutConnection(ctx context.Context, customerID uuid.UUID, conn *models.Connection) error {
	conn.UpdatedAt = requestcontext.Now(ctx)
	if err := r.customers.UpdateConnection(ctx, customerID, conn); err != nil {
		return translateStoreErr(err, "customer")
	}
	return nil
}

// ApplyStatus runs the transition for ev on the system's connection and
// persists the result. Returns the new status.
func (r *Registry) ApplyStatus(ctx context.Context, customerID uuid.UUID, system id.SystemType, ev status.Event) (status.Status, error) {
	customer, err := r.customers.FindByID(ctx, customerID)
	if err != nil {
		return "", translateStoreErr(err, "customer")
	}
	conn := customer.Connection(system)
	if conn == nil {
		return "", dErrors.Newf(dErrors.CodeNotFound, "no %s connection for customer", system)
	}

	next, err := status.Transition(conn.KYCStatus, ev)
	if err != nil {
		return "", err
	}
	conn.KYCStatus = next
	conn.UpdatedAt = requestcontext.Now(ctx)
	if err := r.customers.UpdateConnection(ctx, customerID, conn); err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "persist status", err)
	}
	r.metrics.StatusTransitions.WithLabelValues(system.String(), next.String()).Inc()
	return next, nil
}

// RefreshToken calls the system's gateway for a fresh access token and
// replaces token and expiry together. Concurrent refreshes for the same
// connection share one gateway call.
func (r *Registry) RefreshToken(ctx context.Context, customerID uuid.UUID, system id.SystemType) (*models.Connection, error) {
	key := customerID.String() + "/" + system.String()
	result, err, _ := r.refreshGroup.Do(key, func() (any, error) {
		return r.refresh(ctx, customerID, system)
	})
	if err != nil {
		r.metrics.TokenRefreshes.WithLabelValues(system.String(), "error").Inc()
		return nil, err
	}
	r.metrics.TokenRefreshes.WithLabelValues(system.String(), "ok").Inc()
	return result.(*models.Connection), nil
}

func (r *Registry) refresh(ctx context.Context, customerID uuid.UUID, system id.SystemType) (*models.Connection, error) {
	customer, err := r.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, translateStoreErr(err, "customer")
	}
	conn := customer.Connection(system)
	if conn == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no %s connection for customer", system)
	}
	gw, ok := r.gateways[system]
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeInternal, "no gateway configured for %s", system)
	}

	token, err := gw.GetAccessToken(ctx, conn.RefreshToken)
	if err != nil {
		r.logger.ErrorContext(ctx, "token refresh failed",
			"system", system.String(),
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return nil, wrapGatewayErr(system, "get access token", err)
	}

	conn.AccessToken = token.AccessToken
	conn.TokenExpiry = token.Expiry
	conn.UpdatedAt = requestcontext.Now(ctx)
	if err := r.customers.UpdateConnection(ctx, customerID, conn); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist refreshed token", err)
	}
	return conn, nil
}

// TokenExpiring reports whether the connection's token expires within the
// window; sync uses it to decide when to refresh.
func TokenExpiring(conn *models.Connection, now time.Time, window time.Duration) bool {
	return !conn.TokenExpiry.After(now.Add(window))
}

func translateStoreErr(err error, what string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "%s not found", what)
	}
	return dErrors.Wrap(dErrors.CodeInternal, "load "+what, err)
}

func wrapGatewayErr(system id.SystemType, op string, err error) error {
	if dErrors.Is(err, dErrors.CodeGateway) {
		return err
	}
	return dErrors.Wrap(dErrors.CodeGateway, system.String()+": "+op, err)
}
