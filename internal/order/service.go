package order

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"onboard/internal/events"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// Service owns the order lifecycle: creation when the payment link goes out
// and webhook-driven progression after that.
type Service struct {
	orders    Store
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(orders Store, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{orders: orders, publisher: publisher, logger: logger}
}

// CreateInput describes a freshly issued payment link.
type CreateInput struct {
	CustomerID  uuid.UUID
	ExternalID  string
	AmountPaise int64
	Currency    string
	PaymentLink string
}

// Create records a new order in the link-sent state.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Order, error) {
	if input.CustomerID == uuid.Nil {
		return nil, dErrors.New(dErrors.CodeValidation, "customer id is required")
	}
	if input.AmountPaise <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}
	now := requestcontext.Now(ctx)
	o := &Order{
		ID:          uuid.New(),
		CustomerID:  input.CustomerID,
		ExternalID:  input.ExternalID,
		AmountPaise: input.AmountPaise,
		Currency:    currency,
		Status:      LinkSent,
		PaymentLink: input.PaymentLink,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.orders.Upsert(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	return o, nil
}

// HandleExternalStatus applies one vendor webhook to the order it references.
func (s *Service) HandleExternalStatus(ctx context.Context, externalID, externalStatus string) (*Order, error) {
	o, err := s.orders.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no order for payment id %q", externalID)
		}
		return nil, fmt.Errorf("find order: %w", err)
	}

	before := o.Status
	if err := o.Advance(externalStatus, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if o.Status == before {
		return o, nil
	}
	if err := s.orders.Upsert(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}

	event := events.New(events.TypeOrderAdvanced, o.CustomerID, o.UpdatedAt)
	event.Fields["order_id"] = o.ID.String()
	event.Fields["from"] = before.String()
	event.Fields["to"] = o.Status.String()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "publish order event",
			"order_id", o.ID, "error", err)
	}
	return o, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return o, nil
}

// ListByCustomer returns the customer's orders oldest first.
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Order, error) {
	orders, err := s.orders.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}
