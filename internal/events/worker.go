package events

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"onboard/internal/customer/models"
	"onboard/internal/gateway/esign"
)

// CustomerFinder loads the aggregate a document event refers to. The event
// stream carries only the customer id and hashed tax id; PII stays in the
// store.
type CustomerFinder interface {
	FindByID(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

// DocumentWorker consumes document-generation events and drives the e-sign
// vendor to create the account-opening document. It runs in-process off a
// channel; the Kafka stream feeds external consumers.
type DocumentWorker struct {
	gateway   esign.Gateway
	customers CustomerFinder
	inbox     <-chan Event
	logger    *slog.Logger
}

func NewDocumentWorker(gateway esign.Gateway, customers CustomerFinder, inbox <-chan Event, logger *slog.Logger) *DocumentWorker {
	return &DocumentWorker{gateway: gateway, customers: customers, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context ends. Generation failures are logged
// and do not stop the worker; the event stream is the retry source of truth.
func (w *DocumentWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if event.Type != TypeDocumentGeneration {
				continue
			}
			w.generate(ctx, event)
		}
	}
}

func (w *DocumentWorker) generate(ctx context.Context, event Event) {
	customer, err := w.customers.FindByID(ctx, event.CustomerID)
	if err != nil {
		w.logger.ErrorContext(ctx, "customer lookup for document generation failed",
			"customer_id", event.CustomerID.String(),
			"error", err.Error(),
		)
		return
	}
	docID, err := w.gateway.CreateDocument(ctx, esign.DocumentFields{
		CustomerName: customer.FullName,
		TaxID:        customer.TaxID.String(),
		Email:        customer.Email,
		OperatorID:   event.Fields["operator_id"],
	})
	if err != nil {
		w.logger.ErrorContext(ctx, "document generation failed",
			"customer_id", event.CustomerID.String(),
			"error", err.Error(),
		)
		return
	}
	w.logger.InfoContext(ctx, "account opening document created",
		"customer_id", event.CustomerID.String(),
		"document_id", docID,
	)
}

// Tee forwards every published event to both a publisher and an in-process
// channel so workers can react without consuming the external stream.
type Tee struct {
	next  Publisher
	inbox chan<- Event
}

func NewTee(next Publisher, inbox chan<- Event) *Tee {
	return &Tee{next: next, inbox: inbox}
}

func (t *Tee) Publish(ctx context.Context, event Event) error {
	if err := t.next.Publish(ctx, event); err != nil {
		return err
	}
	select {
	case t.inbox <- event:
	default:
		// Inbox full: the external stream still has the event.
	}
	return nil
}
