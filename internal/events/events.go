// Package events carries the domain events emitted at onboarding edges:
// document generation on final submit, KYC submission and verification
// notifications, rejection follow-ups, and order advances. Events are routed
// to Kafka topics by category.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a domain event.
type Type string

const (
	// TypeDocumentGeneration fires exactly once per sealed profile and
	// triggers account-opening document generation.
	TypeDocumentGeneration Type = "document_generation"

	// TypeKYCSubmitted notifies operator and customer that a connection
	// entered KYC_SUBMITTED.
	TypeKYCSubmitted Type = "kyc_submitted"

	// TypeKYCUnlocked fires when both connections reach KYC_VERIFIED and
	// KYC-gated product access opens.
	TypeKYCUnlocked Type = "kyc_unlocked"

	// TypeKYCRejected records an explicit customer rejection for operator
	// follow-up.
	TypeKYCRejected Type = "kyc_rejected"

	// TypeOrderAdvanced records a payment order lifecycle move.
	TypeOrderAdvanced Type = "order_advanced"
)

// Topics by event category.
const (
	TopicDocuments = "onboarding.documents"
	TopicKYC       = "onboarding.kyc"
	TopicOrders    = "onboarding.orders"
)

var topicFor = map[Type]string{
	TypeDocumentGeneration: TopicDocuments,
	TypeKYCSubmitted:       TopicKYC,
	TypeKYCUnlocked:        TopicKYC,
	TypeKYCRejected:        TopicKYC,
	TypeOrderAdvanced:      TopicOrders,
}

// Event is one domain occurrence. TaxIDHash carries the hashed natural key
// for correlation; raw tax identifiers never enter the stream.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Type       Type              `json:"type"`
	CustomerID uuid.UUID         `json:"customer_id"`
	TaxIDHash  string            `json:"tax_id_hash,omitempty"`
	System     string            `json:"system,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Topic returns the Kafka topic the event routes to.
func (e Event) Topic() string {
	if topic, ok := topicFor[e.Type]; ok {
		return topic
	}
	return TopicKYC
}

// New builds an event with a fresh id.
func New(eventType Type, customerID uuid.UUID, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       eventType,
		CustomerID: customerID,
		OccurredAt: occurredAt,
		Fields:     make(map[string]string),
	}
}
