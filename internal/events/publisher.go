package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"onboard/internal/platform/kafka"
)

// Publisher emits domain events. Services publish after persisting the state
// the event describes.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// KafkaPublisher routes events onto their category topic.
type KafkaPublisher struct {
	producer *kafka.Producer
	logger   *slog.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = p.producer.Produce(ctx, kafka.Message{
		Topic: event.Topic(),
		Key:   []byte(event.CustomerID.String()),
		Value: value,
	})
	if err != nil {
		return err
	}
	p.logger.InfoContext(ctx, "event published",
		"type", string(event.Type),
		"topic", event.Topic(),
		"customer_id", event.CustomerID.String(),
	)
	return nil
}

// Recorder collects events in memory. Tests assert against it; local
// development runs on it when no brokers are configured.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByType filters the snapshot.
func (r *Recorder) ByType(eventType Type) []Event {
	var out []Event
	for _, event := range r.Events() {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}
