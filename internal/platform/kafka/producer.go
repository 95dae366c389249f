// Package kafka wraps the franz-go client behind the small producing surface
// this service needs.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is one record bound for a topic.
type Message struct {
	Topic string
	Key   []byte
	Value []byte
}

// Producer publishes messages synchronously. Delivery guarantees belong to
// the caller's semantics: domain events are emitted after the state they
// describe is persisted.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the given brokers.
func NewProducer(brokers []string) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	return &Producer{client: client}, nil
}

// Produce sends one message and waits for the broker ack.
func (p *Producer) Produce(ctx context.Context, msg Message) error {
	record := &kgo.Record{Topic: msg.Topic, Key: msg.Key, Value: msg.Value}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", msg.Topic, err)
	}
	return nil
}

// Close flushes and releases the client.
func (p *Producer) Close() {
	p.client.Close()
}
