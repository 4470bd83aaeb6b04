// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"bidhub/pkg/platform/audit"
)

// Publisher writes audit events to a single topic, keyed by subject so one
// subject's history stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the audit topic exists. Topic
// creation is idempotent; an already-exists response is not an error.
func New(ctx context.Context, brokers []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(50*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Publisher{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("ensure audit topic: %w", err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("ensure audit topic %q: %w", topic, resp.Err)
	}
	return nil
}

// Emit produces one event synchronously. Callers treat failures as
// non-fatal (see audit.Log).
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.SubjectID.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close() {
	p.client.Close()
}
