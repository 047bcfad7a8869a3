// Package kafka publishes outbox messages with franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"folio/pkg/platform/outbox"
)

// Publisher produces each message to one topic, keyed by aggregate id so
// every change of a range lands on the same partition in order.
type Publisher struct {
	client *kgo.Client
	topic  string
}

func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

func (p *Publisher) Publish(ctx context.Context, msg outbox.Message) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.AggregateType + ":" + msg.AggregateID),
		Value: msg.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "outbox_id", Value: []byte(msg.ID.String())},
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
		Timestamp: msg.CreatedAt,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", msg.ID, err)
	}
	return nil
}

// EnsureTopic creates the topic when it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Close()
}

var _ outbox.Publisher = (*Publisher)(nil)
