// Package notify delivers committed confidence changes to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"g2p/internal/lgd/models"
	"g2p/pkg/platform/circuit"
)

// DefaultTopic carries confidence change events keyed by stable ID.
const DefaultTopic = "g2p.confidence-changes"

// Notifier is implemented by every delivery target in this package.
type Notifier interface {
	NotifyConfidenceChange(ctx context.Context, change models.ConfidenceChange) error
}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Kafka publishes changes to a topic. While the breaker is open, failed
// deliveries go to the fallback notifier instead of surfacing an error.
type Kafka struct {
	producer producer
	topic    string
	breaker  *circuit.Breaker
	fallback Notifier
	logger   *slog.Logger
}

type KafkaOption func(*Kafka)

func WithTopic(topic string) KafkaOption {
	return func(k *Kafka) {
		if topic != "" {
			k.topic = topic
		}
	}
}

func WithFallback(n Notifier) KafkaOption {
	return func(k *Kafka) {
		k.fallback = n
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(k *Kafka) {
		if b != nil {
			k.breaker = b
		}
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// NewKafka wraps a franz-go client (or anything that produces synchronously).
func NewKafka(p producer, opts ...KafkaOption) *Kafka {
	k := &Kafka{
		producer: p,
		topic:    DefaultTopic,
		breaker:  circuit.New("kafka-notifier"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kafka) NotifyConfidenceChange(ctx context.Context, change models.ConfidenceChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("encode confidence change: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(change.StableID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte("confidence_changed")},
		},
	}

	err = k.producer.ProduceSync(ctx, record).FirstErr()
	if err == nil {
		if _, ch := k.breaker.RecordSuccess(); ch.Closed {
			k.logger.InfoContext(ctx, "notification circuit closed", "breaker", k.breaker.Name())
		}
		return nil
	}

	useFallback, ch := k.breaker.RecordFailure()
	if ch.Opened {
		k.logger.WarnContext(ctx, "notification circuit opened", "breaker", k.breaker.Name(), "error", err)
	}
	if useFallback && k.fallback != nil {
		return k.fallback.NotifyConfidenceChange(ctx, change)
	}
	return fmt.Errorf("publish confidence change: %w", err)
}

// EnsureTopic creates the notification topic if the cluster lacks it.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if t, ok := resp[topic]; ok && t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, t.Err)
	}
	return nil
}

// NewKafkaClient connects a producer to brokers.
func NewKafkaClient(brokers []string, clientID string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}
