package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"leadcapture/internal/lead/models"
	"leadcapture/internal/platform/metrics"
)

const kafkaSinkName = "kafka"

// producer is the slice of *kgo.Client the sink uses.
type producer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// topicAdmin is the slice of *kadm.Client used to create the topic.
type topicAdmin interface {
	CreateTopic(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topic string) (kadm.CreateTopicResponse, error)
}

// KafkaSink publishes each lead's webhook payload to a topic, keyed by lead
// id. Produce is asynchronous; the promise only logs failures.
type KafkaSink struct {
	client  producer
	admin   topicAdmin
	topic   string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewKafkaSink connects to brokers lazily; franz-go dials on first produce.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaSink{
		client:  client,
		admin:   kadm.NewClient(client),
		topic:   topic,
		logger:  logger,
		metrics: m,
	}, nil
}

// EnsureTopic creates the topic with broker-default partitions and
// replication. An existing topic is not an error.
func (k *KafkaSink) EnsureTopic(ctx context.Context) error {
	resp, err := k.admin.CreateTopic(ctx, -1, -1, nil, k.topic)
	if err == nil {
		err = resp.Err
	}
	switch {
	case err == nil:
		k.logger.InfoContext(ctx, "created kafka topic", "topic", k.topic)
		return nil
	case errors.Is(err, kerr.TopicAlreadyExists):
		return nil
	default:
		return fmt.Errorf("create kafka topic %s: %w", k.topic, err)
	}
}

func (k *KafkaSink) Send(ctx context.Context, rec models.LeadRecord) {
	k.metrics.IncRemoteSend(kafkaSinkName)
	value, err := json.Marshal(rec.Payload())
	if err != nil {
		k.metrics.IncRemoteWriteFailure(kafkaSinkName)
		k.logger.WarnContext(ctx, "encode lead for kafka", "lead_id", rec.ID, "error", err)
		return
	}
	record := &kgo.Record{Topic: k.topic, Key: []byte(rec.ID), Value: value}
	k.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.metrics.IncRemoteWriteFailure(kafkaSinkName)
			k.logger.Warn("kafka lead delivery failed",
				"lead_id", string(r.Key),
				"topic", r.Topic,
				"error", err,
			)
		}
	})
}

// Wait flushes buffered records.
func (k *KafkaSink) Wait() {
	if err := k.client.Flush(context.Background()); err != nil {
		k.logger.Warn("kafka flush failed", "error", err)
	}
}

// Close flushes and releases the client.
func (k *KafkaSink) Close() {
	k.Wait()
	k.client.Close()
}
