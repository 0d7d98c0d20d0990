// Package kafka publishes lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/tjfontaine/record-review-gateway/internal/core/domain"
	"github.com/tjfontaine/record-review-gateway/internal/pkg/config"
)

// Publisher implements ports.EventPublisher on a sarama SyncProducer.
// Messages are keyed by record id so one record's events stay ordered.
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewSaramaConfig returns the producer settings used for lifecycle events.
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.ClientID = "record-review-gateway"
	return cfg
}

// NewPublisher connects to the configured brokers.
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	producer, err := sarama.NewSyncProducer(cfg.Brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherFromProducer(producer, cfg.Topic), nil
}

// NewPublisherFromProducer wraps an existing producer.
func NewPublisherFromProducer(producer sarama.SyncProducer, topic string) *Publisher {
	return &Publisher{producer: producer, topic: topic}
}

// Publish sends event as JSON.
func (p *Publisher) Publish(ctx context.Context, event *domain.LifecycleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode lifecycle event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RecordID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(event.Type)},
		},
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send lifecycle event: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
