// Package events emits adapter observability events to a Kafka stream.
// Events are keyed by ridesharing service id so per-provider consumers can
// partition on it.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
)

// OffersReceived is emitted after every successful provider call.
type OffersReceived struct {
	ServiceID   string `json:"service_id"`
	Network     string `json:"network"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	OfferCount  int    `json:"offer_count"`
	ReceivedAt  int64  `json:"received_at"`
}

// Publisher is the write-only observer the adapter reports through.
type Publisher interface {
	PublishOffersReceived(ctx context.Context, ev OffersReceived) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := kafka.NewWriter(kafka.WriterConfig{Brokers: brokers, Topic: topic, Balancer: &kafka.LeastBytes{}})
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) PublishOffersReceived(ctx context.Context, ev OffersReceived) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, _ := json.Marshal(ev)
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.ServiceID), Value: b})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
