package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/noah-isme/enquiry-desk-api/pkg/config"
)

// Producer writes keyed messages to a broker topic.
type Producer interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// KafkaProducer publishes to a single configured topic.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer builds a producer for cfg.Topic. Connectivity is checked against the first broker.
func NewKafkaProducer(cfg config.EventsConfig) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("kafka: dial %s: %w", cfg.Brokers[0], err)
	}
	_ = conn.Close()

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer}, nil
}

// Send writes one message; messages sharing a key land on the same partition.
func (p *KafkaProducer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// Close flushes pending writes.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
