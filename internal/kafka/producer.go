package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrProducerClosed is returned when producing on a closed producer.
var ErrProducerClosed = errors.New("kafka: producer is closed")

// Producer publishes records to a topic.
type Producer struct {
	writer *kafka.Writer
	config *Config
	logger *slog.Logger
	closed atomic.Bool

	produced atomic.Int64
	errors   atomic.Int64
}

// NewProducer creates a new Kafka producer.
func NewProducer(config *Config, logger *slog.Logger) (*Producer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	dialer, err := config.GetDialer()
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: config.ProducerBatchTimeout,
		RequiredAcks: kafka.RequiredAcks(config.RequiredAcks),
		Transport: &kafka.Transport{
			Dial: dialer.DialFunc,
			TLS:  dialer.TLS,
			SASL: dialer.SASLMechanism,
		},
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), "component", "kafka-writer")
		}),
	}

	p := &Producer{
		writer: writer,
		config: config,
		logger: logger,
	}

	logger.Info("kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
	)

	return p, nil
}

// Produce sends a single message.
func (p *Producer) Produce(ctx context.Context, key, value []byte) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		p.errors.Add(1)
		return fmt.Errorf("kafka: failed to produce message: %w", err)
	}
	p.produced.Add(1)
	return nil
}

// ProduceJSON marshals the value to JSON and sends it.
func (p *Producer) ProduceJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal value: %w", err)
	}
	return p.Produce(ctx, []byte(key), data)
}

// Stats returns producer counters.
func (p *Producer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"topic":    p.config.Topic,
		"produced": p.produced.Load(),
		"errors":   p.errors.Load(),
	}
}

// Close flushes and closes the producer.
func (p *Producer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}
