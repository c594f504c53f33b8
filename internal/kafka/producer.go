package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Producer struct {
	brokers    []string
	writer     *kafka.Writer
	logger     logrus.FieldLogger
	maxRetries int
	retryDelay time.Duration
}

type ProducerOption func(*Producer)

func WithProducerLogger(logger logrus.FieldLogger) ProducerOption {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithRetries makes Publish try up to attempts times, sleeping delay*attempt
// between tries.
func WithRetries(attempts int, delay time.Duration) ProducerOption {
	return func(p *Producer) {
		if attempts > 0 {
			p.maxRetries = attempts
		}
		p.retryDelay = delay
	}
}

func NewProducer(brokers []string, opts ...ProducerOption) *Producer {
	p := &Producer{
		brokers: brokers,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.LeastBytes{},
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		logger:     logrus.StandardLogger(),
		maxRetries: 1,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	var lastErr error
	for i := 0; i < p.maxRetries; i++ {
		lastErr = p.writer.WriteMessages(ctx, message)
		if lastErr == nil {
			p.logger.WithFields(logrus.Fields{"topic": topic, "key": key}).Debug("published to kafka")
			return nil
		}
		p.logger.WithError(lastErr).WithFields(logrus.Fields{"topic": topic, "attempt": i + 1}).Warn("kafka write failed")

		if i < p.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i+1) * p.retryDelay):
			}
		}
	}
	return fmt.Errorf("failed to write message to kafka after %d attempts: %w", p.maxRetries, lastErr)
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// Ping dials the first broker and reads its partition list.
func (p *Producer) Ping(ctx context.Context) error {
	if len(p.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}
	conn, err := kafka.DialContext(ctx, "tcp", p.brokers[0])
	if err != nil {
		return fmt.Errorf("failed to connect to kafka: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(); err != nil {
		return fmt.Errorf("failed to read partitions: %w", err)
	}
	return nil
}
