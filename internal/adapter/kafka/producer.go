package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

// DefaultTopic carries every transaction lifecycle event
const DefaultTopic = "payments.transactions"

// Producer publishes transaction events to Kafka.
// It implements domain.EventPublisher.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer connects to the brokers, retrying while Kafka starts up
func NewProducer(brokers []string, topic string, attempts int, backoff time.Duration) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll

	if attempts < 1 {
		attempts = 1
	}

	var producer sarama.SyncProducer
	var err error
	for i := 1; i <= attempts; i++ {
		producer, err = sarama.NewSyncProducer(brokers, config)
		if err == nil {
			log.Printf("Kafka producer initialized for topic %s", topic)
			return NewProducerFrom(producer, topic), nil
		}

		log.Printf("Waiting for Kafka... (%d/%d) Error: %v", i, attempts, err)
		if i < attempts {
			time.Sleep(backoff)
		}
	}

	return nil, fmt.Errorf("failed to start kafka producer after %d attempts: %w", attempts, err)
}

// NewProducerFrom wraps an existing SyncProducer
func NewProducerFrom(producer sarama.SyncProducer, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{producer: producer, topic: topic}
}

// Publish sends the event keyed by transaction ID so events of one transaction stay ordered
func (p *Producer) Publish(ctx context.Context, event domain.TransactionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.TransactionID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send %s kafka message: %w", event.Type, err)
	}

	return nil
}

// Close flushes and closes the underlying producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
