package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/roomsplit-payments/internal/domain"
)

func testEvent() domain.TransactionEvent {
	tx := &domain.Transaction{
		ID:              uuid.MustParse("0b7e3c1a-2d4f-4e6a-9b8c-1d2e3f4a5b6c"),
		ReferenceNumber: "PAY-20261015-0B7E3C1A",
		RoomID:          uuid.New(),
		Amount:          decimal.NewFromInt(250000),
		BillType:        "RENT",
		BankName:        "BCA",
		Status:          domain.TransactionStatusConfirmed,
	}
	return domain.NewTransactionEvent(domain.EventTransactionConfirmed, tx, time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC))
}

func TestProducer_Publish(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	syncProducer := mocks.NewSyncProducer(t, config)
	defer syncProducer.Close()

	event := testEvent()

	syncProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "payments.test" {
			return errors.New("unexpected topic " + msg.Topic)
		}

		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != event.TransactionID.String() {
			return errors.New("message not keyed by transaction ID")
		}

		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var decoded map[string]interface{}
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded["event_type"] != "transaction.confirmed" || decoded["status"] != "CONFIRMED" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	producer := NewProducerFrom(syncProducer, "payments.test")

	err := producer.Publish(context.Background(), event)

	assert.NoError(t, err)
}

func TestProducer_PublishFailure(t *testing.T) {
	syncProducer := mocks.NewSyncProducer(t, nil)
	defer syncProducer.Close()

	syncProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFrom(syncProducer, "")

	err := producer.Publish(context.Background(), testEvent())

	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	assert.Contains(t, err.Error(), "failed to send transaction.confirmed kafka message")
}

func TestProducer_CancelledContext(t *testing.T) {
	syncProducer := mocks.NewSyncProducer(t, nil)
	defer syncProducer.Close()

	producer := NewProducerFrom(syncProducer, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.Publish(ctx, testEvent())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewProducerFrom_DefaultTopic(t *testing.T) {
	syncProducer := mocks.NewSyncProducer(t, nil)
	defer syncProducer.Close()

	producer := NewProducerFrom(syncProducer, "")

	assert.Equal(t, DefaultTopic, producer.topic)
}
