// internal/services/events.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	EventPaymentVerified       = "payment.verified"
	EventPaymentRefunded       = "payment.refunded"
	EventEscrowReleased        = "escrow.released"
	EventEscrowRemainderDue    = "escrow.remainder_due"
	EventFundsCleared          = "wallet.funds_cleared"
	EventTransactionReversed   = "wallet.transaction_reversed"
	EventCashoutRequested      = "cashout.requested"
	EventCashoutPaid           = "cashout.paid"
	EventCashoutRejected       = "cashout.rejected"
	EventDisputeOpened         = "dispute.opened"
	EventDisputeResolved       = "dispute.resolved"
	EventDisputeDismissed      = "dispute.dismissed"
	EventDisputeReviewAssigned = "dispute.review_started"
)

// LedgerEvent is the envelope published for every committed ledger change.
type LedgerEvent struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// EventPublisher delivers ledger events to downstream consumers (notifications,
// analytics). Events are published after commit and are at-least-once.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, data interface{}) error
}

type KafkaPublisher struct {
	writer      *kafka.Writer
	topicPrefix string
}

func NewKafkaPublisher(brokers []string, topicPrefix string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: topicPrefix,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, key string, data interface{}) error {
	payload, err := json.Marshal(newLedgerEvent(eventType, data))
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topicPrefix + eventType,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher writes events to the log when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType, key string, data interface{}) error {
	event := newLedgerEvent(eventType, data)
	logrus.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": eventType,
		"key":        key,
	}).Info("Ledger event")
	return nil
}

func newLedgerEvent(eventType string, data interface{}) LedgerEvent {
	return LedgerEvent{
		ID:         uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// publish never fails the caller: the ledger change is already committed.
func publish(ctx context.Context, publisher EventPublisher, eventType, key string, data interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, eventType, key, data); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_type": eventType,
			"key":        key,
		}).Error("Failed to publish ledger event")
	}
}
