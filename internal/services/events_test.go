package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogPublisher(t *testing.T) {
	publisher := NewLogPublisher()
	assert.NoError(t, publisher.Publish(context.Background(), EventFundsCleared, "wallet-1", map[string]string{"amount": "90"}))
}

func TestPublishToleratesMissingAndFailingPublishers(t *testing.T) {
	assert.NotPanics(t, func() {
		publish(context.Background(), nil, EventCashoutPaid, "wallet-1", nil)
	})

	failing := &recordingPublisher{err: errGatewayDown}
	assert.NotPanics(t, func() {
		publish(context.Background(), failing, EventCashoutPaid, "wallet-1", nil)
	})
	assert.Equal(t, 1, failing.count(EventCashoutPaid))
}

func TestLedgerEventEnvelope(t *testing.T) {
	event := newLedgerEvent(EventEscrowReleased, map[string]string{"collaboration_id": "c-1"})

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, EventEscrowReleased, decoded["type"])
	assert.NotEmpty(t, decoded["id"])
	assert.NotEmpty(t, decoded["occurred_at"])
	assert.Equal(t, "c-1", decoded["data"].(map[string]interface{})["collaboration_id"])
}

func TestKafkaPublisherRequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "ledger.")
	assert.Error(t, err)

	publisher, err := NewKafkaPublisher([]string{"localhost:9092"}, "ledger.")
	require.NoError(t, err)
	assert.NoError(t, publisher.Close())
}
