package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsConnections(t *testing.T) {
	m := NewMetrics()

	m.RecordConnection()
	m.RecordConnection()
	m.RecordDisconnection(2 * time.Second)
	m.RecordDisconnection(4 * time.Second)
	// an extra disconnect never drives the active count negative
	m.RecordDisconnection(0)

	assert.EqualValues(t, 2, m.TotalConnections)
	assert.EqualValues(t, 0, m.ActiveConnections)
	assert.EqualValues(t, 2, m.MaxConcurrent)
	assert.Equal(t, 2*time.Second, m.AvgConnectionTime)
}

func TestMetricsMessagesAndSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordSent(100)
	m.RecordSent(50)
	m.RecordReceived(20)
	m.RecordDroppedMessage()
	m.RecordSlowClient()
	m.RecordQueueDepth(7)
	m.RecordQueueDepth(3)

	snap := m.GetSnapshot()
	messages := snap["messages"].(map[string]interface{})
	assert.EqualValues(t, 2, messages["sent"])
	assert.EqualValues(t, 150, messages["bytes_sent"])
	assert.EqualValues(t, 1, messages["received"])
	assert.EqualValues(t, 1, messages["dropped"])
	assert.EqualValues(t, 1, snap["connections"].(map[string]interface{})["slow_clients"])
	assert.EqualValues(t, 7, snap["max_queue_depth"])

	m.Reset()
	assert.Zero(t, m.MessagesSent)
	assert.Zero(t, m.MaxQueueDepth)
}

func TestOTelMetrics(t *testing.T) {
	original := globalOTelMetrics
	defer func() { globalOTelMetrics = original }()

	globalOTelMetrics = nil
	assert.Nil(t, GetOTelMetrics())

	// the global meter provider is a no-op unless one is installed
	require.NoError(t, InitOTelMetrics())
	m := GetOTelMetrics()
	require.NotNil(t, m)

	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordConnection(ctx, 1)
		m.RecordMessage(ctx, "outbound", 42)
		m.RecordBroadcast(ctx, 1, 0)
		m.RecordDroppedMessage(ctx, "dataset:reloaded", "queue_full")
		m.RecordQueueDepth(ctx, 0)
		m.RecordDisconnection(ctx, time.Second, "normal", 0)
	})
}
