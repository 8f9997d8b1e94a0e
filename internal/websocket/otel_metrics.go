package websocket

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fundscope/internal/infrastructure"
)

const meterName = infrastructure.MeterName + ".websocket"

// OTelMetrics provides OpenTelemetry metrics for websocket connections and
// broadcasts.
type OTelMetrics struct {
	connectionsTotal   metric.Int64Counter
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram

	messagesTotal   metric.Int64Counter
	messageBytes    metric.Int64Counter
	droppedMessages metric.Int64Counter

	broadcastOperations metric.Int64Counter
	queueDepth          metric.Int64Gauge
	clientCount         metric.Int64Gauge
}

// NewOTelMetrics registers the instruments on the global meter provider.
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(meterName)
	m := &OTelMetrics{}
	var err error

	if m.connectionsTotal, err = meter.Int64Counter(
		"websocket_connections_total",
		metric.WithDescription("Total number of WebSocket connections"),
	); err != nil {
		return nil, err
	}
	if m.connectionsActive, err = meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	); err != nil {
		return nil, err
	}
	if m.connectionDuration, err = meter.Float64Histogram(
		"websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.messagesTotal, err = meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("Total number of WebSocket messages"),
	); err != nil {
		return nil, err
	}
	if m.messageBytes, err = meter.Int64Counter(
		"websocket_message_bytes_total",
		metric.WithDescription("Total bytes of WebSocket messages"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if m.droppedMessages, err = meter.Int64Counter(
		"websocket_dropped_messages_total",
		metric.WithDescription("Broadcasts dropped before delivery"),
	); err != nil {
		return nil, err
	}
	if m.broadcastOperations, err = meter.Int64Counter(
		"websocket_broadcasts_total",
		metric.WithDescription("Total number of broadcast operations"),
	); err != nil {
		return nil, err
	}
	if m.queueDepth, err = meter.Int64Gauge(
		"websocket_queue_depth",
		metric.WithDescription("Current depth of the broadcast queue"),
	); err != nil {
		return nil, err
	}
	if m.clientCount, err = meter.Int64Gauge(
		"websocket_clients",
		metric.WithDescription("Number of connected WebSocket clients"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordConnection records a new WebSocket connection
func (m *OTelMetrics) RecordConnection(ctx context.Context, count int) {
	m.connectionsTotal.Add(ctx, 1)
	m.connectionsActive.Add(ctx, 1)
	m.clientCount.Record(ctx, int64(count))
}

// RecordDisconnection records a WebSocket disconnection
func (m *OTelMetrics) RecordDisconnection(ctx context.Context, duration time.Duration, reason string, count int) {
	attrs := metric.WithAttributes(attribute.String("disconnect_reason", reason))
	m.connectionsActive.Add(ctx, -1, attrs)
	m.connectionDuration.Record(ctx, duration.Seconds(), attrs)
	m.clientCount.Record(ctx, int64(count))
}

// RecordMessage records one message in the given direction.
func (m *OTelMetrics) RecordMessage(ctx context.Context, direction string, size int) {
	attrs := metric.WithAttributes(attribute.String("direction", direction))
	m.messagesTotal.Add(ctx, 1, attrs)
	m.messageBytes.Add(ctx, int64(size), attrs)
}

// RecordDroppedMessage records a broadcast that was not queued.
func (m *OTelMetrics) RecordDroppedMessage(ctx context.Context, messageType, reason string) {
	m.droppedMessages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("message_type", messageType),
		attribute.String("drop_reason", reason),
	))
}

// RecordBroadcast records a broadcast fan-out.
func (m *OTelMetrics) RecordBroadcast(ctx context.Context, clientCount, failCount int) {
	m.broadcastOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("client_count", clientCount),
		attribute.Int("fail_count", failCount),
	))
}

// RecordQueueDepth records the current broadcast queue depth
func (m *OTelMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	m.queueDepth.Record(ctx, int64(depth))
}

var globalOTelMetrics *OTelMetrics

// InitOTelMetrics initializes the package OpenTelemetry metrics. Nothing
// is recorded until it has been called.
func InitOTelMetrics() error {
	metrics, err := NewOTelMetrics()
	if err != nil {
		return err
	}
	globalOTelMetrics = metrics
	return nil
}

// GetOTelMetrics returns the package metrics, or nil before
// InitOTelMetrics.
func GetOTelMetrics() *OTelMetrics {
	return globalOTelMetrics
}
