package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fundscope/internal/infrastructure"
	"fundscope/pkg/contracts/events"
)

const broadcastQueueSize = 256

// Hub maintains the set of active clients and broadcasts dataset events to
// them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	opts    Options
	metrics *Metrics

	quit    chan struct{}
	done    chan struct{}
	running bool
	stopped bool
}

// NewHub creates a hub. Clients created for it use opts for their pumps.
func NewHub(logger *slog.Logger, opts Options) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		opts:       opts.withDefaults(),
		metrics:    NewMetrics(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start starts the hub loop and the periodic metrics report. It is a
// no-op once the hub is running or stopped.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running || h.stopped {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
	go h.reportMetrics()
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "normal")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.RecordConnection()
	if m := GetOTelMetrics(); m != nil {
		m.RecordConnection(ctx, count)
	}

	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	msg, err := encodeMessage(events.MessageTypeConnection, events.ConnectionEvent{
		Status:   "connected",
		Message:  "Connected to fundscope",
		ClientID: client.id,
	}, client.traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode connection message", slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- msg:
	default:
		h.logger.WarnContext(ctx, "connection message dropped, client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.RecordDisconnection(duration)
	if m := GetOTelMetrics(); m != nil {
		m.RecordDisconnection(ctx, duration, reason, count)
	}

	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration))
}

func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var failed int
	for _, client := range clients {
		select {
		case client.send <- message:
			h.metrics.RecordSent(len(message))
		default:
			// a client that cannot keep up is dropped rather than
			// stalling every other client
			failed++
			h.metrics.RecordSlowClient()
			h.removeClient(client, "slow_consumer")
		}
	}

	h.logger.Debug("broadcast delivered",
		slog.Int("client_count", len(clients)),
		slog.Int("failed", failed),
		slog.Int("message_size", len(message)))

	if m := GetOTelMetrics(); m != nil {
		m.RecordBroadcast(context.Background(), len(clients), failed)
	}
}

// Register adds a client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Broadcast queues an event for every connected client. It never blocks:
// when the queue is full or the hub has stopped the event is dropped.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.BroadcastContext(context.Background(), messageType, data)
}

// BroadcastContext is Broadcast carrying the trace ID found in ctx.
func (h *Hub) BroadcastContext(ctx context.Context, messageType string, data interface{}) {
	traceID := infrastructure.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = infrastructure.GetTraceID(ctx)
	}

	msg, err := encodeMessage(events.MessageType(messageType), data, traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to encode broadcast",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case <-h.quit:
		h.drop(ctx, messageType, "hub_stopped")
		return
	default:
	}

	select {
	case h.broadcast <- msg:
	default:
		h.drop(ctx, messageType, "queue_full")
	}
}

func (h *Hub) drop(ctx context.Context, messageType, reason string) {
	h.metrics.RecordDroppedMessage()
	if m := GetOTelMetrics(); m != nil {
		m.RecordDroppedMessage(ctx, messageType, reason)
	}
	h.logger.WarnContext(ctx, "broadcast dropped",
		slog.String("message_type", messageType),
		slog.String("reason", reason))
}

func encodeMessage(messageType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      messageType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Metrics returns the hub's in-process counters.
func (h *Hub) Metrics() *Metrics {
	return h.metrics
}

// Stop stops the hub loop and closes every client's send channel, which
// ends their write pumps. Calling Stop more than once is safe.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	wasRunning := h.running
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	if wasRunning {
		<-h.done
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// reportMetrics periodically logs hub metrics
func (h *Hub) reportMetrics() {
	ticker := time.NewTicker(h.opts.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return

		case <-ticker.C:
			depth := len(h.broadcast)
			h.metrics.RecordQueueDepth(int64(depth))
			if m := GetOTelMetrics(); m != nil {
				m.RecordQueueDepth(context.Background(), depth)
			}

			h.logger.Info("websocket hub metrics",
				slog.Int("active_clients", h.ClientCount()),
				slog.Int("broadcast_queue", depth),
				slog.Any("snapshot", h.metrics.GetSnapshot()))
		}
	}
}
