package websocket

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fundscope/internal/config"
	"fundscope/internal/infrastructure"
)

// Options tunes the client pumps and the hub's metrics report.
type Options struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Ping period, must be less than PongWait
	PingPeriod time.Duration
	// Maximum message size allowed from peer
	MaxMessageSize int64
	// Capacity of each client's outbound queue
	SendBuffer int
	// How often the hub logs its metrics
	MetricsInterval time.Duration
}

// OptionsFromConfig builds client options from the websocket config.
func OptionsFromConfig(cfg config.WebSocketConfig) Options {
	return Options{
		PongWait:   cfg.PongWait,
		PingPeriod: cfg.PingPeriod,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = config.WebSocketPongWait
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = (o.PongWait * 9) / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 512
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 256
	}
	if o.MetricsInterval <= 0 {
		o.MetricsInterval = 30 * time.Second
	}
	return o
}

var (
	newline   = []byte{'\n'}
	space     = []byte{' '}
	heartbeat = []byte(`{"type":"heartbeat"}`)
)

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages
	send chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for conn. traceID, usually the request ID of
// the upgrade request, is attached to every log line and message.
func NewClient(hub *Hub, conn Connection, traceID string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	id := uuid.New().String()
	logger = logger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)
	if traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, hub.opts.SendBuffer),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier sent in the connection event.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

// ReadPump reads from the connection until it fails, then unregisters the
// client. Clients only send heartbeats; anything else is logged and
// ignored.
func (c *Client) ReadPump() {
	ctx := c.context()
	var received int
	defer func() {
		c.logger.InfoContext(ctx, "websocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)),
			slog.Int("messages_received", received))
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	opts := c.hub.opts
	c.conn.SetReadLimit(opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(ctx, "unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		message = bytes.TrimSpace(bytes.ReplaceAll(message, newline, space))

		received++
		c.hub.metrics.RecordReceived(len(message))
		if m := GetOTelMetrics(); m != nil {
			m.RecordMessage(ctx, "inbound", len(message))
		}

		if bytes.Equal(message, heartbeat) {
			_ = c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
			continue
		}
		c.logger.DebugContext(ctx, "ignoring client message", slog.Int("size", len(message)))
	}
}

// WritePump writes queued messages and periodic pings until the send
// channel is closed or a write fails.
func (c *Client) WritePump() {
	ctx := c.context()
	opts := c.hub.opts
	ticker := time.NewTicker(opts.PingPeriod)
	var sent int
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
		c.logger.InfoContext(ctx, "websocket write pump stopped", slog.Int("messages_sent", sent))
	}()

	write := func(messageType int, data []byte) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
		if err := c.conn.WriteMessage(messageType, data); err != nil {
			c.logger.DebugContext(ctx, "websocket write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// the hub closed the channel
				write(websocket.CloseMessage, []byte{})
				return
			}
			if !write(websocket.TextMessage, message) {
				return
			}
			sent++
			if m := GetOTelMetrics(); m != nil {
				m.RecordMessage(ctx, "outbound", len(message))
			}

		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
