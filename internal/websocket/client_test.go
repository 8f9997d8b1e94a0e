package websocket

import (
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundscope/internal/config"
)

func TestOptionsFromConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.WebSocketConfig
		wantPing time.Duration
		wantPong time.Duration
	}{
		{
			name:     "configured",
			cfg:      config.WebSocketConfig{PingPeriod: 20 * time.Second, PongWait: 30 * time.Second},
			wantPing: 20 * time.Second,
			wantPong: 30 * time.Second,
		},
		{
			name:     "ping not shorter than pong",
			cfg:      config.WebSocketConfig{PingPeriod: 40 * time.Second, PongWait: 30 * time.Second},
			wantPing: 27 * time.Second,
			wantPong: 30 * time.Second,
		},
		{
			name:     "zero values",
			wantPing: 54 * time.Second,
			wantPong: 60 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := OptionsFromConfig(tt.cfg)
			assert.Equal(t, tt.wantPing, opts.PingPeriod)
			assert.Equal(t, tt.wantPong, opts.PongWait)
			assert.Equal(t, 256, opts.SendBuffer)
		})
	}
}

func TestClientWritePump(t *testing.T) {
	hub := NewHub(testLogger(), Options{})
	conn := newMockConnection()
	c := NewClient(hub, conn, "", testLogger())

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	c.send <- []byte(`{"type":"dataset:reloaded"}`)
	close(c.send)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}

	msgs := conn.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, websocket.TextMessage, msgs[0].Type)
	assert.JSONEq(t, `{"type":"dataset:reloaded"}`, string(msgs[0].Data))
	assert.Equal(t, websocket.CloseMessage, msgs[1].Type)
	assert.True(t, conn.isClosed())
}

func TestClientWritePumpStopsOnWriteError(t *testing.T) {
	hub := NewHub(testLogger(), Options{})
	conn := newMockConnection()
	conn.writeErr = errors.New("broken pipe")
	c := NewClient(hub, conn, "", testLogger())

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()
	c.send <- []byte(`{}`)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("write pump did not stop")
	}
	assert.True(t, conn.isClosed())
}

func TestClientWritePumpPings(t *testing.T) {
	hub := NewHub(testLogger(), Options{PongWait: 50 * time.Millisecond, PingPeriod: 10 * time.Millisecond})
	conn := newMockConnection()
	c := NewClient(hub, conn, "", testLogger())

	go c.WritePump()
	defer close(c.send)

	require.Eventually(t, func() bool {
		for _, m := range conn.messages() {
			if m.Type == websocket.PingMessage {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestClientReadPump(t *testing.T) {
	hub := newTestHub(t)
	conn := newMockConnection()
	c := NewClient(hub, conn, "trace-1", testLogger())
	require.True(t, hub.Register(c))
	receive(t, c)

	done := make(chan struct{})
	go func() {
		c.ReadPump()
		close(done)
	}()

	conn.reads <- mockMessage{Type: websocket.TextMessage, Data: []byte(`{"type":"heartbeat"}`)}
	conn.reads <- mockMessage{Type: websocket.TextMessage, Data: []byte("hello\nthere")}
	conn.reads <- mockMessage{Err: &websocket.CloseError{Code: websocket.CloseNormalClosure}}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("read pump did not stop")
	}

	assert.True(t, conn.isClosed())
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 512, conn.readLimit)
	require.NotNil(t, conn.pongHandler)
	assert.NoError(t, conn.pongHandler(""))
	assert.EqualValues(t, 2, hub.Metrics().MessagesReceived)
}
