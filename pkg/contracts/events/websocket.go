// Package events contains the event contracts pushed to websocket clients
// when the funding dataset changes.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Connection messages
	MessageTypeConnection MessageType = "connection"
	MessageTypeError      MessageType = "error"

	// Dataset messages
	MessageTypeDatasetReloaded MessageType = "dataset:reloaded"
	MessageTypeDatasetError    MessageType = "dataset:error"

	// System messages
	MessageTypeSystemStatus MessageType = "system:status"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ConnectionEvent is sent to a client right after it registers.
type ConnectionEvent struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ClientID string `json:"client_id"`
}

// DatasetReloaded is broadcast when a reload swapped in a new dataset.
type DatasetReloaded struct {
	Source         string    `json:"source"`
	Fingerprint    string    `json:"fingerprint"`
	Previous       string    `json:"previous_fingerprint,omitempty"`
	Rows           int       `json:"rows"`
	Skipped        int       `json:"skipped"`
	InvalidAmounts int       `json:"invalid_amounts"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// DatasetError is broadcast when a reload fails. The previous dataset, if
// any, stays in service.
type DatasetError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

// SystemStatusEvent represents a system status event
type SystemStatusEvent struct {
	Status  string `json:"status"` // ready|not_ready
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}
