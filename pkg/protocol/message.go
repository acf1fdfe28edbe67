// Package protocol defines the WebSocket messages exchanged between a
// capture host and a panorama consumer.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Capture host → consumer
	TypeFrame   MessageType = "frame"   // One raw captured frame
	TypeResult  MessageType = "result"  // Final cropped panorama
	TypeFailure MessageType = "failure" // No usable artifact was produced

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Terminal reports whether t ends the send side of a session.
func (t MessageType) Terminal() bool {
	return t == TypeResult || t == TypeFailure
}

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Capture host → consumer message types
// =============================================================================

// FrameData contains one raw frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg", "png"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id"`
	Total   int    `json:"total,omitempty"` // Frames requested for the session
}

// ResultData contains the final cropped panorama
type ResultData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"`
	Data    string `json:"data"` // base64 encoded
	Session string `json:"session,omitempty"`
	Frames  int    `json:"frames,omitempty"` // Frames that went into the stitch
}

// FailureData accompanies a FAILURE message. It deliberately carries no
// failure reason: consumers only learn that nothing usable was produced.
type FailureData struct {
	Session string `json:"session,omitempty"`
}

// =============================================================================
// Bidirectional message types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
