package protocol

import (
	"encoding/base64"
	"time"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewFrameMessage creates a frame message from encoded image data
func NewFrameMessage(width, height int, format string, imageData []byte, frameID uint64, total int) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  format,
		Data:    base64.StdEncoding.EncodeToString(imageData),
		FrameID: frameID,
		Total:   total,
	})
}

// NewResultMessage creates the terminal success message
func NewResultMessage(width, height int, format string, imageData []byte, session string, frames int) (*Message, error) {
	return NewMessage(TypeResult, ResultData{
		Width:   width,
		Height:  height,
		Format:  format,
		Data:    base64.StdEncoding.EncodeToString(imageData),
		Session: session,
		Frames:  frames,
	})
}

// NewFailureMessage creates the terminal failure message
func NewFailureMessage(session string) *Message {
	// FailureData always marshals.
	msg, _ := NewMessage(TypeFailure, FailureData{Session: session})
	return msg
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: time.Now().UnixMilli(),
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeFrameData decodes the base64 image data
func (f *FrameData) DecodeFrameData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// GetResultData extracts result data from a message
func (m *Message) GetResultData() (*ResultData, error) {
	var data ResultData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeResultData decodes the base64 image data
func (r *ResultData) DecodeResultData() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.Data)
}

// GetFailureData extracts failure data from a message
func (m *Message) GetFailureData() (*FailureData, error) {
	var data FailureData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Payload returns the decoded image bytes of a FRAME or RESULT message.
func (m *Message) Payload() ([]byte, error) {
	switch m.Type {
	case TypeFrame:
		d, err := m.GetFrameData()
		if err != nil {
			return nil, err
		}
		return d.DecodeFrameData()
	case TypeResult:
		d, err := m.GetResultData()
		if err != nil {
			return nil, err
		}
		return d.DecodeResultData()
	default:
		return nil, ErrNoPayload
	}
}
