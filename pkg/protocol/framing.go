package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// FailureSentinel is the literal legacy consumers compare against before
// decoding a payload. It contains '_' so it can never be valid base64 in the
// standard alphabet.
const FailureSentinel = "STITCHING_FAILED"

// Framing selects how messages are laid out on the wire.
type Framing string

const (
	// FramingEnvelope sends every message as a JSON {type, ts, data} envelope.
	FramingEnvelope Framing = "envelope"

	// FramingLegacy sends bare base64 text for FRAME/RESULT and the
	// FailureSentinel literal for FAILURE.
	FramingLegacy Framing = "legacy"
)

var (
	ErrUnknownFraming   = errors.New("protocol: unknown framing")
	ErrNotRepresentable = errors.New("protocol: message has no legacy representation")
	ErrUnknownType      = errors.New("protocol: unknown message type")
	ErrNoPayload        = errors.New("protocol: message carries no payload")
)

// ParseFraming parses a framing name. An empty name selects the envelope.
func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "", FramingEnvelope:
		return FramingEnvelope, nil
	case FramingLegacy:
		return FramingLegacy, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFraming, s)
	}
}

// Encode lays msg out for the wire.
func Encode(msg *Message, f Framing) ([]byte, error) {
	switch f {
	case FramingEnvelope, "":
		return msg.Bytes()
	case FramingLegacy:
		if msg.Type == TypeFailure {
			return []byte(FailureSentinel), nil
		}
		if msg.Type != TypeFrame && msg.Type != TypeResult {
			return nil, fmt.Errorf("%w: %s", ErrNotRepresentable, msg.Type)
		}
		var data struct {
			Data string `json:"data"`
		}
		if err := msg.ParseData(&data); err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", msg.Type, err)
		}
		return []byte(data.Data), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFraming, f)
	}
}

// Decode parses one wire message. Legacy frames carry no type tag, so
// expect names what a non-sentinel payload is (TypeFrame or TypeResult).
// The sentinel is matched exactly before anything is decoded.
func Decode(data []byte, f Framing, expect MessageType) (*Message, error) {
	switch f {
	case FramingEnvelope, "":
		msg, err := ParseMessage(data)
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case TypeFrame, TypeResult, TypeFailure, TypePing, TypePong:
			return msg, nil
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
		}
	case FramingLegacy:
		text := string(data)
		if text == FailureSentinel {
			return NewFailureMessage(""), nil
		}
		if _, err := base64.StdEncoding.DecodeString(text); err != nil {
			return nil, fmt.Errorf("protocol: legacy payload: %w", err)
		}
		switch expect {
		case TypeFrame:
			return NewMessage(TypeFrame, FrameData{Data: text})
		case TypeResult:
			return NewMessage(TypeResult, ResultData{Data: text})
		default:
			return nil, fmt.Errorf("%w: %s", ErrNotRepresentable, expect)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFraming, f)
	}
}
