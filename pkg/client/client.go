// Package client consumes a capture host: it fetches a finished panorama or
// a burst of raw frames over a websocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/frame"
	"github.com/teslashibe/go-pano/pkg/protocol"
)

// Endpoint paths on the capture host.
const (
	PanoramaPath = "/ws/panorama"
	FramesPath   = "/ws/frames"
)

// Decoder turns payload bytes into an image.
type Decoder interface {
	Decode(data []byte) (frame.Image, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the host, e.g. ws://10.0.0.5:8765.
	BaseURL string

	Framing protocol.Framing

	HandshakeTimeout time.Duration

	// ReadTimeout bounds the wait for each message. Capture plus stitch can
	// take tens of seconds.
	ReadTimeout time.Duration
}

// DefaultConfig returns defaults for a local host.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "ws://localhost:8765",
		Framing:          protocol.FramingEnvelope,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      2 * time.Minute,
	}
}

// Result is a received panorama.
type Result struct {
	Image   frame.Image
	Raw     []byte // Encoded bytes as sent
	Format  string // Empty with legacy framing
	Session string
	Frames  int
}

// Frame is one received raw frame.
type Frame struct {
	ID    uint64
	Image frame.Image
	Raw   []byte
}

// Client talks to one capture host.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

// New creates a client. A nil logger uses the global logger.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = log.L()
	}
	if cfg.Framing == "" {
		cfg.Framing = protocol.FramingEnvelope
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// FetchPanorama runs the server-side pipeline exchange: it waits for the
// single terminal message and decodes it.
func (c *Client) FetchPanorama(ctx context.Context, dec Decoder) (*Result, error) {
	conn, err := c.dial(ctx, PanoramaPath)
	if err != nil {
		return nil, err
	}
	defer c.hangUp(conn)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		msg, err := c.read(ctx, conn, protocol.TypeResult)
		if err != nil {
			return nil, err
		}

		switch msg.Type {
		case protocol.TypeFailure:
			return nil, ErrRemoteFailure
		case protocol.TypeResult:
			return c.decodeResult(msg, dec)
		case protocol.TypePong:
			continue
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
		}
	}
}

func (c *Client) decodeResult(msg *protocol.Message, dec Decoder) (*Result, error) {
	data, err := msg.GetResultData()
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	raw, err := data.DecodeResultData()
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	img, err := dec.Decode(raw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	c.logger.Info("client: panorama received", "size", img.String(), "bytes", len(raw))
	return &Result{
		Image:   img,
		Raw:     raw,
		Format:  data.Format,
		Session: data.Session,
		Frames:  data.Frames,
	}, nil
}

// FetchFrames runs the raw-frame exchange and collects up to count frames
// in the order sent. count <= 0 trusts the total announced by the host. A
// connection that closes early yields the frames received so far together
// with ErrConnectionLost. Undecodable frames are logged and skipped.
func (c *Client) FetchFrames(ctx context.Context, count int, dec Decoder) ([]Frame, error) {
	conn, err := c.dial(ctx, FramesPath)
	if err != nil {
		return nil, err
	}
	defer c.hangUp(conn)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var (
		frames   []Frame
		received int
	)
	for count <= 0 || received < count {
		msg, err := c.read(ctx, conn, protocol.TypeFrame)
		var decErr *DecodeError
		switch {
		case errors.As(err, &decErr):
			received++
			c.logger.Warn("client: skipping frame", "err", err)
			continue
		case errors.Is(err, ErrConnectionLost) && count <= 0:
			// Nothing announced how many to expect; closure ends the stream.
			return frames, nil
		case errors.Is(err, ErrConnectionLost):
			c.logger.Warn("client: frame stream ended early", "received", received, "expected", count)
			return frames, err
		case err != nil:
			return frames, err
		}
		if msg.Type != protocol.TypeFrame {
			if msg.Type == protocol.TypePong {
				continue
			}
			return frames, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
		}
		received++

		data, err := msg.GetFrameData()
		if err != nil {
			c.logger.Warn("client: bad frame message", "err", err)
			continue
		}
		if data.FrameID == 0 {
			data.FrameID = uint64(received)
		}
		if count <= 0 && data.Total > 0 {
			count = data.Total
		}

		f, err := decodeFrame(data, dec)
		if err != nil {
			c.logger.Warn("client: skipping frame", "err", err)
			continue
		}
		frames = append(frames, f)
		c.logger.Info("client: frame received", "frame", f.ID, "size", f.Image.String())
	}
	return frames, nil
}

func decodeFrame(data *protocol.FrameData, dec Decoder) (Frame, error) {
	raw, err := data.DecodeFrameData()
	if err != nil {
		return Frame{}, &DecodeError{FrameID: data.FrameID, Err: err}
	}
	img, err := dec.Decode(raw)
	if err != nil {
		return Frame{}, &DecodeError{FrameID: data.FrameID, Err: err}
	}
	return Frame{ID: data.FrameID, Image: img, Raw: raw}, nil
}

// dial connects to path on the host, asking for the configured framing.
func (c *Client) dial(ctx context.Context, path string) (*websocket.Conn, error) {
	u, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("client: dial %s: %w (status %d)", u, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("client: dial %s: %w", u, err)
	}
	c.logger.Debug("client: connected", "url", u)
	return conn, nil
}

func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/") + path)
	if err != nil {
		return "", fmt.Errorf("client: bad base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}

	q := u.Query()
	q.Set("framing", string(c.cfg.Framing))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// read returns the next protocol message. Closure of the connection maps
// to ErrConnectionLost, unless ctx ended it.
func (c *Client) read(ctx context.Context, conn *websocket.Conn, expect protocol.MessageType) (*protocol.Message, error) {
	if c.cfg.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
	}

	msg, err := protocol.Decode(data, c.cfg.Framing, expect)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return msg, nil
}

// hangUp closes politely; errors are irrelevant at this point.
func (c *Client) hangUp(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	conn.Close()
}
