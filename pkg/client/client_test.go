package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-pano/internal/log"
	"github.com/teslashibe/go-pano/pkg/frame"
	"github.com/teslashibe/go-pano/pkg/protocol"
)

// textDecoder treats payloads of the form "WxH" as valid images.
type textDecoder struct{}

func (textDecoder) Decode(data []byte) (frame.Image, error) {
	var w, h int
	if _, err := fmt.Sscanf(string(data), "%dx%d", &w, &h); err != nil {
		return frame.Image{}, errors.New("not an image")
	}
	return frame.New(w, h, 3), nil
}

// script is what the fake capture host writes after the handshake.
type script func(t *testing.T, r *http.Request, ws *websocket.Conn)

func fakeHost(t *testing.T, fn script) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		fn(t, r, ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(base string, framing protocol.Framing) *Client {
	cfg := DefaultConfig()
	cfg.BaseURL = base
	cfg.Framing = framing
	cfg.ReadTimeout = 2 * time.Second
	return New(cfg, log.Discard())
}

func send(t *testing.T, ws *websocket.Conn, msg *protocol.Message, f protocol.Framing) {
	t.Helper()
	data, err := protocol.Encode(msg, f)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestFetchPanorama_Result(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, r *http.Request, ws *websocket.Conn) {
		assert.Equal(t, PanoramaPath, r.URL.Path)
		assert.Equal(t, "envelope", r.URL.Query().Get("framing"))
		msg, _ := protocol.NewResultMessage(8, 4, "jpeg", []byte("8x4"), "s1", 3)
		send(t, ws, msg, protocol.FramingEnvelope)
		ws.ReadMessage() // wait for the client to hang up
	})

	res, err := newClient(base, protocol.FramingEnvelope).FetchPanorama(context.Background(), textDecoder{})
	require.NoError(t, err)
	assert.Equal(t, 8, res.Image.Width)
	assert.Equal(t, 4, res.Image.Height)
	assert.Equal(t, "jpeg", res.Format)
	assert.Equal(t, "s1", res.Session)
	assert.Equal(t, 3, res.Frames)
	assert.Equal(t, []byte("8x4"), res.Raw)
}

func TestFetchPanorama_Failure(t *testing.T) {
	for _, f := range []protocol.Framing{protocol.FramingEnvelope, protocol.FramingLegacy} {
		t.Run(string(f), func(t *testing.T) {
			base := fakeHost(t, func(t *testing.T, _ *http.Request, ws *websocket.Conn) {
				send(t, ws, protocol.NewFailureMessage("s1"), f)
				ws.ReadMessage()
			})

			_, err := newClient(base, f).FetchPanorama(context.Background(), textDecoder{})
			assert.ErrorIs(t, err, ErrRemoteFailure)
		})
	}
}

func TestFetchPanorama_LegacyResult(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, r *http.Request, ws *websocket.Conn) {
		assert.Equal(t, "legacy", r.URL.Query().Get("framing"))
		ws.WriteMessage(websocket.TextMessage, []byte(base64.StdEncoding.EncodeToString([]byte("6x2"))))
		ws.ReadMessage()
	})

	res, err := newClient(base, protocol.FramingLegacy).FetchPanorama(context.Background(), textDecoder{})
	require.NoError(t, err)
	assert.Equal(t, 6, res.Image.Width)
	assert.Empty(t, res.Format)
}

func TestFetchPanorama_DecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		framing protocol.Framing
		payload string
	}{
		{"legacy malformed base64", protocol.FramingLegacy, "%%%"},
		{"legacy not an image", protocol.FramingLegacy, base64.StdEncoding.EncodeToString([]byte("garbage"))},
		{"envelope garbage", protocol.FramingEnvelope, "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := fakeHost(t, func(t *testing.T, _ *http.Request, ws *websocket.Conn) {
				ws.WriteMessage(websocket.TextMessage, []byte(tt.payload))
				ws.ReadMessage()
			})

			_, err := newClient(base, tt.framing).FetchPanorama(context.Background(), textDecoder{})
			var decErr *DecodeError
			assert.True(t, errors.As(err, &decErr), "error = %v", err)
		})
	}
}

func TestFetchPanorama_ConnectionLost(t *testing.T) {
	base := fakeHost(t, func(*testing.T, *http.Request, *websocket.Conn) {})

	_, err := newClient(base, protocol.FramingEnvelope).FetchPanorama(context.Background(), textDecoder{})
	assert.ErrorIs(t, err, ErrConnectionLost)
}

func TestFetchPanorama_ContextCanceled(t *testing.T) {
	base := fakeHost(t, func(_ *testing.T, _ *http.Request, ws *websocket.Conn) {
		ws.ReadMessage()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newClient(base, protocol.FramingEnvelope).FetchPanorama(ctx, textDecoder{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func frameMsg(t *testing.T, id uint64, payload string) *protocol.Message {
	t.Helper()
	msg, err := protocol.NewFrameMessage(4, 2, "jpeg", []byte(payload), id, 3)
	require.NoError(t, err)
	return msg
}

func TestFetchFrames_All(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, r *http.Request, ws *websocket.Conn) {
		assert.Equal(t, FramesPath, r.URL.Path)
		for i := 1; i <= 3; i++ {
			send(t, ws, frameMsg(t, uint64(i), "4x2"), protocol.FramingEnvelope)
		}
		ws.ReadMessage()
	})

	frames, err := newClient(base, protocol.FramingEnvelope).FetchFrames(context.Background(), 3, textDecoder{})
	require.NoError(t, err)
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.ID)
		assert.Equal(t, []byte("4x2"), f.Raw)
	}
}

func TestFetchFrames_CountFromHost(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, _ *http.Request, ws *websocket.Conn) {
		for i := 1; i <= 3; i++ {
			send(t, ws, frameMsg(t, uint64(i), "4x2"), protocol.FramingEnvelope)
		}
		ws.ReadMessage()
	})

	frames, err := newClient(base, protocol.FramingEnvelope).FetchFrames(context.Background(), 0, textDecoder{})
	require.NoError(t, err)
	assert.Len(t, frames, 3)
}

func TestFetchFrames_EarlyClose(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, _ *http.Request, ws *websocket.Conn) {
		send(t, ws, frameMsg(t, 1, "4x2"), protocol.FramingEnvelope)
		send(t, ws, frameMsg(t, 3, "4x2"), protocol.FramingEnvelope)
	})

	frames, err := newClient(base, protocol.FramingEnvelope).FetchFrames(context.Background(), 3, textDecoder{})
	assert.ErrorIs(t, err, ErrConnectionLost)
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(1), frames[0].ID)
	assert.Equal(t, uint64(3), frames[1].ID)
}

func TestFetchFrames_LegacySkipsBadFrame(t *testing.T) {
	base := fakeHost(t, func(t *testing.T, _ *http.Request, ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte(base64.StdEncoding.EncodeToString([]byte("4x2"))))
		ws.WriteMessage(websocket.TextMessage, []byte("!!"))
		ws.WriteMessage(websocket.TextMessage, []byte(base64.StdEncoding.EncodeToString([]byte("5x2"))))
		ws.ReadMessage()
	})

	frames, err := newClient(base, protocol.FramingLegacy).FetchFrames(context.Background(), 3, textDecoder{})
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, uint64(1), frames[0].ID)
	assert.Equal(t, 5, frames[1].Image.Width)
}

func TestEndpoint(t *testing.T) {
	c := newClient("http://host:8765/", protocol.FramingLegacy)
	u, err := c.endpoint(PanoramaPath)
	require.NoError(t, err)
	assert.Equal(t, "ws://host:8765/ws/panorama?framing=legacy", u)
}

func TestDecodeErrorMessage(t *testing.T) {
	base := errors.New("bad")
	assert.Equal(t, "client: decode frame 2: bad", (&DecodeError{FrameID: 2, Err: base}).Error())
	assert.Equal(t, "client: decode panorama: bad", (&DecodeError{Err: base}).Error())
	assert.ErrorIs(t, &DecodeError{Err: base}, base)
}
