package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/teslashibe/go-pano/pkg/protocol"
	"github.com/teslashibe/go-pano/pkg/session"
)

func transitions(mode session.Mode, outcome session.Outcome, frames, requested int, states ...session.State) []session.Event {
	var evs []session.Event
	from := session.Accepted
	for _, st := range states {
		ev := session.Event{Session: "s1", Mode: mode, From: from, State: st, Elapsed: 100 * time.Millisecond}
		if st == session.Closed {
			ev.Outcome = outcome
			ev.Frames = frames
			ev.Requested = requested
		}
		evs = append(evs, ev)
		from = st
	}
	return evs
}

func TestObserve_SessionLifecycle(t *testing.T) {
	m := New()

	evs := transitions(session.ModePanorama, session.OutcomeSuccess, 3, 3,
		session.SourceOpened, session.Capturing, session.Stitching,
		session.Cropping, session.Sending, session.Closed)

	for _, ev := range evs[:3] {
		m.Observe(ev)
	}
	if got := testutil.ToFloat64(m.sessionsActive.WithLabelValues("panorama")); got != 1 {
		t.Errorf("sessions_active = %v, want 1 mid-session", got)
	}

	for _, ev := range evs[3:] {
		m.Observe(ev)
	}

	if got := testutil.ToFloat64(m.sessionsActive.WithLabelValues("panorama")); got != 0 {
		t.Errorf("sessions_active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal.WithLabelValues("panorama", "success")); got != 1 {
		t.Errorf("sessions_total{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.framesCaptured); got != 3 {
		t.Errorf("frames_captured_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.framesDropped); got != 0 {
		t.Errorf("frames_dropped_total = %v, want 0", got)
	}

	// One observation per state left after SourceOpened.
	if n := testutil.CollectAndCount(m.stageDuration); n != 5 {
		t.Errorf("stage_duration series = %d, want 5", n)
	}
}

func TestObserve_DroppedFrames(t *testing.T) {
	m := New()

	for _, ev := range transitions(session.ModeFrames, session.OutcomeFailure, 1, 3,
		session.SourceOpened, session.Capturing, session.Closed) {
		m.Observe(ev)
	}

	if got := testutil.ToFloat64(m.framesDropped); got != 2 {
		t.Errorf("frames_dropped_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.sessionsTotal.WithLabelValues("frames", "failure")); got != 1 {
		t.Errorf("sessions_total{failure} = %v, want 1", got)
	}
}

func TestMessageSent(t *testing.T) {
	m := New()
	m.MessageSent(protocol.TypeFrame)
	m.MessageSent(protocol.TypeFrame)
	m.MessageSent(protocol.TypeFailure)

	if got := testutil.ToFloat64(m.messagesSent.WithLabelValues("frame")); got != 2 {
		t.Errorf("messages_sent_total{frame} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.messagesSent.WithLabelValues("failure")); got != 1 {
		t.Errorf("messages_sent_total{failure} = %v, want 1", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.MessageSent(protocol.TypeResult)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `pano_messages_sent_total{type="result"} 1`) {
		t.Errorf("metrics output missing counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics output missing Go collector")
	}
}
