package session

import "time"

// Event records one state transition.
type Event struct {
	Session string        `json:"session"`
	Mode    Mode          `json:"mode"`
	From    State         `json:"from"`
	State   State         `json:"state"`
	Elapsed time.Duration `json:"elapsed"` // Time spent in From
	At      time.Time     `json:"at"`

	// Set on the transition out of Capturing and on Closed.
	Frames    int `json:"frames,omitempty"`
	Requested int `json:"requested,omitempty"`

	// Set on the transition into Closed.
	Outcome Outcome `json:"outcome,omitempty"`
	Err     string  `json:"error,omitempty"`
}

// Observer receives session events. Observe must not block.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe calls f.
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Observers fans one event out to several observers in order.
type Observers []Observer

// Observe forwards ev to every non-nil observer.
func (o Observers) Observe(ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ev)
		}
	}
}
