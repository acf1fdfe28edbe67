package session

// State is a stage of the session lifecycle.
type State int

const (
	Accepted State = iota
	SourceOpened
	Capturing
	Stitching
	Cropping
	Sending
	Closed
)

var stateNames = [...]string{
	Accepted:     "accepted",
	SourceOpened: "source_opened",
	Capturing:    "capturing",
	Stitching:    "stitching",
	Cropping:     "cropping",
	Sending:      "sending",
	Closed:       "closed",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	return s == Closed
}

// Mode is the exchange shape a session runs.
type Mode string

const (
	// ModePanorama captures, stitches and crops on the host and sends one
	// RESULT or FAILURE.
	ModePanorama Mode = "panorama"

	// ModeFrames streams every captured frame to the consumer.
	ModeFrames Mode = "frames"
)

// Outcome summarizes how a closed session ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeFailure  Outcome = "failure"
	OutcomeCanceled Outcome = "canceled"
)
