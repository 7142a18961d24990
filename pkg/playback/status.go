// Package playback holds the player state, the pure reducer that folds
// engine status events into it, and the engine boundary the tuner drives.
package playback

import "fmt"

// Status is the user-facing player state.
type Status int

const (
	Idle Status = iota
	Connecting
	Buffering
	Playing
	Paused
	Error
)

var statusNames = [...]string{
	Idle:       "idle",
	Connecting: "connecting",
	Buffering:  "buffering",
	Playing:    "playing",
	Paused:     "paused",
	Error:      "error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

// MarshalText encodes the status as its lower-case name.
func (s Status) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Status) UnmarshalText(b []byte) error {
	for i, n := range statusNames {
		if n == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", string(b))
}

// State is what observers see. Live is true only while the engine reports
// audio actually playing. Connecting tracks an attempt in flight and is not
// observable on its own.
type State struct {
	Status     Status `json:"status"`
	Live       bool   `json:"live"`
	Connecting bool   `json:"-"`
}

// Same reports whether two states look identical to observers.
func (s State) Same(o State) bool {
	return s.Status == o.Status && s.Live == o.Live
}
