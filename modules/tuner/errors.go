package tuner

import (
	"errors"
	"strings"
	"time"
)

// ErrConnectTimeout is returned when the connect deadline fires before the
// player reached playing.
var ErrConnectTimeout = errors.New("connect timeout")

// errSuperseded marks work overtaken by a concurrent toggle or failure.
var errSuperseded = errors.New("superseded")

func superseded(err error) error {
	if errors.Is(err, errSuperseded) {
		return nil
	}
	return err
}

// ConnectionExhaustedError is returned when every source failed.
type ConnectionExhaustedError struct {
	Details []string
}

func (e *ConnectionExhaustedError) Error() string {
	if len(e.Details) == 0 {
		return "no source could be played, configure tuner.stream-urls with a valid endpoint"
	}
	return strings.Join(e.Details, " | ")
}

// Alert is raised when a connection fails for good and the listener should
// be told.
type Alert struct {
	Title  string    `json:"title"`
	Detail string    `json:"detail"`
	Time   time.Time `json:"time"`
}

func timeoutDetail(d time.Duration) string {
	return "timeout after " + d.String()
}
