package aggregate

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoData signals an empty store on the read path. It is an explicit
// empty-result condition, not a fault.
var ErrNoData = errors.New("no data available")

// ValidationError rejects a malformed query parameter before any store
// access.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Window is a canonical trailing lookback range.
type Window struct {
	Token    string
	Duration time.Duration
}

var windowDurations = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ParseWindow validates a window token. Valid tokens: 1h, 24h, 7d, 30d.
func ParseWindow(token string) (Window, error) {
	d, ok := windowDurations[token]
	if !ok {
		return Window{}, &ValidationError{Msg: fmt.Sprintf("unsupported window %q, expected one of 1h, 24h, 7d, 30d", token)}
	}
	return Window{Token: token, Duration: d}, nil
}

// Intraday reports whether historical points for this window are keyed by
// exact instant rather than calendar day.
func (w Window) Intraday() bool {
	return w.Duration <= 24*time.Hour
}
