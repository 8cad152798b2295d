package letterboxd

import (
	"errors"
	"fmt"
	"time"
)

// ErrFetch is returned when the diary cannot be retrieved: the site is
// unreachable, answers with a non-200 status, or the breaker is open.
var ErrFetch = errors.New("could not retrieve watch history")

// Config configures the diary client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	MaxPages  int
	UserAgent string

	// Breaker opens after this many consecutive failed fetches and stays
	// open for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig fetches only the first diary page, as the public site lists
// the most recent entries there.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://letterboxd.com",
		Timeout:         10 * time.Second,
		MaxPages:        1,
		UserAgent:       "reelmatch/1.0",
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// statusError is a non-200 response. It matches ErrFetch.
type statusError struct {
	url  string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: GET %s: status %d", ErrFetch, e.url, e.code)
}

func (e *statusError) Is(target error) bool { return target == ErrFetch }
