package render

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrSessionTerminated means the browser behind the session is gone.
// No further calls on the session can succeed; callers should stop
// rather than retry.
var ErrSessionTerminated = eris.New("render: session terminated")

// NavigationError reports a failed page load. Navigation failures are
// usually transient (slow origin, flaky DNS, nav timeout) and safe to
// retry on a live session.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("render: navigate %s: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
