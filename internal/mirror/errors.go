package mirror

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for the mirror package.
//
// Fetcher implementations classify remote failures with these errors so the
// coordinator can apply the right recovery:
//
//	if errors.Is(err, mirror.ErrUnsupported) {
//	    // type absent on this controller version; empty permanently
//	}
var (
	// ErrUnsupported is returned by a Fetcher when the remote controller
	// does not expose a resource type. Permanent for the process lifetime;
	// logged once at low severity and never retried aggressively.
	ErrUnsupported = errors.New("mirror: resource type unsupported by controller")

	// ErrAuthFailed is returned by a Fetcher when credentials are invalid
	// or expired. Fatal for the cycle: the previous snapshot is preserved,
	// the deletion pass is suppressed, and re-authentication is requested.
	ErrAuthFailed = errors.New("mirror: controller authentication failed")
)

// ThrottledError is returned by a Fetcher when the remote controller is
// rate limiting requests. The cycle is rescheduled to the earliest
// permitted time rather than dropped.
type ThrottledError struct {
	// RetryAfter is the minimum wait before the next attempt.
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("mirror: controller throttled, retry after %v", e.RetryAfter)
}
