package api

import (
	"errors"
	"fmt"
)

// ErrRemote matches every failure of a remote call, whether the request
// never completed or the service answered with a non-success status.
var ErrRemote = errors.New("remote failure")

// ErrUnauthenticated is returned when a call is made before Authenticate.
var ErrUnauthenticated = errors.New("client is not authenticated")

// RemoteError describes one failed remote call.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Cause      error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Cause)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP %s: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP %s", e.Method, e.URL, e.Status)
}

func (e *RemoteError) Unwrap() error { return e.Cause }

func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// StatusCode extracts the HTTP status of a remote failure, or 0.
func StatusCode(err error) int {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
