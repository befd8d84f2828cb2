package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the terminal failure of a request. StatusCode is zero when no
// HTTP response was received.
type Error struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
		}
		return fmt.Sprintf("%s %s: no response", e.Method, e.URL)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the upstream status code, or 0 for network errors.
func (e *Error) HTTPStatus() int {
	return e.StatusCode
}

// StatusOf returns the first HTTP status found in err's chain, or 0.
// Any error exposing HTTPStatus() int participates.
func StatusOf(err error) int {
	var sc interface{ HTTPStatus() int }
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}
