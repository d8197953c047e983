package practicum

import (
	"errors"
	"fmt"
)

var ErrNegativeTimestamp = errors.New("from_date must be >= 0")

// ConnectionError is returned when the request never produced an HTTP response
// (DNS, refused connection, timeout, cancelled context).
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("endpoint %s unreachable: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// HTTPStatusError is returned for any status other than 200. The body is not read.
type HTTPStatusError struct {
	Endpoint string
	Code     int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("endpoint %s returned status %d, want 200", e.Endpoint, e.Code)
}

// ParseError is returned when a 200 response body is not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decode response body: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
