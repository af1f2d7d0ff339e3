package coingecko

import (
	"errors"
	"fmt"
)

// ErrBadURL is returned when request construction fails. Effectively
// unreachable while URLs come from the validated templates above, but
// callers must be able to represent it.
var ErrBadURL = errors.New("bad request url")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// DecodeError is returned when the response body does not match the
// expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
