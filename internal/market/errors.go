package market

import (
	"errors"
	"fmt"

	"coinwatch/internal/coingecko"
)

// Domain error taxonomy surfaced to callers. Repositories never leak the
// transport's native error types.
var (
	// ErrInvalidURL indicates malformed request construction.
	ErrInvalidURL = errors.New("invalid request url")

	// ErrServerError indicates a non-2xx upstream response.
	ErrServerError = errors.New("server error")

	// ErrInvalidData indicates a response that did not decode into the
	// expected shape.
	ErrInvalidData = errors.New("invalid coin data")
)

// mapError normalizes any transport failure into the domain taxonomy.
// Unknown causes are wrapped so callers can still unwrap the original.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, coingecko.ErrBadURL) {
		return ErrInvalidURL
	}

	var statusErr *coingecko.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: status %d", ErrServerError, statusErr.Code)
	}

	var decodeErr *coingecko.DecodeError
	if errors.As(err, &decodeErr) {
		return fmt.Errorf("%w: %v", ErrInvalidData, decodeErr.Err)
	}

	return fmt.Errorf("unknown error: %w", err)
}
