package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// FallbackErrorMessage is shown when a failed response carries no error text
const FallbackErrorMessage = "Request failed"

var (
	// ErrMalformedResponse is returned when a response is not a valid envelope
	ErrMalformedResponse = errors.New("malformed response")

	// ErrTimeout is returned when a request exceeds the configured timeout
	ErrTimeout = errors.New("request timed out")

	// ErrUnreachable is returned when the Task API cannot be contacted
	ErrUnreachable = errors.New("cannot reach task server")
)

// APIError is a response whose envelope reported success != true
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return e.Message
}

// wrapTransportError maps transport failures to user-facing errors while
// keeping the original error in the chain.
func wrapTransportError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	return fmt.Errorf("%s: %w", FallbackErrorMessage, err)
}

// UserMessage returns the text shown to the user for a failed request
func UserMessage(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, ErrTimeout):
		return ErrTimeout.Error()
	case errors.Is(err, ErrUnreachable):
		return ErrUnreachable.Error()
	case errors.Is(err, ErrMalformedResponse):
		return "Unexpected response from server"
	}
	return FallbackErrorMessage
}
