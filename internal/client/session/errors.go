package session

import (
	"errors"
	"fmt"
)

// FailureMessage replaces the bot answer when an exchange fails.
const FailureMessage = "Sorry, an error occurred."

var (
	// ErrEmptySubmission and ErrRequestInFlight reject a Submit without
	// touching the conversation. The widget renders nothing for them.
	ErrEmptySubmission = errors.New("submission is empty")
	ErrRequestInFlight = errors.New("a request is already in flight")

	ErrEndpointRequired = errors.New("chat endpoint is required")
	ErrChunkTimeout     = errors.New("timed out waiting for stream data")
	ErrCanceled         = errors.New("exchange canceled")
)

// TransportError reports a failed request or an interrupted response stream.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("chat backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chat transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
