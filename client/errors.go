package client

import (
	"fmt"
	"time"
)

// FallbackMessage is shown when the transport or endpoint gives us nothing
// better to surface.
const FallbackMessage = "There was an error submitting your questionnaire. Please try again."

// UploadError aborts a submission attempt before any POST is made. Nothing is
// partially submitted; the user retries the whole attempt.
type UploadError struct {
	Filename string
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Filename, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// TransportError covers network failures and unexpected endpoint responses.
// Message carries the server's own words when it sent any, else the generic
// fallback; entered answers are left intact for a retry.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string { return e.Message }

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError is the endpoint telling us to come back later.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry in %s)", e.Message, e.RetryAfter)
}
