package models

import "fmt"

// Error codes carried by ScrapeError. The fetch loop reacts to the code's
// Kind, never to the message text.
const (
	// ErrCodeDriverUnavailable: no usable browser binary, or it refused
	// to start. Retrying cannot help.
	ErrCodeDriverUnavailable = "DRIVER_UNAVAILABLE"

	// ErrCodeTimeout: an attempt ran out of time (navigation or readiness
	// wait hit its deadline).
	ErrCodeTimeout = "NAVIGATION_TIMEOUT"

	// ErrCodeNavigation: transport or protocol failure while fetching.
	ErrCodeNavigation = "NAVIGATION_FAILED"

	// ErrCodeEmptyResult: the page (or API) answered but yielded no
	// usable rows. Often a bot wall serving a hollow page.
	ErrCodeEmptyResult = "EMPTY_RESULT"

	// ErrCodeExhausted: every attempt failed; wraps the last cause.
	ErrCodeExhausted = "RETRIES_EXHAUSTED"

	// ErrCodeIO: persisting the collected records failed.
	ErrCodeIO = "IO_FAILURE"
)

// ErrorKind classifies an error code for the retry decision.
type ErrorKind int

const (
	// KindFatal aborts the run on the spot.
	KindFatal ErrorKind = iota
	// KindRetryable is worth another attempt with a fresh identity.
	KindRetryable
	// KindTerminal ends the run after the loop has already given up, or
	// outside the loop entirely. Never retried.
	KindTerminal
)

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Kind maps the error code to its retry classification. Pure function of
// the code, so the fetch loop carries no policy of its own.
func (e *ScrapeError) Kind() ErrorKind {
	switch e.Code {
	case ErrCodeDriverUnavailable:
		return KindFatal
	case ErrCodeTimeout, ErrCodeNavigation, ErrCodeEmptyResult:
		return KindRetryable
	default:
		return KindTerminal
	}
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}
