package dynatrace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Sentinel errors that can be matched with errors.Is against an *HTTPStatusError.
var (
	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("invalid or expired API token")
	ErrForbidden        = errors.New("API token lacks the required scope")
	ErrNotFound         = errors.New("resource not found")
	ErrMethodNotAllowed = errors.New("operation not supported by this cluster")
)

// TransportErrorKind classifies a failure that happened before any HTTP response was received.
type TransportErrorKind string

const (
	KindDNS               TransportErrorKind = "dns"
	KindConnectionRefused TransportErrorKind = "connection_refused"
	KindConnectionReset   TransportErrorKind = "connection_reset"
	KindTimeout           TransportErrorKind = "timeout"
	KindCanceled          TransportErrorKind = "canceled"
	KindOther             TransportErrorKind = "other"
)

// TransportError is returned when no HTTP response was received for an attempt.
type TransportError struct {
	Method  string
	URL     string
	Attempt int
	Kind    TransportErrorKind
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s error (attempt %d): %v", e.Method, e.URL, e.Kind, e.Attempt+1, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could plausibly succeed.
func (e *TransportError) Retryable() bool {
	switch e.Kind {
	case KindDNS, KindConnectionRefused, KindConnectionReset, KindTimeout:
		return true
	default:
		return false
	}
}

// APIErrorBody is the error envelope returned by the Dynatrace API v2.
type APIErrorBody struct {
	Code                 int                   `json:"code"`
	Message              string                `json:"message"`
	ConstraintViolations []ConstraintViolation `json:"constraintViolations,omitempty"`
}

// ConstraintViolation describes one rejected request parameter.
type ConstraintViolation struct {
	Path              string `json:"path"`
	Message           string `json:"message"`
	ParameterLocation string `json:"parameterLocation"`
	Location          string `json:"location"`
}

// HTTPStatusError is returned for any response with a status of 400 or above.
// Body holds the response body exactly as received.
type HTTPStatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
	API        *APIErrorBody
}

func newHTTPStatusError(method, url string, statusCode int, body []byte) *HTTPStatusError {
	e := &HTTPStatusError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
	}
	var envelope struct {
		Error *APIErrorBody `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		e.API = envelope.Error
	}
	return e
}

func (e *HTTPStatusError) Error() string {
	msg := e.Message()
	if msg == "" {
		return fmt.Sprintf("%s %s failed with status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Method, e.URL, e.StatusCode, msg)
}

// Message returns the Dynatrace error message, or the raw body when the envelope is absent.
func (e *HTTPStatusError) Message() string {
	if e.API != nil && e.API.Message != "" {
		msg := e.API.Message
		for _, v := range e.API.ConstraintViolations {
			msg += fmt.Sprintf("; %s: %s", v.Path, v.Message)
		}
		return msg
	}
	return strings.TrimSpace(string(e.Body))
}

// Is implements errors.Is for sentinel error matching.
func (e *HTTPStatusError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return target == ErrBadRequest
	case http.StatusUnauthorized:
		return target == ErrUnauthorized
	case http.StatusForbidden:
		return target == ErrForbidden
	case http.StatusNotFound:
		return target == ErrNotFound
	case http.StatusMethodNotAllowed:
		return target == ErrMethodNotAllowed
	}
	return false
}

// DecodeError is returned when a response body does not match the expected shape.
type DecodeError struct {
	Path string
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unexpected response format from %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// IsAuthError reports whether err is a 401 or 403 response.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// classifyTransportError maps an error from the HTTP transport onto a TransportErrorKind.
func classifyTransportError(ctx context.Context, err error) TransportErrorKind {
	// The caller gave up; per-attempt timeouts come from http.Client and leave ctx intact.
	if ctx.Err() != nil {
		return KindCanceled
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return KindConnectionReset
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
