package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failed LLM request for callers that branch on the
// failure mode (retry hints, HTTP status mapping).
type ErrorKind string

const (
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindRateLimited   ErrorKind = "rate_limited"
	ErrKindConnection    ErrorKind = "connection_failure"
	ErrKindAuth          ErrorKind = "authentication_failure"
	ErrKindModelNotFound ErrorKind = "model_not_found"
	ErrKindOther         ErrorKind = "other"
)

// GatewayError wraps a provider failure with a stable kind and a message
// suitable for showing to the user verbatim.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GatewayError) Error() string { return e.Message }

func (e *GatewayError) Unwrap() error { return e.Err }

// AsGatewayError unwraps err into a *GatewayError if one is in the chain.
func AsGatewayError(err error) (*GatewayError, bool) {
	var gerr *GatewayError
	if errors.As(err, &gerr) {
		return gerr, true
	}
	return nil, false
}

// Categorize maps a raw provider error onto a GatewayError with a user-facing
// message. Matching is by substring on the lowercased error text, which covers
// both transport errors and the status-line errors the clients produce.
func Categorize(err error, model string) *GatewayError {
	if gerr, ok := AsGatewayError(err); ok {
		return gerr
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return &GatewayError{Kind: ErrKindTimeout, Message: "Request timed out. Please try again.", Err: err}
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "status 429"):
		return &GatewayError{Kind: ErrKindRateLimited, Message: "API rate limit exceeded. Please wait and try again.", Err: err}
	case strings.Contains(msg, "connection") || strings.Contains(msg, "no such host"):
		return &GatewayError{Kind: ErrKindConnection, Message: "Connection error. Please check your internet connection.", Err: err}
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "status 401") || strings.Contains(msg, "invalid api key"):
		return &GatewayError{Kind: ErrKindAuth, Message: "Authentication failed. Please check your API key.", Err: err}
	case strings.Contains(msg, "model") && strings.Contains(msg, "not found"):
		return &GatewayError{
			Kind:    ErrKindModelNotFound,
			Message: fmt.Sprintf("Model '%s' not found. Please check your model configuration.", model),
			Err:     err,
		}
	default:
		return &GatewayError{Kind: ErrKindOther, Message: fmt.Sprintf("LLM request failed: %v", err), Err: err}
	}
}
