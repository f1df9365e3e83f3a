package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// BlockReason names the gate that soft-blocked a message.
type BlockReason string

const (
	ReasonEmptyMessage    BlockReason = "empty_message"
	ReasonMessageTooLong  BlockReason = "message_too_long"
	ReasonInjection       BlockReason = "injection_pattern"
	ReasonRateLimited     BlockReason = "rate_limited"
	ReasonBudgetExhausted BlockReason = "budget_exhausted"
)

// ClientInputError is a request the caller must fix before retrying, such as
// a malformed session identifier.
type ClientInputError struct {
	Field   string
	Message string
	Err     error
}

func (e *ClientInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ClientInputError) Unwrap() error {
	return e.Err
}

// PolicySoftBlock is a refusal that is returned to the caller as an ordinary
// chat reply. Message is the only text the caller ever sees.
type PolicySoftBlock struct {
	Reason  BlockReason
	Message string
}

func (e *PolicySoftBlock) Error() string {
	return fmt.Sprintf("soft block (%s): %s", e.Reason, e.Message)
}

// BackendFailure wraps a storage, persona or completion-service error. It
// fails the whole request and is never retried here.
type BackendFailure struct {
	Op  string
	Err error
}

func (e *BackendFailure) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendFailure) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a missing or invalid operational parameter.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Message)
}

// NewClientInput builds a ClientInputError for field.
func NewClientInput(field, message string, err error) error {
	return &ClientInputError{Field: field, Message: message, Err: err}
}

// NewBackendFailure wraps err unless it is nil or already a BackendFailure.
func NewBackendFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *BackendFailure
	if errors.As(err, &existing) {
		return err
	}
	return &BackendFailure{Op: op, Err: err}
}

// IsClientInput reports whether err is (or wraps) a ClientInputError.
func IsClientInput(err error) bool {
	var target *ClientInputError
	return errors.As(err, &target)
}

// IsBackendFailure reports whether err is (or wraps) a BackendFailure.
func IsBackendFailure(err error) bool {
	var target *BackendFailure
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// AsPolicySoftBlock extracts the soft block carried by err, if any.
func AsPolicySoftBlock(err error) (*PolicySoftBlock, bool) {
	var target *PolicySoftBlock
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// StatusCode maps an error to the HTTP status the server responds with.
// Soft blocks are not errors at the transport level.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsClientInput(err):
		return http.StatusBadRequest
	default:
		if _, ok := AsPolicySoftBlock(err); ok {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a caller for err.
// Backend details stay in the logs.
func PublicMessage(err error) string {
	var input *ClientInputError
	if errors.As(err, &input) {
		return input.Error()
	}
	if block, ok := AsPolicySoftBlock(err); ok {
		return block.Message
	}
	return "Internal server error"
}
