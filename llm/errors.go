package llm

import (
	"errors"
	"fmt"
)

// LLMError represents errors that can occur during LLM operations. Code is
// one of the error codes below.
type LLMError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm.%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("llm.%s: %s", e.Op, e.Message)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrInvalidInput = "InvalidInput"
	ErrInternal     = "Internal"
)

// HasCode reports whether err wraps an LLMError carrying code
func HasCode(err error, code string) bool {
	var llmErr *LLMError
	return errors.As(err, &llmErr) && llmErr.Code == code
}

// ErrMissingCredential is wrapped by the ConfigurationError raised when no API
// key resolves
var ErrMissingCredential = errors.New("missing credential")

// ConfigurationError is returned before any network I/O when a required
// option cannot be resolved or holds an invalid value
type ConfigurationError struct {
	Op     string
	Option string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("llm.%s: configuration %q: %v", e.Op, e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// TransportError wraps connection, DNS, timeout and body read failures
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm.%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProviderError describes a non-200 response. It is surfaced to callers as
// the terminal fragment rather than returned.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("HTTP Error %d: %s", e.StatusCode, e.Body)
}

// Fragment converts the error into the terminal fragment of a stream
func (e *ProviderError) Fragment() Fragment {
	return Fragment{
		Message:      e.Error(),
		FinishReason: FinishStop,
	}
}

// MalformedEventError aborts a stream when an event line cannot be decoded or
// lacks its first choice
type MalformedEventError struct {
	Line    string
	Message string
	Err     error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("llm: malformed event: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("llm: malformed event: %s", e.Message)
}

func (e *MalformedEventError) Unwrap() error {
	return e.Err
}
