package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures so callers can branch on the class
// instead of matching message strings.
type ErrorKind string

const (
	// TransportError covers socket dial, send, receive, and timeout failures.
	TransportError ErrorKind = "transport_error"
	// NotFound means a requested file does not exist under the watched root.
	NotFound ErrorKind = "not_found"
	// Unsupported means a file's extension is outside the allow-list.
	Unsupported ErrorKind = "unsupported"
	// ExtractionFailed means a file's bytes yielded no usable text.
	ExtractionFailed ErrorKind = "extraction_failed"
	// ModelError covers chat, embedding, and rerank failures.
	ModelError ErrorKind = "model_error"
	// IndexError covers vector index reads and writes.
	IndexError ErrorKind = "index_error"
	// AuthDenied means the requesting user holds no grant for the resource.
	AuthDenied ErrorKind = "auth_denied"
	// SchemaError means a payload did not match its wire contract.
	SchemaError ErrorKind = "schema_error"
)

// Error is the pipeline's structured error. Message describes the operation
// that failed; Err carries the underlying cause, if any.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and message.
func E(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf reports the ErrorKind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
