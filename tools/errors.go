package tools

import "fmt"

// ErrorKind classifies why a tool call failed.
type ErrorKind string

const (
	// KindToolNotFound means the requested tool has no registered definition.
	KindToolNotFound ErrorKind = "tool_not_found"

	// KindInvalidInput means the arguments violate the tool's input schema.
	// The call stops before any side effect.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindRemoteError means the backend answered with a non-2xx status or an
	// explicit error payload.
	KindRemoteError ErrorKind = "remote_error"

	// KindTransportError means the backend could not be reached at all
	// (timeout, connection failure, open circuit).
	KindTransportError ErrorKind = "transport_error"
)

// Error is a classified tool failure. It is reported structurally in the
// ToolResult; the router never panics or leaks it past its return value.
type Error struct {
	Kind ErrorKind
	Tool string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Tool, e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Tool, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, tool, msg string) *Error {
	return &Error{Kind: kind, Tool: tool, Msg: msg}
}

func wrapError(kind ErrorKind, tool, msg string, err error) *Error {
	return &Error{Kind: kind, Tool: tool, Msg: msg, Err: err}
}
