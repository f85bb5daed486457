package apperrors

import "strings"

// Error is a directory error. Errors form a tree: an error created with New
// on another error matches it with errors.Is, and copies made with Msg or Err
// keep matching the error they were made from.
type Error struct {
	msg        string
	base       *Error
	wrapped    []error
	statusCode int
}

// New creates a root error.
func New(msg string) *Error {
	return &Error{msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the messages of the wrapped errors.
func (e *Error) ErrorAll() string {
	if len(e.wrapped) == 0 {
		return e.msg
	}
	msgs := make([]string, 0, len(e.wrapped))
	for _, err := range e.wrapped {
		msgs = append(msgs, err.Error())
	}
	return e.msg + ": " + strings.Join(msgs, ";")
}

// New derives a new error kind from e. The status code is inherited.
func (e *Error) New(msg string) *Error {
	return &Error{
		msg:        msg,
		base:       e,
		statusCode: e.statusCode,
	}
}

// Msg returns a copy of e carrying a different message.
func (e *Error) Msg(msg string) *Error {
	c := e.copy()
	c.msg = msg
	return c
}

// Err returns a copy of e wrapping the given causes.
func (e *Error) Err(err ...error) *Error {
	c := e.copy()
	c.wrapped = append(c.wrapped, err...)
	return c
}

// MsgErr combines Msg and Err.
func (e *Error) MsgErr(msg string, err ...error) *Error {
	c := e.Err(err...)
	c.msg = msg
	return c
}

func (e *Error) copy() *Error {
	wrapped := make([]error, len(e.wrapped))
	copy(wrapped, e.wrapped)
	return &Error{
		msg:        e.msg,
		base:       e,
		wrapped:    wrapped,
		statusCode: e.statusCode,
	}
}

func (e *Error) Unwrap() []error {
	return e.wrapped
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	for cur := e; cur != nil; cur = cur.base {
		if cur == t {
			return true
		}
	}
	return false
}

// SetStatusCode sets the status code in place. It is meant for declaring
// package-level error values.
func (e *Error) SetStatusCode(code int) *Error {
	e.statusCode = code
	return e
}

func (e *Error) StatusCode() int {
	return e.statusCode
}
