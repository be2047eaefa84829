package session

import (
	"errors"
	"fmt"
)

// ErrInvalidSessionID is returned when a session id is empty or would
// resolve outside the sessions directory.
var ErrInvalidSessionID = errors.New("invalid session id")

// PersistenceError reports a failed read, write or delete of a session file.
// The in-memory history stays authoritative when one is returned.
type PersistenceError struct {
	Op        string // load, save, remove
	SessionID string
	Path      string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("session %s: %s %s: %v", e.SessionID, e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// DecodeError reports a malformed line in a session file.
type DecodeError struct {
	Field string
	Line  string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("decode %q: field %s: %v", e.Line, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
