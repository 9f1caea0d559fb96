package repository

import (
	"errors"
	"fmt"
)

// Sentinel kinds for repository errors.
var (
	ErrRemote    = errors.New("remote event store error")
	ErrIntegrity = errors.New("event row violates data integrity")
	ErrClosed    = errors.New("store closed")
)

// CodeIntegrity marks a row the store returned that does not fit the model.
const CodeIntegrity = "integrity"

// RemoteError is any failure reported by the remote event store. Message is
// the store's own human-readable text and is shown to users as-is.
type RemoteError struct {
	Op      string // "list", "create", "subscribe"
	Code    string // store error code when known
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s events: %s (%s)", e.Op, e.Message, e.Code)
	}
	return fmt.Sprintf("%s events: %s", e.Op, e.Message)
}

// Unwrap exposes both the sentinel kind and the underlying cause.
func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// sqlStater is satisfied by driver errors that carry a SQLSTATE code.
type sqlStater interface {
	SQLState() string
}

func remoteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var already *RemoteError
	if errors.As(err, &already) {
		return err
	}
	re := &RemoteError{Op: op, Message: err.Error(), Err: err}
	var st sqlStater
	if errors.As(err, &st) {
		re.Code = st.SQLState()
	}
	if errors.Is(err, ErrIntegrity) {
		re.Code = CodeIntegrity
	}
	return re
}
