package fieldsync

import (
	"errors"
	"fmt"
)

// Kind classifies failures so callers can decide how to surface them.
type Kind int

const (
	// TransportError: network unreachable or timed out. Retry later.
	TransportError Kind = iota + 1
	// ProtocolError: the remote answered with something malformed.
	ProtocolError
	// RemoteError: the remote explicitly reported a failure.
	RemoteError
	// StorageError: local persistence failed. The in-memory state is kept.
	StorageError
	// ValidationError: a precondition such as a selected location is missing.
	ValidationError
)

func (k Kind) String() string {
	switch k {
	case TransportError:
		return "transport"
	case ProtocolError:
		return "protocol"
	case RemoteError:
		return "remote"
	case StorageError:
		return "storage"
	case ValidationError:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the typed error returned across component boundaries.
type Error struct {
	Kind    Kind
	Op      string // operation that failed, e.g. "fetch records"
	Message string // human-readable detail, may be empty
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func NewTransportError(op string, err error) error {
	return &Error{Kind: TransportError, Op: op, Err: err}
}

func NewProtocolError(op string, err error) error {
	return &Error{Kind: ProtocolError, Op: op, Err: err}
}

func NewRemoteError(op, message string) error {
	return &Error{Kind: RemoteError, Op: op, Message: message}
}

func NewStorageError(op string, err error) error {
	return &Error{Kind: StorageError, Op: op, Err: err}
}

func NewValidationError(op, format string, args ...any) error {
	return &Error{Kind: ValidationError, Op: op, Message: fmt.Sprintf(format, args...)}
}
