package match

import "fmt"

// Kind is the machine-readable error classification surfaced to callers.
type Kind string

const (
	KindMatchNotFound  Kind = "MATCH_NOT_FOUND"
	KindMatchNotActive Kind = "MATCH_NOT_ACTIVE"
	KindNotParticipant Kind = "NOT_PARTICIPANT"
	KindNotYourTurn    Kind = "NOT_YOUR_TURN"
	KindIllegalMove    Kind = "ILLEGAL_MOVE"
	KindBadRequest     Kind = "BAD_REQUEST"
	KindInternal       Kind = "INTERNAL"
)

// Error is a structured domain failure. Validation kinds are expected and
// surfaced directly; KindInternal wraps collaborator faults without leaking
// their detail to the caller.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func internalError(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}

// KindOf extracts the kind from any error, defaulting to KindInternal.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindInternal
}
