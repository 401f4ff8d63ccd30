package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrInvalidMessage    = fmt.Errorf("invalid message")
	ErrForbidden         = fmt.Errorf("forbidden")
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidOperation  = fmt.Errorf("invalid operation")
	ErrNoOp              = fmt.Errorf("nothing to do")
	ErrUnauthenticated   = fmt.Errorf("unauthenticated")
	ErrRoomExists        = fmt.Errorf("private room already exists")
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrWorkerPanic       = fmt.Errorf("worker panicked")
)

// Wire error kinds carried on the "error" outbound event.
const (
	KindInvalidMessage   = "InvalidMessage"
	KindForbidden        = "Forbidden"
	KindNotFound         = "NotFound"
	KindInvalidOperation = "InvalidOperation"
	KindNoOp             = "NoOp"
	KindUnauthenticated  = "Unauthenticated"
	KindInternal         = "Internal"
)

// Kind maps a sentinel (possibly wrapped) to its wire kind.
// Anything unrecognized is reported as Internal so storage or transport
// details never leak to clients.
func Kind(err error) string {
	switch {
	case stderrors.Is(err, ErrInvalidMessage):
		return KindInvalidMessage
	case stderrors.Is(err, ErrForbidden):
		return KindForbidden
	case stderrors.Is(err, ErrNotFound):
		return KindNotFound
	case stderrors.Is(err, ErrInvalidOperation):
		return KindInvalidOperation
	case stderrors.Is(err, ErrNoOp):
		return KindNoOp
	case stderrors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	default:
		return KindInternal
	}
}
