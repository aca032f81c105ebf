package chat

import (
	"errors"

	"github.com/andy6609/roomchat/internal/wire"
)

// Class groups rejections by how a session reacts to them. Only ClassFatal
// ends a session.
type Class int

const (
	ClassNone Class = iota
	ClassProtocol
	ClassValidation
	ClassState
	ClassConflict
	ClassNotFound
	ClassFatal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassProtocol:
		return "protocol"
	case ClassValidation:
		return "validation"
	case ClassState:
		return "state"
	case ClassConflict:
		return "conflict"
	case ClassNotFound:
		return "not_found"
	default:
		return "fatal"
	}
}

func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrUnknownType), errors.Is(err, ErrRateLimited),
		errors.Is(err, wire.ErrFrameTooLong), errors.Is(err, wire.ErrLineBreak):
		return ClassProtocol
	case errors.Is(err, ErrNameInvalid), errors.Is(err, ErrEmptyText),
		errors.Is(err, ErrTextTooLong):
		return ClassValidation
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrAlreadyLoggedIn),
		errors.Is(err, ErrMustLeaveFirst), errors.Is(err, ErrNowhereToLeave):
		return ClassState
	case errors.Is(err, ErrNameTaken), errors.Is(err, ErrRoomNotEmpty),
		errors.Is(err, ErrNotOwner):
		return ClassConflict
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrRoomNotFound):
		return ClassNotFound
	default:
		return ClassFatal
	}
}
