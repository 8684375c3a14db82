package engine

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidCommand      Code = "invalid_command"
	CodePreconditionFailed  Code = "precondition_failed"
	CodeMissingCollaborator Code = "missing_collaborator"
	CodeParticipantLoss     Code = "participant_loss"
)

const (
	ReasonMalformed          = "malformed"
	ReasonUnknownParticipant = "unknown_participant"
	ReasonUnknownObject      = "unknown_object"
	ReasonUnknownMask        = "unknown_mask"
	ReasonUnknownInstance    = "unknown_instance"
	ReasonUnauthorized       = "unauthorized"
	ReasonWrongPhase         = "wrong_phase"
	ReasonWrongRole          = "wrong_role"
	ReasonEliminated         = "eliminated"
	ReasonOutOfRange         = "out_of_range"
	ReasonAlreadyFound       = "already_found"
	ReasonAlreadyActive      = "already_active"
	ReasonOnCooldown         = "on_cooldown"
	ReasonNoAmmo             = "no_ammo"
	ReasonAmmoFull           = "ammo_full"
	ReasonNoTraps            = "no_traps"
	ReasonStunned            = "stunned"
	ReasonSpectator          = "spectator"
)

// Error is the coded error every rejected command resolves to. Two errors
// match under errors.Is when their codes match and the target either leaves
// Reason empty or names the same one.
type Error struct {
	Code    Code
	Reason  string
	Message string
}

var (
	ErrInvalidCommand      = &Error{Code: CodeInvalidCommand}
	ErrPreconditionFailed  = &Error{Code: CodePreconditionFailed}
	ErrMissingCollaborator = &Error{Code: CodeMissingCollaborator}
	ErrParticipantLoss     = &Error{Code: CodeParticipantLoss}
)

func (e *Error) Error() string {
	s := string(e.Code)
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	if e.Message != "" {
		s += ": " + e.Message
	}
	return s
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Reason == "" || t.Reason == e.Reason)
}

func Invalid(reason, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidCommand, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func Precondition(reason, format string, args ...any) *Error {
	return &Error{Code: CodePreconditionFailed, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code of err, or "" when err is not a coded error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ReasonOf extracts the reason of err, or "" when err is not a coded error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
