package housing

import (
	"errors"
	"fmt"
)

// Assignment rejection taxonomy. Every refused write maps to exactly one of these.
var (
	ErrRoomFull            = errors.New("room is full")
	ErrRoomUnavailable     = errors.New("room is unavailable")
	ErrGenderMismatch      = errors.New("gender mismatch")
	ErrHousingTypeMismatch = errors.New("housing type mismatch")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflicting concurrent update")
	ErrAlreadyAssigned     = errors.New("participant already assigned")
)

// RejectionError carries the context of a refused assignment.
type RejectionError struct {
	Reason      error
	RoomID      string
	Participant ParticipantRef
	Detail      string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("assign %s to room %s: %v", e.Participant, e.RoomID, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// Unwrap exposes the taxonomy sentinel to errors.Is.
func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

// Reject builds a RejectionError.
func Reject(reason error, roomID string, ref ParticipantRef, detail string) *RejectionError {
	return &RejectionError{Reason: reason, RoomID: roomID, Participant: ref, Detail: detail}
}

// Reason returns the taxonomy sentinel wrapped by err, or nil when err is outside it.
func Reason(err error) error {
	for _, sentinel := range []error{
		ErrRoomFull,
		ErrRoomUnavailable,
		ErrGenderMismatch,
		ErrHousingTypeMismatch,
		ErrNotFound,
		ErrConflict,
		ErrAlreadyAssigned,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}
