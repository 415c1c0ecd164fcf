package persistence

import (
	"errors"
	"fmt"

	"github.com/example/housing-allocator/internal/housing"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key (room number, individual binding) already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a column constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrCapacityExceeded is returned when a write would push occupancy above capacity.
	ErrCapacityExceeded = errors.New("persistence: capacity exceeded")
	// ErrRoomUnavailable is returned when an assignment targets a room that holds no beds.
	ErrRoomUnavailable = errors.New("persistence: room unavailable")
	// ErrGenderMismatch is returned when the room's effective gender does not admit the participant.
	ErrGenderMismatch = errors.New("persistence: room gender does not admit participant")
	// ErrHousingTypeMismatch is returned when the room's effective housing type does not admit the participant.
	ErrHousingTypeMismatch = errors.New("persistence: room housing type does not admit participant")
	// ErrParticipantLimit is returned when a participant would hold more beds than it needs.
	ErrParticipantLimit = errors.New("persistence: participant bed limit reached")
	// ErrBusy is returned when the database stayed locked past the retry budget.
	ErrBusy = errors.New("persistence: database busy")
)

// CheckEligibility runs housing.CheckEligibility and reports a refusal as the
// matching persistence sentinel. Stores call it inside the write that inserts
// the binding.
func CheckEligibility(view housing.RoomView, traits housing.Traits) error {
	err := housing.CheckEligibility(view, traits)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, housing.ErrRoomUnavailable):
		return ErrRoomUnavailable
	case errors.Is(err, housing.ErrGenderMismatch):
		return fmt.Errorf("%w: room is %s, participant is %s", ErrGenderMismatch, view.Gender(), traits.Gender)
	case errors.Is(err, housing.ErrHousingTypeMismatch):
		return fmt.Errorf("%w: room is %s, participant is %s", ErrHousingTypeMismatch, view.HousingType(), traits.Category)
	}
	return err
}
