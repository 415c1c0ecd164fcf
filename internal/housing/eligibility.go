package housing

import "fmt"

// Admits reports whether a room of housing type h accepts participants of category c.
//
// Youth rooms take youth only, clergy rooms take clergy only, chaperone and
// general rooms take adults and clergy. Youth never leave youth rooms.
func (h HousingType) Admits(c Category) bool {
	switch h {
	case HousingYouth:
		return c == CategoryYouth
	case HousingClergy:
		return c == CategoryClergy
	case HousingChaperone, HousingGeneral:
		return c == CategoryAdult || c == CategoryClergy
	}
	return false
}

// GenderAdmits reports whether a room of gender g accepts participants of gender p.
func GenderAdmits(g, p Gender) bool {
	switch g {
	case GenderMixed:
		return p.ValidForParticipant()
	case GenderMale, GenderFemale:
		return g == p
	}
	return false
}

// CheckEligibility applies the static rules (availability, purpose, gender,
// housing type) in the order the ledger reports them. Capacity is not checked here.
func CheckEligibility(view RoomView, traits Traits) error {
	if !view.Room.Available {
		return ErrRoomUnavailable
	}
	if !view.Room.Purpose.HoldsBeds() {
		return fmt.Errorf("%w: room is reserved for small groups", ErrRoomUnavailable)
	}
	if !GenderAdmits(view.Gender(), traits.Gender) {
		return fmt.Errorf("%w: room is %s, participant is %s", ErrGenderMismatch, view.Gender(), traits.Gender)
	}
	if !view.HousingType().Admits(traits.Category) {
		return fmt.Errorf("%w: room is %s, participant is %s", ErrHousingTypeMismatch, view.HousingType(), traits.Category)
	}
	return nil
}

// Eligible is CheckEligibility as a predicate.
func Eligible(view RoomView, traits Traits) bool {
	return CheckEligibility(view, traits) == nil
}
