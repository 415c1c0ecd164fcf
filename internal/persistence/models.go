package persistence

import "github.com/example/housing-allocator/internal/housing"

// RoomFilter narrows room queries.
type RoomFilter struct {
	BuildingIDs []string
	// OnlyAvailable drops rooms whose availability flag is off.
	OnlyAvailable bool
	// BedRoomsOnly drops small-group rooms.
	BedRoomsOnly bool
}

// Matches reports whether the room passes the filter.
func (f RoomFilter) Matches(room housing.Room) bool {
	if len(f.BuildingIDs) > 0 {
		found := false
		for _, id := range f.BuildingIDs {
			if id == room.BuildingID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.OnlyAvailable && !room.Available {
		return false
	}
	if f.BedRoomsOnly && !room.Purpose.HoldsBeds() {
		return false
	}
	return true
}

// AssignmentLimits bounds an assignment insert beyond room capacity.
type AssignmentLimits struct {
	// ParticipantBeds caps the beds the participant may hold across all rooms.
	// Zero means one bed for individuals and no cap for groups.
	ParticipantBeds int
}
