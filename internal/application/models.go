package application

import (
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/planner"
)

// BuildingInput captures caller provided building fields. Enumerations are
// raw strings so invalid values surface as field errors.
type BuildingInput struct {
	Name         string
	Gender       string
	HousingType  string
	FloorCount   int
	DisplayOrder int
	Notes        string
}

// UpdateBuildingParams wraps the data required to update a building.
type UpdateBuildingParams struct {
	BuildingID string
	Input      BuildingInput
}

// RoomInput captures caller provided room fields.
type RoomInput struct {
	Number string
	// Floor zero derives the floor from the room number.
	Floor int
	// Capacity zero takes the default of Type; custom rooms require it.
	Capacity            int
	Type                string
	Purpose             string
	GenderOverride      string
	HousingTypeOverride string
	// Available defaults to true when nil.
	Available     *bool
	ADAAccessible bool
	Notes         string
}

// CreateRoomParams wraps the data required to create a room.
type CreateRoomParams struct {
	BuildingID string
	Input      RoomInput
}

// UpdateRoomParams wraps the data required to update a room.
type UpdateRoomParams struct {
	RoomID string
	Input  RoomInput
}

// BulkCreateRoomsParams describes a numeric range of rooms such as 101..120
// rendered as Prefix + number + Suffix.
type BulkCreateRoomsParams struct {
	BuildingID string
	Start      int
	End        int
	Prefix     string
	Suffix     string
	Type       string
	Capacity   int
	// Floor zero derives each floor from its number.
	Floor   int
	Purpose string
}

// BedCounts aggregates beds over a set of rooms.
type BedCounts struct {
	Capacity  int
	Occupied  int
	Available int
}

func (c *BedCounts) add(room housing.Room) {
	c.Capacity += room.Capacity
	c.Occupied += room.Occupancy
	if room.Available {
		c.Available += room.Remaining()
	}
}

// BuildingSummary reports the beds of one building.
type BuildingSummary struct {
	Building housing.Building
	Rooms    int
	Beds     BedCounts
	ByGender map[housing.Gender]BedCounts
}

// InventorySummary reports beds per building and overall, split by the
// effective gender of each room. Small-group rooms are left out.
type InventorySummary struct {
	Buildings []BuildingSummary
	Total     BedCounts
	ByGender  map[housing.Gender]BedCounts
}

// AssignInput identifies one manual assignment.
type AssignInput struct {
	RoomID      string
	Participant housing.ParticipantRef
	// Beds zero means one bed for individuals and every unhoused member for buckets.
	Beds int
}

// AutoAssignRequest selects the participants and rooms of a batch run.
type AutoAssignRequest struct {
	Gender   housing.Gender
	Category housing.Category
	ParishID string
	// BuildingIDs restricts the rooms considered; empty means every building.
	BuildingIDs             []string
	Strategy                planner.Strategy
	HonorRoommatePreference bool
	// OnlyUnassigned is accepted for compatibility; housed participants are
	// never moved, so false behaves like true.
	OnlyUnassigned bool
	// DryRun returns the proposals without committing them.
	DryRun bool
}

// ProposedAssignment is one planned or committed placement.
type ProposedAssignment struct {
	RoomID      string
	RoomNumber  string
	Participant housing.ParticipantRef
	Label       string
	Beds        int
}

// AutoAssignResult reports a batch run. Assigned and Skipped count beds.
type AutoAssignResult struct {
	Assigned  int
	Skipped   int
	Errors    []string
	Proposals []ProposedAssignment
	Cancelled bool
}
