package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/housing-allocator/internal/housing"
)

var (
	buildingCounter   uint64
	roomCounter       uint64
	individualCounter uint64
	groupCounter      uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// --------------------------- Building fixtures ---------------------------

// BuildingFixture represents a deterministic building record.
type BuildingFixture struct {
	ID           string
	Name         string
	Gender       housing.Gender
	HousingType  housing.HousingType
	FloorCount   int
	DisplayOrder int
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BuildingOption configures the generated building fixture.
type BuildingOption func(*BuildingFixture)

// NewBuildingFixture returns a mixed, general-housing building with optional overrides.
func NewBuildingFixture(opts ...BuildingOption) BuildingFixture {
	idx := atomic.AddUint64(&buildingCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := BuildingFixture{
		ID:           fmt.Sprintf("building-%03d", idx),
		Name:         fmt.Sprintf("Hall %03d", idx),
		Gender:       housing.GenderMixed,
		HousingType:  housing.HousingGeneral,
		FloorCount:   3,
		DisplayOrder: int(idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBuildingID overrides the generated building ID.
func WithBuildingID(id string) BuildingOption {
	return func(f *BuildingFixture) {
		f.ID = id
	}
}

// WithBuildingName overrides the generated name.
func WithBuildingName(name string) BuildingOption {
	return func(f *BuildingFixture) {
		f.Name = name
	}
}

// WithBuildingGender sets the building gender.
func WithBuildingGender(g housing.Gender) BuildingOption {
	return func(f *BuildingFixture) {
		f.Gender = g
	}
}

// WithBuildingHousingType sets the building housing type.
func WithBuildingHousingType(h housing.HousingType) BuildingOption {
	return func(f *BuildingFixture) {
		f.HousingType = h
	}
}

// WithBuildingDisplayOrder sets the ordering key.
func WithBuildingDisplayOrder(order int) BuildingOption {
	return func(f *BuildingFixture) {
		f.DisplayOrder = order
	}
}

// WithBuildingFloorCount sets the number of floors.
func WithBuildingFloorCount(floors int) BuildingOption {
	return func(f *BuildingFixture) {
		f.FloorCount = floors
	}
}

// Housing converts the fixture into the domain representation.
func (f BuildingFixture) Housing() housing.Building {
	return housing.Building{
		ID:           f.ID,
		Name:         f.Name,
		Gender:       f.Gender,
		HousingType:  f.HousingType,
		FloorCount:   f.FloorCount,
		DisplayOrder: f.DisplayOrder,
		Notes:        f.Notes,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Room fixtures -----------------------------

// RoomFixture represents a deterministic room record.
type RoomFixture struct {
	ID                  string
	BuildingID          string
	Number              string
	Floor               int
	Capacity            int
	Type                housing.RoomType
	Purpose             housing.RoomPurpose
	GenderOverride      *housing.Gender
	HousingTypeOverride *housing.HousingType
	Available           bool
	ADAAccessible       bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RoomOption configures the generated room fixture.
type RoomOption func(*RoomFixture)

// NewRoomFixture returns an available double housing room with optional overrides.
// Callers normally set the building with WithRoomBuilding.
func NewRoomFixture(opts ...RoomOption) RoomFixture {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := RoomFixture{
		ID:        fmt.Sprintf("room-%03d", idx),
		Number:    fmt.Sprintf("%d", 100+idx),
		Floor:     1,
		Capacity:  2,
		Type:      housing.RoomDouble,
		Purpose:   housing.PurposeHousing,
		Available: true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(f *RoomFixture) {
		f.ID = id
	}
}

// WithRoomBuilding sets the owning building.
func WithRoomBuilding(buildingID string) RoomOption {
	return func(f *RoomFixture) {
		f.BuildingID = buildingID
	}
}

// WithRoomNumber overrides the generated room number.
func WithRoomNumber(number string) RoomOption {
	return func(f *RoomFixture) {
		f.Number = number
	}
}

// WithRoomFloor sets the floor.
func WithRoomFloor(floor int) RoomOption {
	return func(f *RoomFixture) {
		f.Floor = floor
	}
}

// WithRoomCapacity sets a custom capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(f *RoomFixture) {
		f.Capacity = capacity
		f.Type = housing.RoomCustom
	}
}

// WithRoomPurpose sets the room purpose.
func WithRoomPurpose(p housing.RoomPurpose) RoomOption {
	return func(f *RoomFixture) {
		f.Purpose = p
	}
}

// WithRoomAvailable sets the availability flag.
func WithRoomAvailable(available bool) RoomOption {
	return func(f *RoomFixture) {
		f.Available = available
	}
}

// WithRoomGenderOverride sets a gender that replaces the building default.
func WithRoomGenderOverride(g housing.Gender) RoomOption {
	return func(f *RoomFixture) {
		f.GenderOverride = &g
	}
}

// WithRoomHousingTypeOverride sets a housing type that replaces the building default.
func WithRoomHousingTypeOverride(h housing.HousingType) RoomOption {
	return func(f *RoomFixture) {
		f.HousingTypeOverride = &h
	}
}

// Housing converts the fixture into the domain representation.
func (f RoomFixture) Housing() housing.Room {
	return housing.Room{
		ID:                  f.ID,
		BuildingID:          f.BuildingID,
		Number:              f.Number,
		Floor:               f.Floor,
		Capacity:            f.Capacity,
		Type:                f.Type,
		Purpose:             f.Purpose,
		GenderOverride:      f.GenderOverride,
		HousingTypeOverride: f.HousingTypeOverride,
		Available:           f.Available,
		ADAAccessible:       f.ADAAccessible,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
}

// -------------------------- Participant fixtures --------------------------

// IndividualFixture represents a registrant needing one bed.
type IndividualFixture struct {
	ID                 string
	Name               string
	Gender             housing.Gender
	Category           housing.Category
	ParishID           string
	GroupID            string
	RoommatePreference string
}

// IndividualOption configures the generated individual fixture.
type IndividualOption func(*IndividualFixture)

// NewIndividualFixture returns an adult male registrant with optional overrides.
func NewIndividualFixture(opts ...IndividualOption) IndividualFixture {
	idx := atomic.AddUint64(&individualCounter, 1)
	fixture := IndividualFixture{
		ID:       fmt.Sprintf("person-%03d", idx),
		Name:     fmt.Sprintf("Person %03d", idx),
		Gender:   housing.GenderMale,
		Category: housing.CategoryAdult,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithIndividualID overrides the generated ID.
func WithIndividualID(id string) IndividualOption {
	return func(f *IndividualFixture) {
		f.ID = id
	}
}

// WithIndividualName overrides the generated display name.
func WithIndividualName(name string) IndividualOption {
	return func(f *IndividualFixture) {
		f.Name = name
	}
}

// WithIndividualGender sets the gender.
func WithIndividualGender(g housing.Gender) IndividualOption {
	return func(f *IndividualFixture) {
		f.Gender = g
	}
}

// WithIndividualCategory sets the category.
func WithIndividualCategory(c housing.Category) IndividualOption {
	return func(f *IndividualFixture) {
		f.Category = c
	}
}

// WithIndividualParish sets the parish.
func WithIndividualParish(parishID string) IndividualOption {
	return func(f *IndividualFixture) {
		f.ParishID = parishID
	}
}

// WithRoommatePreference sets the free-text roommate request.
func WithRoommatePreference(name string) IndividualOption {
	return func(f *IndividualFixture) {
		f.RoommatePreference = name
	}
}

// Housing converts the fixture into the domain representation.
func (f IndividualFixture) Housing() housing.Individual {
	return housing.Individual{
		ID:   f.ID,
		Name: f.Name,
		Traits: housing.Traits{
			Gender:   f.Gender,
			Category: f.Category,
			ParishID: f.ParishID,
			GroupID:  f.GroupID,
		},
		RoommatePreference: f.RoommatePreference,
	}
}

// BucketFixture represents the same-gender, same-category part of a group.
type BucketFixture struct {
	GroupID   string
	GroupName string
	Gender    housing.Gender
	Category  housing.Category
	ParishID  string
	Members   int
}

// BucketOption configures the generated bucket fixture.
type BucketOption func(*BucketFixture)

// NewBucketFixture returns a bucket of four adult men with optional overrides.
func NewBucketFixture(opts ...BucketOption) BucketFixture {
	idx := atomic.AddUint64(&groupCounter, 1)
	fixture := BucketFixture{
		GroupID:   fmt.Sprintf("group-%03d", idx),
		GroupName: fmt.Sprintf("Group %03d", idx),
		Gender:    housing.GenderMale,
		Category:  housing.CategoryAdult,
		Members:   4,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBucketGroup overrides the group ID.
func WithBucketGroup(groupID string) BucketOption {
	return func(f *BucketFixture) {
		f.GroupID = groupID
	}
}

// WithBucketTraits sets gender and category.
func WithBucketTraits(g housing.Gender, c housing.Category) BucketOption {
	return func(f *BucketFixture) {
		f.Gender = g
		f.Category = c
	}
}

// WithBucketParish sets the parish.
func WithBucketParish(parishID string) BucketOption {
	return func(f *BucketFixture) {
		f.ParishID = parishID
	}
}

// WithBucketMembers sets the member count.
func WithBucketMembers(n int) BucketOption {
	return func(f *BucketFixture) {
		f.Members = n
	}
}

// Housing converts the fixture into the domain representation.
func (f BucketFixture) Housing() housing.GroupBucket {
	return housing.GroupBucket{
		GroupName: f.GroupName,
		Traits: housing.Traits{
			Gender:   f.Gender,
			Category: f.Category,
			ParishID: f.ParishID,
			GroupID:  f.GroupID,
		},
		Members: f.Members,
	}
}
