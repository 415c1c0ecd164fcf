package housing

import (
	"fmt"
	"strings"
	"time"
)

// Gender identifies the gender of a participant or the segregation rule of a room.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	// GenderMixed is only valid for buildings and rooms.
	GenderMixed Gender = "mixed"
)

// ParseGender normalises user supplied gender values.
func ParseGender(value string) (Gender, error) {
	switch Gender(strings.ToLower(strings.TrimSpace(value))) {
	case GenderMale:
		return GenderMale, nil
	case GenderFemale:
		return GenderFemale, nil
	case GenderMixed:
		return GenderMixed, nil
	}
	return "", fmt.Errorf("housing: unknown gender %q", value)
}

// ValidForRoom reports whether the gender may be used on a building or room.
func (g Gender) ValidForRoom() bool {
	return g == GenderMale || g == GenderFemale || g == GenderMixed
}

// ValidForParticipant reports whether the gender may be used on a participant.
func (g Gender) ValidForParticipant() bool {
	return g == GenderMale || g == GenderFemale
}

// HousingType restricts which participant categories a room admits.
type HousingType string

const (
	HousingYouth     HousingType = "youth_under_18"
	HousingChaperone HousingType = "chaperone_adult"
	HousingClergy    HousingType = "clergy"
	HousingGeneral   HousingType = "general"
)

// ParseHousingType normalises user supplied housing type values.
func ParseHousingType(value string) (HousingType, error) {
	switch HousingType(strings.ToLower(strings.TrimSpace(value))) {
	case HousingYouth:
		return HousingYouth, nil
	case HousingChaperone:
		return HousingChaperone, nil
	case HousingClergy:
		return HousingClergy, nil
	case HousingGeneral:
		return HousingGeneral, nil
	}
	return "", fmt.Errorf("housing: unknown housing type %q", value)
}

// Valid reports whether h is a known housing type.
func (h HousingType) Valid() bool {
	switch h {
	case HousingYouth, HousingChaperone, HousingClergy, HousingGeneral:
		return true
	}
	return false
}

// RoomType describes the bed layout of a room.
type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
	RoomTriple RoomType = "triple"
	RoomQuad   RoomType = "quad"
	RoomCustom RoomType = "custom"
)

// ParseRoomType normalises user supplied room type values.
func ParseRoomType(value string) (RoomType, error) {
	rt := RoomType(strings.ToLower(strings.TrimSpace(value)))
	if rt.Valid() {
		return rt, nil
	}
	return "", fmt.Errorf("housing: unknown room type %q", value)
}

// Valid reports whether rt is a known room type.
func (rt RoomType) Valid() bool {
	switch rt {
	case RoomSingle, RoomDouble, RoomTriple, RoomQuad, RoomCustom:
		return true
	}
	return false
}

// DefaultCapacity returns the bed count implied by the room type, or 0 for custom rooms.
func (rt RoomType) DefaultCapacity() int {
	switch rt {
	case RoomSingle:
		return 1
	case RoomDouble:
		return 2
	case RoomTriple:
		return 3
	case RoomQuad:
		return 4
	}
	return 0
}

// RoomPurpose describes how a room is used during the event.
type RoomPurpose string

const (
	PurposeHousing    RoomPurpose = "housing"
	PurposeSmallGroup RoomPurpose = "small_group"
	PurposeBoth       RoomPurpose = "both"
)

// Valid reports whether p is a known purpose.
func (p RoomPurpose) Valid() bool {
	switch p {
	case PurposeHousing, PurposeSmallGroup, PurposeBoth:
		return true
	}
	return false
}

// HoldsBeds reports whether rooms with this purpose take part in bed allocation.
func (p RoomPurpose) HoldsBeds() bool {
	return p == PurposeHousing || p == PurposeBoth
}

// Building groups rooms that share a default gender and housing type.
type Building struct {
	ID           string
	Name         string
	Gender       Gender
	HousingType  HousingType
	FloorCount   int
	DisplayOrder int
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room is a bed container owned by exactly one building.
type Room struct {
	ID                  string
	BuildingID          string
	Number              string
	Floor               int
	Capacity            int
	Type                RoomType
	Purpose             RoomPurpose
	GenderOverride      *Gender
	HousingTypeOverride *HousingType
	Available           bool
	ADAAccessible       bool
	Notes               string
	// Occupancy is derived from live assignments on every read.
	Occupancy int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining returns the number of free bed slots.
func (r Room) Remaining() int {
	if r.Occupancy >= r.Capacity {
		return 0
	}
	return r.Capacity - r.Occupancy
}

// EffectiveGender resolves the room override against the building default.
func (r Room) EffectiveGender(b Building) Gender {
	if r.GenderOverride != nil {
		return *r.GenderOverride
	}
	return b.Gender
}

// EffectiveHousingType resolves the room override against the building default.
func (r Room) EffectiveHousingType(b Building) HousingType {
	if r.HousingTypeOverride != nil {
		return *r.HousingTypeOverride
	}
	return b.HousingType
}

// Source records which surface created an assignment.
type Source string

const (
	SourceManual Source = "manual"
	SourceAuto   Source = "auto"
)

// Assignment binds bed slots of one room to one participant reference.
type Assignment struct {
	ID        string
	RoomID    string
	Ref       ParticipantRef
	Beds      int
	Gender    Gender
	Category  Category
	ParishID  string
	Label     string
	Source    Source
	CreatedAt time.Time
}

// RoomView couples a room with its owning building for eligibility checks.
type RoomView struct {
	Room     Room
	Building Building
}

// Gender returns the effective gender of the room.
func (v RoomView) Gender() Gender { return v.Room.EffectiveGender(v.Building) }

// HousingType returns the effective housing type of the room.
func (v RoomView) HousingType() HousingType { return v.Room.EffectiveHousingType(v.Building) }
