package persistence

import (
	"context"

	"github.com/example/housing-allocator/internal/housing"
)

// BuildingRepository exposes CRUD operations for buildings.
type BuildingRepository interface {
	CreateBuilding(ctx context.Context, building housing.Building) error
	UpdateBuilding(ctx context.Context, building housing.Building) error
	GetBuilding(ctx context.Context, id string) (housing.Building, error)
	ListBuildings(ctx context.Context) ([]housing.Building, error)
	// DeleteBuilding removes the building, its rooms and their assignments in one transaction.
	DeleteBuilding(ctx context.Context, id string) error
}

// RoomRepository exposes CRUD operations for rooms. Every read carries live occupancy.
type RoomRepository interface {
	CreateRoom(ctx context.Context, room housing.Room) error
	// CreateRooms stores all rooms or none. Any number already used in the
	// building, or repeated in the batch, yields ErrDuplicate.
	CreateRooms(ctx context.Context, rooms []housing.Room) error
	// UpdateRoom fails with ErrCapacityExceeded when capacity drops below occupancy.
	UpdateRoom(ctx context.Context, room housing.Room) error
	GetRoom(ctx context.Context, id string) (housing.Room, error)
	ListRooms(ctx context.Context, filter RoomFilter) ([]housing.Room, error)
	// DeleteRoom removes the room and its assignments in one transaction.
	DeleteRoom(ctx context.Context, id string) error
}

// AssignmentRepository is the durable side of the assignment ledger.
type AssignmentRepository interface {
	// InsertAssignment checks availability, capacity and participant limits and
	// writes the binding atomically. A group already holding beds in the room has
	// its row grown instead of a second row being added.
	InsertAssignment(ctx context.Context, assignment housing.Assignment, limits AssignmentLimits) (housing.Assignment, error)
	GetAssignment(ctx context.Context, id string) (housing.Assignment, error)
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignmentsByRoom(ctx context.Context, roomID string) ([]housing.Assignment, error)
	ListAssignmentsByParticipant(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error)
	ListAssignments(ctx context.Context) ([]housing.Assignment, error)
}

// Store bundles the repositories a storage backend provides.
type Store interface {
	BuildingRepository
	RoomRepository
	AssignmentRepository
	Close() error
}
