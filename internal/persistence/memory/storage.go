// Package memory provides an in-process persistence.Store used by tests and by
// the "memory" storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

// Storage keeps buildings, rooms and assignments in maps guarded by one mutex.
// Every write takes the exclusive lock, so capacity checks and inserts are atomic.
type Storage struct {
	mu          sync.RWMutex
	buildings   map[string]housing.Building
	rooms       map[string]housing.Room
	assignments map[string]housing.Assignment
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{
		buildings:   make(map[string]housing.Building),
		rooms:       make(map[string]housing.Room),
		assignments: make(map[string]housing.Assignment),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- BuildingRepository implementation ---

// CreateBuilding stores a new building.
func (s *Storage) CreateBuilding(ctx context.Context, building housing.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if building.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if _, ok := s.buildings[building.ID]; ok {
		return persistence.ErrDuplicate
	}
	if err := s.ensureUniqueBuildingNameLocked(building.ID, building.Name); err != nil {
		return err
	}

	s.buildings[building.ID] = building
	return nil
}

// UpdateBuilding updates an existing building.
func (s *Storage) UpdateBuilding(ctx context.Context, building housing.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.buildings[building.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if err := s.ensureUniqueBuildingNameLocked(building.ID, building.Name); err != nil {
		return err
	}

	building.CreatedAt = existing.CreatedAt
	s.buildings[building.ID] = building
	return nil
}

// GetBuilding retrieves a building by ID.
func (s *Storage) GetBuilding(ctx context.Context, id string) (housing.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	building, ok := s.buildings[id]
	if !ok {
		return housing.Building{}, persistence.ErrNotFound
	}
	return building, nil
}

// ListBuildings returns all buildings in display order.
func (s *Storage) ListBuildings(ctx context.Context) ([]housing.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buildings := make([]housing.Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		buildings = append(buildings, b)
	}
	housing.SortBuildings(buildings)
	return buildings, nil
}

// DeleteBuilding removes a building together with its rooms and assignments.
func (s *Storage) DeleteBuilding(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.buildings[id]; !ok {
		return persistence.ErrNotFound
	}

	for roomID, room := range s.rooms {
		if room.BuildingID == id {
			s.deleteRoomLocked(roomID)
		}
	}
	delete(s.buildings, id)
	return nil
}

func (s *Storage) ensureUniqueBuildingNameLocked(id, name string) error {
	for existingID, b := range s.buildings {
		if existingID != id && strings.EqualFold(b.Name, name) {
			return persistence.ErrDuplicate
		}
	}
	return nil
}

// --- RoomRepository implementation ---

// CreateRoom stores a new room.
func (s *Storage) CreateRoom(ctx context.Context, room housing.Room) error {
	return s.CreateRooms(ctx, []housing.Room{room})
}

// CreateRooms stores every room or none of them.
func (s *Storage) CreateRooms(ctx context.Context, rooms []housing.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		if room.ID == "" || room.Capacity <= 0 {
			return persistence.ErrConstraintViolation
		}
		if _, ok := s.buildings[room.BuildingID]; !ok {
			return persistence.ErrNotFound
		}
		if _, ok := s.rooms[room.ID]; ok {
			return persistence.ErrDuplicate
		}
		key := roomNumberKey(room.BuildingID, room.Number)
		if _, ok := seen[key]; ok {
			return persistence.ErrDuplicate
		}
		seen[key] = struct{}{}
		if s.roomNumberTakenLocked(room.BuildingID, room.Number, "") {
			return persistence.ErrDuplicate
		}
	}

	for _, room := range rooms {
		room.Occupancy = 0
		s.rooms[room.ID] = cloneRoom(room)
	}
	return nil
}

// UpdateRoom updates an existing room, refusing capacities below occupancy.
func (s *Storage) UpdateRoom(ctx context.Context, room housing.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rooms[room.ID]
	if !ok {
		return persistence.ErrNotFound
	}
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if s.roomNumberTakenLocked(existing.BuildingID, room.Number, room.ID) {
		return persistence.ErrDuplicate
	}
	if room.Capacity < s.occupancyLocked(room.ID) {
		return persistence.ErrCapacityExceeded
	}

	room.BuildingID = existing.BuildingID
	room.CreatedAt = existing.CreatedAt
	room.Occupancy = 0
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

// GetRoom retrieves a room by ID with live occupancy.
func (s *Storage) GetRoom(ctx context.Context, id string) (housing.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return housing.Room{}, persistence.ErrNotFound
	}
	return s.withOccupancyLocked(room), nil
}

// ListRooms returns rooms matching the filter ordered by building then number.
func (s *Storage) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]housing.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]housing.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		if !filter.Matches(room) {
			continue
		}
		rooms = append(rooms, s.withOccupancyLocked(room))
	}

	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].BuildingID != rooms[j].BuildingID {
			return rooms[i].BuildingID < rooms[j].BuildingID
		}
		if c := housing.CompareRoomNumbers(rooms[i].Number, rooms[j].Number); c != 0 {
			return c < 0
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

// DeleteRoom removes a room and its assignments.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[id]; !ok {
		return persistence.ErrNotFound
	}
	s.deleteRoomLocked(id)
	return nil
}

func (s *Storage) deleteRoomLocked(id string) {
	for assignmentID, a := range s.assignments {
		if a.RoomID == id {
			delete(s.assignments, assignmentID)
		}
	}
	delete(s.rooms, id)
}

func (s *Storage) roomNumberTakenLocked(buildingID, number, exceptID string) bool {
	key := roomNumberKey(buildingID, number)
	for id, room := range s.rooms {
		if id == exceptID {
			continue
		}
		if roomNumberKey(room.BuildingID, room.Number) == key {
			return true
		}
	}
	return false
}

func roomNumberKey(buildingID, number string) string {
	return buildingID + "\x00" + strings.ToLower(strings.TrimSpace(number))
}

func (s *Storage) occupancyLocked(roomID string) int {
	total := 0
	for _, a := range s.assignments {
		if a.RoomID == roomID {
			total += a.Beds
		}
	}
	return total
}

func (s *Storage) withOccupancyLocked(room housing.Room) housing.Room {
	room = cloneRoom(room)
	room.Occupancy = s.occupancyLocked(room.ID)
	return room
}

func cloneRoom(room housing.Room) housing.Room {
	if room.GenderOverride != nil {
		g := *room.GenderOverride
		room.GenderOverride = &g
	}
	if room.HousingTypeOverride != nil {
		h := *room.HousingTypeOverride
		room.HousingTypeOverride = &h
	}
	return room
}

// --- AssignmentRepository implementation ---

// InsertAssignment validates and stores an assignment under the write lock.
func (s *Storage) InsertAssignment(ctx context.Context, assignment housing.Assignment, limits persistence.AssignmentLimits) (housing.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if assignment.ID == "" || assignment.Beds <= 0 {
		return housing.Assignment{}, persistence.ErrConstraintViolation
	}
	room, ok := s.rooms[assignment.RoomID]
	if !ok {
		return housing.Assignment{}, persistence.ErrNotFound
	}
	view := housing.RoomView{Room: room, Building: s.buildings[room.BuildingID]}
	if err := persistence.CheckEligibility(view, housing.Traits{Gender: assignment.Gender, Category: assignment.Category}); err != nil {
		return housing.Assignment{}, err
	}

	held := 0
	var existing *housing.Assignment
	for _, a := range s.assignments {
		if a.Ref != assignment.Ref {
			continue
		}
		held += a.Beds
		if a.RoomID == assignment.RoomID && a.Ref.Kind == housing.RefGroup {
			found := a
			existing = &found
		}
	}
	if assignment.Ref.Kind == housing.RefIndividual && held > 0 {
		return housing.Assignment{}, persistence.ErrDuplicate
	}
	if limit := participantCap(assignment.Ref, limits); limit > 0 && held+assignment.Beds > limit {
		return housing.Assignment{}, persistence.ErrParticipantLimit
	}
	if s.occupancyLocked(room.ID)+assignment.Beds > room.Capacity {
		return housing.Assignment{}, persistence.ErrCapacityExceeded
	}

	if existing != nil {
		existing.Beds += assignment.Beds
		s.assignments[existing.ID] = *existing
		return *existing, nil
	}

	s.assignments[assignment.ID] = assignment
	return assignment, nil
}

func participantCap(ref housing.ParticipantRef, limits persistence.AssignmentLimits) int {
	if limits.ParticipantBeds > 0 {
		return limits.ParticipantBeds
	}
	if ref.Kind == housing.RefIndividual {
		return 1
	}
	return 0
}

// GetAssignment retrieves an assignment by ID.
func (s *Storage) GetAssignment(ctx context.Context, id string) (housing.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[id]
	if !ok {
		return housing.Assignment{}, persistence.ErrNotFound
	}
	return a, nil
}

// DeleteAssignment removes an assignment by ID.
func (s *Storage) DeleteAssignment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assignments[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.assignments, id)
	return nil
}

// ListAssignmentsByRoom returns the assignments of one room in creation order.
func (s *Storage) ListAssignmentsByRoom(ctx context.Context, roomID string) ([]housing.Assignment, error) {
	return s.listAssignments(func(a housing.Assignment) bool { return a.RoomID == roomID }), nil
}

// ListAssignmentsByParticipant returns every room binding of a participant.
func (s *Storage) ListAssignmentsByParticipant(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error) {
	return s.listAssignments(func(a housing.Assignment) bool { return a.Ref == ref }), nil
}

// ListAssignments returns every live assignment.
func (s *Storage) ListAssignments(ctx context.Context) ([]housing.Assignment, error) {
	return s.listAssignments(func(housing.Assignment) bool { return true }), nil
}

func (s *Storage) listAssignments(keep func(housing.Assignment) bool) []housing.Assignment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]housing.Assignment, 0)
	for _, a := range s.assignments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// String summarises the storage contents for debugging.
func (s *Storage) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf("memory.Storage{buildings: %d, rooms: %d, assignments: %d}", len(s.buildings), len(s.rooms), len(s.assignments))
}
