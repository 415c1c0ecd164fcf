package application

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

// MaxBulkRooms bounds the size of one bulk creation.
const MaxBulkRooms = 500

// CreateRoom validates input and persists a new room in an existing building.
func (s *InventoryService) CreateRoom(ctx context.Context, params CreateRoomParams) (room housing.Room, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateRoom",
		"building_id", params.BuildingID,
		"number", strings.TrimSpace(params.Input.Number),
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("room_id", room.ID).InfoContext(ctx, "room created")
	}()

	if _, err = s.store.GetBuilding(ctx, params.BuildingID); err != nil {
		err = mapInventoryRepoError(err)
		return
	}

	candidate, vErr := buildRoom(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	candidate.ID = s.idGenerator()
	candidate.BuildingID = params.BuildingID
	candidate.CreatedAt = s.now()
	candidate.UpdatedAt = candidate.CreatedAt

	if err = s.store.CreateRoom(ctx, candidate); err != nil {
		err = mapInventoryRepoError(err)
		return
	}
	room = candidate
	return
}

// UpdateRoom validates input and updates an existing room. The capacity may
// not drop below the room's current occupancy.
func (s *InventoryService) UpdateRoom(ctx context.Context, params UpdateRoomParams) (room housing.Room, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateRoom", "room_id", params.RoomID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update room", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "room updated")
	}()

	var existing housing.Room
	existing, err = s.store.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapInventoryRepoError(err)
		return
	}

	updated, vErr := buildRoom(params.Input)
	if updated.Capacity < existing.Occupancy {
		vErr.add("capacity", fmt.Sprintf("capacity cannot be lower than current occupancy (%d)", existing.Occupancy))
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated.ID = existing.ID
	updated.BuildingID = existing.BuildingID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	if err = s.store.UpdateRoom(ctx, updated); err != nil {
		err = mapInventoryRepoError(err)
		return
	}

	room, err = s.store.GetRoom(ctx, updated.ID)
	if err != nil {
		err = mapInventoryRepoError(err)
	}
	return
}

// DeleteRoom removes a room and its assignments.
func (s *InventoryService) DeleteRoom(ctx context.Context, roomID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("InventoryService is not configured")
	}

	logger := s.loggerWith(ctx, "DeleteRoom", "room_id", roomID)

	if err := s.store.DeleteRoom(ctx, roomID); err != nil {
		err = mapInventoryRepoError(err)
		logger.ErrorContext(ctx, "failed to delete room", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "room deleted")
	return nil
}

// GetRoom returns a room with its building and live occupancy.
func (s *InventoryService) GetRoom(ctx context.Context, roomID string) (housing.RoomView, error) {
	if s == nil || s.store == nil {
		return housing.RoomView{}, fmt.Errorf("InventoryService is not configured")
	}
	room, err := s.store.GetRoom(ctx, roomID)
	if err != nil {
		return housing.RoomView{}, mapInventoryRepoError(err)
	}
	building, err := s.store.GetBuilding(ctx, room.BuildingID)
	if err != nil {
		return housing.RoomView{}, mapInventoryRepoError(err)
	}
	return housing.RoomView{Room: room, Building: building}, nil
}

// ListRooms returns the rooms matching filter with their buildings, ordered by
// building display order, floor and room number.
func (s *InventoryService) ListRooms(ctx context.Context, filter persistence.RoomFilter) (views []housing.RoomView, err error) {
	if s == nil || s.store == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListRooms", "building_ids", filter.BuildingIDs)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(views)).DebugContext(ctx, "rooms listed")
	}()

	views, err = listRoomViews(ctx, s.store, filter)
	return
}

func listRoomViews(ctx context.Context, store InventoryStore, filter persistence.RoomFilter) ([]housing.RoomView, error) {
	buildings, err := store.ListBuildings(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]housing.Building, len(buildings))
	for _, b := range buildings {
		byID[b.ID] = b
	}

	rooms, err := store.ListRooms(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]housing.RoomView, 0, len(rooms))
	for _, room := range rooms {
		building, ok := byID[room.BuildingID]
		if !ok {
			continue
		}
		views = append(views, housing.RoomView{Room: room, Building: building})
	}
	housing.SortRoomViews(views)
	return views, nil
}

// BulkCreateRooms creates Prefix+n+Suffix for every n in Start..End in one
// transaction. Any number already present in the building, or repeated in the
// batch, fails the whole batch with ErrAlreadyExists.
func (s *InventoryService) BulkCreateRooms(ctx context.Context, params BulkCreateRoomsParams) (rooms []housing.Room, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "BulkCreateRooms",
		"building_id", params.BuildingID,
		"start", params.Start,
		"end", params.End,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create rooms", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("created", len(rooms)).InfoContext(ctx, "rooms created")
	}()

	vErr := &ValidationError{}
	if params.Start < 0 {
		vErr.add("start", "start must not be negative")
	}
	if params.End < params.Start {
		vErr.add("end", "end must not be before start")
	} else if params.End-params.Start+1 > MaxBulkRooms {
		vErr.add("end", fmt.Sprintf("at most %d rooms can be created at once", MaxBulkRooms))
	}
	template, templateErr := buildRoom(RoomInput{
		Number:   "0",
		Floor:    params.Floor,
		Capacity: params.Capacity,
		Type:     params.Type,
		Purpose:  params.Purpose,
	})
	vErr.merge("", templateErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	if _, err = s.store.GetBuilding(ctx, params.BuildingID); err != nil {
		err = mapInventoryRepoError(err)
		return
	}

	var existing []housing.Room
	existing, err = s.store.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{params.BuildingID}})
	if err != nil {
		return
	}
	taken := make(map[string]bool, len(existing))
	for _, room := range existing {
		taken[numberKey(room.Number)] = true
	}

	created := s.now()
	batch := make([]housing.Room, 0, params.End-params.Start+1)
	var clashes []string
	for n := params.Start; n <= params.End; n++ {
		number := strings.TrimSpace(params.Prefix) + strconv.Itoa(n) + strings.TrimSpace(params.Suffix)
		if taken[numberKey(number)] {
			clashes = append(clashes, number)
			continue
		}
		taken[numberKey(number)] = true

		room := template
		room.ID = s.idGenerator()
		room.BuildingID = params.BuildingID
		room.Number = number
		if params.Floor == 0 {
			room.Floor = floorOf(n)
		}
		room.CreatedAt = created
		room.UpdatedAt = created
		batch = append(batch, room)
	}
	if len(clashes) > 0 {
		err = fmt.Errorf("%w: room numbers %s already exist in the building", ErrAlreadyExists, strings.Join(clashes, ", "))
		return
	}

	if err = s.store.CreateRooms(ctx, batch); err != nil {
		err = mapInventoryRepoError(err)
		return
	}
	rooms = batch
	return
}

func buildRoom(input RoomInput) (housing.Room, *ValidationError) {
	vErr := &ValidationError{}

	room := housing.Room{
		Number:        strings.TrimSpace(input.Number),
		Floor:         input.Floor,
		Capacity:      input.Capacity,
		Available:     true,
		ADAAccessible: input.ADAAccessible,
		Notes:         strings.TrimSpace(input.Notes),
	}
	if input.Available != nil {
		room.Available = *input.Available
	}
	if room.Number == "" {
		vErr.add("number", "room number is required")
	}

	roomType := housing.RoomCustom
	if strings.TrimSpace(input.Type) != "" {
		parsed, err := housing.ParseRoomType(input.Type)
		if err != nil {
			vErr.add("room_type", "room type must be single, double, triple, quad or custom")
		}
		roomType = parsed
	}
	room.Type = roomType

	switch {
	case room.Capacity < 0:
		vErr.add("capacity", "capacity must be positive")
	case room.Capacity == 0 && roomType == housing.RoomCustom:
		vErr.add("capacity", "custom rooms require a capacity")
	case room.Capacity == 0:
		room.Capacity = roomType.DefaultCapacity()
	}

	room.Purpose = housing.PurposeHousing
	if strings.TrimSpace(input.Purpose) != "" {
		purpose := housing.RoomPurpose(strings.ToLower(strings.TrimSpace(input.Purpose)))
		if !purpose.Valid() {
			vErr.add("purpose", "purpose must be housing, small_group or both")
		}
		room.Purpose = purpose
	}

	if strings.TrimSpace(input.GenderOverride) != "" {
		gender, err := housing.ParseGender(input.GenderOverride)
		if err != nil {
			vErr.add("gender_override", "gender must be male, female or mixed")
		} else {
			room.GenderOverride = &gender
		}
	}
	if strings.TrimSpace(input.HousingTypeOverride) != "" {
		housingType, err := housing.ParseHousingType(input.HousingTypeOverride)
		if err != nil {
			vErr.add("housing_type_override", "unknown housing type")
		} else {
			room.HousingTypeOverride = &housingType
		}
	}

	if room.Floor < 0 {
		vErr.add("floor", "floor must be positive")
	}
	if room.Floor == 0 {
		room.Floor = floorOfNumber(room.Number)
	}

	return room, vErr
}

// floorOf derives the floor from a numeric room number: 101 is on floor 1,
// 1204 on floor 12. Numbers below 100 are on the first floor.
func floorOf(n int) int {
	if floor := n / 100; floor >= 1 {
		return floor
	}
	return 1
}

// floorOfNumber applies floorOf to the first run of digits in number.
func floorOfNumber(number string) int {
	start := strings.IndexFunc(number, func(r rune) bool { return r >= '0' && r <= '9' })
	if start < 0 {
		return 1
	}
	end := start
	for end < len(number) && number[end] >= '0' && number[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(number[start:end])
	if err != nil {
		return 1
	}
	return floorOf(n)
}

func numberKey(number string) string {
	return strings.ToLower(strings.TrimSpace(number))
}
