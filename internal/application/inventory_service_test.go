package application_test

import (
	"context"
	"testing"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInventory(t *testing.T, h *testfixtures.StoreHarness) *application.InventoryService {
	t.Helper()
	factory := testfixtures.NewServiceFactory(testfixtures.WithIDGenerator(testfixtures.NewIDGenerator(h.Name)))
	return factory.NewInventoryService(testfixtures.InventoryServiceDeps{Store: h.Store, Logger: testfixtures.DiscardLogger()})
}

func TestInventoryService_CreateBuilding(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	svc := newInventory(t, h)

	building, err := svc.CreateBuilding(ctx, application.BuildingInput{
		Name:        "  Cedar Hall ",
		Gender:      "Female",
		HousingType: "youth_under_18",
	})
	require.NoError(t, err)
	assert.Equal(t, "Cedar Hall", building.Name)
	assert.Equal(t, housing.GenderFemale, building.Gender)
	assert.Equal(t, housing.HousingYouth, building.HousingType)
	assert.Equal(t, 1, building.FloorCount)

	_, err = svc.CreateBuilding(ctx, application.BuildingInput{Name: "cedar hall", Gender: "male", HousingType: "general"})
	assert.ErrorIs(t, err, application.ErrAlreadyExists)

	_, err = svc.CreateBuilding(ctx, application.BuildingInput{Gender: "other", HousingType: "hotel", FloorCount: -1})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Len(t, vErr.FieldErrors, 4)
}

func TestInventoryService_CreateRoomDefaults(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	svc := newInventory(t, h)
	building := h.SeedBuilding()

	tests := []struct {
		name      string
		input     application.RoomInput
		wantCap   int
		wantFloor int
		wantField string
	}{
		{name: "triple", input: application.RoomInput{Number: "214", Type: "triple"}, wantCap: 3, wantFloor: 2},
		{name: "explicit capacity and floor", input: application.RoomInput{Number: "B7", Type: "custom", Capacity: 6, Floor: 3}, wantCap: 6, wantFloor: 3},
		{name: "numbers below one hundred", input: application.RoomInput{Number: "12", Type: "single"}, wantCap: 1, wantFloor: 1},
		{name: "custom without capacity", input: application.RoomInput{Number: "300", Type: "custom"}, wantField: "capacity"},
		{name: "unknown type", input: application.RoomInput{Number: "301", Type: "suite"}, wantField: "room_type"},
		{name: "missing number", input: application.RoomInput{Type: "double"}, wantField: "number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			room, err := svc.CreateRoom(ctx, application.CreateRoomParams{BuildingID: building.ID, Input: tt.input})
			if tt.wantField != "" {
				var vErr *application.ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Contains(t, vErr.FieldErrors, tt.wantField)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCap, room.Capacity)
			assert.Equal(t, tt.wantFloor, room.Floor)
			assert.True(t, room.Available)
			assert.Equal(t, housing.PurposeHousing, room.Purpose)
		})
	}

	_, err := svc.CreateRoom(ctx, application.CreateRoomParams{BuildingID: "building-missing", Input: application.RoomInput{Number: "1", Type: "single"}})
	assert.ErrorIs(t, err, application.ErrNotFound)
}

func TestInventoryService_BulkCreateRooms(t *testing.T) {
	for _, backend := range testfixtures.StoreBackends() {
		h := backend(t)
		t.Run(h.Name, func(t *testing.T) {
			ctx := context.Background()
			svc := newInventory(t, h)
			building := h.SeedBuilding()

			rooms, err := svc.BulkCreateRooms(ctx, application.BulkCreateRoomsParams{
				BuildingID: building.ID,
				Start:      101,
				End:        104,
				Prefix:     "N-",
				Type:       "double",
			})
			require.NoError(t, err)
			require.Len(t, rooms, 4)
			assert.Equal(t, "N-101", rooms[0].Number)
			assert.Equal(t, "N-104", rooms[3].Number)
			for _, room := range rooms {
				assert.Equal(t, 2, room.Capacity)
				assert.Equal(t, 1, room.Floor)
			}

			_, err = svc.BulkCreateRooms(ctx, application.BulkCreateRoomsParams{
				BuildingID: building.ID,
				Start:      103,
				End:        110,
				Prefix:     "n-",
				Type:       "single",
			})
			require.ErrorIs(t, err, application.ErrAlreadyExists)
			assert.Contains(t, err.Error(), "n-103, n-104")

			listed, err := svc.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{building.ID}})
			require.NoError(t, err)
			assert.Len(t, listed, 4, "a clashing batch creates nothing")
		})
	}
}

func TestInventoryService_BulkCreateRoomsValidation(t *testing.T) {
	h := testfixtures.NewMemoryHarness(t)
	svc := newInventory(t, h)
	building := h.SeedBuilding()

	tests := []struct {
		name   string
		params application.BulkCreateRoomsParams
		field  string
	}{
		{name: "reversed range", params: application.BulkCreateRoomsParams{BuildingID: building.ID, Start: 10, End: 1, Type: "single"}, field: "end"},
		{name: "too many rooms", params: application.BulkCreateRoomsParams{BuildingID: building.ID, Start: 1, End: application.MaxBulkRooms + 1, Type: "single"}, field: "end"},
		{name: "custom without capacity", params: application.BulkCreateRoomsParams{BuildingID: building.ID, Start: 1, End: 2, Type: "custom"}, field: "capacity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BulkCreateRooms(context.Background(), tt.params)
			var vErr *application.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Contains(t, vErr.FieldErrors, tt.field)
		})
	}
}

func TestInventoryService_UpdateRoomKeepsCapacityAboveOccupancy(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	svc := newInventory(t, h)
	building := h.SeedBuilding()
	room := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("101"), testfixtures.WithRoomCapacity(4))
	h.SeedAssignment("seed-1", room.ID, testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(3)).Housing(), 3)

	_, err := svc.UpdateRoom(ctx, application.UpdateRoomParams{
		RoomID: room.ID,
		Input:  application.RoomInput{Number: "101", Type: "double"},
	})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "capacity")

	updated, err := svc.UpdateRoom(ctx, application.UpdateRoomParams{
		RoomID: room.ID,
		Input:  application.RoomInput{Number: "101", Type: "triple", Notes: "bunk beds"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
	assert.Equal(t, 3, updated.Occupancy)
	assert.Equal(t, 0, updated.Remaining())
	assert.Equal(t, "bunk beds", updated.Notes)
}

func TestInventoryService_DeleteBuildingCascades(t *testing.T) {
	for _, backend := range testfixtures.StoreBackends() {
		h := backend(t)
		t.Run(h.Name, func(t *testing.T) {
			ctx := context.Background()
			svc := newInventory(t, h)
			building := h.SeedBuilding()
			other := h.SeedBuilding()
			room := h.SeedRoom(building.ID)
			kept := h.SeedRoom(other.ID)
			h.SeedAssignment("seed-1", room.ID, testfixtures.NewIndividualFixture().Housing(), 1)
			h.SeedAssignment("seed-2", kept.ID, testfixtures.NewIndividualFixture().Housing(), 1)

			require.NoError(t, svc.DeleteBuilding(ctx, building.ID))

			_, err := svc.GetRoom(ctx, room.ID)
			assert.ErrorIs(t, err, application.ErrNotFound)
			assignments, err := h.Store.ListAssignments(ctx)
			require.NoError(t, err)
			require.Len(t, assignments, 1)
			assert.Equal(t, kept.ID, assignments[0].RoomID)

			assert.ErrorIs(t, svc.DeleteBuilding(ctx, building.ID), application.ErrNotFound)
		})
	}
}

func TestInventoryService_Summary(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	svc := newInventory(t, h)

	north := h.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderMale), testfixtures.WithBuildingDisplayOrder(1))
	south := h.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderFemale), testfixtures.WithBuildingDisplayOrder(2))
	menRoom := h.SeedRoom(north.ID, testfixtures.WithRoomCapacity(4))
	h.SeedRoom(north.ID, testfixtures.WithRoomCapacity(2), testfixtures.WithRoomGenderOverride(housing.GenderFemale))
	h.SeedRoom(north.ID, testfixtures.WithRoomCapacity(2), testfixtures.WithRoomAvailable(false))
	h.SeedRoom(north.ID, testfixtures.WithRoomCapacity(10), testfixtures.WithRoomPurpose(housing.PurposeSmallGroup))
	h.SeedRoom(south.ID, testfixtures.WithRoomCapacity(3))
	h.SeedAssignment("seed-1", menRoom.ID, testfixtures.NewIndividualFixture().Housing(), 1)

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)

	require.Len(t, summary.Buildings, 2)
	assert.Equal(t, north.ID, summary.Buildings[0].Building.ID)
	assert.Equal(t, 3, summary.Buildings[0].Rooms, "small-group rooms are left out")
	assert.Equal(t, application.BedCounts{Capacity: 8, Occupied: 1, Available: 5}, summary.Buildings[0].Beds)
	assert.Equal(t, application.BedCounts{Capacity: 11, Occupied: 1, Available: 8}, summary.Total)
	assert.Equal(t, application.BedCounts{Capacity: 6, Occupied: 1, Available: 3}, summary.ByGender[housing.GenderMale])
	assert.Equal(t, application.BedCounts{Capacity: 5, Occupied: 0, Available: 5}, summary.ByGender[housing.GenderFemale])
}
