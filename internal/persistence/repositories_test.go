package persistence_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/testfixtures"
)

// forEachStore runs fn against every storage backend.
func forEachStore(t *testing.T, fn func(t *testing.T, h *testfixtures.StoreHarness)) {
	t.Helper()
	for _, open := range testfixtures.StoreBackends() {
		h := open(t)
		t.Run(h.Name, func(t *testing.T) {
			fn(t, h)
		})
	}
}

func individual(opts ...testfixtures.IndividualOption) housing.Individual {
	return testfixtures.NewIndividualFixture(opts...).Housing()
}

func TestBuildingRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()

		second := h.SeedBuilding(testfixtures.WithBuildingName("West"), testfixtures.WithBuildingDisplayOrder(2))
		first := h.SeedBuilding(testfixtures.WithBuildingName("East"), testfixtures.WithBuildingDisplayOrder(1))

		fetched, err := h.Store.GetBuilding(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "East", fetched.Name)
		assert.Equal(t, housing.GenderMixed, fetched.Gender)

		listed, err := h.Store.ListBuildings(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 2)
		assert.Equal(t, []string{first.ID, second.ID}, []string{listed[0].ID, listed[1].ID})

		duplicate := testfixtures.NewBuildingFixture(testfixtures.WithBuildingName("EAST")).Housing()
		assert.ErrorIs(t, h.Store.CreateBuilding(ctx, duplicate), persistence.ErrDuplicate)

		fetched.Gender = housing.GenderFemale
		fetched.UpdatedAt = fetched.UpdatedAt.Add(1)
		require.NoError(t, h.Store.UpdateBuilding(ctx, fetched))
		fetched, err = h.Store.GetBuilding(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, housing.GenderFemale, fetched.Gender)

		missing := testfixtures.NewBuildingFixture().Housing()
		assert.ErrorIs(t, h.Store.UpdateBuilding(ctx, missing), persistence.ErrNotFound)
		_, err = h.Store.GetBuilding(ctx, "nope")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, h.Store.DeleteBuilding(ctx, "nope"), persistence.ErrNotFound)
	})
}

func TestRoomRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()
		building := h.SeedBuilding()

		t.Run("batch with an existing number creates nothing", func(t *testing.T) {
			h.SeedRoom(building.ID, testfixtures.WithRoomNumber("102"))

			batch := []housing.Room{
				testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding(building.ID), testfixtures.WithRoomNumber("101")).Housing(),
				testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding(building.ID), testfixtures.WithRoomNumber("102")).Housing(),
				testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding(building.ID), testfixtures.WithRoomNumber("103")).Housing(),
			}
			assert.ErrorIs(t, h.Store.CreateRooms(ctx, batch), persistence.ErrDuplicate)

			rooms, err := h.Store.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{building.ID}})
			require.NoError(t, err)
			require.Len(t, rooms, 1)
			assert.Equal(t, "102", rooms[0].Number)
		})

		t.Run("batch repeating a number creates nothing", func(t *testing.T) {
			other := h.SeedBuilding()
			batch := []housing.Room{
				testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding(other.ID), testfixtures.WithRoomNumber("A1")).Housing(),
				testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding(other.ID), testfixtures.WithRoomNumber("a1")).Housing(),
			}
			assert.ErrorIs(t, h.Store.CreateRooms(ctx, batch), persistence.ErrDuplicate)

			rooms, err := h.Store.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{other.ID}})
			require.NoError(t, err)
			assert.Empty(t, rooms)
		})

		t.Run("room in unknown building is rejected", func(t *testing.T) {
			room := testfixtures.NewRoomFixture(testfixtures.WithRoomBuilding("ghost")).Housing()
			assert.ErrorIs(t, h.Store.CreateRoom(ctx, room), persistence.ErrNotFound)
		})

		t.Run("filters and live occupancy", func(t *testing.T) {
			hall := h.SeedBuilding()
			open := h.SeedRoom(hall.ID, testfixtures.WithRoomNumber("201"), testfixtures.WithRoomCapacity(3))
			h.SeedRoom(hall.ID, testfixtures.WithRoomNumber("202"), testfixtures.WithRoomAvailable(false))
			h.SeedRoom(hall.ID, testfixtures.WithRoomNumber("203"), testfixtures.WithRoomPurpose(housing.PurposeSmallGroup))

			h.SeedAssignment("seed-1", open.ID, individual(), 1)
			h.SeedAssignment("seed-2", open.ID, testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(2)).Housing(), 2)

			rooms, err := h.Store.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{hall.ID}, OnlyAvailable: true, BedRoomsOnly: true})
			require.NoError(t, err)
			require.Len(t, rooms, 1)
			assert.Equal(t, open.ID, rooms[0].ID)
			assert.Equal(t, 3, rooms[0].Occupancy)
			assert.Equal(t, 0, rooms[0].Remaining())

			all, err := h.Store.ListRooms(ctx, persistence.RoomFilter{BuildingIDs: []string{hall.ID}})
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})

		t.Run("capacity cannot drop below occupancy", func(t *testing.T) {
			hall := h.SeedBuilding()
			room := h.SeedRoom(hall.ID, testfixtures.WithRoomCapacity(4))
			h.SeedAssignment("cap-1", room.ID, individual(), 1)
			h.SeedAssignment("cap-2", room.ID, individual(), 1)

			room.Capacity = 1
			assert.ErrorIs(t, h.Store.UpdateRoom(ctx, room), persistence.ErrCapacityExceeded)

			room.Capacity = 2
			override := housing.GenderFemale
			room.GenderOverride = &override
			require.NoError(t, h.Store.UpdateRoom(ctx, room))

			stored, err := h.Store.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.Capacity)
			assert.Equal(t, 2, stored.Occupancy)
			require.NotNil(t, stored.GenderOverride)
			assert.Equal(t, housing.GenderFemale, *stored.GenderOverride)
		})
	})
}

func TestAssignmentRepository(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()
		building := h.SeedBuilding()

		newAssignment := func(id, roomID string, p housing.Participant, beds int) housing.Assignment {
			traits := p.Profile()
			return housing.Assignment{
				ID: id, RoomID: roomID, Ref: p.Ref(), Beds: beds,
				Gender: traits.Gender, Category: traits.Category, Label: p.Label(),
				Source: housing.SourceManual, CreatedAt: testfixtures.ReferenceTime(),
			}
		}

		t.Run("rooms that hold no beds are refused", func(t *testing.T) {
			closed := h.SeedRoom(building.ID, testfixtures.WithRoomAvailable(false))
			meeting := h.SeedRoom(building.ID, testfixtures.WithRoomPurpose(housing.PurposeSmallGroup))
			p := individual()

			_, err := h.Store.InsertAssignment(ctx, newAssignment("u-1", closed.ID, p, 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrRoomUnavailable)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("u-2", meeting.ID, p, 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrRoomUnavailable)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("u-3", "ghost", p, 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrNotFound)
		})

		t.Run("insert rechecks the effective gender and housing type", func(t *testing.T) {
			women := h.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderFemale))
			womensRoom := h.SeedRoom(women.ID)
			overridden := h.SeedRoom(building.ID, testfixtures.WithRoomGenderOverride(housing.GenderFemale))
			youthRoom := h.SeedRoom(building.ID, testfixtures.WithRoomHousingTypeOverride(housing.HousingYouth))

			_, err := h.Store.InsertAssignment(ctx, newAssignment("e-1", womensRoom.ID, individual(), 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrGenderMismatch)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("e-2", overridden.ID, individual(), 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrGenderMismatch)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("e-3", youthRoom.ID, individual(), 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrHousingTypeMismatch)
			assert.Contains(t, err.Error(), "room is youth_under_18, participant is adult")

			bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(2)).Housing()
			_, err = h.Store.InsertAssignment(ctx, newAssignment("e-4", womensRoom.ID, bucket, 2), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrGenderMismatch)

			woman := individual(testfixtures.WithIndividualGender(housing.GenderFemale))
			_, err = h.Store.InsertAssignment(ctx, newAssignment("e-5", overridden.ID, woman, 1), persistence.AssignmentLimits{})
			require.NoError(t, err)

			for _, id := range []string{womensRoom.ID, overridden.ID, youthRoom.ID} {
				stored, err := h.Store.GetRoom(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, map[string]int{overridden.ID: 1}[id], stored.Occupancy)
			}
		})

		t.Run("individuals hold one bed", func(t *testing.T) {
			a := h.SeedRoom(building.ID)
			b := h.SeedRoom(building.ID)
			p := individual()

			_, err := h.Store.InsertAssignment(ctx, newAssignment("i-1", a.ID, p, 1), persistence.AssignmentLimits{})
			require.NoError(t, err)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("i-2", b.ID, p, 1), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrDuplicate)
		})

		t.Run("capacity is enforced", func(t *testing.T) {
			room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(2))
			bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(5)).Housing()

			_, err := h.Store.InsertAssignment(ctx, newAssignment("c-1", room.ID, bucket, 3), persistence.AssignmentLimits{})
			assert.ErrorIs(t, err, persistence.ErrCapacityExceeded)

			stored, err := h.Store.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, stored.Occupancy)
		})

		t.Run("group sub-assignments grow per room and respect the bucket size", func(t *testing.T) {
			first := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(4))
			second := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(4))
			bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(5)).Housing()
			limits := persistence.AssignmentLimits{ParticipantBeds: bucket.Members}

			_, err := h.Store.InsertAssignment(ctx, newAssignment("g-1", first.ID, bucket, 2), limits)
			require.NoError(t, err)
			grown, err := h.Store.InsertAssignment(ctx, newAssignment("g-2", first.ID, bucket, 1), limits)
			require.NoError(t, err)
			assert.Equal(t, "g-1", grown.ID)
			assert.Equal(t, 3, grown.Beds)

			_, err = h.Store.InsertAssignment(ctx, newAssignment("g-3", second.ID, bucket, 2), limits)
			require.NoError(t, err)
			_, err = h.Store.InsertAssignment(ctx, newAssignment("g-4", second.ID, bucket, 1), limits)
			assert.ErrorIs(t, err, persistence.ErrParticipantLimit)

			held, err := h.Store.ListAssignmentsByParticipant(ctx, bucket.Ref())
			require.NoError(t, err)
			require.Len(t, held, 2)
			beds := map[string]int{}
			for _, a := range held {
				beds[a.RoomID] = a.Beds
				assert.Equal(t, bucket.Ref(), a.Ref)
			}
			assert.Equal(t, map[string]int{first.ID: 3, second.ID: 2}, beds)
		})

		t.Run("unassign then assign restores occupancy", func(t *testing.T) {
			room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(2))
			p := individual()

			stored, err := h.Store.InsertAssignment(ctx, newAssignment("r-1", room.ID, p, 1), persistence.AssignmentLimits{})
			require.NoError(t, err)
			require.NoError(t, h.Store.DeleteAssignment(ctx, stored.ID))
			assert.ErrorIs(t, h.Store.DeleteAssignment(ctx, stored.ID), persistence.ErrNotFound)

			current, err := h.Store.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, current.Occupancy)

			_, err = h.Store.InsertAssignment(ctx, newAssignment("r-2", room.ID, p, 1), persistence.AssignmentLimits{})
			require.NoError(t, err)
			current, err = h.Store.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, current.Occupancy)
		})

		t.Run("concurrent inserts for the last bed", func(t *testing.T) {
			room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(1))

			const writers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				failures  []error
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					p := individual()
					_, err := h.Store.InsertAssignment(ctx, newAssignment(fmt.Sprintf("race-%d", i), room.ID, p, 1), persistence.AssignmentLimits{})
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
						return
					}
					failures = append(failures, err)
				}(i)
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
			for _, err := range failures {
				assert.True(t, errors.Is(err, persistence.ErrCapacityExceeded) || errors.Is(err, persistence.ErrBusy), "unexpected error: %v", err)
			}

			current, err := h.Store.GetRoom(ctx, room.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, current.Occupancy)
		})
	})
}

func TestCascadingDeletes(t *testing.T) {
	forEachStore(t, func(t *testing.T, h *testfixtures.StoreHarness) {
		ctx := context.Background()
		doomed := h.SeedBuilding()
		kept := h.SeedBuilding()

		doomedRoom := h.SeedRoom(doomed.ID)
		keptRoom := h.SeedRoom(kept.ID)
		lost := h.SeedAssignment("cascade-1", doomedRoom.ID, individual(), 1)
		survivor := h.SeedAssignment("cascade-2", keptRoom.ID, individual(), 1)

		require.NoError(t, h.Store.DeleteBuilding(ctx, doomed.ID))

		_, err := h.Store.GetRoom(ctx, doomedRoom.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		_, err = h.Store.GetAssignment(ctx, lost.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		orphans, err := h.Store.ListAssignmentsByRoom(ctx, doomedRoom.ID)
		require.NoError(t, err)
		assert.Empty(t, orphans)

		remaining, err := h.Store.ListAssignments(ctx)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, survivor.ID, remaining[0].ID)

		require.NoError(t, h.Store.DeleteRoom(ctx, keptRoom.ID))
		remaining, err = h.Store.ListAssignments(ctx)
		require.NoError(t, err)
		assert.Empty(t, remaining)
		assert.ErrorIs(t, h.Store.DeleteRoom(ctx, keptRoom.ID), persistence.ErrNotFound)
	})
}
