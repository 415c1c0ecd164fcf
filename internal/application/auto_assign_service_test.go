package application_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/planner"
	"github.com/example/housing-allocator/internal/roster"
	"github.com/example/housing-allocator/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staleRooms reports every room as empty, as a snapshot taken before
// concurrent writers filled them would.
type staleRooms struct {
	persistence.Store
}

func (s staleRooms) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]housing.Room, error) {
	rooms, err := s.Store.ListRooms(ctx, filter)
	for i := range rooms {
		rooms[i].Occupancy = 0
	}
	return rooms, err
}

// cancellingRoster cancels the run right after the roster has been read.
type cancellingRoster struct {
	roster.Provider
	cancel context.CancelFunc
}

func (c cancellingRoster) Participants(ctx context.Context, filter roster.Filter) ([]housing.Participant, error) {
	participants, err := c.Provider.Participants(ctx, filter)
	c.cancel()
	return participants, err
}

func newAutoAssign(t *testing.T, h *testfixtures.StoreHarness, store application.AutoAssignStore, provider roster.Provider) *application.AutoAssignService {
	t.Helper()
	factory := testfixtures.NewServiceFactory()
	logger := testfixtures.DiscardLogger()
	ledger := factory.NewLedger(testfixtures.LedgerDeps{Store: h.Store, Logger: logger})
	return factory.NewAutoAssignService(testfixtures.AutoAssignServiceDeps{
		Store:  store,
		Roster: provider,
		Ledger: ledger,
		Logger: logger,
	})
}

func participants(people ...housing.Participant) *roster.Static {
	return roster.NewStatic(people...)
}

func men(n int) []housing.Participant {
	out := make([]housing.Participant, n)
	for i := range out {
		out[i] = testfixtures.NewIndividualFixture().Housing()
	}
	return out
}

func TestAutoAssignService_FillRoomsCommits(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderMale))
	first := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("101"), testfixtures.WithRoomCapacity(2))
	second := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("102"), testfixtures.WithRoomCapacity(2))

	people := men(3)
	bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(3)).Housing()
	svc := newAutoAssign(t, h, h.Store, participants(append(people, bucket)...))

	result, err := svc.Run(ctx, application.AutoAssignRequest{Strategy: planner.FillRooms, OnlyUnassigned: true})
	require.NoError(t, err)

	assert.Equal(t, 4, result.Assigned)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], bucket.Label())
	assert.False(t, result.Cancelled)
	assert.Empty(t, result.Proposals)

	assert.Equal(t, 2, occupancy(t, h, first.ID))
	assert.Equal(t, 2, occupancy(t, h, second.ID))

	held, err := h.Store.ListAssignmentsByParticipant(ctx, bucket.Ref())
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, second.ID, held[0].RoomID)
	assert.Equal(t, housing.SourceAuto, held[0].Source)
}

func TestAutoAssignService_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	room := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("201"), testfixtures.WithRoomCapacity(4))
	people := men(2)
	svc := newAutoAssign(t, h, h.Store, participants(people...))

	result, err := svc.Run(ctx, application.AutoAssignRequest{Strategy: planner.BalanceRooms, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Assigned)
	require.Len(t, result.Proposals, 2)
	for i, p := range result.Proposals {
		assert.Equal(t, room.ID, p.RoomID)
		assert.Equal(t, "201", p.RoomNumber)
		assert.Equal(t, people[i].Ref(), p.Participant)
		assert.Equal(t, 1, p.Beds)
	}
	assert.Equal(t, 0, occupancy(t, h, room.ID))
}

func TestAutoAssignService_LeavesHousedParticipantsAlone(t *testing.T) {
	for _, onlyUnassigned := range []bool{true, false} {
		t.Run(fmt.Sprintf("only_unassigned=%v", onlyUnassigned), func(t *testing.T) {
			ctx := context.Background()
			h := testfixtures.NewMemoryHarness(t)
			building := h.SeedBuilding()
			housed := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("101"), testfixtures.WithRoomCapacity(4))
			h.SeedRoom(building.ID, testfixtures.WithRoomNumber("102"), testfixtures.WithRoomCapacity(4))

			people := men(2)
			bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(3)).Housing()
			h.SeedAssignment("seed-1", housed.ID, people[0], 1)
			h.SeedAssignment("seed-2", housed.ID, bucket, 2)

			svc := newAutoAssign(t, h, h.Store, participants(people[0], people[1], bucket))
			result, err := svc.Run(ctx, application.AutoAssignRequest{DryRun: true, OnlyUnassigned: onlyUnassigned})
			require.NoError(t, err)

			planned := make(map[housing.ParticipantRef]int)
			for _, p := range result.Proposals {
				planned[p.Participant] += p.Beds
			}
			assert.Equal(t, map[housing.ParticipantRef]int{
				people[1].Ref(): 1,
				bucket.Ref():    1,
			}, planned)
		})
	}
}

func TestAutoAssignService_RejectionsBecomeSkips(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	full := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("101"), testfixtures.WithRoomCapacity(1))
	open := h.SeedRoom(building.ID, testfixtures.WithRoomNumber("102"), testfixtures.WithRoomCapacity(1))
	h.SeedAssignment("seed-1", full.ID, testfixtures.NewIndividualFixture().Housing(), 1)

	people := men(2)
	svc := newAutoAssign(t, h, staleRooms{Store: h.Store}, participants(people...))

	result, err := svc.Run(ctx, application.AutoAssignRequest{Strategy: planner.FillRooms})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Assigned)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 1)
	assert.True(t, strings.HasPrefix(result.Errors[0], people[0].Label()+" → room 101: room is full"), result.Errors[0])
	assert.Equal(t, 1, occupancy(t, h, open.ID), "partial success is kept")
}

func TestAutoAssignService_RestrictsToBuildings(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	east := h.SeedBuilding(testfixtures.WithBuildingDisplayOrder(1))
	west := h.SeedBuilding(testfixtures.WithBuildingDisplayOrder(2))
	h.SeedRoom(east.ID, testfixtures.WithRoomCapacity(4))
	westRoom := h.SeedRoom(west.ID, testfixtures.WithRoomCapacity(4))

	svc := newAutoAssign(t, h, h.Store, participants(men(3)...))
	result, err := svc.Run(ctx, application.AutoAssignRequest{BuildingIDs: []string{west.ID}})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Assigned)
	assert.Equal(t, 3, occupancy(t, h, westRoom.ID))
}

func TestAutoAssignService_CancelledRunStopsSubmitting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(4))
	svc := newAutoAssign(t, h, h.Store, cancellingRoster{Provider: participants(men(2)...), cancel: cancel})

	result, err := svc.Run(ctx, application.AutoAssignRequest{})
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Zero(t, result.Assigned)
	assert.Equal(t, 0, occupancy(t, h, room.ID))
}

func TestAutoAssignService_ValidatesRequest(t *testing.T) {
	h := testfixtures.NewMemoryHarness(t)
	svc := newAutoAssign(t, h, h.Store, participants())

	_, err := svc.Run(context.Background(), application.AutoAssignRequest{
		Strategy: "random",
		Gender:   housing.GenderMixed,
		Category: "elder",
	})
	var vErr *application.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldErrors, "strategy")
	assert.Contains(t, vErr.FieldErrors, "gender")
	assert.Contains(t, vErr.FieldErrors, "category")
}

func TestAutoAssignService_ParallelCommitRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewSQLiteHarness(t)
	building := h.SeedBuilding()
	var rooms []housing.Room
	for i := 1; i <= 6; i++ {
		rooms = append(rooms, h.SeedRoom(building.ID,
			testfixtures.WithRoomNumber(fmt.Sprintf("%d", 100+i)),
			testfixtures.WithRoomCapacity(2),
		))
	}

	svc := newAutoAssign(t, h, h.Store, participants(men(15)...))
	result, err := svc.Run(ctx, application.AutoAssignRequest{Strategy: planner.BalanceRooms})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Assigned)
	assert.Equal(t, 3, result.Skipped)
	for _, room := range rooms {
		assert.Equal(t, 2, occupancy(t, h, room.ID))
	}
}

func TestAutoAssignService_Jobs(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(4))
	svc := newAutoAssign(t, h, h.Store, participants(men(3)...))

	started, err := svc.StartJob(ctx, application.AutoAssignRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, started.ID)
	assert.Equal(t, planner.FillRooms, started.Request.Strategy)

	var job application.Job
	require.Eventually(t, func() bool {
		job, err = svc.Job(ctx, started.ID)
		return err == nil && job.Status != application.JobRunning
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, application.JobSucceeded, job.Status)
	assert.Equal(t, 3, job.Result.Assigned)
	assert.Equal(t, 3, occupancy(t, h, room.ID))

	cancelled, err := svc.CancelJob(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, application.JobSucceeded, cancelled.Status, "cancelling a finished job changes nothing")

	_, err = svc.Job(ctx, "job-missing")
	assert.ErrorIs(t, err, application.ErrNotFound)
	_, err = svc.CancelJob(ctx, "job-missing")
	assert.ErrorIs(t, err, application.ErrNotFound)

	_, err = svc.StartJob(ctx, application.AutoAssignRequest{Strategy: "random"})
	var vErr *application.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
