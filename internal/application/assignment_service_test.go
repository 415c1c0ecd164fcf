package application_test

import (
	"context"
	"testing"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/roster"
	"github.com/example/housing-allocator/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentService_Assign(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderMale))
	room := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(2))

	person := testfixtures.NewIndividualFixture(testfixtures.WithIndividualParish("st-anne")).Housing()
	outsider := testfixtures.NewIndividualFixture().Housing()
	services := testfixtures.NewServiceFactory().NewServices(h, roster.NewStatic(person))

	t.Run("records the roster participant", func(t *testing.T) {
		assignment, err := services.Assignments.Assign(ctx, application.AssignInput{RoomID: room.ID, Participant: person.Ref()})
		require.NoError(t, err)
		assert.Equal(t, room.ID, assignment.RoomID)
		assert.Equal(t, person.Ref(), assignment.Ref)
		assert.Equal(t, person.Name, assignment.Label)
		assert.Equal(t, "st-anne", assignment.ParishID)
		assert.Equal(t, housing.SourceManual, assignment.Source)
	})

	t.Run("participant outside the roster", func(t *testing.T) {
		_, err := services.Assignments.Assign(ctx, application.AssignInput{RoomID: room.ID, Participant: outsider.Ref()})
		require.ErrorIs(t, err, housing.ErrNotFound)
		assert.Equal(t, 1, occupancy(t, h, room.ID))
	})

	t.Run("ledger rejection passes through", func(t *testing.T) {
		_, err := services.Assignments.Assign(ctx, application.AssignInput{RoomID: room.ID, Participant: person.Ref()})
		require.ErrorIs(t, err, housing.ErrAlreadyAssigned)
	})

	t.Run("incomplete input", func(t *testing.T) {
		_, err := services.Assignments.Assign(ctx, application.AssignInput{
			Participant: housing.ParticipantRef{Kind: housing.RefGroup, ID: "g-1"},
		})
		var vErr *application.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.FieldErrors, "room_id")
		assert.Contains(t, vErr.FieldErrors, "participant")
	})
}

func TestAssignmentService_UnassignIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	room := h.SeedRoom(building.ID)
	person := testfixtures.NewIndividualFixture().Housing()
	services := testfixtures.NewServiceFactory().NewServices(h, roster.NewStatic(person))

	assignment, err := services.Assignments.Assign(ctx, application.AssignInput{RoomID: room.ID, Participant: person.Ref()})
	require.NoError(t, err)

	require.NoError(t, services.Assignments.Unassign(ctx, assignment.ID))
	require.NoError(t, services.Assignments.Unassign(ctx, assignment.ID), "second unassign succeeds")
	require.NoError(t, services.Assignments.Unassign(ctx, "never-existed"))
	assert.Equal(t, 0, occupancy(t, h, room.ID))
}

func TestAssignmentService_UnassignParticipant(t *testing.T) {
	ctx := context.Background()
	h := testfixtures.NewMemoryHarness(t)
	building := h.SeedBuilding()
	first := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(3))
	second := h.SeedRoom(building.ID, testfixtures.WithRoomCapacity(3))
	bucket := testfixtures.NewBucketFixture(testfixtures.WithBucketMembers(5)).Housing()
	services := testfixtures.NewServiceFactory().NewServices(h, roster.NewStatic(bucket))

	_, err := services.Assignments.Assign(ctx, application.AssignInput{RoomID: first.ID, Participant: bucket.Ref(), Beds: 3})
	require.NoError(t, err)
	_, err = services.Assignments.Assign(ctx, application.AssignInput{RoomID: second.ID, Participant: bucket.Ref(), Beds: 2})
	require.NoError(t, err)

	freed, err := services.Assignments.UnassignParticipant(ctx, first.ID, bucket.Ref())
	require.NoError(t, err)
	assert.Equal(t, 3, freed)

	freed, err = services.Assignments.UnassignParticipant(ctx, first.ID, bucket.Ref())
	require.NoError(t, err)
	assert.Zero(t, freed)

	held, err := services.Assignments.ListParticipantAssignments(ctx, bucket.Ref())
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, second.ID, held[0].RoomID)
	assert.Equal(t, 2, held[0].Beds)

	byRoom, err := services.Assignments.ListRoomAssignments(ctx, second.ID)
	require.NoError(t, err)
	require.Len(t, byRoom, 1)
	assert.Equal(t, bucket.Ref(), byRoom[0].Ref)
}
