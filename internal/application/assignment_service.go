package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/roster"
)

// AssignmentService is the manual assignment surface: one participant and one
// room at a time, with the ledger's rejection taxonomy passed through.
type AssignmentService struct {
	ledger *Ledger
	roster roster.Provider
	logger *slog.Logger
}

// NewAssignmentService constructs an assignment service.
func NewAssignmentService(ledger *Ledger, provider roster.Provider) *AssignmentService {
	return NewAssignmentServiceWithLogger(ledger, provider, nil)
}

// NewAssignmentServiceWithLogger constructs an assignment service with a specified logger.
func NewAssignmentServiceWithLogger(ledger *Ledger, provider roster.Provider, logger *slog.Logger) *AssignmentService {
	return &AssignmentService{ledger: ledger, roster: provider, logger: defaultLogger(logger)}
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

// Assign resolves the participant through the roster and records it in the room.
func (s *AssignmentService) Assign(ctx context.Context, input AssignInput) (housing.Assignment, error) {
	if s == nil || s.ledger == nil || s.roster == nil {
		return housing.Assignment{}, fmt.Errorf("AssignmentService is not configured")
	}

	vErr := &ValidationError{}
	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room id is required")
	}
	if err := input.Participant.Validate(); err != nil {
		vErr.add("participant", err.Error())
	}
	if vErr.HasErrors() {
		return housing.Assignment{}, vErr
	}

	participant, err := s.roster.Lookup(ctx, input.Participant)
	if err != nil {
		if errors.Is(err, roster.ErrNotFound) {
			err = housing.Reject(housing.ErrNotFound, input.RoomID, input.Participant, "participant is not in the roster")
		}
		s.loggerWith(ctx, "Assign", "room_id", input.RoomID, "participant", input.Participant.String()).
			WarnContext(ctx, "participant lookup failed", "error", err, "error_kind", ErrorKind(err))
		return housing.Assignment{}, err
	}

	return s.ledger.Assign(ctx, input.RoomID, participant, input.Beds, housing.SourceManual)
}

// Unassign removes one assignment. Removing an assignment that no longer
// exists succeeds.
func (s *AssignmentService) Unassign(ctx context.Context, assignmentID string) error {
	if s == nil || s.ledger == nil {
		return fmt.Errorf("AssignmentService is not configured")
	}
	err := s.ledger.Unassign(ctx, assignmentID)
	if errors.Is(err, ErrNotFound) {
		s.loggerWith(ctx, "Unassign", "assignment_id", assignmentID).DebugContext(ctx, "assignment already gone")
		return nil
	}
	return err
}

// UnassignParticipant removes the participant's assignment in roomID and
// returns the beds freed. A participant not housed there frees nothing and succeeds.
func (s *AssignmentService) UnassignParticipant(ctx context.Context, roomID string, ref housing.ParticipantRef) (freed int, err error) {
	if s == nil || s.ledger == nil {
		return 0, fmt.Errorf("AssignmentService is not configured")
	}
	if err = ref.Validate(); err != nil {
		return 0, fieldError("participant", err.Error())
	}

	logger := s.loggerWith(ctx, "UnassignParticipant", "room_id", roomID, "participant", ref.String())
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to unassign participant", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("freed_beds", freed).InfoContext(ctx, "participant unassigned")
	}()

	var held []housing.Assignment
	held, err = s.ledger.ListParticipantAssignments(ctx, ref)
	if err != nil {
		return
	}
	for _, a := range held {
		if a.RoomID != roomID {
			continue
		}
		if err = s.ledger.Unassign(ctx, a.ID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return
			}
			err = nil
			continue
		}
		freed += a.Beds
	}
	return
}

// ListRoomAssignments returns the live assignments of a room.
func (s *AssignmentService) ListRoomAssignments(ctx context.Context, roomID string) ([]housing.Assignment, error) {
	if s == nil || s.ledger == nil {
		return nil, fmt.Errorf("AssignmentService is not configured")
	}
	return s.ledger.ListRoomAssignments(ctx, roomID)
}

// ListParticipantAssignments returns where a participant is housed. A bucket
// may span several rooms, each with its own bed count.
func (s *AssignmentService) ListParticipantAssignments(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error) {
	if s == nil || s.ledger == nil {
		return nil, fmt.Errorf("AssignmentService is not configured")
	}
	if err := ref.Validate(); err != nil {
		return nil, fieldError("participant", err.Error())
	}
	return s.ledger.ListParticipantAssignments(ctx, ref)
}
