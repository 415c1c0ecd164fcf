package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

var errLockTimeout = errors.New("room lock wait expired")

// LedgerStore captures the persistence operations the ledger needs.
type LedgerStore interface {
	GetBuilding(ctx context.Context, id string) (housing.Building, error)
	GetRoom(ctx context.Context, id string) (housing.Room, error)
	persistence.AssignmentRepository
}

// LedgerOptions tunes a Ledger. Zero values select defaults.
type LedgerOptions struct {
	LockWait time.Duration
	Metrics  Metrics
	Logger   *slog.Logger
}

// Ledger is the only writer of assignments. Every refusal is a
// *housing.RejectionError wrapping exactly one taxonomy sentinel.
type Ledger struct {
	store       LedgerStore
	locks       *roomLocks
	idGenerator func() string
	now         func() time.Time
	metrics     Metrics
	logger      *slog.Logger
}

// NewLedger constructs a ledger with default options.
func NewLedger(store LedgerStore, idGenerator func() string, now func() time.Time) *Ledger {
	return NewLedgerWithOptions(store, idGenerator, now, LedgerOptions{})
}

// NewLedgerWithOptions constructs a ledger with the given options.
func NewLedgerWithOptions(store LedgerStore, idGenerator func() string, now func() time.Time, opts LedgerOptions) *Ledger {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:       store,
		locks:       newRoomLocks(opts.LockWait),
		idGenerator: idGenerator,
		now:         now,
		metrics:     metricsOrNop(opts.Metrics),
		logger:      defaultLogger(opts.Logger),
	}
}

func (l *Ledger) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, l.logger, "Ledger", operation, attrs...)
}

// Assign puts beds of participant into roomID. Beds zero means one bed for an
// individual and every unhoused member for a bucket. Checks run in this order:
// NotFound, RoomUnavailable, GenderMismatch, HousingTypeMismatch,
// AlreadyAssigned, RoomFull; Conflict when the room stays locked or the store
// stays busy.
func (l *Ledger) Assign(ctx context.Context, roomID string, participant housing.Participant, beds int, source housing.Source) (assignment housing.Assignment, err error) {
	if l == nil || l.store == nil {
		err = fmt.Errorf("Ledger is not configured")
		return
	}
	if participant == nil {
		err = fieldError("participant", "participant is required")
		return
	}
	ref := participant.Ref()

	logger := l.loggerWith(ctx, "Assign",
		"room_id", roomID,
		"participant", ref.String(),
		"source", string(source),
	)
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = ErrorKind(err)
			logger.WarnContext(ctx, "assignment refused", "error", err, "error_kind", outcome)
		} else {
			logger.With("assignment_id", assignment.ID, "beds", assignment.Beds).InfoContext(ctx, "participant assigned")
		}
		l.metrics.AssignAttempt(string(source), outcome)
	}()

	fill := false
	switch {
	case beds < 0:
		err = fieldError("beds", "beds must be positive")
	case beds == 0 && ref.Kind == housing.RefGroup:
		fill = true
	case beds == 0:
		beds = 1
	case ref.Kind == housing.RefIndividual && beds > 1:
		err = fieldError("beds", "an individual takes exactly one bed")
	case beds > participant.Headcount():
		err = fieldError("beds", fmt.Sprintf("%s needs at most %d beds", participant.Label(), participant.Headcount()))
	}
	if err != nil {
		return
	}

	release, waited, lockErr := l.locks.acquire(ctx, roomID)
	l.metrics.LockWait(waited)
	if lockErr != nil {
		if errors.Is(lockErr, errLockTimeout) {
			err = housing.Reject(housing.ErrConflict, roomID, ref, fmt.Sprintf("room stayed locked for %s", waited.Round(time.Millisecond)))
			return
		}
		err = lockErr
		return
	}
	defer release()

	var room housing.Room
	room, err = l.store.GetRoom(ctx, roomID)
	if err != nil {
		err = l.reject(err, roomID, ref)
		return
	}
	var building housing.Building
	building, err = l.store.GetBuilding(ctx, room.BuildingID)
	if err != nil {
		err = l.reject(err, roomID, ref)
		return
	}

	// The store repeats the eligibility check inside the insert.
	traits := participant.Profile()
	if eligibility := housing.CheckEligibility(housing.RoomView{Room: room, Building: building}, traits); eligibility != nil {
		err = housing.Reject(housing.Reason(eligibility), roomID, ref, detailOf(eligibility))
		return
	}

	var held []housing.Assignment
	held, err = l.store.ListAssignmentsByParticipant(ctx, ref)
	if err != nil {
		err = l.reject(err, roomID, ref)
		return
	}
	housed := 0
	for _, a := range held {
		housed += a.Beds
	}
	needed := participant.Headcount() - housed
	if needed <= 0 {
		err = housing.Reject(housing.ErrAlreadyAssigned, roomID, ref, "")
		return
	}
	if fill {
		beds = needed
	}
	if beds > needed {
		err = housing.Reject(housing.ErrAlreadyAssigned, roomID, ref, fmt.Sprintf("only %d beds still needed", needed))
		return
	}

	if room.Remaining() < beds {
		err = housing.Reject(housing.ErrRoomFull, roomID, ref, fmt.Sprintf("%d of %d beds free", room.Remaining(), room.Capacity))
		return
	}

	assignment, err = l.store.InsertAssignment(ctx, housing.Assignment{
		ID:        l.idGenerator(),
		RoomID:    roomID,
		Ref:       ref,
		Beds:      beds,
		Gender:    traits.Gender,
		Category:  traits.Category,
		ParishID:  traits.ParishID,
		Label:     participant.Label(),
		Source:    source,
		CreatedAt: l.now(),
	}, persistence.AssignmentLimits{ParticipantBeds: participant.Headcount()})
	if err != nil {
		assignment = housing.Assignment{}
		err = l.reject(err, roomID, ref)
		return
	}
	return
}

// Unassign deletes one assignment. A missing id yields NotFound.
func (l *Ledger) Unassign(ctx context.Context, assignmentID string) (err error) {
	if l == nil || l.store == nil {
		return fmt.Errorf("Ledger is not configured")
	}

	logger := l.loggerWith(ctx, "Unassign", "assignment_id", assignmentID)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "unassign failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "assignment removed")
	}()

	var existing housing.Assignment
	existing, err = l.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return mapLedgerRepoError(err)
	}

	release, waited, lockErr := l.locks.acquire(ctx, existing.RoomID)
	l.metrics.LockWait(waited)
	if lockErr != nil {
		if errors.Is(lockErr, errLockTimeout) {
			return housing.Reject(housing.ErrConflict, existing.RoomID, existing.Ref, "room stayed locked")
		}
		return lockErr
	}
	defer release()

	if err = l.store.DeleteAssignment(ctx, assignmentID); err != nil {
		return mapLedgerRepoError(err)
	}
	return nil
}

// ListRoomAssignments returns the live assignments of a room in creation order.
func (l *Ledger) ListRoomAssignments(ctx context.Context, roomID string) ([]housing.Assignment, error) {
	if _, err := l.store.GetRoom(ctx, roomID); err != nil {
		return nil, mapLedgerRepoError(err)
	}
	assignments, err := l.store.ListAssignmentsByRoom(ctx, roomID)
	if err != nil {
		return nil, mapLedgerRepoError(err)
	}
	return assignments, nil
}

// ListParticipantAssignments returns the rooms holding a participant and how
// many beds each holds.
func (l *Ledger) ListParticipantAssignments(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error) {
	assignments, err := l.store.ListAssignmentsByParticipant(ctx, ref)
	if err != nil {
		return nil, mapLedgerRepoError(err)
	}
	return assignments, nil
}

// reject converts a persistence failure into the taxonomy. Errors outside it
// (cancellation, driver failures) are returned unchanged.
func (l *Ledger) reject(err error, roomID string, ref housing.ParticipantRef) error {
	mapped := mapLedgerRepoError(err)
	if reason := housing.Reason(mapped); reason != nil {
		return housing.Reject(reason, roomID, ref, detailOf(mapped))
	}
	return mapped
}

func mapLedgerRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case housing.Reason(err) != nil:
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrRoomUnavailable):
		return housing.ErrRoomUnavailable
	case errors.Is(err, persistence.ErrGenderMismatch):
		return carryDetail(housing.ErrGenderMismatch, persistence.ErrGenderMismatch, err)
	case errors.Is(err, persistence.ErrHousingTypeMismatch):
		return carryDetail(housing.ErrHousingTypeMismatch, persistence.ErrHousingTypeMismatch, err)
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return housing.ErrRoomFull
	case errors.Is(err, persistence.ErrDuplicate), errors.Is(err, persistence.ErrParticipantLimit):
		return housing.ErrAlreadyAssigned
	case errors.Is(err, persistence.ErrBusy):
		return housing.ErrConflict
	}
	return err
}

// carryDetail rewraps a store refusal as reason, keeping whatever the store
// appended after its own sentinel text.
func carryDetail(reason, sentinel, err error) error {
	if _, suffix, ok := strings.Cut(err.Error(), sentinel.Error()); ok && suffix != "" {
		return fmt.Errorf("%w%s", reason, suffix)
	}
	return reason
}

// detailOf returns the explanation an eligibility error adds to its sentinel.
func detailOf(err error) string {
	reason := housing.Reason(err)
	if reason == nil || err == reason {
		return ""
	}
	msg := err.Error()
	prefix := reason.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
