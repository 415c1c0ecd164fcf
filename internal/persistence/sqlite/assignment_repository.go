package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

// AssignmentRepository implements persistence.AssignmentRepository using SQLite.
type AssignmentRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewAssignmentRepository creates a new SQLite assignment repository.
func NewAssignmentRepository(pool *ConnectionPool, retry *RetryHelper) *AssignmentRepository {
	return &AssignmentRepository{pool: pool, retry: retry, mapper: NewErrorMapper()}
}

const assignmentColumns = `id, room_id, participant_kind, participant_id, gender, category, beds, parish_id, label, source, created_at`

// occupancyFits is true when beds more fit into the room. Arguments: room id, beds, room id.
const occupancyFits = `
	(SELECT COALESCE(SUM(beds), 0) FROM assignments WHERE room_id = ?) + ?
	<= (SELECT capacity FROM rooms WHERE id = ? AND available = 1 AND purpose <> 'small_group')`

// InsertAssignment validates the room and participant inside an immediate
// transaction and writes the binding with a statement that only takes effect
// while the room still has space.
func (r *AssignmentRepository) InsertAssignment(ctx context.Context, assignment housing.Assignment, limits persistence.AssignmentLimits) (housing.Assignment, error) {
	if assignment.ID == "" || assignment.Beds <= 0 {
		return housing.Assignment{}, persistence.ErrConstraintViolation
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}

	var stored housing.Assignment
	err := r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var err error
			stored, err = r.insertTx(ctx, tx, assignment, limits)
			return r.mapper.MapError(err)
		})
	})
	if err != nil {
		return housing.Assignment{}, err
	}
	return stored, nil
}

func (r *AssignmentRepository) insertTx(ctx context.Context, tx *sql.Tx, a housing.Assignment, limits persistence.AssignmentLimits) (housing.Assignment, error) {
	var (
		view                housing.RoomView
		available           int
		purpose             string
		genderOverride      sql.NullString
		housingTypeOverride sql.NullString
		buildingGender      string
		buildingHousingType string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT r.capacity, r.available, r.purpose, r.gender_override, r.housing_type_override, b.gender, b.housing_type
		FROM rooms r JOIN buildings b ON b.id = r.building_id
		WHERE r.id = ?`, a.RoomID).
		Scan(&view.Room.Capacity, &available, &purpose, &genderOverride, &housingTypeOverride, &buildingGender, &buildingHousingType)
	if errors.Is(err, sql.ErrNoRows) {
		return housing.Assignment{}, persistence.ErrNotFound
	}
	if err != nil {
		return housing.Assignment{}, err
	}
	view.Room.Available = available != 0
	view.Room.Purpose = housing.RoomPurpose(purpose)
	if genderOverride.Valid {
		g := housing.Gender(genderOverride.String)
		view.Room.GenderOverride = &g
	}
	if housingTypeOverride.Valid {
		h := housing.HousingType(housingTypeOverride.String)
		view.Room.HousingTypeOverride = &h
	}
	view.Building.Gender = housing.Gender(buildingGender)
	view.Building.HousingType = housing.HousingType(buildingHousingType)
	if err := persistence.CheckEligibility(view, housing.Traits{Gender: a.Gender, Category: a.Category}); err != nil {
		return housing.Assignment{}, err
	}

	kind, id, gender, category := participantKey(a)

	var held int
	if a.Ref.Kind == housing.RefIndividual {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(beds), 0) FROM assignments WHERE participant_kind = ? AND participant_id = ?`,
			kind, id).Scan(&held)
	} else {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(beds), 0) FROM assignments
			 WHERE participant_kind = ? AND participant_id = ? AND gender = ? AND category = ?`,
			kind, id, gender, category).Scan(&held)
	}
	if err != nil {
		return housing.Assignment{}, err
	}
	if a.Ref.Kind == housing.RefIndividual && held > 0 {
		return housing.Assignment{}, persistence.ErrDuplicate
	}
	if limit := participantCap(a.Ref, limits); limit > 0 && held+a.Beds > limit {
		return housing.Assignment{}, persistence.ErrParticipantLimit
	}

	if a.Ref.Kind == housing.RefGroup {
		existing, err := scanAssignment(tx.QueryRowContext(ctx,
			`SELECT `+assignmentColumns+` FROM assignments
			 WHERE room_id = ? AND participant_kind = ? AND participant_id = ? AND gender = ? AND category = ?`,
			a.RoomID, kind, id, gender, category))
		switch {
		case err == nil:
			result, err := tx.ExecContext(ctx,
				`UPDATE assignments SET beds = beds + ? WHERE id = ? AND `+occupancyFits,
				a.Beds, existing.ID, a.RoomID, a.Beds, a.RoomID)
			if err != nil {
				return housing.Assignment{}, err
			}
			n, err := rowsAffected(result)
			if err != nil {
				return housing.Assignment{}, err
			}
			if n == 0 {
				return housing.Assignment{}, persistence.ErrCapacityExceeded
			}
			existing.Beds += a.Beds
			return existing, nil
		case !errors.Is(err, sql.ErrNoRows):
			return housing.Assignment{}, err
		}
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO assignments (`+assignmentColumns+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE `+occupancyFits,
		a.ID, a.RoomID, kind, id, gender, category, a.Beds, a.ParishID, a.Label, string(a.Source), formatTime(a.CreatedAt),
		a.RoomID, a.Beds, a.RoomID,
	)
	if err != nil {
		return housing.Assignment{}, err
	}
	n, err := rowsAffected(result)
	if err != nil {
		return housing.Assignment{}, err
	}
	if n == 0 {
		return housing.Assignment{}, persistence.ErrCapacityExceeded
	}
	return a, nil
}

// participantKey returns the stored key columns. Individuals keep their traits
// in gender and category; only kind and id identify them.
func participantKey(a housing.Assignment) (kind, id, gender, category string) {
	if a.Ref.Kind == housing.RefGroup {
		return string(housing.RefGroup), a.Ref.ID, string(a.Ref.Gender), string(a.Ref.Category)
	}
	return string(housing.RefIndividual), a.Ref.ID, string(a.Gender), string(a.Category)
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
func (r *AssignmentRepository) GetAssignment(ctx context.Context, id string) (housing.Assignment, error) {
	if id == "" {
		return housing.Assignment{}, persistence.ErrNotFound
	}
	a, err := scanAssignment(r.pool.DB().QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id))
	if err != nil {
		return housing.Assignment{}, r.mapper.MapError(err)
	}
	return a, nil
}

// DeleteAssignment removes an assignment by ID.
func (r *AssignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id)
		if err != nil {
			return err
		}
		n, err := rowsAffected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// ListAssignmentsByRoom returns the assignments of one room in creation order.
func (r *AssignmentRepository) ListAssignmentsByRoom(ctx context.Context, roomID string) ([]housing.Assignment, error) {
	return r.list(ctx, `WHERE room_id = ?`, roomID)
}

// ListAssignmentsByParticipant returns every room binding of a participant.
func (r *AssignmentRepository) ListAssignmentsByParticipant(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error) {
	if ref.Kind == housing.RefGroup {
		return r.list(ctx, `WHERE participant_kind = ? AND participant_id = ? AND gender = ? AND category = ?`,
			string(ref.Kind), ref.ID, string(ref.Gender), string(ref.Category))
	}
	return r.list(ctx, `WHERE participant_kind = ? AND participant_id = ?`, string(housing.RefIndividual), ref.ID)
}

// ListAssignments returns every live assignment.
func (r *AssignmentRepository) ListAssignments(ctx context.Context) ([]housing.Assignment, error) {
	return r.list(ctx, "")
}

func (r *AssignmentRepository) list(ctx context.Context, where string, args ...any) ([]housing.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments ` + where + ` ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	assignments := make([]housing.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return assignments, nil
}

func scanAssignment(row rowScanner) (housing.Assignment, error) {
	var (
		a                              housing.Assignment
		kind, gender, category, source string
		createdAt                      string
	)
	if err := row.Scan(
		&a.ID,
		&a.RoomID,
		&kind,
		&a.Ref.ID,
		&gender,
		&category,
		&a.Beds,
		&a.ParishID,
		&a.Label,
		&source,
		&createdAt,
	); err != nil {
		return housing.Assignment{}, err
	}

	a.Ref.Kind = housing.RefKind(kind)
	a.Gender = housing.Gender(gender)
	a.Category = housing.Category(category)
	if a.Ref.Kind == housing.RefGroup {
		a.Ref.Gender = a.Gender
		a.Ref.Category = a.Category
	}
	a.Source = housing.Source(source)

	var err error
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return housing.Assignment{}, err
	}
	return a, nil
}
