package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool, retry *RetryHelper) *RoomRepository {
	return &RoomRepository{pool: pool, retry: retry, mapper: NewErrorMapper()}
}

const roomSelect = `
	SELECT r.id, r.building_id, r.number, r.floor, r.capacity, r.room_type, r.purpose,
	       r.gender_override, r.housing_type_override, r.available, r.ada_accessible, r.notes,
	       r.created_at, r.updated_at,
	       COALESCE((SELECT SUM(a.beds) FROM assignments a WHERE a.room_id = r.id), 0) AS occupancy
	FROM rooms r`

const roomInsert = `
	INSERT INTO rooms (id, building_id, number, floor, capacity, room_type, purpose,
	                   gender_override, housing_type_override, available, ada_accessible, notes,
	                   created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CreateRoom inserts a single room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room housing.Room) error {
	return r.CreateRooms(ctx, []housing.Room{room})
}

// CreateRooms inserts every room in one transaction. A repeated or existing
// number rolls the whole batch back with ErrDuplicate.
func (r *RoomRepository) CreateRooms(ctx context.Context, rooms []housing.Room) error {
	now := time.Now().UTC()
	for i := range rooms {
		if rooms[i].ID == "" || rooms[i].Capacity <= 0 {
			return persistence.ErrConstraintViolation
		}
		if rooms[i].CreatedAt.IsZero() {
			rooms[i].CreatedAt = now
		}
		if rooms[i].UpdatedAt.IsZero() {
			rooms[i].UpdatedAt = rooms[i].CreatedAt
		}
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, room := range rooms {
				if _, err := tx.ExecContext(ctx, roomInsert,
					room.ID,
					room.BuildingID,
					strings.TrimSpace(room.Number),
					room.Floor,
					room.Capacity,
					string(room.Type),
					string(room.Purpose),
					nullableGender(room.GenderOverride),
					nullableHousingType(room.HousingTypeOverride),
					boolToInt(room.Available),
					boolToInt(room.ADAAccessible),
					room.Notes,
					formatTime(room.CreatedAt),
					formatTime(room.UpdatedAt),
				); err != nil {
					return r.mapper.MapError(err)
				}
			}
			return nil
		})
	})
}

// UpdateRoom updates a room, refusing a capacity below the live occupancy.
// The owning building never changes.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room housing.Room) error {
	if room.ID == "" {
		return persistence.ErrNotFound
	}
	if room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}
	if room.UpdatedAt.IsZero() {
		room.UpdatedAt = time.Now().UTC()
	}

	const query = `
		UPDATE rooms
		SET number = ?, floor = ?, capacity = ?, room_type = ?, purpose = ?,
		    gender_override = ?, housing_type_override = ?, available = ?, ada_accessible = ?,
		    notes = ?, updated_at = ?
		WHERE id = ?`

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			current, err := getRoom(ctx, tx, room.ID)
			if err != nil {
				return err
			}
			if room.Capacity < current.Occupancy {
				return persistence.ErrCapacityExceeded
			}
			_, err = tx.ExecContext(ctx, query,
				strings.TrimSpace(room.Number),
				room.Floor,
				room.Capacity,
				string(room.Type),
				string(room.Purpose),
				nullableGender(room.GenderOverride),
				nullableHousingType(room.HousingTypeOverride),
				boolToInt(room.Available),
				boolToInt(room.ADAAccessible),
				room.Notes,
				formatTime(room.UpdatedAt),
				room.ID,
			)
			return r.mapper.MapError(err)
		})
	})
}

// GetRoom retrieves a room with its live occupancy.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (housing.Room, error) {
	room, err := getRoom(ctx, r.pool.DB(), id)
	if err != nil {
		return housing.Room{}, r.mapper.MapError(err)
	}
	return room, nil
}

func getRoom(ctx context.Context, q querier, id string) (housing.Room, error) {
	if id == "" {
		return housing.Room{}, persistence.ErrNotFound
	}
	room, err := scanRoom(q.QueryRowContext(ctx, roomSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return housing.Room{}, persistence.ErrNotFound
	}
	return room, err
}

// ListRooms returns the rooms matching filter.
func (r *RoomRepository) ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]housing.Room, error) {
	var (
		conditions []string
		args       []any
	)
	if len(filter.BuildingIDs) > 0 {
		placeholders := make([]string, len(filter.BuildingIDs))
		for i, id := range filter.BuildingIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conditions = append(conditions, "r.building_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.OnlyAvailable {
		conditions = append(conditions, "r.available = 1")
	}
	if filter.BedRoomsOnly {
		conditions = append(conditions, "r.purpose <> 'small_group'")
	}

	query := roomSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.building_id ASC, r.floor ASC, r.number ASC, r.id ASC"

	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	rooms := make([]housing.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// DeleteRoom removes the room's assignments and the room in one transaction.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `DELETE FROM assignments WHERE room_id = ?`, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
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
	})
}

func scanRoom(row rowScanner) (housing.Room, error) {
	var (
		room                 housing.Room
		roomType, purpose    string
		genderOverride       sql.NullString
		housingTypeOverride  sql.NullString
		available, ada       int
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&room.ID,
		&room.BuildingID,
		&room.Number,
		&room.Floor,
		&room.Capacity,
		&roomType,
		&purpose,
		&genderOverride,
		&housingTypeOverride,
		&available,
		&ada,
		&room.Notes,
		&createdAt,
		&updatedAt,
		&room.Occupancy,
	); err != nil {
		return housing.Room{}, err
	}

	room.Type = housing.RoomType(roomType)
	room.Purpose = housing.RoomPurpose(purpose)
	room.Available = available != 0
	room.ADAAccessible = ada != 0
	if genderOverride.Valid {
		g := housing.Gender(genderOverride.String)
		room.GenderOverride = &g
	}
	if housingTypeOverride.Valid {
		h := housing.HousingType(housingTypeOverride.String)
		room.HousingTypeOverride = &h
	}

	var err error
	if room.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return housing.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return housing.Room{}, err
	}
	return room, nil
}

func nullableGender(g *housing.Gender) any {
	if g == nil {
		return nil
	}
	return string(*g)
}

func nullableHousingType(h *housing.HousingType) any {
	if h == nil {
		return nil
	}
	return string(*h)
}
