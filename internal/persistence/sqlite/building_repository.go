package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
)

// BuildingRepository implements persistence.BuildingRepository using SQLite.
type BuildingRepository struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	mapper *ErrorMapper
}

// NewBuildingRepository creates a new SQLite building repository.
func NewBuildingRepository(pool *ConnectionPool, retry *RetryHelper) *BuildingRepository {
	return &BuildingRepository{pool: pool, retry: retry, mapper: NewErrorMapper()}
}

const buildingColumns = `id, name, gender, housing_type, floor_count, display_order, notes, created_at, updated_at`

// CreateBuilding inserts a new building.
func (r *BuildingRepository) CreateBuilding(ctx context.Context, building housing.Building) error {
	if building.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if building.CreatedAt.IsZero() {
		building.CreatedAt = now
	}
	if building.UpdatedAt.IsZero() {
		building.UpdatedAt = building.CreatedAt
	}

	const query = `
		INSERT INTO buildings (` + buildingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			building.ID,
			building.Name,
			string(building.Gender),
			string(building.HousingType),
			building.FloorCount,
			building.DisplayOrder,
			building.Notes,
			formatTime(building.CreatedAt),
			formatTime(building.UpdatedAt),
		)
		return err
	})
}

// UpdateBuilding updates the mutable columns of a building.
func (r *BuildingRepository) UpdateBuilding(ctx context.Context, building housing.Building) error {
	if building.ID == "" {
		return persistence.ErrNotFound
	}
	if building.UpdatedAt.IsZero() {
		building.UpdatedAt = time.Now().UTC()
	}

	const query = `
		UPDATE buildings
		SET name = ?, gender = ?, housing_type = ?, floor_count = ?, display_order = ?, notes = ?, updated_at = ?
		WHERE id = ?`

	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, query,
			building.Name,
			string(building.Gender),
			string(building.HousingType),
			building.FloorCount,
			building.DisplayOrder,
			building.Notes,
			formatTime(building.UpdatedAt),
			building.ID,
		)
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

// GetBuilding retrieves a building by ID.
func (r *BuildingRepository) GetBuilding(ctx context.Context, id string) (housing.Building, error) {
	building, err := getBuilding(ctx, r.pool.DB(), id)
	if err != nil {
		return housing.Building{}, r.mapper.MapError(err)
	}
	return building, nil
}

func getBuilding(ctx context.Context, q querier, id string) (housing.Building, error) {
	if id == "" {
		return housing.Building{}, persistence.ErrNotFound
	}
	row := q.QueryRowContext(ctx, `SELECT `+buildingColumns+` FROM buildings WHERE id = ?`, id)
	building, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return housing.Building{}, persistence.ErrNotFound
	}
	return building, err
}

// ListBuildings returns all buildings in display order.
func (r *BuildingRepository) ListBuildings(ctx context.Context) ([]housing.Building, error) {
	const query = `SELECT ` + buildingColumns + ` FROM buildings ORDER BY display_order ASC, name COLLATE NOCASE ASC, id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	buildings := make([]housing.Building, 0)
	for rows.Next() {
		building, err := scanBuilding(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		buildings = append(buildings, building)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return buildings, nil
}

// DeleteBuilding removes the assignments, rooms and the building in one transaction.
func (r *BuildingRepository) DeleteBuilding(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM assignments WHERE room_id IN (SELECT id FROM rooms WHERE building_id = ?)`, id); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE building_id = ?`, id); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM buildings WHERE id = ?`, id)
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

func scanBuilding(row rowScanner) (housing.Building, error) {
	var (
		building             housing.Building
		gender, housingType  string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&building.ID,
		&building.Name,
		&gender,
		&housingType,
		&building.FloorCount,
		&building.DisplayOrder,
		&building.Notes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return housing.Building{}, err
	}
	building.Gender = housing.Gender(gender)
	building.HousingType = housing.HousingType(housingType)

	var err error
	if building.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return housing.Building{}, err
	}
	if building.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return housing.Building{}, err
	}
	return building, nil
}
