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

// InventoryStore captures the persistence operations needed by the inventory service.
type InventoryStore interface {
	persistence.BuildingRepository
	persistence.RoomRepository
}

// InventoryService orchestrates validation and persistence for buildings and rooms.
type InventoryService struct {
	store       InventoryStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewInventoryService constructs an inventory service with the provided dependencies.
func NewInventoryService(store InventoryStore, idGenerator func() string, now func() time.Time) *InventoryService {
	return NewInventoryServiceWithLogger(store, idGenerator, now, nil)
}

// NewInventoryServiceWithLogger constructs an inventory service with a specified logger.
func NewInventoryServiceWithLogger(store InventoryStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *InventoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &InventoryService{store: store, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *InventoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "InventoryService", operation, attrs...)
}

// CreateBuilding validates input and persists a new building.
func (s *InventoryService) CreateBuilding(ctx context.Context, input BuildingInput) (building housing.Building, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateBuilding", "name", strings.TrimSpace(input.Name))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create building", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("building_id", building.ID).InfoContext(ctx, "building created")
	}()

	var vErr *ValidationError
	building, vErr = buildBuilding(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	building.ID = s.idGenerator()
	building.CreatedAt = s.now()
	building.UpdatedAt = building.CreatedAt

	if err = s.store.CreateBuilding(ctx, building); err != nil {
		err = mapInventoryRepoError(err)
		building = housing.Building{}
		return
	}
	return
}

// UpdateBuilding validates input and replaces the mutable fields of a building.
func (s *InventoryService) UpdateBuilding(ctx context.Context, params UpdateBuildingParams) (building housing.Building, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateBuilding", "building_id", params.BuildingID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update building", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "building updated")
	}()

	var existing housing.Building
	existing, err = s.store.GetBuilding(ctx, params.BuildingID)
	if err != nil {
		err = mapInventoryRepoError(err)
		return
	}

	updated, vErr := buildBuilding(params.Input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = s.now()

	if err = s.store.UpdateBuilding(ctx, updated); err != nil {
		err = mapInventoryRepoError(err)
		return
	}
	building = updated
	return
}

// DeleteBuilding removes a building with all of its rooms and assignments.
func (s *InventoryService) DeleteBuilding(ctx context.Context, buildingID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("InventoryService is not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBuilding", "building_id", buildingID)

	if err := s.store.DeleteBuilding(ctx, buildingID); err != nil {
		err = mapInventoryRepoError(err)
		logger.ErrorContext(ctx, "failed to delete building", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "building deleted")
	return nil
}

// GetBuilding returns one building.
func (s *InventoryService) GetBuilding(ctx context.Context, buildingID string) (housing.Building, error) {
	if s == nil || s.store == nil {
		return housing.Building{}, fmt.Errorf("InventoryService is not configured")
	}
	building, err := s.store.GetBuilding(ctx, buildingID)
	if err != nil {
		return housing.Building{}, mapInventoryRepoError(err)
	}
	return building, nil
}

// ListBuildings returns every building in display order.
func (s *InventoryService) ListBuildings(ctx context.Context) (buildings []housing.Building, err error) {
	if s == nil || s.store == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListBuildings")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list buildings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(buildings)).DebugContext(ctx, "buildings listed")
	}()

	buildings, err = s.store.ListBuildings(ctx)
	if err != nil {
		return nil, err
	}
	housing.SortBuildings(buildings)
	return buildings, nil
}

// Summary aggregates capacity and occupancy per building and per room gender.
func (s *InventoryService) Summary(ctx context.Context) (summary InventorySummary, err error) {
	if s == nil || s.store == nil {
		err = fmt.Errorf("InventoryService is not configured")
		return
	}

	logger := s.loggerWith(ctx, "Summary")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to summarise inventory", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	var buildings []housing.Building
	buildings, err = s.ListBuildings(ctx)
	if err != nil {
		return
	}
	var rooms []housing.Room
	rooms, err = s.store.ListRooms(ctx, persistence.RoomFilter{BedRoomsOnly: true})
	if err != nil {
		return
	}

	index := make(map[string]int, len(buildings))
	summary.ByGender = make(map[housing.Gender]BedCounts)
	for i, b := range buildings {
		index[b.ID] = i
		summary.Buildings = append(summary.Buildings, BuildingSummary{
			Building: b,
			ByGender: make(map[housing.Gender]BedCounts),
		})
	}

	for _, room := range rooms {
		i, ok := index[room.BuildingID]
		if !ok {
			continue
		}
		bs := &summary.Buildings[i]
		gender := room.EffectiveGender(bs.Building)

		bs.Rooms++
		bs.Beds.add(room)
		counts := bs.ByGender[gender]
		counts.add(room)
		bs.ByGender[gender] = counts

		summary.Total.add(room)
		counts = summary.ByGender[gender]
		counts.add(room)
		summary.ByGender[gender] = counts
	}
	return
}

func buildBuilding(input BuildingInput) (housing.Building, *ValidationError) {
	vErr := &ValidationError{}

	building := housing.Building{
		Name:         strings.TrimSpace(input.Name),
		FloorCount:   input.FloorCount,
		DisplayOrder: input.DisplayOrder,
		Notes:        strings.TrimSpace(input.Notes),
	}
	if building.Name == "" {
		vErr.add("name", "name is required")
	}

	gender, err := housing.ParseGender(input.Gender)
	if err != nil {
		vErr.add("gender", "gender must be male, female or mixed")
	}
	building.Gender = gender

	housingType, err := housing.ParseHousingType(input.HousingType)
	if err != nil {
		vErr.add("housing_type", "housing type must be youth_under_18, chaperone_adult, clergy or general")
	}
	building.HousingType = housingType

	if building.FloorCount == 0 {
		building.FloorCount = 1
	}
	if building.FloorCount < 0 {
		vErr.add("floor_count", "floor count must be positive")
	}
	if building.DisplayOrder < 0 {
		vErr.add("display_order", "display order cannot be negative")
	}

	return building, vErr
}

func mapInventoryRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrCapacityExceeded):
		return fieldError("capacity", "capacity cannot be lower than current occupancy")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("room", "room violates a storage constraint")
	case errors.Is(err, persistence.ErrBusy):
		return fmt.Errorf("%w: %v", housing.ErrConflict, err)
	}
	return err
}
