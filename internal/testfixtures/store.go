package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/persistence/memory"
	"github.com/example/housing-allocator/internal/persistence/sqlite"
)

// StoreHarness gives tests a persistence.Store together with seeding helpers.
type StoreHarness struct {
	Name  string
	Store persistence.Store
	// SQLite is set for harnesses backed by a database file.
	SQLite *sqlite.Store

	tb      testing.TB
	cleanup func()
}

// Close releases resources associated with the harness.
func (h *StoreHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens a migrated SQLite database in a temporary directory.
// The database is closed automatically when the test ends.
func NewSQLiteHarness(tb testing.TB) *StoreHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "housing.db")
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(path), DiscardLogger())
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	harness := &StoreHarness{
		Name:    "sqlite",
		Store:   store,
		SQLite:  store,
		tb:      tb,
		cleanup: func() { _ = store.Close() },
	}
	tb.Cleanup(harness.Close)
	return harness
}

// NewMemoryHarness returns a harness over the in-process store.
func NewMemoryHarness(tb testing.TB) *StoreHarness {
	tb.Helper()
	return &StoreHarness{Name: "memory", Store: memory.New(), tb: tb}
}

// StoreBackends lists the harness constructors contract tests run against.
func StoreBackends() []func(testing.TB) *StoreHarness {
	return []func(testing.TB) *StoreHarness{NewMemoryHarness, NewSQLiteHarness}
}

// SeedBuilding persists a building fixture and returns it.
func (h *StoreHarness) SeedBuilding(opts ...BuildingOption) housing.Building {
	h.tb.Helper()
	building := NewBuildingFixture(opts...).Housing()
	if err := h.Store.CreateBuilding(context.Background(), building); err != nil {
		h.tb.Fatalf("seed building: %v", err)
	}
	return building
}

// SeedRoom persists a room fixture inside buildingID and returns it.
func (h *StoreHarness) SeedRoom(buildingID string, opts ...RoomOption) housing.Room {
	h.tb.Helper()
	opts = append([]RoomOption{WithRoomBuilding(buildingID)}, opts...)
	room := NewRoomFixture(opts...).Housing()
	if err := h.Store.CreateRoom(context.Background(), room); err != nil {
		h.tb.Fatalf("seed room: %v", err)
	}
	return room
}

// SeedAssignment inserts beds of participant into roomID, bypassing the ledger checks.
func (h *StoreHarness) SeedAssignment(id, roomID string, participant housing.Participant, beds int) housing.Assignment {
	h.tb.Helper()
	traits := participant.Profile()
	assignment := housing.Assignment{
		ID:        id,
		RoomID:    roomID,
		Ref:       participant.Ref(),
		Beds:      beds,
		Gender:    traits.Gender,
		Category:  traits.Category,
		ParishID:  traits.ParishID,
		Label:     participant.Label(),
		Source:    housing.SourceManual,
		CreatedAt: ReferenceTime(),
	}
	stored, err := h.Store.InsertAssignment(context.Background(), assignment, persistence.AssignmentLimits{ParticipantBeds: participant.Headcount()})
	if err != nil {
		h.tb.Fatalf("seed assignment: %v", err)
	}
	return stored
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
