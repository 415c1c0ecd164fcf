package inventoryio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/xuri/excelize/v2"
)

// RowError reports why one worksheet row was not imported. Row is 1-based as
// shown by spreadsheet tools.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises an import. Rows that fail are reported and skipped;
// the remaining rows are still applied.
type ImportResult struct {
	BuildingsCreated int        `json:"buildings_created"`
	RoomsCreated     int        `json:"rooms_created"`
	Errors           []RowError `json:"errors,omitempty"`
}

// ErrMalformedWorkbook is returned when the workbook cannot be read at all.
var ErrMalformedWorkbook = errors.New("inventoryio: malformed workbook")

// Import reads the Inventory sheet and creates the rooms it lists. Buildings are
// matched by name, case-insensitively, and created from the first row that
// names them.
func Import(ctx context.Context, inv Inventory, r io.Reader) (ImportResult, error) {
	var result ImportResult

	f, err := excelize.OpenReader(r)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return result, fmt.Errorf("%w: no sheets", ErrMalformedWorkbook)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedWorkbook, err)
	}
	if len(rows) == 0 {
		return result, fmt.Errorf("%w: missing header row", ErrMalformedWorkbook)
	}
	columns, err := headerColumns(rows[0])
	if err != nil {
		return result, err
	}

	existing, err := inv.ListBuildings(ctx)
	if err != nil {
		return result, fmt.Errorf("inventoryio: list buildings: %w", err)
	}
	buildings := make(map[string]housing.Building, len(existing))
	for _, b := range existing {
		buildings[buildingKey(b.Name)] = b
	}

	for i, cells := range rows[1:] {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		line := i + 2
		row := columns.read(cells)
		if row.empty() {
			continue
		}
		if err := importRow(ctx, inv, buildings, row, &result); err != nil {
			result.Errors = append(result.Errors, RowError{Row: line, Message: describe(err)})
		}
	}
	return result, nil
}

func importRow(ctx context.Context, inv Inventory, buildings map[string]housing.Building, row sheetRow, result *ImportResult) error {
	if row.building == "" {
		return errors.New("building: building name is required")
	}

	building, ok := buildings[buildingKey(row.building)]
	if !ok {
		floors, err := parseOptionalInt(row.floorCount)
		if err != nil {
			return fmt.Errorf("floor_count: %v", err)
		}
		building, err = inv.CreateBuilding(ctx, application.BuildingInput{
			Name:        row.building,
			Gender:      row.gender,
			HousingType: row.housingType,
			FloorCount:  floors,
		})
		if err != nil {
			return err
		}
		buildings[buildingKey(building.Name)] = building
		result.BuildingsCreated++
	}

	floor, err := parseOptionalInt(row.floor)
	if err != nil {
		return fmt.Errorf("floor: %v", err)
	}
	capacity, err := parseOptionalInt(row.capacity)
	if err != nil {
		return fmt.Errorf("capacity: %v", err)
	}
	ada, err := parseYesNo(strings.ToLower(row.ada))
	if err != nil {
		return fmt.Errorf("ada_accessible: %v", err)
	}
	roomType := row.roomType
	switch {
	case roomType != "":
	case capacity > 0:
		roomType = string(housing.RoomCustom)
	default:
		roomType = string(housing.RoomDouble)
	}

	if _, err := inv.CreateRoom(ctx, application.CreateRoomParams{
		BuildingID: building.ID,
		Input: application.RoomInput{
			Number:        row.number,
			Floor:         floor,
			Capacity:      capacity,
			Type:          roomType,
			ADAAccessible: ada,
			Notes:         row.notes,
		},
	}); err != nil {
		return err
	}
	result.RoomsCreated++
	return nil
}

type sheetRow struct {
	building    string
	gender      string
	housingType string
	floorCount  string
	number      string
	floor       string
	roomType    string
	capacity    string
	ada         string
	notes       string
}

func (r sheetRow) empty() bool {
	return r == sheetRow{}
}

// columnIndex maps each template column to its position in the header row.
type columnIndex map[string]int

func headerColumns(header []string) (columnIndex, error) {
	index := make(columnIndex, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range []string{"Building", "Room Number"} {
		if _, ok := index[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrMalformedWorkbook, strings.Join(missing, ", "))
	}
	return index, nil
}

func (c columnIndex) cell(cells []string, name string) string {
	i, ok := c[strings.ToLower(name)]
	if !ok || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func (c columnIndex) read(cells []string) sheetRow {
	return sheetRow{
		building:    c.cell(cells, "Building"),
		gender:      c.cell(cells, "Gender"),
		housingType: c.cell(cells, "Housing Type"),
		floorCount:  c.cell(cells, "Floor Count"),
		number:      c.cell(cells, "Room Number"),
		floor:       c.cell(cells, "Floor"),
		roomType:    c.cell(cells, "Room Type"),
		capacity:    c.cell(cells, "Capacity"),
		ada:         c.cell(cells, "ADA Accessible"),
		notes:       c.cell(cells, "Notes"),
	}
}

func buildingKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func describe(err error) string {
	var vErr *application.ValidationError
	if errors.As(err, &vErr) && len(vErr.FieldErrors) > 0 {
		fields := make([]string, 0, len(vErr.FieldErrors))
		for field := range vErr.FieldErrors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			parts = append(parts, field+": "+vErr.FieldErrors[field])
		}
		return strings.Join(parts, "; ")
	}
	if errors.Is(err, application.ErrAlreadyExists) {
		return "room number already exists in this building"
	}
	return err.Error()
}
