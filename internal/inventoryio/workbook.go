// Package inventoryio reads and writes the building and room inventory as an
// xlsx workbook with one row per room.
package inventoryio

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the inventory rows.
const SheetName = "Inventory"

// ContentType is the media type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TemplateHeader lists the columns read by Import.
var TemplateHeader = []string{
	"Building",
	"Gender",
	"Housing Type",
	"Floor Count",
	"Room Number",
	"Floor",
	"Room Type",
	"Capacity",
	"ADA Accessible",
	"Notes",
}

// ExportHeader extends TemplateHeader with the live occupancy of each room.
var ExportHeader = append(append([]string(nil), TemplateHeader...), "Occupancy")

var columnWidths = []float64{24, 10, 18, 12, 14, 8, 12, 10, 15, 30, 12}

// Inventory is the subset of the inventory service the workbook needs.
type Inventory interface {
	ListBuildings(ctx context.Context) ([]housing.Building, error)
	ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]housing.RoomView, error)
	CreateBuilding(ctx context.Context, input application.BuildingInput) (housing.Building, error)
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (housing.Room, error)
}

// WriteTemplate writes an empty workbook carrying only the import header.
func WriteTemplate(w io.Writer) error {
	return writeWorkbook(w, TemplateHeader, nil)
}

// Export writes every room with its building defaults and occupancy, in
// building display order then natural room number order.
func Export(ctx context.Context, inv Inventory, w io.Writer) error {
	views, err := inv.ListRooms(ctx, persistence.RoomFilter{})
	if err != nil {
		return fmt.Errorf("inventoryio: list rooms: %w", err)
	}
	housing.SortRoomViews(views)

	rows := make([][]any, 0, len(views))
	for _, v := range views {
		rows = append(rows, []any{
			v.Building.Name,
			string(v.Building.Gender),
			string(v.Building.HousingType),
			v.Building.FloorCount,
			v.Room.Number,
			v.Room.Floor,
			string(v.Room.Type),
			v.Room.Capacity,
			yesNo(v.Room.ADAAccessible),
			v.Room.Notes,
			v.Room.Occupancy,
		})
	}
	return writeWorkbook(w, ExportHeader, rows)
}

func writeWorkbook(w io.Writer, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fmt.Errorf("inventoryio: create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("inventoryio: drop default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("inventoryio: header style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return fmt.Errorf("inventoryio: header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("inventoryio: header style %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if col < len(columnWidths) {
			if err := f.SetColWidth(SheetName, name, name, columnWidths[col]); err != nil {
				return fmt.Errorf("inventoryio: column width: %w", err)
			}
		}
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("inventoryio: row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("inventoryio: freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("inventoryio: write workbook: %w", err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func parseYesNo(value string) (bool, error) {
	switch value {
	case "", "no", "n", "false", "0":
		return false, nil
	case "yes", "y", "true", "1":
		return true, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", value)
}

func parseOptionalInt(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("expected a whole number, got %q", value)
	}
	return n, nil
}
