package inventoryio_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/inventoryio"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/example/housing-allocator/internal/roster"
	"github.com/example/housing-allocator/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newInventory(t *testing.T) (*testfixtures.StoreHarness, *application.InventoryService) {
	t.Helper()
	h := testfixtures.NewMemoryHarness(t)
	services := testfixtures.NewServiceFactory().NewServices(h, roster.NewStatic())
	return h, services.Inventory
}

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", inventoryio.SheetName))

	header := make([]any, len(inventoryio.TemplateHeader))
	for i, name := range inventoryio.TemplateHeader {
		header[i] = name
	}
	require.NoError(t, f.SetSheetRow(inventoryio.SheetName, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(inventoryio.SheetName, cell, &row))
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return &buf
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	h, inv := newInventory(t)
	north := h.SeedBuilding(testfixtures.WithBuildingName("North Hall"), testfixtures.WithBuildingGender(housing.GenderFemale), testfixtures.WithBuildingDisplayOrder(1))
	south := h.SeedBuilding(testfixtures.WithBuildingName("South Hall"), testfixtures.WithBuildingDisplayOrder(2))
	room := h.SeedRoom(north.ID, testfixtures.WithRoomNumber("110"), testfixtures.WithRoomCapacity(3))
	h.SeedRoom(north.ID, testfixtures.WithRoomNumber("102"))
	h.SeedRoom(south.ID, testfixtures.WithRoomNumber("201"), testfixtures.WithRoomFloor(2))
	h.SeedAssignment("asg-1", room.ID, testfixtures.NewIndividualFixture(testfixtures.WithIndividualGender(housing.GenderFemale)).Housing(), 1)

	var buf bytes.Buffer
	require.NoError(t, inventoryio.Export(ctx, inv, &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	rows, err := f.GetRows(inventoryio.SheetName)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Len(t, rows, 4)
	assert.Equal(t, inventoryio.ExportHeader, rows[0])
	assert.Equal(t, []string{"North Hall", "102", "South Hall"}, []string{rows[1][0], rows[1][4], rows[3][0]})
	assert.Equal(t, "1", rows[2][len(rows[2])-1], "occupancy column")

	_, target := newInventory(t)
	result, err := inventoryio.Import(ctx, target, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 2, result.BuildingsCreated)
	assert.Equal(t, 3, result.RoomsCreated)
	assert.Empty(t, result.Errors)

	views, err := target.ListRooms(ctx, persistence.RoomFilter{})
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "North Hall", views[1].Building.Name)
	assert.Equal(t, housing.GenderFemale, views[1].Building.Gender)
	assert.Equal(t, "110", views[1].Room.Number)
	assert.Equal(t, 3, views[1].Room.Capacity)
	assert.Zero(t, views[1].Room.Occupancy, "assignments are not imported")
}

func TestImportReportsBadRowsAndKeepsTheRest(t *testing.T) {
	ctx := context.Background()
	h, inv := newInventory(t)
	existing := h.SeedBuilding(testfixtures.WithBuildingName("Cedar Lodge"))
	h.SeedRoom(existing.ID, testfixtures.WithRoomNumber("100"))

	buf := workbook(t,
		[]any{"cedar lodge", "", "", "", "101", "", "", "", "yes", ""},
		[]any{"Cedar Lodge", "", "", "", "100", "", "", "", "", ""},
		[]any{"Birch House", "purple", "general", "", "1", "", "", "", "", ""},
		[]any{"Birch House", "male", "general", "", "2", "", "", "abc", "", ""},
		[]any{"", "", "", "", "", "", "", "", "", ""},
		[]any{"Birch House", "male", "general", "2", "205", "", "", "5", "", "corner"},
		[]any{"", "", "", "", "7", "", "", "", "", ""},
	)

	result, err := inventoryio.Import(ctx, inv, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.BuildingsCreated)
	assert.Equal(t, 2, result.RoomsCreated)

	require.Len(t, result.Errors, 4)
	assert.Equal(t, 3, result.Errors[0].Row)
	assert.Equal(t, "room number already exists in this building", result.Errors[0].Message)
	assert.Equal(t, 4, result.Errors[1].Row)
	assert.Contains(t, result.Errors[1].Message, "gender:")
	assert.Equal(t, 5, result.Errors[2].Row)
	assert.Contains(t, result.Errors[2].Message, "capacity:")
	assert.Equal(t, 8, result.Errors[3].Row)
	assert.Contains(t, result.Errors[3].Message, "building")

	views, err := inv.ListRooms(ctx, persistence.RoomFilter{})
	require.NoError(t, err)
	byNumber := make(map[string]housing.RoomView, len(views))
	for _, v := range views {
		byNumber[v.Room.Number] = v
	}
	require.Contains(t, byNumber, "101")
	assert.True(t, byNumber["101"].Room.ADAAccessible)
	assert.Equal(t, housing.RoomDouble, byNumber["101"].Room.Type)
	require.Contains(t, byNumber, "205")
	assert.Equal(t, housing.RoomCustom, byNumber["205"].Room.Type)
	assert.Equal(t, 5, byNumber["205"].Room.Capacity)
	assert.Equal(t, 2, byNumber["205"].Room.Floor)
	assert.Equal(t, "corner", byNumber["205"].Room.Notes)
}

func TestImportRejectsMalformedWorkbooks(t *testing.T) {
	_, inv := newInventory(t)

	_, err := inventoryio.Import(context.Background(), inv, strings.NewReader("not a workbook"))
	assert.True(t, errors.Is(err, inventoryio.ErrMalformedWorkbook))

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Whatever"))
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = inventoryio.Import(context.Background(), inv, &buf)
	require.ErrorIs(t, err, inventoryio.ErrMalformedWorkbook)
	assert.Contains(t, err.Error(), "Building")
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, inventoryio.WriteTemplate(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(inventoryio.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inventoryio.TemplateHeader, rows[0])
}
