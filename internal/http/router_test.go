package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/housing-allocator/internal/housing"
	httpapi "github.com/example/housing-allocator/internal/http"
	"github.com/example/housing-allocator/internal/inventoryio"
	"github.com/example/housing-allocator/internal/roster"
	"github.com/example/housing-allocator/internal/testfixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	harness *testfixtures.StoreHarness
	handler http.Handler
}

func newAPI(t *testing.T, people ...housing.Participant) *apiFixture {
	t.Helper()
	h := testfixtures.NewMemoryHarness(t)
	services := testfixtures.NewServiceFactory().NewServices(h, roster.NewStatic(people...))
	logger := testfixtures.DiscardLogger()

	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Buildings:   httpapi.NewBuildingHandler(services.Inventory, logger),
		Rooms:       httpapi.NewRoomHandler(services.Inventory, logger),
		Assignments: httpapi.NewAssignmentHandler(services.Assignments, logger),
		AutoAssign:  httpapi.NewAutoAssignHandler(services.AutoAssign, logger),
		Inventory:   httpapi.NewInventoryHandler(services.Inventory, logger),
		Logger:      logger,
	})
	return &apiFixture{harness: h, handler: handler}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		payload, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestBuildingAndRoomEndpoints(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, http.MethodPost, "/buildings", map[string]any{
		"name":         "Cedar Hall",
		"gender":       "female",
		"housing_type": "general",
		"floor_count":  2,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	building := decode(t, rec)["building"].(map[string]any)
	buildingID := building["id"].(string)
	assert.Equal(t, "Cedar Hall", building["name"])

	rec = api.do(t, http.MethodPost, "/buildings", map[string]any{"name": "cedar hall", "gender": "male", "housing_type": "general"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decode(t, rec)["error_code"])

	rec = api.do(t, http.MethodPost, "/buildings", map[string]any{"gender": "other"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation", body["error_code"])
	assert.Contains(t, body["errors"], "name")
	assert.Contains(t, body["errors"], "gender")

	rec = api.do(t, http.MethodPost, "/buildings/"+buildingID+"/rooms", map[string]any{"number": "214", "room_type": "triple"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	room := decode(t, rec)["room"].(map[string]any)
	assert.EqualValues(t, 3, room["capacity"])
	assert.EqualValues(t, 2, room["floor"])
	assert.Equal(t, "female", room["gender"])
	assert.Equal(t, "Cedar Hall", room["building_name"])

	rec = api.do(t, http.MethodPost, "/buildings/"+buildingID+"/rooms/bulk", map[string]any{"start": 101, "end": 103, "room_type": "double"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decode(t, rec)["rooms"], 3)

	rec = api.do(t, http.MethodPost, "/buildings/"+buildingID+"/rooms/bulk", map[string]any{"start": 103, "end": 105, "room_type": "double"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, http.MethodGet, "/buildings/"+buildingID+"/rooms", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rooms := decode(t, rec)["rooms"].([]any)
	require.Len(t, rooms, 4)
	assert.Equal(t, "101", rooms[0].(map[string]any)["number"])

	rec = api.do(t, http.MethodGet, "/buildings/missing/rooms", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	roomID := room["id"].(string)
	rec = api.do(t, http.MethodPut, "/rooms/"+roomID, map[string]any{"number": "214", "room_type": "quad", "available": false})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode(t, rec)["room"].(map[string]any)
	assert.EqualValues(t, 4, updated["capacity"])
	assert.Equal(t, false, updated["available"])

	rec = api.do(t, http.MethodGet, "/rooms?available=true&building_id="+buildingID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["rooms"], 3)

	rec = api.do(t, http.MethodDelete, "/buildings/"+buildingID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, http.MethodGet, "/rooms/"+roomID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error_code"])
}

func TestAssignmentEndpoints(t *testing.T) {
	man := testfixtures.NewIndividualFixture().Housing()
	woman := testfixtures.NewIndividualFixture(testfixtures.WithIndividualGender(housing.GenderFemale)).Housing()
	other := testfixtures.NewIndividualFixture().Housing()
	api := newAPI(t, man, woman, other)

	building := api.harness.SeedBuilding(testfixtures.WithBuildingGender(housing.GenderMale))
	room := api.harness.SeedRoom(building.ID, testfixtures.WithRoomCapacity(1))

	rec := api.do(t, http.MethodPost, "/assignments", map[string]any{"room_id": room.ID, "participant": man.Ref().String()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assignment := decode(t, rec)["assignment"].(map[string]any)
	assert.Equal(t, "manual", assignment["source"])
	assert.EqualValues(t, 1, assignment["beds"])

	t.Run("gender mismatch", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/assignments", map[string]any{"room_id": room.ID, "participant": woman.Ref().String()})
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "gender_mismatch", body["error_code"])
		rejection := body["rejection"].(map[string]any)
		assert.Equal(t, room.ID, rejection["room_id"])
		assert.Equal(t, woman.Ref().String(), rejection["participant"])
	})

	t.Run("room full", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/assignments", map[string]any{"room_id": room.ID, "participant": other.Ref().String()})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "room_full", decode(t, rec)["error_code"])
	})

	t.Run("malformed participant", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/assignments", map[string]any{"room_id": room.ID, "participant": "someone"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/assignments", `{"room_id":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decode(t, rec)["error_code"])
	})

	rec = api.do(t, http.MethodGet, "/rooms/"+room.ID+"/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["assignments"], 1)

	rec = api.do(t, http.MethodGet, "/participants/"+man.Ref().String()+"/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	held := decode(t, rec)["assignments"].([]any)
	require.Len(t, held, 1)
	assert.Equal(t, room.ID, held[0].(map[string]any)["room_id"])

	rec = api.do(t, http.MethodDelete, "/assignments?room_id="+room.ID+"&participant="+man.Ref().String(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode(t, rec)["freed_beds"])

	rec = api.do(t, http.MethodDelete, "/assignments/"+assignment["id"].(string), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "unassigning a removed assignment succeeds")
}

func TestAutoAssignEndpoints(t *testing.T) {
	people := []housing.Participant{
		testfixtures.NewIndividualFixture().Housing(),
		testfixtures.NewIndividualFixture().Housing(),
	}
	api := newAPI(t, people...)
	building := api.harness.SeedBuilding()
	room := api.harness.SeedRoom(building.ID, testfixtures.WithRoomNumber("301"), testfixtures.WithRoomCapacity(4))

	rec := api.do(t, http.MethodPost, "/auto-assign", map[string]any{"strategy": "Fill_Rooms", "dry_run": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.EqualValues(t, 2, body["assigned"])
	proposals := body["proposals"].([]any)
	require.Len(t, proposals, 2)
	assert.Equal(t, "301", proposals[0].(map[string]any)["room_number"])

	rec = api.do(t, http.MethodPost, "/auto-assign", map[string]any{"strategy": "random"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode(t, rec)["errors"], "strategy")

	rec = api.do(t, http.MethodPost, "/auto-assign/jobs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	job := decode(t, rec)["job"].(map[string]any)
	jobID := job["id"].(string)
	assert.Equal(t, "/auto-assign/jobs/"+jobID, rec.Header().Get("Location"))

	require.Eventually(t, func() bool {
		rec := api.do(t, http.MethodGet, "/auto-assign/jobs/"+jobID, nil)
		var body struct {
			Job map[string]any `json:"job"`
		}
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &body) != nil {
			return false
		}
		job = body.Job
		return job["status"] != "running"
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "succeeded", job["status"])
	assert.EqualValues(t, 2, job["result"].(map[string]any)["assigned"])

	stored, err := api.harness.Store.GetRoom(context.Background(), room.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Occupancy)

	rec = api.do(t, http.MethodDelete, "/auto-assign/jobs/"+jobID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = api.do(t, http.MethodGet, "/auto-assign/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInventoryWorkbookRoundTrip(t *testing.T) {
	source := newAPI(t)
	building := source.harness.SeedBuilding(testfixtures.WithBuildingName("Oak Lodge"), testfixtures.WithBuildingGender(housing.GenderMale))
	source.harness.SeedRoom(building.ID, testfixtures.WithRoomNumber("101"), testfixtures.WithRoomCapacity(2))
	source.harness.SeedRoom(building.ID, testfixtures.WithRoomNumber("102"), testfixtures.WithRoomCapacity(2))

	rec := source.do(t, http.MethodGet, "/inventory/export.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, inventoryio.ContentType, rec.Header().Get("Content-Type"))
	workbook := rec.Body.Bytes()

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "inventory.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	target := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/inventory/import", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	imported := httptest.NewRecorder()
	target.handler.ServeHTTP(imported, req)
	require.Equal(t, http.StatusOK, imported.Code, imported.Body.String())
	result := decode(t, imported)
	assert.EqualValues(t, 1, result["buildings_created"])
	assert.EqualValues(t, 2, result["rooms_created"])

	rec = target.do(t, http.MethodGet, "/inventory/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode(t, rec)
	assert.EqualValues(t, 4, summary["total"].(map[string]any)["capacity"])
	assert.Contains(t, summary["by_gender"], "male")

	rec = target.do(t, http.MethodPost, "/inventory/import", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterFallbacksAndHealth(t *testing.T) {
	healthy := true
	handler := httpapi.NewRouter(httpapi.RouterConfig{
		Health: func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("database is locked")
		},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "housing_up 1\n")
		}),
		Logger: testfixtures.DiscardLogger(),
	})

	serve := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/healthz").Code)
	healthy = false
	assert.Equal(t, http.StatusServiceUnavailable, serve(http.MethodGet, "/healthz").Code)

	assert.Contains(t, serve(http.MethodGet, "/metrics").Body.String(), "housing_up")

	rec := serve(http.MethodGet, "/nowhere")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["error_code"])

	rec = serve(http.MethodPost, "/healthz")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
