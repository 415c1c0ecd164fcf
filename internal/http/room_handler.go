package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/persistence"
	"github.com/go-chi/chi/v5"
)

type roomService interface {
	GetBuilding(ctx context.Context, buildingID string) (housing.Building, error)
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (housing.Room, error)
	BulkCreateRooms(ctx context.Context, params application.BulkCreateRoomsParams) ([]housing.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (housing.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	GetRoom(ctx context.Context, roomID string) (housing.RoomView, error)
	ListRooms(ctx context.Context, filter persistence.RoomFilter) ([]housing.RoomView, error)
}

type RoomHandler struct {
	service   roomService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

// List serves GET /rooms?building_id=a,b&available=true.
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := persistence.RoomFilter{BuildingIDs: parseCSV(query.Get("building_id"))}
	if raw := query.Get("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		filter.OnlyAvailable = available
	}
	h.list(w, r, filter)
}

// ListByBuilding serves GET /buildings/{buildingID}/rooms.
func (h *RoomHandler) ListByBuilding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "buildingID")
	if _, err := h.service.GetBuilding(r.Context(), id); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.list(w, r, persistence.RoomFilter{BuildingIDs: []string{id}})
}

func (h *RoomHandler) list(w http.ResponseWriter, r *http.Request, filter persistence.RoomFilter) {
	views, err := h.service.ListRooms(r.Context(), filter)
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: toRoomDTOs(views)})
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	buildingID := chi.URLParam(r, "buildingID")
	logger := h.log(r.Context(), "Create", "building_id", buildingID)

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode room request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{BuildingID: buildingID, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("room_id", room.ID).InfoContext(r.Context(), "room created")
	h.writeRoom(w, r, http.StatusCreated, room.ID)
}

func (h *RoomHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	buildingID := chi.URLParam(r, "buildingID")
	logger := h.log(r.Context(), "BulkCreate", "building_id", buildingID)

	var req bulkRoomsRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode bulk room request", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	rooms, err := h.service.BulkCreateRooms(r.Context(), req.toParams(buildingID))
	if err != nil {
		logger.ErrorContext(r.Context(), "bulk room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	building, err := h.service.GetBuilding(r.Context(), buildingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	views := make([]housing.RoomView, 0, len(rooms))
	for _, room := range rooms {
		views = append(views, housing.RoomView{Room: room, Building: building})
	}
	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "rooms created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, listRoomsResponse{Rooms: toRoomDTOs(views)})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.writeRoom(w, r, http.StatusOK, chi.URLParam(r, "roomID"))
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	logger := h.log(r.Context(), "Update", "room_id", roomID)

	var req roomRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode room update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	if _, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{RoomID: roomID, Input: req.toInput()}); err != nil {
		logger.ErrorContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.writeRoom(w, r, http.StatusOK, roomID)
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	logger := h.log(r.Context(), "Delete", "room_id", roomID)
	if err := h.service.DeleteRoom(r.Context(), roomID); err != nil {
		logger.ErrorContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// writeRoom renders the stored room so occupancy and effective rules are current.
func (h *RoomHandler) writeRoom(w http.ResponseWriter, r *http.Request, status int, roomID string) {
	view, err := h.service.GetRoom(r.Context(), roomID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, status, roomResponse{Room: toRoomDTO(view)})
}

type roomRequest struct {
	Number              string `json:"number"`
	Floor               int    `json:"floor"`
	Capacity            int    `json:"capacity"`
	Type                string `json:"room_type"`
	Purpose             string `json:"purpose"`
	GenderOverride      string `json:"gender_override"`
	HousingTypeOverride string `json:"housing_type_override"`
	Available           *bool  `json:"available"`
	ADAAccessible       bool   `json:"ada_accessible"`
	Notes               string `json:"notes"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Number:              strings.TrimSpace(r.Number),
		Floor:               r.Floor,
		Capacity:            r.Capacity,
		Type:                r.Type,
		Purpose:             r.Purpose,
		GenderOverride:      r.GenderOverride,
		HousingTypeOverride: r.HousingTypeOverride,
		Available:           r.Available,
		ADAAccessible:       r.ADAAccessible,
		Notes:               r.Notes,
	}
}

type bulkRoomsRequest struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Prefix   string `json:"prefix"`
	Suffix   string `json:"suffix"`
	Type     string `json:"room_type"`
	Capacity int    `json:"capacity"`
	Floor    int    `json:"floor"`
	Purpose  string `json:"purpose"`
}

func (r bulkRoomsRequest) toParams(buildingID string) application.BulkCreateRoomsParams {
	return application.BulkCreateRoomsParams{
		BuildingID: buildingID,
		Start:      r.Start,
		End:        r.End,
		Prefix:     r.Prefix,
		Suffix:     r.Suffix,
		Type:       r.Type,
		Capacity:   r.Capacity,
		Floor:      r.Floor,
		Purpose:    r.Purpose,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type roomDTO struct {
	ID                  string  `json:"id"`
	BuildingID          string  `json:"building_id"`
	BuildingName        string  `json:"building_name"`
	Number              string  `json:"number"`
	Floor               int     `json:"floor"`
	Capacity            int     `json:"capacity"`
	Occupancy           int     `json:"occupancy"`
	Remaining           int     `json:"remaining"`
	Type                string  `json:"room_type"`
	Purpose             string  `json:"purpose"`
	Gender              string  `json:"gender"`
	HousingType         string  `json:"housing_type"`
	GenderOverride      *string `json:"gender_override,omitempty"`
	HousingTypeOverride *string `json:"housing_type_override,omitempty"`
	Available           bool    `json:"available"`
	ADAAccessible       bool    `json:"ada_accessible"`
	Notes               string  `json:"notes,omitempty"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           string  `json:"updated_at"`
}

func toRoomDTO(view housing.RoomView) roomDTO {
	room := view.Room
	dto := roomDTO{
		ID:            room.ID,
		BuildingID:    room.BuildingID,
		BuildingName:  view.Building.Name,
		Number:        room.Number,
		Floor:         room.Floor,
		Capacity:      room.Capacity,
		Occupancy:     room.Occupancy,
		Remaining:     room.Remaining(),
		Type:          string(room.Type),
		Purpose:       string(room.Purpose),
		Gender:        string(view.Gender()),
		HousingType:   string(view.HousingType()),
		Available:     room.Available,
		ADAAccessible: room.ADAAccessible,
		Notes:         room.Notes,
		CreatedAt:     room.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:     room.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if room.GenderOverride != nil {
		g := string(*room.GenderOverride)
		dto.GenderOverride = &g
	}
	if room.HousingTypeOverride != nil {
		ht := string(*room.HousingTypeOverride)
		dto.HousingTypeOverride = &ht
	}
	return dto
}

func toRoomDTOs(views []housing.RoomView) []roomDTO {
	out := make([]roomDTO, 0, len(views))
	for _, view := range views {
		out = append(out, toRoomDTO(view))
	}
	return out
}

func parseCSV(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
