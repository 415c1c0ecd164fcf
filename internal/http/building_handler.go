package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/go-chi/chi/v5"
)

type buildingService interface {
	CreateBuilding(ctx context.Context, input application.BuildingInput) (housing.Building, error)
	UpdateBuilding(ctx context.Context, params application.UpdateBuildingParams) (housing.Building, error)
	DeleteBuilding(ctx context.Context, buildingID string) error
	GetBuilding(ctx context.Context, buildingID string) (housing.Building, error)
	ListBuildings(ctx context.Context) ([]housing.Building, error)
}

type BuildingHandler struct {
	service   buildingService
	responder responder
	logger    *slog.Logger
}

func NewBuildingHandler(service buildingService, logger *slog.Logger) *BuildingHandler {
	base := defaultLogger(logger)
	return &BuildingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BuildingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "BuildingHandler", operation, attrs...)
}

func (h *BuildingHandler) List(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.service.ListBuildings(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "building list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBuildingsResponse{Buildings: toBuildingDTOs(buildings)})
}

func (h *BuildingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode building request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	building, err := h.service.CreateBuilding(r.Context(), req.toInput())
	if err != nil {
		h.log(r.Context(), "Create").ErrorContext(r.Context(), "building creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "building_id", building.ID).InfoContext(r.Context(), "building created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, buildingResponse{Building: toBuildingDTO(building)})
}

func (h *BuildingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "buildingID")
	building, err := h.service.GetBuilding(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, buildingResponse{Building: toBuildingDTO(building)})
}

func (h *BuildingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "buildingID")
	logger := h.log(r.Context(), "Update", "building_id", id)

	var req buildingRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.WarnContext(r.Context(), "failed to decode building update", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	building, err := h.service.UpdateBuilding(r.Context(), application.UpdateBuildingParams{BuildingID: id, Input: req.toInput()})
	if err != nil {
		logger.ErrorContext(r.Context(), "building update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "building updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, buildingResponse{Building: toBuildingDTO(building)})
}

func (h *BuildingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "buildingID")
	logger := h.log(r.Context(), "Delete", "building_id", id)
	if err := h.service.DeleteBuilding(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "building delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "building deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

type buildingRequest struct {
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	HousingType  string `json:"housing_type"`
	FloorCount   int    `json:"floor_count"`
	DisplayOrder int    `json:"display_order"`
	Notes        string `json:"notes"`
}

func (r buildingRequest) toInput() application.BuildingInput {
	return application.BuildingInput{
		Name:         strings.TrimSpace(r.Name),
		Gender:       r.Gender,
		HousingType:  r.HousingType,
		FloorCount:   r.FloorCount,
		DisplayOrder: r.DisplayOrder,
		Notes:        r.Notes,
	}
}

type buildingResponse struct {
	Building buildingDTO `json:"building"`
}

type listBuildingsResponse struct {
	Buildings []buildingDTO `json:"buildings"`
}

type buildingDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Gender       string `json:"gender"`
	HousingType  string `json:"housing_type"`
	FloorCount   int    `json:"floor_count"`
	DisplayOrder int    `json:"display_order"`
	Notes        string `json:"notes,omitempty"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

func toBuildingDTO(b housing.Building) buildingDTO {
	return buildingDTO{
		ID:           b.ID,
		Name:         b.Name,
		Gender:       string(b.Gender),
		HousingType:  string(b.HousingType),
		FloorCount:   b.FloorCount,
		DisplayOrder: b.DisplayOrder,
		Notes:        b.Notes,
		CreatedAt:    b.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    b.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toBuildingDTOs(buildings []housing.Building) []buildingDTO {
	out := make([]buildingDTO, 0, len(buildings))
	for _, b := range buildings {
		out = append(out, toBuildingDTO(b))
	}
	return out
}
