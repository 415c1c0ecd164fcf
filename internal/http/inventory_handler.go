package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/inventoryio"
)

// maxWorkbookBytes bounds uploaded inventory workbooks.
const maxWorkbookBytes = 10 << 20

type inventoryService interface {
	inventoryio.Inventory
	Summary(ctx context.Context) (application.InventorySummary, error)
}

type InventoryHandler struct {
	service   inventoryService
	responder responder
	logger    *slog.Logger
}

func NewInventoryHandler(service inventoryService, logger *slog.Logger) *InventoryHandler {
	base := defaultLogger(logger)
	return &InventoryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *InventoryHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "InventoryHandler", operation, attrs...)
}

func (h *InventoryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		h.log(r.Context(), "Summary").ErrorContext(r.Context(), "inventory summary failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSummaryDTO(summary))
}

func (h *InventoryHandler) Template(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := inventoryio.WriteTemplate(&buf); err != nil {
		h.log(r.Context(), "Template").ErrorContext(r.Context(), "template generation failed", "error", err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeWorkbook(w, r, "inventory-template.xlsx", buf.Bytes())
}

func (h *InventoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := inventoryio.Export(r.Context(), h.service, &buf); err != nil {
		h.log(r.Context(), "Export").ErrorContext(r.Context(), "inventory export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.writeWorkbook(w, r, "inventory-export.xlsx", buf.Bytes())
}

// Import serves POST /inventory/import with the workbook in the multipart
// field "file". Rows that fail are listed in the response; the rest are kept.
func (h *InventoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	logger := h.log(r.Context(), "Import")
	r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBytes)
	if err := r.ParseMultipartForm(maxWorkbookBytes); err != nil {
		logger.WarnContext(r.Context(), "failed to parse upload", "error", err, "error_kind", "bad_request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingWorkbook)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingWorkbook)
		return
	}
	defer file.Close()

	result, err := inventoryio.Import(r.Context(), h.service, file)
	if err != nil {
		logger.ErrorContext(r.Context(), "inventory import failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "inventory imported",
		"buildings_created", result.BuildingsCreated,
		"rooms_created", result.RoomsCreated,
		"row_errors", len(result.Errors),
	)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, result)
}

func (h *InventoryHandler) writeWorkbook(w http.ResponseWriter, r *http.Request, filename string, data []byte) {
	w.Header().Set("Content-Type", inventoryio.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.log(r.Context(), "writeWorkbook").ErrorContext(r.Context(), "failed to write workbook", "error", err)
	}
}

type bedCountsDTO struct {
	Capacity  int `json:"capacity"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

type buildingSummaryDTO struct {
	BuildingID string                  `json:"building_id"`
	Name       string                  `json:"name"`
	Rooms      int                     `json:"rooms"`
	Beds       bedCountsDTO            `json:"beds"`
	ByGender   map[string]bedCountsDTO `json:"by_gender"`
}

type summaryDTO struct {
	Buildings []buildingSummaryDTO    `json:"buildings"`
	Total     bedCountsDTO            `json:"total"`
	ByGender  map[string]bedCountsDTO `json:"by_gender"`
}

func toBedCountsDTO(c application.BedCounts) bedCountsDTO {
	return bedCountsDTO{Capacity: c.Capacity, Occupied: c.Occupied, Available: c.Available}
}

func toGenderCounts(in map[housing.Gender]application.BedCounts) map[string]bedCountsDTO {
	out := make(map[string]bedCountsDTO, len(in))
	for g, c := range in {
		out[string(g)] = toBedCountsDTO(c)
	}
	return out
}

func toSummaryDTO(summary application.InventorySummary) summaryDTO {
	dto := summaryDTO{
		Buildings: make([]buildingSummaryDTO, 0, len(summary.Buildings)),
		Total:     toBedCountsDTO(summary.Total),
		ByGender:  toGenderCounts(summary.ByGender),
	}
	for _, b := range summary.Buildings {
		dto.Buildings = append(dto.Buildings, buildingSummaryDTO{
			BuildingID: b.Building.ID,
			Name:       b.Building.Name,
			Rooms:      b.Rooms,
			Beds:       toBedCountsDTO(b.Beds),
			ByGender:   toGenderCounts(b.ByGender),
		})
	}
	return dto
}
