package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/planner"
	"github.com/go-chi/chi/v5"
)

type autoAssignService interface {
	Run(ctx context.Context, req application.AutoAssignRequest) (application.AutoAssignResult, error)
	StartJob(ctx context.Context, req application.AutoAssignRequest) (application.Job, error)
	Job(ctx context.Context, id string) (application.Job, error)
	CancelJob(ctx context.Context, id string) (application.Job, error)
}

type AutoAssignHandler struct {
	service   autoAssignService
	responder responder
	logger    *slog.Logger
}

func NewAutoAssignHandler(service autoAssignService, logger *slog.Logger) *AutoAssignHandler {
	base := defaultLogger(logger)
	return &AutoAssignHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AutoAssignHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AutoAssignHandler", operation, attrs...)
}

// Run serves POST /auto-assign and blocks until the batch finishes. A client
// that disconnects cancels the run; beds already committed stay committed.
func (h *AutoAssignHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "Run")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Run", "strategy", string(req.Strategy), "dry_run", req.DryRun)
	result, err := h.service.Run(r.Context(), req)
	if err != nil {
		logger.ErrorContext(r.Context(), "auto-assign failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "auto-assign finished", "assigned", result.Assigned, "skipped", result.Skipped)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toAutoAssignResultDTO(result))
}

func (h *AutoAssignHandler) StartJob(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r, "StartJob")
	if !ok {
		return
	}
	job, err := h.service.StartJob(r.Context(), req)
	if err != nil {
		h.log(r.Context(), "StartJob").ErrorContext(r.Context(), "auto-assign job rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Location", "/auto-assign/jobs/"+job.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusAccepted, jobResponse{Job: toJobDTO(job)})
}

func (h *AutoAssignHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, jobResponse{Job: toJobDTO(job)})
}

func (h *AutoAssignHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	job, err := h.service.CancelJob(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r.Context(), "CancelJob", "job_id", id).InfoContext(r.Context(), "auto-assign job cancel requested", "status", string(job.Status))
	h.responder.writeJSON(r.Context(), w, http.StatusOK, jobResponse{Job: toJobDTO(job)})
}

func (h *AutoAssignHandler) decode(w http.ResponseWriter, r *http.Request, operation string) (application.AutoAssignRequest, bool) {
	var body autoAssignRequest
	if err := decodeJSON(r, &body); err != nil && !errors.Is(err, io.EOF) {
		h.log(r.Context(), operation, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode auto-assign request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return application.AutoAssignRequest{}, false
	}
	return body.toRequest(), true
}

type autoAssignRequest struct {
	Gender                  string   `json:"gender"`
	Category                string   `json:"category"`
	ParishID                string   `json:"parish_id"`
	BuildingIDs             []string `json:"building_ids"`
	Strategy                string   `json:"strategy"`
	HonorRoommatePreference bool     `json:"honor_roommate_preference"`
	OnlyUnassigned          *bool    `json:"only_unassigned"`
	DryRun                  bool     `json:"dry_run"`
}

func (r autoAssignRequest) toRequest() application.AutoAssignRequest {
	onlyUnassigned := true
	if r.OnlyUnassigned != nil {
		onlyUnassigned = *r.OnlyUnassigned
	}
	return application.AutoAssignRequest{
		Gender:                  housing.Gender(normalize(r.Gender)),
		Category:                housing.Category(normalize(r.Category)),
		ParishID:                strings.TrimSpace(r.ParishID),
		BuildingIDs:             r.BuildingIDs,
		Strategy:                planner.Strategy(normalize(r.Strategy)),
		HonorRoommatePreference: r.HonorRoommatePreference,
		OnlyUnassigned:          onlyUnassigned,
		DryRun:                  r.DryRun,
	}
}

func fromRequest(req application.AutoAssignRequest) autoAssignRequest {
	onlyUnassigned := req.OnlyUnassigned
	return autoAssignRequest{
		Gender:                  string(req.Gender),
		Category:                string(req.Category),
		ParishID:                req.ParishID,
		BuildingIDs:             req.BuildingIDs,
		Strategy:                string(req.Strategy),
		HonorRoommatePreference: req.HonorRoommatePreference,
		OnlyUnassigned:          &onlyUnassigned,
		DryRun:                  req.DryRun,
	}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

type proposalDTO struct {
	RoomID      string `json:"room_id"`
	RoomNumber  string `json:"room_number"`
	Participant string `json:"participant"`
	Label       string `json:"label"`
	Beds        int    `json:"beds"`
}

type autoAssignResultDTO struct {
	Assigned  int           `json:"assigned"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors"`
	Proposals []proposalDTO `json:"proposals,omitempty"`
	Cancelled bool          `json:"cancelled"`
}

func toAutoAssignResultDTO(result application.AutoAssignResult) autoAssignResultDTO {
	dto := autoAssignResultDTO{
		Assigned:  result.Assigned,
		Skipped:   result.Skipped,
		Errors:    append([]string{}, result.Errors...),
		Cancelled: result.Cancelled,
	}
	for _, p := range result.Proposals {
		dto.Proposals = append(dto.Proposals, proposalDTO{
			RoomID:      p.RoomID,
			RoomNumber:  p.RoomNumber,
			Participant: p.Participant.String(),
			Label:       p.Label,
			Beds:        p.Beds,
		})
	}
	return dto
}

type jobResponse struct {
	Job jobDTO `json:"job"`
}

type jobDTO struct {
	ID         string               `json:"id"`
	Status     string               `json:"status"`
	Request    autoAssignRequest    `json:"request"`
	Result     *autoAssignResultDTO `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  string               `json:"started_at"`
	FinishedAt string               `json:"finished_at,omitempty"`
}

func toJobDTO(job application.Job) jobDTO {
	dto := jobDTO{
		ID:        job.ID,
		Status:    string(job.Status),
		Request:   fromRequest(job.Request),
		Error:     job.Error,
		StartedAt: job.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if job.Status != application.JobRunning {
		result := toAutoAssignResultDTO(job.Result)
		dto.Result = &result
		dto.FinishedAt = job.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	return dto
}
