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

type assignmentService interface {
	Assign(ctx context.Context, input application.AssignInput) (housing.Assignment, error)
	Unassign(ctx context.Context, assignmentID string) error
	UnassignParticipant(ctx context.Context, roomID string, ref housing.ParticipantRef) (int, error)
	ListRoomAssignments(ctx context.Context, roomID string) ([]housing.Assignment, error)
	ListParticipantAssignments(ctx context.Context, ref housing.ParticipantRef) ([]housing.Assignment, error)
}

type AssignmentHandler struct {
	service   assignmentService
	responder responder
	logger    *slog.Logger
}

func NewAssignmentHandler(service assignmentService, logger *slog.Logger) *AssignmentHandler {
	base := defaultLogger(logger)
	return &AssignmentHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *AssignmentHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "AssignmentHandler", operation, attrs...)
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode assignment request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	ref, err := housing.ParseParticipantRef(req.Participant)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}

	logger := h.log(r.Context(), "Create", "room_id", req.RoomID, "participant", ref.String())
	assignment, err := h.service.Assign(r.Context(), application.AssignInput{
		RoomID:      strings.TrimSpace(req.RoomID),
		Participant: ref,
		Beds:        req.Beds,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "assignment rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("assignment_id", assignment.ID).InfoContext(r.Context(), "assignment created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, assignmentResponse{Assignment: toAssignmentDTO(assignment)})
}

// Delete serves DELETE /assignments/{assignmentID}. Unknown ids succeed.
func (h *AssignmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "assignmentID")
	logger := h.log(r.Context(), "Delete", "assignment_id", id)
	if err := h.service.Unassign(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "unassign failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	logger.InfoContext(r.Context(), "assignment removed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// DeleteByParticipant serves DELETE /assignments?room_id=&participant= and
// frees every bed the participant holds in that room.
func (h *AssignmentHandler) DeleteByParticipant(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	roomID := strings.TrimSpace(query.Get("room_id"))
	ref, err := housing.ParseParticipantRef(query.Get("participant"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}

	logger := h.log(r.Context(), "DeleteByParticipant", "room_id", roomID, "participant", ref.String())
	freed, err := h.service.UnassignParticipant(r.Context(), roomID, ref)
	if err != nil {
		logger.ErrorContext(r.Context(), "unassign failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	logger.With("freed_beds", freed).InfoContext(r.Context(), "participant unassigned")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, unassignResponse{FreedBeds: freed})
}

func (h *AssignmentHandler) ListByRoom(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.service.ListRoomAssignments(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssignmentsResponse{Assignments: toAssignmentDTOs(assignments)})
}

func (h *AssignmentHandler) ListByParticipant(w http.ResponseWriter, r *http.Request) {
	ref, err := housing.ParseParticipantRef(chi.URLParam(r, "ref"))
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return
	}
	assignments, err := h.service.ListParticipantAssignments(r.Context(), ref)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listAssignmentsResponse{Assignments: toAssignmentDTOs(assignments)})
}

type assignRequest struct {
	RoomID      string `json:"room_id"`
	Participant string `json:"participant"`
	Beds        int    `json:"beds"`
}

type assignmentResponse struct {
	Assignment assignmentDTO `json:"assignment"`
}

type listAssignmentsResponse struct {
	Assignments []assignmentDTO `json:"assignments"`
}

type unassignResponse struct {
	FreedBeds int `json:"freed_beds"`
}

type assignmentDTO struct {
	ID          string `json:"id"`
	RoomID      string `json:"room_id"`
	Participant string `json:"participant"`
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	Beds        int    `json:"beds"`
	Gender      string `json:"gender"`
	Category    string `json:"category"`
	ParishID    string `json:"parish_id,omitempty"`
	Source      string `json:"source"`
	CreatedAt   string `json:"created_at"`
}

func toAssignmentDTO(a housing.Assignment) assignmentDTO {
	return assignmentDTO{
		ID:          a.ID,
		RoomID:      a.RoomID,
		Participant: a.Ref.String(),
		Kind:        string(a.Ref.Kind),
		Label:       a.Label,
		Beds:        a.Beds,
		Gender:      string(a.Gender),
		Category:    string(a.Category),
		ParishID:    a.ParishID,
		Source:      string(a.Source),
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toAssignmentDTOs(assignments []housing.Assignment) []assignmentDTO {
	out := make([]assignmentDTO, 0, len(assignments))
	for _, a := range assignments {
		out = append(out, toAssignmentDTO(a))
	}
	return out
}
