package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/housing-allocator/internal/application"
	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/inventoryio"
)

var (
	errBadRequestBody     = errors.New("request body is not valid JSON for this endpoint")
	errInvalidParticipant = errors.New("participant must look like individual:<id> or group:<id>:<gender>:<category>")
	errMissingWorkbook    = errors.New("multipart field \"file\" with an xlsx workbook is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{ErrorCode: statusCode(status), Message: message})
}

// handleServiceError renders an application error with the status of its kind.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)
	status := statusForKind(kind)
	if errors.Is(err, inventoryio.ErrMalformedWorkbook) {
		kind, status = "bad_request", http.StatusBadRequest
	}

	resp := errorResponse{ErrorCode: kind, Message: err.Error(), Rejection: rejectionOf(err)}
	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		resp.Message = "request has invalid fields"
		resp.Errors = vErr.FieldErrors
	case status == http.StatusInternalServerError:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		resp.Message = statusMessage(status)
	}
	r.writeJSON(ctx, w, status, resp)
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusForKind(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "room_full", "room_unavailable", "already_assigned", "conflict", "already_exists":
		return http.StatusConflict
	case "gender_mismatch", "housing_type_mismatch", "validation":
		return http.StatusUnprocessableEntity
	case "canceled":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnprocessableEntity:
		return "validation"
	default:
		return "unexpected"
	}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request could not be understood"
	case http.StatusNotFound:
		return "the requested resource does not exist"
	case http.StatusMethodNotAllowed:
		return "method not allowed on this resource"
	case http.StatusConflict:
		return "the request conflicts with the current state of the resource"
	case http.StatusUnprocessableEntity:
		return "request has invalid fields"
	default:
		return "internal server error"
	}
}

// rejectionDTO carries the room and participant of a refused assignment.
type rejectionDTO struct {
	RoomID      string `json:"room_id,omitempty"`
	Participant string `json:"participant,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Rejection *rejectionDTO     `json:"rejection,omitempty"`
}

func rejectionOf(err error) *rejectionDTO {
	var rejection *housing.RejectionError
	if !errors.As(err, &rejection) {
		return nil
	}
	dto := &rejectionDTO{RoomID: rejection.RoomID, Detail: rejection.Detail}
	if rejection.Participant.ID != "" {
		dto.Participant = rejection.Participant.String()
	}
	return dto
}
