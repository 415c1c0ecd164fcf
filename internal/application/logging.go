package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/housing-allocator/internal/housing"
	"github.com/example/housing-allocator/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable label for logs,
// metrics and HTTP error codes.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, housing.ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, housing.ErrRoomFull):
		return "room_full"
	case errors.Is(err, housing.ErrRoomUnavailable):
		return "room_unavailable"
	case errors.Is(err, housing.ErrGenderMismatch):
		return "gender_mismatch"
	case errors.Is(err, housing.ErrHousingTypeMismatch):
		return "housing_type_mismatch"
	case errors.Is(err, housing.ErrAlreadyAssigned):
		return "already_assigned"
	case errors.Is(err, housing.ErrConflict):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}
