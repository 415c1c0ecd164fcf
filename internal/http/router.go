package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	Buildings   *BuildingHandler
	Rooms       *RoomHandler
	Assignments *AssignmentHandler
	AutoAssign  *AutoAssignHandler
	Inventory   *InventoryHandler
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
	// Metrics is mounted on /metrics when set.
	Metrics    http.Handler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	resp := newResponder(logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, RequestLogger(logger), middleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		resp.writeError(req.Context(), w, http.StatusNotFound, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		resp.writeError(req.Context(), w, http.StatusMethodNotAllowed, nil)
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				resp.loggerFor(req.Context()).ErrorContext(req.Context(), "health check failed", "error", err)
				resp.writeJSON(req.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		resp.writeJSON(req.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/buildings", func(r chi.Router) {
		if cfg.Buildings != nil {
			r.Get("/", cfg.Buildings.List)
			r.Post("/", cfg.Buildings.Create)
		}
		r.Route("/{buildingID}", func(r chi.Router) {
			if cfg.Buildings != nil {
				r.Get("/", cfg.Buildings.Get)
				r.Put("/", cfg.Buildings.Update)
				r.Delete("/", cfg.Buildings.Delete)
			}
			if cfg.Rooms != nil {
				r.Get("/rooms", cfg.Rooms.ListByBuilding)
				r.Post("/rooms", cfg.Rooms.Create)
				r.Post("/rooms/bulk", cfg.Rooms.BulkCreate)
			}
		})
	})

	r.Route("/rooms", func(r chi.Router) {
		if cfg.Rooms != nil {
			r.Get("/", cfg.Rooms.List)
			r.Get("/{roomID}", cfg.Rooms.Get)
			r.Put("/{roomID}", cfg.Rooms.Update)
			r.Delete("/{roomID}", cfg.Rooms.Delete)
		}
		if cfg.Assignments != nil {
			r.Get("/{roomID}/assignments", cfg.Assignments.ListByRoom)
		}
	})

	if cfg.Assignments != nil {
		r.Post("/assignments", cfg.Assignments.Create)
		r.Delete("/assignments", cfg.Assignments.DeleteByParticipant)
		r.Delete("/assignments/{assignmentID}", cfg.Assignments.Delete)
		r.Get("/participants/{ref}/assignments", cfg.Assignments.ListByParticipant)
	}

	if cfg.AutoAssign != nil {
		r.Post("/auto-assign", cfg.AutoAssign.Run)
		r.Post("/auto-assign/jobs", cfg.AutoAssign.StartJob)
		r.Get("/auto-assign/jobs/{jobID}", cfg.AutoAssign.GetJob)
		r.Delete("/auto-assign/jobs/{jobID}", cfg.AutoAssign.CancelJob)
	}

	if cfg.Inventory != nil {
		r.Get("/inventory/summary", cfg.Inventory.Summary)
		r.Get("/inventory/template.xlsx", cfg.Inventory.Template)
		r.Get("/inventory/export.xlsx", cfg.Inventory.Export)
		r.Post("/inventory/import", cfg.Inventory.Import)
	}

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}
