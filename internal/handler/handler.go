package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"nodeclass/internal/domain"
	"nodeclass/internal/metrics"
	"nodeclass/internal/service"

	"github.com/sirupsen/logrus"
)

// Handler serves the nodeclass API
type Handler struct {
	svc *service.Services
	log logrus.FieldLogger
}

// New creates a handler over the application services
func New(svc *service.Services, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{svc: svc, log: log.WithField("component", "http")}
}

// Register adds every API route to mux
func (h *Handler) Register(mux *http.ServeMux) {
	// Classification
	mux.HandleFunc("GET /api/nodes/{name}/classification", h.GetClassification)
	mux.HandleFunc("GET /api/nodes/{name}/classification/explain", h.ExplainClassification)
	mux.HandleFunc("GET /api/classifications", h.ListClassifications)

	// Nodes
	mux.HandleFunc("GET /api/nodes", h.ListNodes)
	mux.HandleFunc("POST /api/nodes", h.CreateNode)
	mux.HandleFunc("GET /api/nodes/{name}", h.GetNode)
	mux.HandleFunc("PUT /api/nodes/{name}/parameters", h.SetNodeParameters)
	mux.HandleFunc("DELETE /api/nodes/{name}", h.DeleteNode)

	// Classes
	mux.HandleFunc("GET /api/classes", h.ListClasses)
	mux.HandleFunc("POST /api/classes", h.CreateClass)

	// Groups and inclusions
	mux.HandleFunc("GET /api/groups", h.ListGroups)
	mux.HandleFunc("POST /api/groups", h.CreateGroup)
	mux.HandleFunc("GET /api/groups/{id}", h.GetGroup)
	mux.HandleFunc("PATCH /api/groups/{id}", h.UpdateGroup)
	mux.HandleFunc("DELETE /api/groups/{id}", h.DeleteGroup)
	mux.HandleFunc("POST /api/groups/{id}/subgroups", h.AddSubgroup)
	mux.HandleFunc("DELETE /api/groups/{id}/subgroups/{child}", h.RemoveSubgroup)

	// Memberships
	mux.HandleFunc("POST /api/memberships", h.CreateMembership)
	mux.HandleFunc("DELETE /api/memberships", h.DeleteMembership)

	// Import/export
	mux.HandleFunc("POST /api/import/seed", h.ImportSeed)
	mux.HandleFunc("POST /api/import/ansible-inventory", h.ImportAnsibleInventory)
	mux.HandleFunc("GET /api/export/ansible-inventory", h.ExportAnsibleInventory)
	mux.HandleFunc("GET /api/cycles", h.ListCycles)
}

// NewRouter assembles the full HTTP surface: API routes, the event
// stream, metrics and health, wrapped in the standard middleware
func NewRouter(h *Handler, events http.Handler) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)

	if events != nil {
		mux.Handle("GET /events", events)
	}
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", h.Healthz)

	return Chain(mux, RequestID(), Recover(h.log), Logger(h.log), CORS())
}

// Healthz reports whether the store answers
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.Memberships.Count(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error string            `json:"error"`
	Edge  *domain.Inclusion `json:"edge,omitempty"`
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCycleDetected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}

	var cycleErr *domain.CycleError
	if errors.As(err, &cycleErr) {
		edge := cycleErr.Edge()
		resp.Edge = &edge
	}

	if status == http.StatusInternalServerError {
		h.log.WithError(err).WithField("request_id", RequestIDFrom(r.Context())).Error("request failed")
		resp.Error = "internal server error"
	}

	writeJSON(w, resp, status)
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, ErrorResponse{Error: msg}, http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return domain.Invalidf("invalid request body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.Invalidf("invalid %s %q", name, raw)
	}
	return id, nil
}
