package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/embell139/prep-ILAMB/internal/domain"
)

// VariableService answers point queries against the regridded fields.
type VariableService interface {
	GetVariables(ctx context.Context, ts time.Time, lat, lon float32, vars []string) ([]domain.VariableResult, error)
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	service VariableService
}

// NewHandler creates a new Handler.
func NewHandler(service VariableService) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes attaches all routes to the provided mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /v1/values", h.handleValues)
}

// handleHealth returns 204 No Content for liveness checks.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

type valueResponse struct {
	Variable  string    `json:"variable"`
	Value     float32   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float32   `json:"lat"`
	Lon       float32   `json:"lon"`
	CatalogID string    `json:"catalog_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleValues serves GET /v1/values?time=RFC3339&lat=&lon=&vars=gpp,lai.
func (h *Handler) handleValues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ts, err := time.Parse(time.RFC3339, q.Get("time"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "time must be an RFC3339 timestamp"})
		return
	}
	lat, err := strconv.ParseFloat(q.Get("lat"), 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lat must be a number"})
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "lon must be a number"})
		return
	}
	var vars []string
	if raw := q.Get("vars"); raw != "" {
		for _, v := range strings.Split(raw, ",") {
			vars = append(vars, strings.TrimSpace(v))
		}
	}

	results, err := h.service.GetVariables(r.Context(), ts, float32(lat), float32(lon), vars)
	var notFound *domain.ErrVariableNotFound
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "get variables", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	out := make([]valueResponse, len(results))
	for i, res := range results {
		out[i] = valueResponse{
			Variable:  res.Name,
			Value:     res.Value,
			Unit:      res.Unit,
			Timestamp: res.Timestamp,
			Lat:       res.Lat,
			Lon:       res.Lon,
			CatalogID: res.CatalogID.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}
