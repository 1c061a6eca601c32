package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// History lists previously persisted stats.
type History interface {
	ListSnapshots(ctx context.Context, limit int) ([]StoredStats, error)
}

// StoredStats is one persisted AggregatedStats.
type StoredStats struct {
	CapturedAt time.Time       `json:"capturedAt"`
	Stats      AggregatedStats `json:"stats"`
}

type Handler struct {
	aggregator *Aggregator
	history    History
	logger     *slog.Logger
}

// NewHandler serves aggregator stats. history may be nil.
func NewHandler(aggregator *Aggregator, history History) *Handler {
	return &Handler{
		aggregator: aggregator,
		history:    history,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

// History returns up to ?limit= persisted snapshots, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "analytics persistence is disabled"})
		return
	}
	limit := 24
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be between 1 and 1000"})
			return
		}
		limit = n
	}
	snapshots, err := h.history.ListSnapshots(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing analytics history failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "listing analytics history failed"})
		return
	}
	if snapshots == nil {
		snapshots = []StoredStats{}
	}
	h.writeJSON(w, http.StatusOK, snapshots)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
