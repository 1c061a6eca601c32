// Package handler exposes the term index over HTTP: multi-term search,
// single-term lookup, vocabulary completion, documents, index metadata,
// reloads and cache administration.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/registry"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/tracing"
)

// slowQuery is the latency above which a request's span tree is logged.
var slowQuery = 100 * time.Millisecond

type SearchExecutor interface {
	Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*executor.SearchResult, error)
	Lookup(ctx context.Context, term string) (key string, matches []termindex.DocumentMatch, version uint64, err error)
}

// Snapshots is the part of the registry the handler uses.
type Snapshots interface {
	Current() (*registry.Snapshot, error)
	Reload(ctx context.Context, trigger string) (*registry.Snapshot, error)
}

// LoadHistory lists recent snapshot load attempts.
type LoadHistory interface {
	Recent(ctx context.Context, limit int) ([]registry.LoadRecord, error)
}

type Handler struct {
	executor     SearchExecutor
	snapshots    Snapshots
	loads        LoadHistory
	cache        *cache.QueryCache
	collector    *analytics.Collector
	metrics      *metrics.Metrics
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

func New(exec SearchExecutor, snapshots Snapshots, defaultLimit, maxResults int) *Handler {
	return &Handler{
		executor:     exec,
		snapshots:    snapshots,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// WithCache enables result caching for Search.
func (h *Handler) WithCache(c *cache.QueryCache) *Handler {
	h.cache = c
	return h
}

// WithCollector tracks every search and lookup.
func (h *Handler) WithCollector(c *analytics.Collector) *Handler {
	h.collector = c
	return h
}

// WithLoadHistory serves GET /api/v1/index/history from loads.
func (h *Handler) WithLoadHistory(loads LoadHistory) *Handler {
	h.loads = loads
	return h
}

func (h *Handler) WithMetrics(m *metrics.Metrics) *Handler {
	h.metrics = m
	return h
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/terms", h.Complete)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/documents", h.Documents)
	mux.HandleFunc("GET /api/v1/documents/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/index", h.Index)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/index/history", h.LoadHistory)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// TermResponse is the body of GET /api/v1/terms/{term}.
type TermResponse struct {
	Term            string                    `json:"term"`
	Normalized      string                    `json:"normalized"`
	SnapshotVersion uint64                    `json:"snapshotVersion"`
	Matches         []termindex.DocumentMatch `json:"matches"`
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.StartSpan(r.Context(), "search", middleware.GetRequestID(r.Context()))
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.LogIfSlow(log, slowQuery)
	}()

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse")
	plan := parser.Parse(query)
	parseSpan.SetAttr("terms", len(plan.Terms))
	parseSpan.End()

	snap, err := h.snapshots.Current()
	if err != nil {
		h.fail(w, "search", err)
		return
	}

	execCtx, execSpan := tracing.StartChildSpan(ctx, "execute")
	var result *executor.SearchResult
	cacheHit := false
	if h.cache != nil {
		result, cacheHit, err = h.cache.GetOrCompute(execCtx, snap.Version, query, limit, func() (*executor.SearchResult, error) {
			return h.executor.Execute(execCtx, plan, limit)
		})
	} else {
		result, err = h.executor.Execute(execCtx, plan, limit)
	}
	execSpan.SetAttr("cache_hit", cacheHit)
	execSpan.End()
	if err != nil {
		log.Error("search execution failed", "query", query, "error", err)
		h.fail(w, "search", err)
		return
	}

	latency := time.Since(start)
	span.SetAttr("total_hits", result.TotalHits)
	span.End()
	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"snapshot_version", result.SnapshotVersion,
		"latency_us", latency.Microseconds(),
	)
	h.observe(ctx, analytics.LookupEvent{
		Type:            analytics.EventSearch,
		Query:           query,
		Terms:           plan.Keys(),
		TotalHits:       result.TotalHits,
		Returned:        len(result.Results),
		LatencyMicros:   latency.Microseconds(),
		CacheHit:        cacheHit,
		SnapshotVersion: result.SnapshotVersion,
	})
	if cacheHit {
		// The cached entry may have been stored for a differently cased query.
		echoed := *result
		echoed.Query = query
		result = &echoed
	}
	w.Header().Set("Server-Timing", span.ServerTiming())
	h.writeJSON(w, http.StatusOK, result)
}

// Term answers a single-term lookup: every document containing the term in
// the order the snapshot stores them.
func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	term := r.PathValue("term")
	key, matches, version, err := h.executor.Lookup(r.Context(), term)
	if err != nil {
		h.fail(w, "term", err)
		return
	}
	latency := time.Since(start)
	h.observe(r.Context(), analytics.LookupEvent{
		Type:            analytics.EventTermLookup,
		Query:           term,
		Terms:           []string{key},
		TotalHits:       len(matches),
		Returned:        len(matches),
		LatencyMicros:   latency.Microseconds(),
		SnapshotVersion: version,
	})
	h.writeJSON(w, http.StatusOK, TermResponse{
		Term:            term,
		Normalized:      key,
		SnapshotVersion: version,
		Matches:         matches,
	})
}

// Complete lists vocabulary terms starting with ?prefix=.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'prefix' is required")
		return
	}
	limit, err := h.parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := h.snapshots.Current()
	if err != nil {
		h.fail(w, "complete", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"prefix":          prefix,
		"snapshotVersion": snap.Version,
		"terms":           snap.Index.Complete(prefix, limit),
	})
}

func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Current()
	if err != nil {
		h.fail(w, "documents", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"snapshotVersion": snap.Version,
		"documents":       snap.Index.Documents(),
	})
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "document id must be an integer")
		return
	}
	snap, err := h.snapshots.Current()
	if err != nil {
		h.fail(w, "document", err)
		return
	}
	doc, ok := snap.Index.Document(id)
	if !ok {
		h.fail(w, "document", apperrors.NotFoundf("no document %d", id))
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	snap, err := h.snapshots.Current()
	if err != nil {
		h.fail(w, "index", err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Info())
}

// Reload fetches the snapshot again. On failure the previous snapshot keeps
// serving and the error is reported.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	// A reload with retries may outlast the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	snap, err := h.snapshots.Reload(r.Context(), registry.TriggerAPI)
	if err != nil {
		h.fail(w, "reload", err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap.Info())
}

// LoadHistory returns the last ?limit= load attempts, newest first.
func (h *Handler) LoadHistory(w http.ResponseWriter, r *http.Request) {
	if h.loads == nil {
		h.writeError(w, http.StatusServiceUnavailable, "load history is disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	records, err := h.loads.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshot loads failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing snapshot loads failed")
		return
	}
	if records == nil {
		records = []registry.LoadRecord{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"loads": records})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":    hits,
		"misses":  misses,
		"total":   total,
		"hitRate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keysDeleted": deleted})
}

func (h *Handler) parseLimit(r *http.Request) (int, error) {
	limit := h.defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return 0, errors.New("limit must be a positive integer")
		}
		limit = min(parsed, h.maxResults)
	}
	return limit, nil
}

func (h *Handler) observe(ctx context.Context, event analytics.LookupEvent) {
	if h.metrics != nil {
		kind := "query"
		if event.Type == analytics.EventTermLookup {
			kind = "term"
		}
		result := "hit"
		if event.ZeroResult() {
			result = "zero_result"
		}
		cacheStatus := "miss"
		if event.CacheHit {
			cacheStatus = "hit"
		}
		h.metrics.LookupsTotal.WithLabelValues(kind, result).Inc()
		h.metrics.LookupLatency.WithLabelValues(cacheStatus).Observe(float64(event.LatencyMicros) / 1e6)
		h.metrics.LookupResultsCount.Observe(float64(event.Returned))
	}
	if h.collector != nil {
		event.Timestamp = time.Now().UTC()
		event.RequestID = middleware.GetRequestID(ctx)
		h.collector.Track(event)
	}
}

// fail maps err to a status code and writes it. Server-side failures are
// logged; their message is not echoed to clients.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if h.metrics != nil && (op == "search" || op == "term") {
		kind := "term"
		if op == "search" {
			kind = "query"
		}
		h.metrics.LookupsTotal.WithLabelValues(kind, "error").Inc()
	}
	code := apperrors.Code(err)
	if status < http.StatusInternalServerError {
		h.writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
		return
	}
	h.logger.Error("request failed", "op", op, "status", status, "error", err)
	message := http.StatusText(status)
	if errors.Is(err, apperrors.ErrSnapshotUnavailable) {
		message = "snapshot unavailable"
	}
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
