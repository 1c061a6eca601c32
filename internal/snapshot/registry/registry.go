// Package registry holds the term index currently being served. A reload
// fetches and validates a complete new snapshot before swapping it in; the
// previous index is never modified, so readers holding it keep a consistent
// view. A failed reload leaves the current snapshot in place.
package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/snapshot/source"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/termindex"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/resilience"
)

// Reload triggers, used as log fields and metric labels.
const (
	TriggerStartup = "startup"
	TriggerAPI     = "api"
	TriggerKafka   = "kafka"
)

// Load statuses.
const (
	StatusLoaded    = "loaded"
	StatusUnchanged = "unchanged"
	StatusFailed    = "failed"
)

// Snapshot is one loaded index together with where and when it came from.
type Snapshot struct {
	Index    *termindex.Index
	Version  uint64
	Location string
	Checksum string
	ModTime  time.Time
	LoadedAt time.Time
}

// Info is the JSON view of a Snapshot.
type Info struct {
	Version  uint64          `json:"version"`
	Location string          `json:"location"`
	Checksum string          `json:"checksum"`
	ModTime  time.Time       `json:"modTime"`
	LoadedAt time.Time       `json:"loadedAt"`
	Stats    termindex.Stats `json:"stats"`
}

func (s *Snapshot) Info() Info {
	return Info{
		Version:  s.Version,
		Location: s.Location,
		Checksum: s.Checksum,
		ModTime:  s.ModTime,
		LoadedAt: s.LoadedAt,
		Stats:    s.Index.Stats(),
	}
}

// LoadRecord describes one load attempt for the history store.
type LoadRecord struct {
	Version   uint64        `json:"version"`
	Trigger   string        `json:"trigger"`
	Status    string        `json:"status"`
	Location  string        `json:"location"`
	Checksum  string        `json:"checksum,omitempty"`
	Documents int           `json:"documents"`
	Terms     int           `json:"terms"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"durationNs"`
	LoadedAt  time.Time     `json:"loadedAt"`
}

// HistoryStore persists load attempts.
type HistoryStore interface {
	Record(ctx context.Context, rec LoadRecord) error
}

// Registry serves the current snapshot and performs reloads.
type Registry struct {
	src     source.Source
	current atomic.Pointer[Snapshot]

	// mu serialises reloads; readers never take it.
	mu      sync.Mutex
	version uint64

	retry   resilience.RetryConfig
	timeout time.Duration
	metrics *metrics.Metrics
	history HistoryStore
	onSwap  []func(*Snapshot)
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records load outcomes and snapshot size gauges.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithHistory records every load attempt in store.
func WithHistory(store HistoryStore) Option {
	return func(r *Registry) { r.history = store }
}

// OnSwap registers fn to run after a new snapshot becomes current.
func OnSwap(fn func(*Snapshot)) Option {
	return func(r *Registry) { r.onSwap = append(r.onSwap, fn) }
}

func New(src source.Source, cfg config.SnapshotConfig, opts ...Option) *Registry {
	r := &Registry{
		src: src,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.RetryAttempts,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     10 * cfg.RetryDelay,
			Retryable:    retryable,
		},
		timeout: cfg.LoadTimeout,
		logger:  slog.Default().With("component", "snapshot-registry", "source", src.Location()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// A malformed snapshot stays malformed until it is regenerated.
func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrMalformedIndex)
}

// Current returns the snapshot being served, or ErrSnapshotUnavailable
// before the first successful load.
func (r *Registry) Current() (*Snapshot, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot loaded", apperrors.ErrSnapshotUnavailable)
	}
	return snap, nil
}

// Ready reports whether a snapshot has been loaded.
func (r *Registry) Ready() bool {
	return r.current.Load() != nil
}

// Reload fetches the source, validates it and swaps it in. If the fetched
// bytes are identical to the current snapshot nothing is swapped and the
// current snapshot is returned.
func (r *Registry) Reload(ctx context.Context, trigger string) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	var (
		payload *source.Payload
		idx     *termindex.Index
	)
	err := resilience.Retry(ctx, "snapshot-load", r.retry, func() error {
		// An attempt that times out keeps running in the background; it
		// only ever writes these attempt-local variables.
		var (
			p      *source.Payload
			loaded *termindex.Index
		)
		err := resilience.WithTimeout(ctx, r.timeout, "snapshot-load", func(ctx context.Context) error {
			var err error
			if p, err = r.src.Fetch(ctx); err != nil {
				return err
			}
			loaded, err = termindex.Load(p.Data)
			return err
		})
		if err != nil {
			return err
		}
		payload, idx = p, loaded
		return nil
	})
	if err != nil {
		r.logger.Error("snapshot load failed, keeping current snapshot",
			"trigger", trigger,
			"error", err,
			"current_version", r.version,
		)
		r.observe(ctx, LoadRecord{
			Trigger:  trigger,
			Status:   StatusFailed,
			Location: r.src.Location(),
			Error:    err.Error(),
			Duration: time.Since(start),
			LoadedAt: time.Now().UTC(),
		})
		return nil, fmt.Errorf("reloading snapshot from %s: %w", r.src.Location(), err)
	}

	checksum := Checksum(payload.Data)
	if cur := r.current.Load(); cur != nil && cur.Checksum == checksum {
		r.logger.Info("snapshot unchanged", "trigger", trigger, "version", cur.Version)
		r.observe(ctx, LoadRecord{
			Version:   cur.Version,
			Trigger:   trigger,
			Status:    StatusUnchanged,
			Location:  payload.Location,
			Checksum:  checksum,
			Documents: idx.Len(),
			Terms:     idx.Stats().Terms,
			Duration:  time.Since(start),
			LoadedAt:  time.Now().UTC(),
		})
		return cur, nil
	}

	r.version++
	snap := &Snapshot{
		Index:    idx,
		Version:  r.version,
		Location: payload.Location,
		Checksum: checksum,
		ModTime:  payload.ModTime,
		LoadedAt: time.Now().UTC(),
	}
	r.current.Store(snap)

	stats := idx.Stats()
	r.logger.Info("snapshot loaded",
		"trigger", trigger,
		"version", snap.Version,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"checksum", checksum[:12],
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if r.metrics != nil {
		r.metrics.SnapshotVersion.Set(float64(snap.Version))
		r.metrics.SnapshotDocuments.Set(float64(stats.Documents))
		r.metrics.SnapshotTerms.Set(float64(stats.Terms))
	}
	r.observe(ctx, LoadRecord{
		Version:   snap.Version,
		Trigger:   trigger,
		Status:    StatusLoaded,
		Location:  snap.Location,
		Checksum:  checksum,
		Documents: stats.Documents,
		Terms:     stats.Terms,
		Duration:  time.Since(start),
		LoadedAt:  snap.LoadedAt,
	})
	for _, fn := range r.onSwap {
		fn(snap)
	}
	return snap, nil
}

func (r *Registry) observe(ctx context.Context, rec LoadRecord) {
	if r.metrics != nil {
		r.metrics.SnapshotLoadsTotal.WithLabelValues(rec.Trigger, rec.Status).Inc()
	}
	if r.history == nil {
		return
	}
	if err := r.history.Record(ctx, rec); err != nil {
		r.logger.Warn("failed to record snapshot load", "error", err)
	}
}

// HealthCheck reports down until a snapshot has been loaded.
func (r *Registry) HealthCheck(ctx context.Context) health.ComponentHealth {
	snap := r.current.Load()
	if snap == nil {
		return health.ComponentHealth{Status: health.StatusDown, Message: "no snapshot loaded"}
	}
	return health.ComponentHealth{
		Status:  health.StatusUp,
		Message: fmt.Sprintf("version %d, %d documents", snap.Version, snap.Index.Len()),
	}
}

// Checksum is the hex SHA-256 of raw snapshot bytes.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
