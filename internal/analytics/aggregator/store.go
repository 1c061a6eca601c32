// Package aggregator persists aggregated lookup statistics to PostgreSQL so
// they survive restarts and can be charted over time.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const createSnapshotsTable = `CREATE TABLE IF NOT EXISTS analytics_snapshots (
    id               BIGSERIAL PRIMARY KEY,
    snapshot_version BIGINT NOT NULL DEFAULT 0,
    data             JSONB NOT NULL,
    captured_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// StatsSource is anything that can report current stats.
type StatsSource interface {
	Stats() analytics.AggregatedStats
}

// Store persists aggregated analytics snapshots in PostgreSQL.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

// Migrate creates the analytics_snapshots table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.Migrate(ctx, createSnapshotsTable); err != nil {
		return fmt.Errorf("creating analytics_snapshots table: %w", err)
	}
	return nil
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO analytics_snapshots (snapshot_version, data, captured_at) VALUES ($1, $2, $3)`,
		int64(stats.SnapshotVersion), data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Info("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"total_term_lookups", stats.TotalTermLookups,
		"snapshot_version", stats.SnapshotVersion,
	)
	return nil
}

// LatestSnapshot returns nil, nil if nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.StoredStats, error) {
	var (
		data       []byte
		capturedAt time.Time
	)
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC LIMIT 1`,
	).Scan(&data, &capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	stored := &analytics.StoredStats{CapturedAt: capturedAt}
	if err := json.Unmarshal(data, &stored.Stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return stored, nil
}

// ListSnapshots returns the last limit snapshots, newest first. Rows that no
// longer decode are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.StoredStats, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []analytics.StoredStats
	for rows.Next() {
		var (
			data   []byte
			stored analytics.StoredStats
		)
		if err := rows.Scan(&data, &stored.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &stored.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, stored)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave saves src's stats every interval, and once more when ctx
// is cancelled.
func (s *Store) StartPeriodicSave(ctx context.Context, src StatsSource, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, src.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, src.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
