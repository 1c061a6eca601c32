package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/postgres"
)

const createLoadsTable = `CREATE TABLE IF NOT EXISTS snapshot_loads (
    id          BIGSERIAL PRIMARY KEY,
    version     BIGINT NOT NULL,
    trigger     TEXT NOT NULL,
    status      TEXT NOT NULL,
    location    TEXT NOT NULL,
    checksum    TEXT NOT NULL DEFAULT '',
    documents   INTEGER NOT NULL DEFAULT 0,
    terms       INTEGER NOT NULL DEFAULT 0,
    error       TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL,
    loaded_at   TIMESTAMPTZ NOT NULL
)`

const createLoadsIndex = `CREATE INDEX IF NOT EXISTS snapshot_loads_loaded_at_idx ON snapshot_loads (loaded_at DESC)`

// PostgresHistory writes load attempts to the snapshot_loads table.
type PostgresHistory struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewPostgresHistory(db *postgres.Client) *PostgresHistory {
	return &PostgresHistory{
		db:     db,
		logger: slog.Default().With("component", "snapshot-history"),
	}
}

// Migrate creates the snapshot_loads table if it does not exist.
func (h *PostgresHistory) Migrate(ctx context.Context) error {
	if err := h.db.Migrate(ctx, createLoadsTable, createLoadsIndex); err != nil {
		return fmt.Errorf("creating snapshot_loads table: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Record(ctx context.Context, rec LoadRecord) error {
	_, err := h.db.DB.ExecContext(ctx,
		`INSERT INTO snapshot_loads
		    (version, trigger, status, location, checksum, documents, terms, error, duration_ms, loaded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		int64(rec.Version), rec.Trigger, rec.Status, rec.Location, rec.Checksum,
		rec.Documents, rec.Terms, rec.Error, rec.Duration.Milliseconds(), rec.LoadedAt,
	)
	if err != nil {
		return fmt.Errorf("recording snapshot load: %w", err)
	}
	return nil
}

// Recent returns the last limit load attempts, newest first.
func (h *PostgresHistory) Recent(ctx context.Context, limit int) ([]LoadRecord, error) {
	rows, err := h.db.DB.QueryContext(ctx,
		`SELECT version, trigger, status, location, checksum, documents, terms, error, duration_ms, loaded_at
		   FROM snapshot_loads ORDER BY loaded_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshot loads: %w", err)
	}
	defer rows.Close()

	var records []LoadRecord
	for rows.Next() {
		var (
			rec        LoadRecord
			version    int64
			durationMS int64
		)
		if err := rows.Scan(&version, &rec.Trigger, &rec.Status, &rec.Location, &rec.Checksum,
			&rec.Documents, &rec.Terms, &rec.Error, &durationMS, &rec.LoadedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot load: %w", err)
		}
		rec.Version = uint64(version)
		rec.Duration = msToDuration(durationMS)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
