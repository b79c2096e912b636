// Package archive persists finalized encounter reports in SQLite.
//
// Closed encounters drop their tracker; the projected report is what
// survives for later inspection, stored as one row per encounter.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zaresol/staggerline/internal/domain/series"
	"github.com/Zaresol/staggerline/pkg/metrics"

	_ "modernc.org/sqlite" // database/sql driver
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
    encounter_id TEXT PRIMARY KEY,
    start_time   INTEGER NOT NULL,
    closed_at    INTEGER NOT NULL,
    purify_count INTEGER NOT NULL,
    death_count  INTEGER NOT NULL,
    report       BLOB NOT NULL
);
`

// Summary is one archive listing row.
type Summary struct {
	EncounterID string `json:"encounter_id"`
	StartTime   int64  `json:"start_time"`
	ClosedAt    int64  `json:"closed_at"`
	PurifyCount int    `json:"purify_count"`
	DeathCount  int    `json:"death_count"`
}

// Store persists reports in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the archive at path and bootstraps the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts one report. The encounter id must be set on the report.
func (s *Store) Save(ctx context.Context, r series.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.EncounterID) == "" {
		return fmt.Errorf("encounter id is required")
	}

	blob, err := json.Marshal(r)
	if err != nil {
		metrics.RecordArchiveError()
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO reports (encounter_id, start_time, closed_at, purify_count, death_count, report)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(encounter_id) DO UPDATE SET
    start_time = excluded.start_time,
    closed_at = excluded.closed_at,
    purify_count = excluded.purify_count,
    death_count = excluded.death_count,
    report = excluded.report`,
		r.EncounterID, r.StartTime, time.Now().UTC().UnixMilli(),
		len(r.Purifies), len(r.Deaths), blob)
	if err != nil {
		metrics.RecordArchiveError()
		return fmt.Errorf("save report %s: %w", r.EncounterID, err)
	}

	metrics.RecordArchiveWrite()
	return nil
}

// Load returns one archived report. Returns ErrNotFound if unknown.
func (s *Store) Load(ctx context.Context, encounterID string) (series.Report, error) {
	var blob []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT report FROM reports WHERE encounter_id = ?`, encounterID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return series.Report{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordArchiveError()
		return series.Report{}, fmt.Errorf("load report %s: %w", encounterID, err)
	}

	var r series.Report
	if err := json.Unmarshal(blob, &r); err != nil {
		metrics.RecordArchiveError()
		return series.Report{}, fmt.Errorf("unmarshal report %s: %w", encounterID, err)
	}
	return r, nil
}

// List returns summaries of all archived reports, most recently closed
// first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT encounter_id, start_time, closed_at, purify_count, death_count
FROM reports ORDER BY closed_at DESC`)
	if err != nil {
		metrics.RecordArchiveError()
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.EncounterID, &sum.StartTime, &sum.ClosedAt, &sum.PurifyCount, &sum.DeathCount); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}
