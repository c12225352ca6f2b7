package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/shiftalert/internal/model"
)

// Ensure SQLiteStore implements model.HistoryStore.
var _ model.HistoryStore = (*SQLiteStore)(nil)

const timeLayout = time.RFC3339Nano

// SQLiteStore keeps the part-time job ledger: when each listing was first
// seen, when it last changed, and whether upstream still serves it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures the
// job_history table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	// A single writer keeps SQLite from returning SQLITE_BUSY under the
	// scheduler and the webhook.
	db.SetMaxOpenConns(1)

	createTable := `CREATE TABLE IF NOT EXISTS job_history (
		job_id       TEXT NOT NULL,
		city         TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		job_type     TEXT NOT NULL DEFAULT '',
		first_seen   TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		status       TEXT NOT NULL,
		PRIMARY KEY (job_id, city)
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating job_history table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

type historyKey struct {
	jobID string
	city  string
}

// Sync records the current part-time set: listings in it become active
// (keeping their first_seen), active listings missing from it become inactive.
func (s *SQLiteStore) Sync(ctx context.Context, partTime []model.JobRecord, now time.Time) (model.HistoryDelta, error) {
	var delta model.HistoryDelta
	ts := now.UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return delta, fmt.Errorf("starting history sync: %w", err)
	}
	defer tx.Rollback()

	present := make(map[historyKey]bool, len(partTime))
	for _, rec := range partTime {
		k := historyKey{jobID: rec.ID, city: rec.City}
		if present[k] {
			continue
		}
		present[k] = true

		var status string
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM job_history WHERE job_id = ? AND city = ?", rec.ID, rec.City,
		).Scan(&status)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO job_history (job_id, city, title, job_type, first_seen, last_updated, status)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				rec.ID, rec.City, rec.Title, rec.JobType, ts, ts, string(model.StatusActive))
			if err != nil {
				return delta, fmt.Errorf("inserting job %s: %w", rec.ID, err)
			}
			delta.New++
		case err != nil:
			return delta, fmt.Errorf("looking up job %s: %w", rec.ID, err)
		default:
			if status == string(model.StatusInactive) {
				delta.Reactivated++
			}
			_, err = tx.ExecContext(ctx,
				`UPDATE job_history SET title = ?, job_type = ?, last_updated = ?, status = ?
				 WHERE job_id = ? AND city = ?`,
				rec.Title, rec.JobType, ts, string(model.StatusActive), rec.ID, rec.City)
			if err != nil {
				return delta, fmt.Errorf("updating job %s: %w", rec.ID, err)
			}
		}
	}

	rows, err := tx.QueryContext(ctx, "SELECT job_id, city FROM job_history WHERE status = ?", string(model.StatusActive))
	if err != nil {
		return delta, fmt.Errorf("listing active jobs: %w", err)
	}
	var gone []historyKey
	for rows.Next() {
		var k historyKey
		if err := rows.Scan(&k.jobID, &k.city); err != nil {
			rows.Close()
			return delta, fmt.Errorf("scanning active job: %w", err)
		}
		if !present[k] {
			gone = append(gone, k)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return delta, fmt.Errorf("listing active jobs: %w", err)
	}

	for _, k := range gone {
		_, err := tx.ExecContext(ctx,
			"UPDATE job_history SET status = ?, last_updated = ? WHERE job_id = ? AND city = ?",
			string(model.StatusInactive), ts, k.jobID, k.city)
		if err != nil {
			return delta, fmt.Errorf("deactivating job %s: %w", k.jobID, err)
		}
		delta.Deactivated++
	}

	if err := tx.Commit(); err != nil {
		return delta, fmt.Errorf("committing history sync: %w", err)
	}
	return delta, nil
}

// List returns ledger entries, most recently updated first. An empty status
// lists everything.
func (s *SQLiteStore) List(ctx context.Context, status model.HistoryStatus) ([]model.HistoryEntry, error) {
	query := `SELECT job_id, city, title, job_type, first_seen, last_updated, status FROM job_history`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY last_updated DESC, job_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing job history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var firstSeen, lastUpdated, st string
		if err := rows.Scan(&e.JobID, &e.City, &e.Title, &e.JobType, &firstSeen, &lastUpdated, &st); err != nil {
			return nil, fmt.Errorf("scanning job history: %w", err)
		}
		e.FirstSeen, _ = time.Parse(timeLayout, firstSeen)
		e.LastUpdated, _ = time.Parse(timeLayout, lastUpdated)
		e.Status = model.HistoryStatus(st)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup deletes inactive entries not updated within olderThan.
func (s *SQLiteStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM job_history WHERE status = ? AND last_updated < ?",
		string(model.StatusInactive), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning up job history older than %v: %w", olderThan, err)
	}
	return res.RowsAffected()
}

// IsEmpty returns true if the ledger has no entries.
func (s *SQLiteStore) IsEmpty(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_history").Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking if store is empty: %w", err)
	}
	return count == 0, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
