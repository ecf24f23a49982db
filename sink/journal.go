package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/darianmavgo/mkimport/converters/common"
	"github.com/darianmavgo/mkimport/logging"

	_ "modernc.org/sqlite"
)

const journalSchema = `CREATE TABLE IF NOT EXISTS _mkimport_journal (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	statement TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// Journal status values.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusRecorded = "recorded" // no downstream sink
)

// JournalEntry is one row of the journal.
type JournalEntry struct {
	RunID     string
	Seq       int
	Statement string
	Status    string
	Error     string
}

// Journal records every statement in a SQLite file and forwards it to next.
type Journal struct {
	db   *sql.DB
	next common.Sink
	mu   sync.Mutex
	seq  map[string]int
}

// OpenJournal opens or creates the journal at path. next may be nil.
func OpenJournal(path string, next common.Sink) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// Limit to 1 connection to avoid locking issues
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set PRAGMAs: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	return &Journal{db: db, next: next, seq: make(map[string]int)}, nil
}

// Exec implements common.Sink. The downstream error is returned unchanged
// after it has been journaled.
func (j *Journal) Exec(ctx context.Context, statement string) error {
	status := StatusRecorded
	var execErr error
	if j.next != nil {
		execErr = j.next.Exec(ctx, statement)
		status = StatusOK
		if execErr != nil {
			status = StatusFailed
		}
	}

	runID := common.RunID(ctx)
	j.mu.Lock()
	seq := j.seq[runID]
	j.seq[runID] = seq + 1
	j.mu.Unlock()

	var errText sql.NullString
	if execErr != nil {
		errText = sql.NullString{String: execErr.Error(), Valid: true}
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO _mkimport_journal (run_id, seq, statement, status, error) VALUES (?, ?, ?, ?, ?)`,
		runID, seq, statement, status, errText)
	if err != nil {
		logging.FromContext(ctx).Error("failed to journal statement", "seq", seq, "error", err)
		if execErr == nil {
			return fmt.Errorf("failed to journal statement: %w", err)
		}
	}
	return execErr
}

// Entries returns the journaled statements of a run in submission order.
func (j *Journal) Entries(ctx context.Context, runID string) ([]JournalEntry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT run_id, seq, statement, status, COALESCE(error, '') FROM _mkimport_journal WHERE run_id = ? ORDER BY seq`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Statement, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database. The downstream sink is left open.
func (j *Journal) Close() error {
	return j.db.Close()
}
