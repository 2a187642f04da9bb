package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// JournalEntry is one recorded run-once program.
type JournalEntry struct {
	ID         int64
	Topic      string
	Durations  []int
	ReceivedAt time.Time
}

// Journal keeps applied run-once programs in SQLite.
type Journal struct {
	db *sql.DB
}

var _ Recorder = (*Journal)(nil)

// NewJournal creates a journal on the run_once_log table.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Record appends a program to the journal.
func (j *Journal) Record(ctx context.Context, run RunOnce) error {
	durations, err := json.Marshal(run.Durations)
	if err != nil {
		return fmt.Errorf("encoding durations: %w", err)
	}

	at := run.ReceivedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO run_once_log (topic, durations, received_at) VALUES (?, ?, ?)`,
		run.Topic, string(durations), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("recording run-once: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, topic, durations, received_at FROM run_once_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying run-once journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var (
			e         JournalEntry
			durations string
			received  string
		)
		if err := rows.Scan(&e.ID, &e.Topic, &durations, &received); err != nil {
			return nil, fmt.Errorf("scanning run-once entry: %w", err)
		}
		if err := json.Unmarshal([]byte(durations), &e.Durations); err != nil {
			return nil, fmt.Errorf("decoding durations of entry %d: %w", e.ID, err)
		}
		if e.ReceivedAt, err = time.Parse(time.RFC3339Nano, received); err != nil {
			return nil, fmt.Errorf("parsing received_at of entry %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating run-once journal: %w", err)
	}

	return entries, nil
}
