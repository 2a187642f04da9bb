// Package audit records settings changes and settings API logins in SQLite.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions.
const (
	ActionSettingsUpdate = "settings.update"
	ActionSettingsReload = "settings.reload"
	ActionLogin          = "login"
	ActionLoginFailed    = "login.failed"
)

// Sources.
const (
	SourceAPI    = "api"
	SourceSignal = "signal"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// timestampLayout is fixed width so created_at sorts as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one audit record.
type Entry struct {
	ID        string         `json:"id"`
	Action    string         `json:"action"`
	Subject   string         `json:"subject,omitempty"`
	Source    string         `json:"source"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter selects entries for List. Zero values match everything.
type Filter struct {
	Action string
	Since  time.Time
	Limit  int // default 50, max 200
}

// Log appends to and reads from the audit_log table.
type Log struct {
	db *sql.DB
}

// NewLog creates an audit log on db.
func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Record appends e. ID and CreatedAt are filled in when empty.
func (l *Log) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = "aud-" + uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var details any
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = string(b)
	}

	var subject any
	if e.Subject != "" {
		subject = e.Subject
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_log (id, action, subject, source, details, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, subject, e.Source, details, e.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns matching entries, newest first.
func (l *Log) List(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}

	var (
		conditions []string
		args       []any
	)
	if f.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, f.Action)
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timestampLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	query := "SELECT id, action, subject, source, details, created_at FROM audit_log " + //nolint:gosec // WHERE built from fixed parameterised conditions
		where + " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                Entry
			subject, details sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&e.ID, &e.Action, &subject, &e.Source, &details, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Subject = subject.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
				return nil, fmt.Errorf("decoding details of %s: %w", e.ID, err)
			}
		}
		if e.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing timestamp of %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log: %w", err)
	}

	return entries, nil
}
