// Package journal records when sessions open and close in a SQLite file.
// Message content is never stored.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/akyaiy/GoSally-stream/internal/server/auth"
	"github.com/akyaiy/GoSally-stream/internal/server/session"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	subject      TEXT NOT NULL,
	issuer       TEXT NOT NULL,
	opened_at    INTEGER NOT NULL,
	closed_at    INTEGER,
	close_reason TEXT
);
CREATE INDEX IF NOT EXISTS sessions_opened_at ON sessions (opened_at);
`

const writeTimeout = 5 * time.Second

type Entry struct {
	SessionID   string
	Identity    auth.Identity
	OpenedAt    time.Time
	ClosedAt    *time.Time
	CloseReason string
}

type Journal struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string, log *slog.Logger) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	if path == "" {
		return nil, errors.New("journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db, log: log, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) Opened(ctx context.Context, id string, identity auth.Identity, at time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sessions (id, subject, issuer, opened_at) VALUES (?, ?, ?, ?)`,
		id, identity.Subject, identity.Issuer, at.UnixMilli())
	return err
}

func (j *Journal) Closed(ctx context.Context, id, reason string, at time.Time) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE sessions SET closed_at = ?, close_reason = ? WHERE id = ? AND closed_at IS NULL`,
		at.UnixMilli(), reason, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no open session %s in journal", id)
	}
	return nil
}

// Recent returns the latest sessions, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, subject, issuer, opened_at, closed_at, close_reason
		   FROM sessions ORDER BY opened_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			openedAt int64
			closedAt sql.NullInt64
			reason   sql.NullString
		)
		if err := rows.Scan(&e.SessionID, &e.Identity.Subject, &e.Identity.Issuer, &openedAt, &closedAt, &reason); err != nil {
			return nil, err
		}
		e.OpenedAt = time.UnixMilli(openedAt)
		if closedAt.Valid {
			t := time.UnixMilli(closedAt.Int64)
			e.ClosedAt = &t
		}
		e.CloseReason = reason.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SessionOpened and SessionClosed let the journal observe a registry.
func (j *Journal) SessionOpened(s *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.Opened(ctx, s.ID, s.Identity, s.CreatedAt); err != nil {
		j.log.Error("failed to journal session", slog.String("session-uuid", s.ID), slog.String("err", err.Error()))
	}
}

func (j *Journal) SessionClosed(s *session.Session, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.Closed(ctx, s.ID, reason, j.now()); err != nil {
		j.log.Error("failed to journal session", slog.String("session-uuid", s.ID), slog.String("err", err.Error()))
	}
}
