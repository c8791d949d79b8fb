package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS contexts (
			context_id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			description TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_active DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			context_id TEXT REFERENCES contexts(context_id),
			capture_interval_ms INTEGER NOT NULL,
			metadata TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			stopped_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS context_records (
			session_id TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			captured_at DATETIME NOT NULL,
			frame_ref TEXT,
			mime_type TEXT,
			payload TEXT,
			status TEXT NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			analyzed_at DATETIME,
			PRIMARY KEY (session_id, sequence),
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_context_records_status ON context_records(session_id, status, sequence)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, ts)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			session_id TEXT PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			generated_at DATETIME NOT NULL,
			record_count INTEGER NOT NULL,
			failed_count INTEGER NOT NULL DEFAULT 0,
			last_sequence INTEGER NOT NULL,
			text TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutContext inserts a context or updates its description and last activity.
func (s *SQLiteStore) PutContext(ctx context.Context, wc *domain.WorkContext) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contexts (context_id, name, description, created_at, last_active)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(context_id) DO UPDATE SET
			description = excluded.description,
			last_active = excluded.last_active`,
		wc.ContextID, wc.Name, wc.Description, wc.CreatedAt, wc.LastActive)
	return err
}

const contextColumns = `context_id, name, description, created_at, last_active`

func scanContext(row rowScanner) (*domain.WorkContext, error) {
	var wc domain.WorkContext
	var description sql.NullString
	if err := row.Scan(&wc.ContextID, &wc.Name, &description, &wc.CreatedAt, &wc.LastActive); err != nil {
		return nil, err
	}
	wc.Description = description.String
	return &wc, nil
}

// GetContext retrieves a context by ID.
func (s *SQLiteStore) GetContext(ctx context.Context, contextID string) (*domain.WorkContext, error) {
	return s.getContext(ctx, `context_id = ?`, contextID)
}

// GetContextByName retrieves a context by its unique name.
func (s *SQLiteStore) GetContextByName(ctx context.Context, name string) (*domain.WorkContext, error) {
	return s.getContext(ctx, `name = ?`, name)
}

func (s *SQLiteStore) getContext(ctx context.Context, where string, arg string) (*domain.WorkContext, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contextColumns+` FROM contexts WHERE `+where, arg)
	wc, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return wc, nil
}

// ListContexts lists contexts, most recently active first.
func (s *SQLiteStore) ListContexts(ctx context.Context) ([]domain.WorkContext, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contextColumns+` FROM contexts ORDER BY last_active DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contexts []domain.WorkContext
	for rows.Next() {
		wc, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, *wc)
	}
	return contexts, rows.Err()
}

// PutSession inserts a session or updates its mutable fields.
func (s *SQLiteStore) PutSession(ctx context.Context, session *domain.Session) error {
	metadata, _ := json.Marshal(session.Metadata)
	var stoppedAt sql.NullTime
	if session.StoppedAt != nil {
		stoppedAt = sql.NullTime{Time: *session.StoppedAt, Valid: true}
	}
	var contextID sql.NullString
	if session.ContextID != "" {
		contextID = sql.NullString{String: session.ContextID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, status, context_id, capture_interval_ms, metadata, created_at, updated_at, stopped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			status = excluded.status,
			capture_interval_ms = excluded.capture_interval_ms,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at,
			stopped_at = excluded.stopped_at`,
		session.SessionID, session.Status, contextID, session.CaptureIntervalMs, string(metadata),
		session.CreatedAt, session.UpdatedAt, stoppedAt)
	return err
}

const sessionColumns = `session_id, status, context_id, capture_interval_ms, metadata, created_at, updated_at, stopped_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var contextID, metadata sql.NullString
	var stoppedAt sql.NullTime
	if err := row.Scan(&session.SessionID, &session.Status, &contextID, &session.CaptureIntervalMs, &metadata,
		&session.CreatedAt, &session.UpdatedAt, &stoppedAt); err != nil {
		return nil, err
	}
	session.ContextID = contextID.String
	if metadata.Valid && metadata.String != "" && metadata.String != "null" {
		if err := json.Unmarshal([]byte(metadata.String), &session.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for session %s: %w", session.SessionID, err)
		}
	}
	if stoppedAt.Valid {
		session.StoppedAt = &stoppedAt.Time
	}
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ListSessions lists sessions ordered by creation time. An empty status lists all.
func (s *SQLiteStore) ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// PutRecord inserts a context record. A record that already reached a
// terminal status is left untouched, which also makes repeated writes of the
// same terminal record idempotent.
func (s *SQLiteStore) PutRecord(ctx context.Context, record *domain.ContextRecord) error {
	var payload, errStr sql.NullString
	if len(record.Payload) > 0 {
		payload = sql.NullString{String: string(record.Payload), Valid: true}
	}
	if record.Error != "" {
		errStr = sql.NullString{String: record.Error, Valid: true}
	}
	var analyzedAt sql.NullTime
	if record.AnalyzedAt != nil {
		analyzedAt = sql.NullTime{Time: *record.AnalyzedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO context_records (session_id, sequence, captured_at, frame_ref, mime_type, payload, status, retry_count, error, analyzed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, sequence) DO UPDATE SET
			payload = excluded.payload,
			status = excluded.status,
			retry_count = excluded.retry_count,
			error = excluded.error,
			analyzed_at = excluded.analyzed_at
		 WHERE context_records.status NOT IN (?, ?)`,
		record.SessionID, record.Sequence, record.CapturedAt, record.FrameRef, record.MIMEType,
		payload, record.Status, record.RetryCount, errStr, analyzedAt,
		domain.AnalysisStatusSucceeded, domain.AnalysisStatusFailed)
	return err
}

const recordColumns = `session_id, sequence, captured_at, frame_ref, mime_type, payload, status, retry_count, error, analyzed_at`

func scanRecord(row rowScanner) (*domain.ContextRecord, error) {
	var record domain.ContextRecord
	var frameRef, mimeType, payload, errStr sql.NullString
	var analyzedAt sql.NullTime
	if err := row.Scan(&record.SessionID, &record.Sequence, &record.CapturedAt, &frameRef, &mimeType,
		&payload, &record.Status, &record.RetryCount, &errStr, &analyzedAt); err != nil {
		return nil, err
	}
	record.FrameRef = frameRef.String
	record.MIMEType = mimeType.String
	record.Error = errStr.String
	if payload.Valid {
		record.Payload = json.RawMessage(payload.String)
	}
	if analyzedAt.Valid {
		record.AnalyzedAt = &analyzedAt.Time
	}
	return &record, nil
}

// GetRecord retrieves one record by session and sequence number.
func (s *SQLiteStore) GetRecord(ctx context.Context, sessionID string, sequence int64) (*domain.ContextRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM context_records WHERE session_id = ? AND sequence = ?`,
		sessionID, sequence)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListRecords lists the records of a session in ascending sequence order.
func (s *SQLiteStore) ListRecords(ctx context.Context, sessionID string, filter domain.RecordFilter) ([]domain.ContextRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM context_records WHERE session_id = ?`
	args := []interface{}{sessionID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY sequence ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ContextRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// MaxSequence returns the highest persisted sequence number of a session, or
// -1 when the session has no records.
func (s *SQLiteStore) MaxSequence(ctx context.Context, sessionID string) (int64, error) {
	var maxSeq sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM context_records WHERE session_id = ?`, sessionID).Scan(&maxSeq)
	if err != nil {
		return 0, err
	}
	if !maxSeq.Valid {
		return -1, nil
	}
	return maxSeq.Int64, nil
}

// CreateEvent creates a new event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	payload := ""
	if event.Payload != nil {
		payload = string(event.Payload)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, session_id, ts, type, payload) VALUES (?, ?, ?, ?, ?)`,
		event.EventID, event.SessionID, event.Ts, event.Type, payload)
	return err
}

// GetEvents retrieves events for a session.
func (s *SQLiteStore) GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, session_id, ts, type, payload FROM events WHERE session_id = ?`
	args := []interface{}{sessionID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC, rowid ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.SessionID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// PutSummary caches the latest summary of a session.
func (s *SQLiteStore) PutSummary(ctx context.Context, summary *domain.SessionSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summaries (session_id, fingerprint, generated_at, record_count, failed_count, last_sequence, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.SessionID, summary.Fingerprint, summary.GeneratedAt, summary.RecordCount,
		summary.FailedCount, summary.LastSequence, summary.Text)
	return err
}

// GetSummary retrieves the cached summary of a session.
func (s *SQLiteStore) GetSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error) {
	var summary domain.SessionSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, fingerprint, generated_at, record_count, failed_count, last_sequence, text FROM summaries WHERE session_id = ?`,
		sessionID).Scan(&summary.SessionID, &summary.Fingerprint, &summary.GeneratedAt, &summary.RecordCount,
		&summary.FailedCount, &summary.LastSequence, &summary.Text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}
