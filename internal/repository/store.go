// Package repository defines the context store and its SQLite implementation.
package repository

import (
	"context"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

// Store defines the interface for context persistence. Lookups of missing
// rows return a nil value and a nil error.
type Store interface {
	// Context operations. GetContextByName matches names exactly.
	PutContext(ctx context.Context, wc *domain.WorkContext) error
	GetContext(ctx context.Context, contextID string) (*domain.WorkContext, error)
	GetContextByName(ctx context.Context, name string) (*domain.WorkContext, error)
	ListContexts(ctx context.Context) ([]domain.WorkContext, error)

	// Session operations
	PutSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error)

	// Record operations. PutRecord never overwrites a terminal record.
	PutRecord(ctx context.Context, record *domain.ContextRecord) error
	GetRecord(ctx context.Context, sessionID string, sequence int64) (*domain.ContextRecord, error)
	ListRecords(ctx context.Context, sessionID string, filter domain.RecordFilter) ([]domain.ContextRecord, error)
	MaxSequence(ctx context.Context, sessionID string) (int64, error)

	// Event operations
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterTs int64, types []string, limit int) ([]domain.Event, error)

	// Summary cache
	PutSummary(ctx context.Context, summary *domain.SessionSummary) error
	GetSummary(ctx context.Context, sessionID string) (*domain.SessionSummary, error)

	// Lifecycle
	Close() error
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)
