// Package helpers holds fixtures shared by package tests.
package helpers

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
	"github.com/Pythonista7/context-tracker-backend/internal/repository"
)

// NewTestSQLiteStore opens an in-memory store closed at test cleanup.
func NewTestSQLiteStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()

	s, err := repository.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// TempDatabaseDSN returns a DSN for a fresh database file under t.TempDir,
// for tests that open the store more than once.
func TempDatabaseDSN(t *testing.T) string {
	t.Helper()
	return "file:" + filepath.Join(t.TempDir(), "context.db") + "?mode=rwc"
}

// PutSession stores a session with the given status and returns it.
func PutSession(t *testing.T, s repository.Store, sessionID string, status domain.SessionStatus) *domain.Session {
	t.Helper()

	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:         sessionID,
		Status:            status,
		CaptureIntervalMs: 5000,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.PutSession(context.Background(), sess); err != nil {
		t.Fatalf("failed to put session: %v", err)
	}
	return sess
}
