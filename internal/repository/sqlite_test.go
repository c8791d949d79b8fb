package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/Pythonista7/context-tracker-backend/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}

func putTestSession(t *testing.T, store *SQLiteStore, sessionID string) *domain.Session {
	t.Helper()
	now := time.Now()
	session := &domain.Session{
		SessionID:         sessionID,
		Status:            domain.SessionStatusCreated,
		CaptureIntervalMs: 1000,
		Metadata:          map[string]string{"project": "tracker"},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.PutSession(context.Background(), session); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}
	return session
}

func TestSQLiteStoreSessions(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	session := putTestSession(t, store, "s1")

	got, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got == nil || got.Status != domain.SessionStatusCreated || got.Metadata["project"] != "tracker" {
		t.Fatalf("unexpected session: %+v", got)
	}

	stoppedAt := time.Now()
	session.Status = domain.SessionStatusStopped
	session.StoppedAt = &stoppedAt
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession update failed: %v", err)
	}

	got, err = store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Status != domain.SessionStatusStopped || got.StoppedAt == nil {
		t.Fatalf("expected stopped session, got %+v", got)
	}

	missing, err := store.GetSession(ctx, "nope")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown session, got %+v", missing)
	}

	putTestSession(t, store, "s2")
	stopped, err := store.ListSessions(ctx, domain.SessionStatusStopped)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(stopped) != 1 || stopped[0].SessionID != "s1" {
		t.Fatalf("unexpected stopped sessions: %+v", stopped)
	}
	all, err := store.ListSessions(ctx, "")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}
}

func TestSQLiteStoreRecordsOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	putTestSession(t, store, "s1")

	statuses := []domain.AnalysisStatus{
		domain.AnalysisStatusSucceeded,
		domain.AnalysisStatusFailed,
		domain.AnalysisStatusSucceeded,
	}
	// Insert out of order; listing must still follow sequence order.
	for _, seq := range []int64{2, 0, 1} {
		record := &domain.ContextRecord{
			SessionID:  "s1",
			Sequence:   seq,
			CapturedAt: time.Now(),
			FrameRef:   "frame",
			MIMEType:   "image/png",
			Status:     statuses[seq],
		}
		if record.Status == domain.AnalysisStatusSucceeded {
			record.Payload = json.RawMessage(`{"main_topic":"go"}`)
		} else {
			record.Error = "malformed"
		}
		if err := store.PutRecord(ctx, record); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
	}

	all, err := store.ListRecords(ctx, "s1", domain.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for i, record := range all {
		if record.Sequence != int64(i) {
			t.Fatalf("expected sequence %d at position %d, got %d", i, i, record.Sequence)
		}
	}

	succeeded, err := store.ListRecords(ctx, "s1", domain.RecordFilter{Status: domain.AnalysisStatusSucceeded})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(succeeded) != 2 || succeeded[0].Sequence != 0 || succeeded[1].Sequence != 2 {
		t.Fatalf("unexpected succeeded records: %+v", succeeded)
	}

	maxSeq, err := store.MaxSequence(ctx, "s1")
	if err != nil {
		t.Fatalf("MaxSequence failed: %v", err)
	}
	if maxSeq != 2 {
		t.Fatalf("expected max sequence 2, got %d", maxSeq)
	}

	empty, err := store.MaxSequence(ctx, "other")
	if err != nil {
		t.Fatalf("MaxSequence failed: %v", err)
	}
	if empty != -1 {
		t.Fatalf("expected -1 for a session without records, got %d", empty)
	}
}

func TestSQLiteStoreTerminalRecordIsImmutable(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	putTestSession(t, store, "s1")

	record := &domain.ContextRecord{
		SessionID:  "s1",
		Sequence:   0,
		CapturedAt: time.Now(),
		Payload:    json.RawMessage(`{"main_topic":"first"}`),
		Status:     domain.AnalysisStatusSucceeded,
		RetryCount: 1,
	}
	if err := store.PutRecord(ctx, record); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	overwrite := *record
	overwrite.Status = domain.AnalysisStatusFailed
	overwrite.Payload = nil
	overwrite.Error = "late failure"
	if err := store.PutRecord(ctx, &overwrite); err != nil {
		t.Fatalf("PutRecord overwrite failed: %v", err)
	}

	got, err := store.GetRecord(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Status != domain.AnalysisStatusSucceeded || got.RetryCount != 1 || string(got.Payload) != `{"main_topic":"first"}` {
		t.Fatalf("terminal record was modified: %+v", got)
	}

	missing, err := store.GetRecord(ctx, "s1", 9)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown record")
	}
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	putTestSession(t, store, "s1")

	base := time.Now().UnixMilli()
	events := []*domain.Event{
		{EventID: "e1", SessionID: "s1", Ts: base, Type: domain.EventTypeSessionCreated},
		{EventID: "e2", SessionID: "s1", Ts: base + 1, Type: domain.EventTypeCaptureSkipped, Payload: json.RawMessage(`{"reason":"policy"}`)},
		{EventID: "e3", SessionID: "s1", Ts: base + 2, Type: domain.EventTypeRecordPersisted},
	}
	for _, event := range events {
		if err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}
	}

	got, err := store.GetEvents(ctx, "s1", 0, nil, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	skipped, err := store.GetEvents(ctx, "s1", 0, []string{string(domain.EventTypeCaptureSkipped)}, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(skipped) != 1 || string(skipped[0].Payload) != `{"reason":"policy"}` {
		t.Fatalf("unexpected filtered events: %+v", skipped)
	}

	after, err := store.GetEvents(ctx, "s1", base, nil, 10)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected 2 events after %d, got %d", base, len(after))
	}
}

func TestSQLiteStoreSummaryCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()
	putTestSession(t, store, "s1")

	summary := &domain.SessionSummary{
		SessionID:    "s1",
		GeneratedAt:  time.Now(),
		RecordCount:  2,
		FailedCount:  1,
		LastSequence: 2,
		Fingerprint:  "abc",
		Text:         "worked on the scheduler",
	}
	if err := store.PutSummary(ctx, summary); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}

	got, err := store.GetSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got == nil || got.Fingerprint != "abc" || got.Text != summary.Text || got.FailedCount != 1 {
		t.Fatalf("unexpected summary: %+v", got)
	}

	summary.Fingerprint = "def"
	summary.Text = "regenerated"
	if err := store.PutSummary(ctx, summary); err != nil {
		t.Fatalf("PutSummary replace failed: %v", err)
	}
	got, err = store.GetSummary(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSummary failed: %v", err)
	}
	if got.Fingerprint != "def" || got.Text != "regenerated" {
		t.Fatalf("summary was not replaced: %+v", got)
	}
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "context.db") + "?mode=rwc"

	store, err := NewSQLiteStore(dsn)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	putTestSession(t, store, "s1")
	if err := store.PutSummary(ctx, &domain.SessionSummary{
		SessionID:   "s1",
		GeneratedAt: time.Now(),
		RecordCount: 3,
		FailedCount: 2,
		Fingerprint: "abc",
		Text:        "before reopen",
	}); err != nil {
		t.Fatalf("PutSummary failed: %v", err)
	}
	store.Close()

	for i := 0; i < 2; i++ {
		store, err = NewSQLiteStore(dsn)
		if err != nil {
			t.Fatalf("reopen %d failed: %v", i, err)
		}
		got, err := store.GetSummary(ctx, "s1")
		if err != nil {
			t.Fatalf("GetSummary failed: %v", err)
		}
		if got == nil || got.FailedCount != 2 || got.RecordCount != 3 || got.Text != "before reopen" {
			t.Fatalf("summary lost on reopen: %+v", got)
		}
		store.Close()
	}
}

func TestSQLiteStoreContexts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	defer store.Close()

	created := time.Now().UTC().Add(-time.Hour)
	for _, wc := range []*domain.WorkContext{
		{ContextID: "ctx_a", Name: "thesis", Description: "chapter 3", CreatedAt: created, LastActive: created},
		{ContextID: "ctx_b", Name: "billing", CreatedAt: created, LastActive: created.Add(time.Minute)},
	} {
		if err := store.PutContext(ctx, wc); err != nil {
			t.Fatalf("PutContext failed: %v", err)
		}
	}

	got, err := store.GetContextByName(ctx, "thesis")
	if err != nil {
		t.Fatalf("GetContextByName failed: %v", err)
	}
	if got == nil || got.ContextID != "ctx_a" || got.Description != "chapter 3" {
		t.Fatalf("unexpected context: %+v", got)
	}
	if missing, err := store.GetContext(ctx, "ctx_missing"); err != nil || missing != nil {
		t.Fatalf("expected nil for unknown context, got %+v, %v", missing, err)
	}

	dup := &domain.WorkContext{ContextID: "ctx_c", Name: "thesis", CreatedAt: created, LastActive: created}
	if err := store.PutContext(ctx, dup); err == nil {
		t.Fatalf("expected duplicate name to be rejected")
	}

	got.LastActive = time.Now().UTC()
	if err := store.PutContext(ctx, got); err != nil {
		t.Fatalf("PutContext touch failed: %v", err)
	}
	contexts, err := store.ListContexts(ctx)
	if err != nil {
		t.Fatalf("ListContexts failed: %v", err)
	}
	if len(contexts) != 2 || contexts[0].ContextID != "ctx_a" {
		t.Fatalf("expected most recently active first, got %+v", contexts)
	}

	now := time.Now()
	session := &domain.Session{
		SessionID:         "s1",
		Status:            domain.SessionStatusCreated,
		ContextID:         "ctx_b",
		CaptureIntervalMs: 1000,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.PutSession(ctx, session); err != nil {
		t.Fatalf("PutSession failed: %v", err)
	}
	sess, err := store.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess.ContextID != "ctx_b" {
		t.Fatalf("context id not stored: %+v", sess)
	}

	session.SessionID = "s2"
	session.ContextID = "ctx_missing"
	if err := store.PutSession(ctx, session); err == nil {
		t.Fatalf("expected unknown context id to violate the foreign key")
	}
}
