package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mirror-labs/mirror/backend/internal/model/chat"
	"github.com/mirror-labs/mirror/backend/internal/store"
)

func newTestHistory(t *testing.T) *store.History {
	t.Helper()
	h, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestAppendAssignsIncreasingSequence(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	var lastID int64
	for i := 0; i < 5; i++ {
		turn, err := h.Append(ctx, "s1", chat.RoleUser, fmt.Sprintf("msg %d", i), "happy")
		if err != nil {
			t.Fatalf("Append err: %v", err)
		}
		if turn.ID <= lastID {
			t.Fatalf("sequence not increasing: %d after %d", turn.ID, lastID)
		}
		lastID = turn.ID
	}
}

func TestRecentReturnsAppendOrder(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	texts := []string{"hi", "hello", "how are you", "fine"}
	roles := []chat.Role{chat.RoleUser, chat.RoleAssistant, chat.RoleUser, chat.RoleAssistant}
	for i := range texts {
		if _, err := h.Append(ctx, "s1", roles[i], texts[i], ""); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	turns, err := h.Recent(ctx, "s1", 8)
	if err != nil {
		t.Fatalf("Recent err: %v", err)
	}
	if len(turns) != len(texts) {
		t.Fatalf("expected %d turns, got %d", len(texts), len(turns))
	}
	for i, turn := range turns {
		if turn.Text != texts[i] {
			t.Fatalf("turn %d out of order: got %q want %q", i, turn.Text, texts[i])
		}
		if turn.Role != roles[i] {
			t.Fatalf("turn %d role mismatch: got %s", i, turn.Role)
		}
		if i > 0 && turn.ID <= turns[i-1].ID {
			t.Fatalf("turns not ordered by sequence: %d after %d", turn.ID, turns[i-1].ID)
		}
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := h.Append(ctx, "s1", chat.RoleUser, fmt.Sprintf("msg %d", i), ""); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	turns, err := h.Recent(ctx, "s1", 8)
	if err != nil {
		t.Fatalf("Recent err: %v", err)
	}
	if len(turns) != 8 {
		t.Fatalf("expected 8 turns, got %d", len(turns))
	}
	if turns[0].Text != "msg 4" || turns[7].Text != "msg 11" {
		t.Fatalf("wrong window: first=%q last=%q", turns[0].Text, turns[7].Text)
	}
}

func TestRecentEmptySession(t *testing.T) {
	h := newTestHistory(t)

	turns, err := h.Recent(context.Background(), "nobody", 8)
	if err != nil {
		t.Fatalf("Recent err: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected no turns, got %d", len(turns))
	}
}

func TestMoodCountsBucketsMissingMoodAsUnknown(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	if _, err := h.Append(ctx, "s1", chat.RoleUser, "a", "happy"); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := h.Append(ctx, "s1", chat.RoleUser, "b", "happy"); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := h.Append(ctx, "s2", chat.RoleUser, "c", ""); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	counts, err := h.MoodCounts(ctx)
	if err != nil {
		t.Fatalf("MoodCounts err: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(counts))
	}
	if counts[0].Mood != "happy" || counts[0].Count != 2 {
		t.Fatalf("unexpected top bucket: %+v", counts[0])
	}
	if counts[1].Mood != "unknown" || counts[1].Count != 1 {
		t.Fatalf("expected unknown bucket, got %+v", counts[1])
	}
}

func TestActiveSessionsOrderedByRecency(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	if _, err := h.Append(ctx, "old", chat.RoleUser, "first", ""); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := h.Append(ctx, "busy", chat.RoleUser, "one", ""); err != nil {
		t.Fatalf("Append err: %v", err)
	}
	if _, err := h.Append(ctx, "busy", chat.RoleAssistant, "two", ""); err != nil {
		t.Fatalf("Append err: %v", err)
	}

	sessions, err := h.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions err: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "busy" || sessions[0].Turns != 2 {
		t.Fatalf("unexpected most recent session: %+v", sessions[0])
	}
	if sessions[1].SessionID != "old" {
		t.Fatalf("unexpected second session: %+v", sessions[1])
	}
}

func TestRecentTurnsNewestFirst(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := h.Append(ctx, "s1", chat.RoleUser, fmt.Sprintf("msg %d", i), ""); err != nil {
			t.Fatalf("Append err: %v", err)
		}
	}

	turns, err := h.RecentTurns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentTurns err: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Text != "msg 2" || turns[1].Text != "msg 1" {
		t.Fatalf("expected newest first, got %q then %q", turns[0].Text, turns[1].Text)
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, session := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := h.Append(ctx, session, chat.RoleUser, session, session); err != nil {
					t.Errorf("Append err for %s: %v", session, err)
					return
				}
			}
		}(session)
	}
	wg.Wait()

	for _, session := range []string{"alpha", "beta"} {
		turns, err := h.Recent(ctx, session, 20)
		if err != nil {
			t.Fatalf("Recent err: %v", err)
		}
		if len(turns) != 10 {
			t.Fatalf("expected 10 turns for %s, got %d", session, len(turns))
		}
		for _, turn := range turns {
			if turn.SessionID != session || turn.Text != session {
				t.Fatalf("cross-session leakage: %+v in %s", turn, session)
			}
		}
	}
}

func TestStorageErrorAfterClose(t *testing.T) {
	h, err := store.Open(filepath.Join(t.TempDir(), "mirror.db"))
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	h.Close()

	_, err = h.Append(context.Background(), "s1", chat.RoleUser, "hi", "")
	if err == nil {
		t.Fatal("expected error after close")
	}
	var storageErr *store.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %T", err)
	}
}
