package store

import (
	"context"
	"fmt"
	"testing"
)

// openTestStore opens an in-memory SQLiteStore for use in tests.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func Test_Store_RecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "12345", "Когда начинается приём?", "20 июня.", `[{"source":"faqs"}]`); err != nil {
		t.Fatalf("record: %v", err)
	}

	items, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("want 1 interaction, got %d", len(items))
	}
	it := items[0]
	if it.UserID != "12345" || it.Question != "Когда начинается приём?" || it.Answer != "20 июня." {
		t.Errorf("unexpected interaction: %+v", it)
	}
	if it.ContextsJSON != `[{"source":"faqs"}]` {
		t.Errorf("contexts json = %q", it.ContextsJSON)
	}
	if it.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func Test_Store_RecentNewestFirstAndLimit(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	for i := range 6 {
		if err := s.Record(ctx, "u", fmt.Sprintf("q%d", i), "a", ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	items, err := s.Recent(ctx, 4)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("want 4 interactions, got %d", len(items))
	}
	if items[0].Question != "q5" {
		t.Errorf("newest first: got %q, want q5", items[0].Question)
	}
	if items[3].Question != "q2" {
		t.Errorf("limit tail: got %q, want q2", items[3].Question)
	}
}

func Test_Store_EmptyContextsDefault(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, "u", "q", "a", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	items, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if items[0].ContextsJSON != "[]" {
		t.Errorf("contexts json = %q, want []", items[0].ContextsJSON)
	}
}

func Test_Store_Count(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("empty store count = %d", n)
	}

	for range 3 {
		if err := s.Record(ctx, "u", "q", "a", ""); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	n, err = s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func Test_Store_EmptyRecentReturnsNil(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	items, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("want 0 interactions, got %d", len(items))
	}
}
