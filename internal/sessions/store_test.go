package sessions

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"opengoat/internal/config"
	"opengoat/internal/errs"
	"opengoat/internal/ports"
	"opengoat/internal/ports/portstest"
)

func newTestStore(t *testing.T) (*Store, config.Paths, *portstest.FakeClock) {
	t.Helper()
	paths := config.NewPaths(t.TempDir())
	clock := portstest.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	return NewStore(ports.OS(), clock, paths), paths, clock
}

func TestParseKey(t *testing.T) {
	cases := []struct {
		key       string
		scope     string
		slug      string
		wantError bool
	}{
		{key: "agent:main", scope: "agent", slug: "main"},
		{key: "workspace:webapp", scope: "workspace", slug: "webapp"},
		{key: "project:launch-plan", scope: "project", slug: "launch-plan"},
		{key: "main", scope: "agent", slug: "main"},
		{key: "agent:agent_eng_notifications", scope: "agent", slug: "agent_eng_notifications"},
		{key: "task:t-abc123", wantError: true},
		{key: "agent:", wantError: true},
		{key: "agent:Bad Slug", wantError: true},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			scope, slug, err := ParseKey(tc.key)
			if tc.wantError {
				if !errs.IsKind(err, errs.KindValidation) {
					t.Fatalf("err = %v, want validation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey: %v", err)
			}
			if scope != tc.scope || slug != tc.slug {
				t.Errorf("got (%s, %s), want (%s, %s)", scope, slug, tc.scope, tc.slug)
			}
		})
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	s, paths, _ := newTestStore(t)

	meta, created, err := s.Prepare("eng", "agent:main", false)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !created {
		t.Error("first Prepare should create")
	}
	if meta.SessionID == "" {
		t.Error("new session should get an id")
	}
	if _, err := os.Stat(filepath.Join(paths.SessionDir("eng", "main"), "meta.json")); err != nil {
		t.Errorf("meta.json missing: %v", err)
	}

	again, created, err := s.Prepare("eng", "agent:main", false)
	if err != nil {
		t.Fatalf("second Prepare: %v", err)
	}
	if created {
		t.Error("second Prepare should not create")
	}
	if again.SessionID != meta.SessionID {
		t.Error("session id must be stable without forceNew")
	}

	fresh, _, err := s.Prepare("eng", "agent:main", true)
	if err != nil {
		t.Fatalf("forceNew Prepare: %v", err)
	}
	if fresh.SessionID == meta.SessionID {
		t.Error("forceNew must rotate the session id")
	}
}

func TestAppendAndHistory(t *testing.T) {
	s, _, clock := newTestStore(t)
	if _, _, err := s.Prepare("eng", "agent:main", false); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	meta, err := s.Append("eng", "agent:main",
		Entry{At: clock.Now().UnixMilli(), Role: "user", Text: "hello"},
		Entry{At: clock.Now().UnixMilli(), Role: "assistant", Text: "hi there"},
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if meta.InputChars != len("hello") || meta.OutputChars != len("hi there") {
		t.Errorf("counters = %d/%d", meta.InputChars, meta.OutputChars)
	}

	if meta.TotalChars != len("hello")+len("hi there") {
		t.Errorf("totalChars = %d", meta.TotalChars)
	}

	entries, err := s.History("eng", "agent:main", 0, false)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Errorf("order wrong: %+v", entries)
	}
	if entries[0].Type != EntryTypeMessage {
		t.Errorf("untagged entries default to message, got %q", entries[0].Type)
	}

	t.Run("limit keeps the tail", func(t *testing.T) {
		got, err := s.History("eng", "agent:main", 1, false)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].Text != "hi there" {
			t.Errorf("got %+v", got)
		}
	})
}

func TestCompactionEntries(t *testing.T) {
	s, _, clock := newTestStore(t)
	if _, _, err := s.Prepare("eng", "agent:main", false); err != nil {
		t.Fatal(err)
	}

	meta, err := s.Append("eng", "agent:main",
		Entry{At: clock.Now().UnixMilli(), Role: "user", Text: "hello"},
		Entry{At: clock.Now().UnixMilli(), Type: EntryTypeCompaction, Text: "summary of earlier turns"},
		Entry{At: clock.Now().UnixMilli(), Role: "assistant", Text: "hi"},
	)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if meta.CompactionCount != 1 {
		t.Errorf("compactionCount = %d", meta.CompactionCount)
	}
	if meta.InputChars != len("hello") || meta.OutputChars != len("hi") {
		t.Errorf("compaction text must not count as conversation: %d/%d", meta.InputChars, meta.OutputChars)
	}
	if meta.TotalChars != len("hello")+len("summary of earlier turns")+len("hi") {
		t.Errorf("totalChars = %d", meta.TotalChars)
	}

	entries, err := s.History("eng", "agent:main", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("compaction should be filtered by default: %+v", entries)
	}

	all, err := s.History("eng", "agent:main", 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[1].Type != EntryTypeCompaction {
		t.Errorf("with compaction: %+v", all)
	}
}

func TestUpdatedAtIsMonotonic(t *testing.T) {
	s, _, clock := newTestStore(t)
	if _, _, err := s.Prepare("eng", "agent:main", false); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)
	meta, err := s.Append("eng", "agent:main", Entry{Role: "user", Text: "a"})
	if err != nil {
		t.Fatal(err)
	}
	high := meta.UpdatedAt

	clock.Set(clock.Now().Add(-2 * time.Hour))
	meta, err = s.Append("eng", "agent:main", Entry{Role: "user", Text: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if meta.UpdatedAt < high {
		t.Errorf("updatedAt went backwards: %d < %d", meta.UpdatedAt, high)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	s, _, clock := newTestStore(t)
	for _, slug := range []string{"old", "new"} {
		if _, _, err := s.Prepare("eng", "agent:"+slug, false); err != nil {
			t.Fatal(err)
		}
		clock.Advance(time.Minute)
	}
	if _, err := s.Append("eng", "agent:new", Entry{Role: "user", Text: "x"}); err != nil {
		t.Fatal(err)
	}

	metas, err := s.List("eng")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 || metas[0].Key != "agent:new" {
		t.Errorf("order wrong: %+v", metas)
	}

	t.Run("last activity", func(t *testing.T) {
		last, err := s.LastActivity("eng")
		if err != nil {
			t.Fatal(err)
		}
		if last != metas[0].UpdatedAt {
			t.Errorf("LastActivity = %d, want %d", last, metas[0].UpdatedAt)
		}
	})
	t.Run("unknown agent has none", func(t *testing.T) {
		last, err := s.LastActivity("ghost")
		if err != nil || last != 0 {
			t.Errorf("got %d, %v", last, err)
		}
	})
}

func TestRenameAndRemove(t *testing.T) {
	s, paths, _ := newTestStore(t)
	if _, _, err := s.Prepare("eng", "agent:main", false); err != nil {
		t.Fatal(err)
	}

	meta, err := s.Rename("eng", "agent:main", "Planning")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if meta.Title != "Planning" {
		t.Errorf("title = %q", meta.Title)
	}

	if err := s.Remove("eng", "agent:main"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(paths.SessionDir("eng", "main")); !os.IsNotExist(err) {
		t.Error("session dir should be gone")
	}
	if err := s.Remove("eng", "agent:main"); !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("second Remove = %v, want not-found", err)
	}
}
