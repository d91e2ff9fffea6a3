package ports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	fs := OS()
	dir := t.TempDir()
	path := filepath.Join(dir, "task.json")

	if err := fs.WriteFileAtomic(path, []byte(`{"id":"T-000001"}`), 0o644); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != `{"id":"T-000001"}` {
		t.Errorf("content = %q", data)
	}

	t.Run("overwrites in place", func(t *testing.T) {
		if err := fs.WriteFileAtomic(path, []byte(`{"id":"T-000002"}`), 0o644); err != nil {
			t.Fatalf("WriteFileAtomic: %v", err)
		}
		data, _ := os.ReadFile(path)
		if string(data) != `{"id":"T-000002"}` {
			t.Errorf("content = %q", data)
		}
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tmp-") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})
}

func TestAppendFile(t *testing.T) {
	fs := OS()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")

	if err := fs.AppendFile(path, []byte("{\"role\":\"user\"}\n"), 0o644); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := fs.AppendFile(path, []byte("{\"role\":\"assistant\"}\n"), 0o644); err != nil {
		t.Fatalf("second append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
}
