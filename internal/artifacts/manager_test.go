package artifacts

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	return m
}

func TestWriteAndRead(t *testing.T) {
	m := newTestManager(t)

	path, err := m.Write("sess-1", ReportFile, []byte("# Report\n"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if path != filepath.Join(m.Root(), "sess-1", ReportFile) {
		t.Errorf("path mismatch: got %s", path)
	}

	data, err := m.Read("sess-1", ReportFile)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "# Report\n" {
		t.Errorf("content mismatch: got %q", data)
	}

	// Overwrite replaces the file atomically.
	if _, err := m.Write("sess-1", ReportFile, []byte("v2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ = m.Read("sess-1", ReportFile)
	if string(data) != "v2" {
		t.Errorf("content mismatch after overwrite: got %q", data)
	}
}

func TestWriteNestedAndList(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.Write("sess-1", "charts/chart_1.json", []byte("{}")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := m.Write("sess-1", ReportFile, []byte("r")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if _, err := m.Create("sess-2"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ws, err := m.Get("sess-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := []string{"charts/chart_1.json", "report.md"}
	if len(ws.Files) != len(want) {
		t.Fatalf("file count mismatch: got %v, want %v", ws.Files, want)
	}
	for i := range want {
		if ws.Files[i] != want[i] {
			t.Errorf("file %d mismatch: got %s, want %s", i, ws.Files[i], want[i])
		}
	}

	all, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("workspace count mismatch: got %d, want 2", len(all))
	}
}

func TestRejectsEscapingNames(t *testing.T) {
	m := newTestManager(t)

	for _, name := range []string{"", "../outside.md", "/etc/passwd", "charts/../../x"} {
		if _, err := m.Write("sess-1", name, []byte("x")); !errors.Is(err, ErrInvalidName) {
			t.Errorf("name %q: expected ErrInvalidName, got %v", name, err)
		}
	}
	for _, id := range []string{"", "..", "a/b"} {
		if _, err := m.Create(id); !errors.Is(err, ErrInvalidName) {
			t.Errorf("session %q: expected ErrInvalidName, got %v", id, err)
		}
	}
}

func TestCleanupAndPrune(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"keep", "drop-1", "drop-2"} {
		if _, err := m.Write(id, ReportFile, []byte(id)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	removed, err := m.Prune(func(id string) bool { return id == "keep" })
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed mismatch: got %v", removed)
	}
	if _, err := os.Stat(filepath.Join(m.Root(), "keep")); err != nil {
		t.Errorf("kept workspace missing: %v", err)
	}

	if err := m.Cleanup("keep"); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if err := m.Cleanup("keep"); err != nil {
		t.Errorf("second Cleanup should be a no-op, got %v", err)
	}
	if ws, err := m.List(); err != nil || len(ws) != 0 {
		t.Errorf("expected no workspaces, got %v (err %v)", ws, err)
	}
}

func TestListMissingRoot(t *testing.T) {
	m, err := NewManager(ManagerConfig{Root: filepath.Join(t.TempDir(), "absent")})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	ws, err := m.List()
	if err != nil || ws != nil {
		t.Errorf("expected empty list, got %v (err %v)", ws, err)
	}
}
