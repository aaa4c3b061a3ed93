// Package artifacts manages the per-session directories that hold generated
// reports and chart specifications.
package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidName is returned for artifact names that would escape the
// session directory.
var ErrInvalidName = errors.New("invalid artifact name")

// Manager creates and cleans up artifact workspaces.
type Manager struct {
	root    string
	writeMu sync.Mutex // Serializes writes so concurrent roles never interleave a file
}

// NewManager creates a new artifact manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Root == "" {
		cfg.Root = filepath.Join(".westbay", "artifacts")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the absolute artifact root.
func (m *Manager) Root() string { return m.root }

// Create ensures the workspace for sessionID exists.
func (m *Manager) Create(sessionID string) (*Workspace, error) {
	dir, err := m.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace for %q: %w", sessionID, err)
	}
	return &Workspace{SessionID: sessionID, Path: dir}, nil
}

// Write stores data under name in the session workspace and returns the
// absolute path. The file is written to a temporary name and renamed so
// readers never observe a partial artifact.
func (m *Manager) Write(sessionID, name string, data []byte) (string, error) {
	ws, err := m.Create(sessionID)
	if err != nil {
		return "", err
	}
	path, err := resolve(ws.Path, name)
	if err != nil {
		return "", err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp artifact: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write artifact %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close artifact %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize artifact %q: %w", name, err)
	}
	return path, nil
}

// Read returns the contents of an artifact.
func (m *Manager) Read(sessionID, name string) ([]byte, error) {
	dir, err := m.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	path, err := resolve(dir, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %q: %w", name, err)
	}
	return data, nil
}

// Get describes the workspace of sessionID, listing its files.
func (m *Manager) Get(sessionID string) (*Workspace, error) {
	dir, err := m.sessionDir(sessionID)
	if err != nil {
		return nil, err
	}
	files, err := listFiles(dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{SessionID: sessionID, Path: dir, Files: files}, nil
}

// List returns every workspace under the root.
func (m *Manager) List() ([]Workspace, error) {
	entries, err := os.ReadDir(m.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var out []Workspace
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		ws, err := m.Get(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, *ws)
	}
	return out, nil
}

// Cleanup removes the workspace of sessionID. A missing workspace is not an
// error.
func (m *Manager) Cleanup(sessionID string) error {
	dir, err := m.sessionDir(sessionID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove workspace %q: %w", sessionID, err)
	}
	return nil
}

// Prune removes workspaces whose session is not kept and returns the
// removed session ids.
func (m *Manager) Prune(keep func(sessionID string) bool) ([]string, error) {
	workspaces, err := m.List()
	if err != nil {
		return nil, err
	}
	var errs []error
	var removed []string
	for _, ws := range workspaces {
		if keep(ws.SessionID) {
			continue
		}
		if err := m.Cleanup(ws.SessionID); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, ws.SessionID)
	}
	return removed, errors.Join(errs...)
}

func (m *Manager) sessionDir(sessionID string) (string, error) {
	if sessionID == "" || sessionID != filepath.Base(sessionID) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("session id %q: %w", sessionID, ErrInvalidName)
	}
	return filepath.Join(m.root, sessionID), nil
}

// resolve joins name onto dir, rejecting absolute names and names that
// climb out of dir.
func resolve(dir, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	clean := filepath.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", name, ErrInvalidName)
	}
	return filepath.Join(dir, clean), nil
}

func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
