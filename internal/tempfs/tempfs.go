// Package tempfs stages ephemeral media files under a single root directory
// that the callback file server is allowed to serve from.
package tempfs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/gewebridge/internal/logging"
)

// Manager allocates collision-free paths under Root and removes them again.
type Manager struct {
	root string
	log  *logging.Logger
}

// New creates the root directory (if needed) and returns a Manager for it.
// A relative root is resolved against the working directory.
func New(root string, log *logging.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving temp root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp root: %w", err)
	}
	return &Manager{root: abs, log: log.Sub("tempfs")}, nil
}

// Root returns the absolute temp root.
func (m *Manager) Root() string { return m.root }

// Allocate returns a new path inside the root named <prefix>_<uuid><ext>.
// The file itself is not created.
func (m *Manager) Allocate(prefix, ext string) string {
	name := uuid.NewString() + ext
	if prefix != "" {
		name = prefix + "_" + name
	}
	return filepath.Join(m.root, name)
}

// Release deletes path if it exists. Failures are logged, never returned:
// cleanup must not change the outcome of the operation it follows.
func (m *Manager) Release(path string) {
	if path == "" {
		return
	}
	err := os.Remove(path)
	switch {
	case err == nil:
		m.log.Debug().Str("path", path).Msg("temp file removed")
	case errors.Is(err, fs.ErrNotExist):
	default:
		m.log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

// Scope collects every asset created during one delivery attempt so a single
// deferred Close removes them all.
type Scope struct {
	m     *Manager
	mu    sync.Mutex
	paths []string
	seen  map[string]bool
}

// Scope starts a new acquisition scope. Callers must defer Close.
func (m *Manager) Scope() *Scope {
	return &Scope{m: m, seen: make(map[string]bool)}
}

// Allocate reserves a path in the temp root and tracks it.
func (s *Scope) Allocate(prefix, ext string) string {
	p := s.m.Allocate(prefix, ext)
	s.Track(p)
	return p
}

// Track registers a file created elsewhere (e.g. audio segments written by
// the splitter) for removal on Close. Tracking the same path twice is a no-op.
func (s *Scope) Track(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if path == "" || s.seen[path] {
		return
	}
	s.seen[path] = true
	s.paths = append(s.paths, path)
}

// tracked returns the tracked paths in allocation order.
func (s *Scope) tracked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Close releases every tracked path exactly once. Safe to call repeatedly.
func (s *Scope) Close() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		s.m.Release(p)
	}
}
