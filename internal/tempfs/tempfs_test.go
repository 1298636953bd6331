package tempfs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/soyeahso/gewebridge/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "tmp"), logging.New(nil, "silent"))
	require.NoError(t, err)
	return m
}

func TestNew_CreatesRoot(t *testing.T) {
	m := testManager(t)
	info, err := os.Stat(m.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.True(t, filepath.IsAbs(m.Root()))
}

func TestAllocate_InsideRootAndUnique(t *testing.T) {
	m := testManager(t)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		p := m.Allocate("voice", ".silk")
		assert.Equal(t, m.Root(), filepath.Dir(p))
		assert.True(t, strings.HasPrefix(filepath.Base(p), "voice_"))
		assert.True(t, strings.HasSuffix(p, ".silk"))
		assert.False(t, seen[p], "duplicate path %s", p)
		seen[p] = true
	}
}

func TestAllocate_NoPrefix(t *testing.T) {
	m := testManager(t)
	p := m.Allocate("", ".jpg")
	assert.False(t, strings.HasPrefix(filepath.Base(p), "_"))
}

func TestRelease(t *testing.T) {
	m := testManager(t)
	p := m.Allocate("img", ".png")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))

	m.Release(p)
	_, err := os.Stat(p)
	assert.True(t, os.IsNotExist(err))

	// already gone and empty path are both quiet no-ops
	m.Release(p)
	m.Release("")
}

func TestScope_CloseRemovesEverything(t *testing.T) {
	m := testManager(t)
	s := m.Scope()

	a := s.Allocate("a", ".bin")
	b := s.Allocate("b", ".bin")
	outside := filepath.Join(t.TempDir(), "seg_1.mp3")
	for _, p := range []string{a, b, outside} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	s.Track(outside)
	s.Track(outside)

	assert.Equal(t, []string{a, b, outside}, s.tracked())

	s.Close()
	for _, p := range []string{a, b, outside} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
	assert.Empty(t, s.tracked())

	s.Close()
}

func TestScope_UncreatedAllocationIsFine(t *testing.T) {
	m := testManager(t)
	s := m.Scope()
	s.Allocate("never", ".written")
	s.Close()

	entries, err := os.ReadDir(m.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
