package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "device-1.json")
	s := NewFile(path)

	_, ok := s.Load()
	assert.False(t, ok)

	s.Save("conv-1")
	id, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "conv-1", id)

	s.Save("conv-2")
	id, ok = s.Load()
	require.True(t, ok)
	assert.Equal(t, "conv-2", id)
}

func TestFileClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	s := NewFile(path)
	s.Save("conv-1")

	s.Clear()
	_, ok := s.Load()
	assert.False(t, ok)

	// Clearing an absent session is fine
	s.Clear()
}

func TestFileSaveEmptyIsNoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	s := NewFile(path)
	s.Save("conv-1")

	s.Save("")
	id, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "conv-1", id)
}

func TestFileCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, ok := NewFile(path).Load()
	assert.False(t, ok)
}

func TestFileUnavailableStorage(t *testing.T) {
	// A regular file where the directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	s := NewFile(filepath.Join(blocker, "device.json"))

	s.Save("conv-1")
	_, ok := s.Load()
	assert.False(t, ok)
	s.Clear()
}

func TestMemoryRoundTrip(t *testing.T) {
	s := NewMemory()

	_, ok := s.Load()
	assert.False(t, ok)

	s.Save("conv-1")
	id, ok := s.Load()
	require.True(t, ok)
	assert.Equal(t, "conv-1", id)

	s.Save("")
	_, ok = s.Load()
	assert.True(t, ok)

	s.Clear()
	_, ok = s.Load()
	assert.False(t, ok)
}
