package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "snap.json"))

	snap, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), snap.LastIncludedIndex)
	assert.NotNil(t, snap.Store)
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "snap.json"))

	snap := Snapshot{
		LastIncludedIndex: 5,
		LastIncludedTerm:  2,
		Store:             map[string][]byte{"a": []byte("1")},
	}
	require.NoError(t, m.Write(snap))
	require.True(t, m.Exists())

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.LastIncludedIndex)
	assert.Equal(t, int64(2), got.LastIncludedTerm)
	assert.Equal(t, []byte("1"), got.Store["a"])
}

func TestLoadCorruptedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	m := NewManager(path)
	_, err := m.Load()
	assert.ErrorIs(t, err, ErrCorruptedSnapshot)
}

func TestLoadIncompatibleVersionErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"schema_ver": 99}`), 0o644))

	m := NewManager(path)
	_, err := m.Load()
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

type fakeCompactor struct {
	calledWith int64
}

func (f *fakeCompactor) Compact(beforeIndex int64) error {
	f.calledWith = beforeIndex
	return nil
}

func TestWriteAndCompactInvokesStoreWithNextIndex(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "snap.json"))
	store := &fakeCompactor{}

	require.NoError(t, m.WriteAndCompact(Snapshot{LastIncludedIndex: 9}, store))
	assert.Equal(t, int64(10), store.calledWith)
}

func TestWriteWithRetentionPrunesOldBackups(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "snap.json"))

	for i := 0; i < 5; i++ {
		require.NoError(t, m.WriteWithRetention(Snapshot{LastIncludedIndex: int64(i)}, 2))
	}

	matches, err := filepath.Glob(m.path + ".*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 2)
}
