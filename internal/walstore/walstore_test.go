package walstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment.wal")
	s, err := Open(path, 4, 5*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndReplayRoundTrip(t *testing.T) {
	s := openStore(t)

	require.NoError(t, s.Append(0, 0, []byte("a")))
	require.NoError(t, s.Append(1, 0, []byte("b")))
	require.NoError(t, s.Append(2, 1, []byte("c")))

	var got []Record
	err := s.Replay(func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []byte("a"), got[0].Item)
	assert.Equal(t, int64(1), got[2].Term)
}

func TestReplayDetectsTamperedChecksum(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.wal")
	s, err := Open(path, 4, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Append(0, 0, []byte("a")))
	require.NoError(t, s.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec Record
	require.NoError(t, json.Unmarshal(raw[:len(raw)-1], &rec)) // trailing newline from Encoder
	rec.Checksum ^= 0xff
	tampered, err := json.Marshal(rec)
	require.NoError(t, err)
	tampered = append(tampered, '\n')
	require.NoError(t, os.WriteFile(path, tampered, 0o644))

	reopened, err := Open(path, 4, 5*time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	err = reopened.Replay(func(Record) error { return nil })
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReplayLogReconstructsRaftLog(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Append(0, 0, []byte("a")))
	require.NoError(t, s.Append(1, 0, []byte("b")))
	require.NoError(t, s.Append(2, 2, []byte("c")))

	log, err := s.ReplayLog()
	require.NoError(t, err)
	assert.Equal(t, int64(2), log.LastIndex())
	assert.Equal(t, int64(2), log.LastTerm())
	assert.Equal(t, []byte("c"), log.At(2).Item)
}

func TestCompactDropsRecordsBeforeIndex(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Append(0, 0, []byte("a")))
	require.NoError(t, s.Append(1, 0, []byte("b")))
	require.NoError(t, s.Append(2, 0, []byte("c")))

	require.NoError(t, s.Compact(2))

	var got []Record
	err := s.Replay(func(rec Record) error {
		got = append(got, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].Index)
}

func TestAppendAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "segment.wal")
	s, err := Open(path, 4, 5*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Append(0, 0, []byte("a"))
	assert.ErrorIs(t, err, ErrClosed)
}
