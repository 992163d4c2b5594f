package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndLatest(t *testing.T) {
	s := openTestStore(t)

	start := time.Now().Add(-time.Minute)
	recs := []Record{
		{RunID: "WRF_17", State: "Executed", ExitCode: 1, StartedAt: start, FinishedAt: start.Add(10 * time.Second)},
		{RunID: "WRF_17", State: "Finalized", ExitCode: 0, LogPath: "/runs/WRF_17/init.log", StartedAt: start.Add(time.Minute), FinishedAt: start.Add(2 * time.Minute)},
	}
	for _, rec := range recs {
		require.NoError(t, s.Record(rec))
	}

	latest, err := s.Latest("WRF_17")
	require.NoError(t, err)
	require.Equal(t, "Finalized", latest.State)
	require.Equal(t, 0, latest.ExitCode)
	require.Equal(t, "/runs/WRF_17/init.log", latest.LogPath)
}

func TestLatest_Unknown(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Latest("nope")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestList(t *testing.T) {
	s := openTestStore(t)

	now := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		rec := Record{RunID: id, State: "Finalized", StartedAt: now, FinishedAt: now.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.Record(rec))
	}

	recs, err := s.List(2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "c", recs[0].RunID, "newest first")
	require.Equal(t, "b", recs[1].RunID)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	now := time.Now()
	require.NoError(t, s.Record(Record{RunID: "persist", State: "Finalized", StartedAt: now, FinishedAt: now}))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()
	_, err = s2.Latest("persist")
	require.NoError(t, err, "record lost across reopen")
}
