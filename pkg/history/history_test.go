package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_SetsBusyTimeout(t *testing.T) {
	s := openTemp(t)
	var ms int
	require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA busy_timeout").Scan(&ms))
	require.Equal(t, 5000, ms)
}

func TestLastSent_Empty(t *testing.T) {
	s := openTemp(t)
	_, ok, err := s.LastSent(context.Background(), "personal")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecordAndLastSent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	run := uuid.NewString()

	for id := 1; id <= 3; id++ {
		require.NoError(t, s.Record(ctx, Entry{RunID: run, Profile: "personal", BrokerID: id, BrokerName: "B", Address: "b@example.com"}))
	}
	require.NoError(t, s.Record(ctx, Entry{RunID: run, Profile: "work", BrokerID: 9, BrokerName: "W", Address: "w@example.com"}))

	id, ok, err := s.LastSent(ctx, "personal")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, id)

	id, ok, err = s.LastSent(ctx, "work")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 9, id)
}

func TestList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	sentAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	for id := 1; id <= 5; id++ {
		require.NoError(t, s.Record(ctx, Entry{
			RunID: "run-1", Profile: "personal", BrokerID: id,
			BrokerName: "Broker", Address: "b@example.com", SentAt: sentAt.Add(time.Duration(id) * time.Minute),
		}))
	}
	require.NoError(t, s.Record(ctx, Entry{RunID: "run-2", Profile: "work", BrokerID: 1, BrokerName: "W", Address: "w@example.com"}))

	all, err := s.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, "work", all[0].Profile, "newest first")

	personal, err := s.List(ctx, "personal", 2)
	require.NoError(t, err)
	require.Len(t, personal, 2)
	require.Equal(t, 5, personal[0].BrokerID)
	require.Equal(t, 4, personal[1].BrokerID)
	require.True(t, personal[0].SentAt.Equal(sentAt.Add(5*time.Minute)))
	require.Equal(t, "run-1", personal[0].RunID)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), Entry{RunID: "r", Profile: "p", BrokerID: 42, BrokerName: "B", Address: "b@example.com"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	id, ok, err := s.LastSent(context.Background(), "p")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 42, id)
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := Open(" ")
	require.Error(t, err)
}
