package storage

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessageRepository(t *testing.T, db *badger.DB, limit *int) *MessageRepository {
	t.Helper()
	repo, err := NewMessageRepository(db, slog.Default(), limit)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}
