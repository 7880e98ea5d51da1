package internal

import (
	"chat-relay/infrastructure/storage"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugServer_Lists_Entries_Under_Prefix(t *testing.T) {
	req := require.New(t)
	db, err := storage.Open(t.TempDir())
	req.NoError(err)
	defer db.Close()
	users, err := storage.NewUserRepository(db, slog.Default())
	req.NoError(err)
	defer users.Close()
	_, err = users.CreateUser(context.Background(), "alice", "secret-hash")
	req.NoError(err)

	srv := NewDebugServer(slog.Default(), db, ":0", "/inspect", func() any {
		return map[string]int{"active_connections": 3}
	})
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?prefix=user:", nil))

	req.Equal(http.StatusOK, rec.Code)
	body := rec.Body.String()
	req.Contains(body, "alice")
	req.Contains(body, "active_connections")
	req.NotContains(body, "secret-hash")
}
