package test

import (
	"bytes"
	"chat-relay/auth"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/websocket"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const password = "Sup3r-Secret!"

type relay struct {
	server   *httptest.Server
	registry *runtime.Registry
}

// startRelay wires the whole stack in process, background workers included.
func startRelay(t *testing.T) relay {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := storage.Open(t.TempDir())
	req.NoError(err)
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	messages, err := storage.NewMessageRepository(db, log, nil)
	req.NoError(err)
	users, err := storage.NewUserRepository(db, log)
	req.NoError(err)
	groups, err := storage.NewGroupRepository(db, log)
	req.NoError(err)
	index := storage.NewMessageIndex(writer, log)

	censored, err := moderation.NewCensoredLoader(moderation.Dictionaries).LoadAll("censored", "darn")
	req.NoError(err)
	moderator, err := moderation.NewModerator(censored.Words, '*', log)
	req.NoError(err)

	monitor := observability.NewMonitor(log)
	registry := runtime.NewRegistry(log, monitor, time.Second)
	monitor.TrackGroups(registry.Len)
	events := make(chan event.Envelope, 16)
	tokens := auth.NewTokenManager("integration-secret", time.Hour)
	chatService := services.NewChatService(log, messages, groups, users, index, registry, moderator, monitor, events, 1000, time.Second)
	authService := services.NewAuthService(log, users, tokens)

	ctx, cancel := context.WithCancel(context.Background())
	supervisor := workers.NewSupervisor(log, 50*time.Millisecond).Add(
		workers.NewEventFanout(log, events, time.Second, sink.NewIndexSink(index, log)),
		workers.NewHealthMonitoringWorker(log, monitor, 50*time.Millisecond),
		workers.NewChannelCapacityWorker(log, monitor, 50*time.Millisecond, 2,
			workers.NamedChannel{Name: "events", Channel: events}),
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		supervisor.Run(ctx)
	}()

	mux := http.NewServeMux()
	rest.NewAPI(log, authService, services.NewUserService(log, users), services.NewGroupService(log, groups, users),
		chatService, tokens, monitor).Register(mux)
	mux.Handle("GET /ws/{groupID}", websocket.NewHandler(ctx, log, registry, chatService, authService, monitor,
		websocket.Settings{
			SendBufferSize:  16,
			MaxMessageSize:  4096,
			WriteWait:       time.Second,
			PongWait:        5 * time.Second,
			RateLimitBurst:  100,
			RateLimitRefill: time.Second,
		}))
	server := httptest.NewServer(rest.Chain(mux, rest.NewRecoverer(log), rest.NewRequestLogger(log)))

	t.Cleanup(func() {
		server.Close()
		cancel()
		supervisor.Stop()
		<-done
		_ = writer.Close()
		_ = messages.Close()
		_ = users.Close()
		_ = groups.Close()
		_ = db.Close()
	})
	return relay{server: server, registry: registry}
}

func (r relay) call(t *testing.T, method, path, token string, body, out any) int {
	req := require.New(t)
	raw, err := json.Marshal(body)
	req.NoError(err)
	httpReq, err := http.NewRequest(method, r.server.URL+path, bytes.NewReader(raw))
	req.NoError(err)
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(httpReq)
	req.NoError(err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		req.NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (r relay) login(t *testing.T, username string) (int64, string) {
	req := require.New(t)
	credentials := map[string]string{"username": username, "password": password}
	req.Equal(http.StatusOK, r.call(t, http.MethodPost, "/users", "", credentials, nil))
	var token struct {
		UserID      int64  `json:"user_id"`
		AccessToken string `json:"access_token"`
	}
	req.Equal(http.StatusOK, r.call(t, http.MethodPost, "/login", "", credentials, &token))
	return token.UserID, token.AccessToken
}

func (r relay) dial(t *testing.T, groupID int64, token string) *gorilla.Conn {
	url := fmt.Sprintf("ws%s/ws/%d?token=%s", strings.TrimPrefix(r.server.URL, "http"), groupID, token)
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

type frame struct {
	Type string `json:"type"`
	Data struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
	} `json:"data"`
	Error string `json:"error"`
}

func read(t *testing.T, conn *gorilla.Conn) frame {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func Test_Scenario(t *testing.T) {
	req := require.New(t)
	r := startRelay(t)

	// 1. Two users share a group
	_, aliceToken := r.login(t, "alice")
	bobID, bobToken := r.login(t, "bob")
	var group struct {
		ID int64 `json:"id"`
	}
	req.Equal(http.StatusOK, r.call(t, http.MethodPost, "/groups", aliceToken, map[string]string{"name": "friends"}, &group))
	req.Equal(http.StatusOK, r.call(t, http.MethodPost,
		fmt.Sprintf("/groups/%d/add_user?user_id=%d", group.ID, bobID), aliceToken, nil, nil))

	// 2. Both join the live group
	alice := r.dial(t, group.ID, aliceToken)
	bob := r.dial(t, group.ID, bobToken)
	req.Eventually(func() bool {
		return r.registry.Members(chat.GroupID(group.ID)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// 3. A censored post is delivered to both, masked
	req.NoError(alice.WriteJSON(map[string]string{"type": "new_message", "content": "darn rain again"}))
	var posted frame
	for _, conn := range []*gorilla.Conn{alice, bob} {
		posted = read(t, conn)
		req.Equal("new_message", posted.Type)
		req.Equal("**** rain again", posted.Data.Content)
	}

	// 4. The fan-out worker indexes the message in the background
	searchPath := fmt.Sprintf("/messages/search?group_id=%d&q=rain", group.ID)
	req.Eventually(func() bool {
		var found []struct {
			ID int64 `json:"id"`
		}
		code := r.call(t, http.MethodGet, searchPath, bobToken, nil, &found)
		return code == http.StatusOK && len(found) == 1 && found[0].ID == posted.Data.ID
	}, 5*time.Second, 20*time.Millisecond)

	// 5. Deleting the message broadcasts it and removes it from the index
	req.NoError(alice.WriteJSON(map[string]any{"type": "delete_message", "messageID": posted.Data.ID}))
	for _, conn := range []*gorilla.Conn{alice, bob} {
		f := read(t, conn)
		req.Equal("deleted_message", f.Type)
		req.Equal(posted.Data.ID, f.Data.ID)
	}
	req.Eventually(func() bool {
		var found []struct{}
		code := r.call(t, http.MethodGet, searchPath, bobToken, nil, &found)
		return code == http.StatusOK && len(found) == 0
	}, 5*time.Second, 20*time.Millisecond)

	// 6. The sampling workers feed the stats endpoint
	req.Eventually(func() bool {
		var stats observability.Stats
		if r.call(t, http.MethodGet, "/stats", aliceToken, nil, &stats) != http.StatusOK {
			return false
		}
		queue, ok := stats.Queues["events"]
		return ok && queue.Capacity == 16 && stats.Process.PID > 0 &&
			stats.ActiveConnections == 2 && stats.MessagesCreated == 1 && stats.MessagesDeleted == 1
	}, 5*time.Second, 20*time.Millisecond)
}
