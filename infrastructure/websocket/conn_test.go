package websocket

import (
	"chat-relay/errors"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestConn_Send_Queues_Until_Closed(t *testing.T) {
	req := require.New(t)
	conn := NewConn(nil, logs.GetLoggerFromLevel(slog.LevelDebug), Settings{SendBufferSize: 1})

	req.NoError(conn.Send(context.Background(), []byte("one")))
	req.Equal([]byte("one"), <-conn.send)

	req.NoError(conn.Close())
	req.NoError(conn.Close())
	req.ErrorIs(conn.Send(context.Background(), []byte("two")), errors.ErrConnectionClosed)
	select {
	case <-conn.Done():
	default:
		req.Fail("done should be closed")
	}
}

func TestConn_Send_Full_Buffer_Waits_For_Context(t *testing.T) {
	req := require.New(t)
	conn := NewConn(nil, logs.GetLoggerFromLevel(slog.LevelDebug), Settings{SendBufferSize: 1})
	req.NoError(conn.Send(context.Background(), []byte("one")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req.ErrorIs(conn.Send(ctx, []byte("two")), context.DeadlineExceeded)
}

func TestConn_Send_Unblocks_On_Close(t *testing.T) {
	req := require.New(t)
	conn := NewConn(nil, logs.GetLoggerFromLevel(slog.LevelDebug), Settings{SendBufferSize: 1})
	req.NoError(conn.Send(context.Background(), []byte("one")))

	result := make(chan error, 1)
	go func() { result <- conn.Send(context.Background(), []byte("two")) }()
	time.Sleep(20 * time.Millisecond)
	_ = conn.Close()

	select {
	case err := <-result:
		req.ErrorIs(err, errors.ErrConnectionClosed)
	case <-time.After(time.Second):
		req.Fail("send still blocked after close")
	}
}

func TestRateLimiter_Refills_Over_Time(t *testing.T) {
	req := require.New(t)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(2, time.Second)
	limiter.lastCheck = now
	limiter.now = func() time.Time { return now }

	// Given a full bucket of two tokens
	req.True(limiter.allow())
	req.True(limiter.allow())
	// Then the third message is refused
	req.False(limiter.allow())

	// When half the interval elapses, one token is back
	now = now.Add(500 * time.Millisecond)
	req.True(limiter.allow())
	req.False(limiter.allow())

	// And a long pause never exceeds the burst
	now = now.Add(time.Minute)
	req.True(limiter.allow())
	req.True(limiter.allow())
	req.False(limiter.allow())
}

func TestOriginPolicy(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no policy, no origin", nil, "", true},
		{"no policy, same host", nil, "http://example.com", true},
		{"no policy, other host", nil, "http://evil.com", false},
		{"listed origin", []string{"https://chat.example"}, "https://chat.example", true},
		{"listed origin, other case", []string{"https://chat.example"}, "HTTPS://Chat.Example", true},
		{"listed origin, other scheme", []string{"https://chat.example"}, "http://chat.example", false},
		{"policy, no origin", []string{"https://chat.example"}, "", false},
		{"invalid entries are ignored", []string{"not an origin", " "}, "http://example.com", true},
		{"wildcard", []string{"*"}, "http://anything.example", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "http://example.com/ws/1", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, NewOriginPolicy(log, tt.allowed).Check(r))
		})
	}
}
