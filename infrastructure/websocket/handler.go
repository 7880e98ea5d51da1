package websocket

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/gateway"
	"chat-relay/observability"
	"chat-relay/services"
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

// Authenticator resolves the user behind a bearer token.
type Authenticator interface {
	Authenticate(token string) (chat.UserID, error)
}

// Handler upgrades GET /ws/{groupID} requests into live connections bound to the group.
type Handler struct {
	ctx      context.Context
	log      *slog.Logger
	registry contract.IRegistry
	chat     services.IChatService
	auth     Authenticator
	monitor  *observability.Monitor
	settings Settings
	upgrader websocket.Upgrader
}

// NewHandler binds every connection to ctx: they are all closed once it is done.
func NewHandler(ctx context.Context, log *slog.Logger, registry contract.IRegistry, chatService services.IChatService,
	authenticator Authenticator, monitor *observability.Monitor, settings Settings) *Handler {
	policy := NewOriginPolicy(log, settings.AllowedOrigins)
	return &Handler{
		ctx:      ctx,
		log:      log,
		registry: registry,
		chat:     chatService,
		auth:     authenticator,
		monitor:  monitor,
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.Check,
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("groupID"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, errors.ErrInvalidArgument.Error(), http.StatusBadRequest)
		return
	}
	groupID := chat.GroupID(id)

	userID, err := h.auth.Authenticate(auth.BearerToken(r))
	if err != nil {
		h.log.Debug("Rejected live connection", "group_id", groupID, "error", err)
		http.Error(w, errors.PublicMessage(err), errors.MapToHTTPStatus(err))
		return
	}

	// The upgrader answers the client itself on failure
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Upgrade failed", "group_id", groupID, "error", err)
		return
	}

	conn := NewConn(ws, h.log, h.settings)
	gw := gateway.NewMessageGateway(h.log, h.registry, h.chat, h.monitor, conn, groupID, userID)
	if err := gw.Open(); err != nil {
		_ = ws.Close()
		return
	}

	go conn.writePump()
	go conn.readPump(h.ctx, gw)
	go func() {
		select {
		case <-h.ctx.Done():
			gw.Close()
		case <-conn.Done():
		}
	}()
}
