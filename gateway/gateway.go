// Package gateway runs the protocol of one live connection: it subscribes the
// connection to its group, turns inbound events into chat operations and
// reports failures to the sender only.
package gateway

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
)

type State int32

const (
	Connecting State = iota
	Subscribed
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// MessageGateway is owned by the goroutine reading its connection: events are
// handled one at a time, in arrival order. Close may be called from anywhere.
type MessageGateway struct {
	log      *slog.Logger
	registry contract.IRegistry
	chat     services.IChatService
	monitor  *observability.Monitor
	conn     contract.Connection
	groupID  chat.GroupID
	userID   chat.UserID

	// mu orders the transitions, state lets Handle read without blocking
	mu    sync.Mutex
	state atomic.Int32
}

func NewMessageGateway(log *slog.Logger, registry contract.IRegistry, chatService services.IChatService,
	monitor *observability.Monitor, conn contract.Connection, groupID chat.GroupID, userID chat.UserID) *MessageGateway {
	return &MessageGateway{
		log:      log.With("group_id", groupID, "user_id", userID, "conn_id", conn.ID()),
		registry: registry,
		chat:     chatService,
		monitor:  monitor,
		conn:     conn,
		groupID:  groupID,
		userID:   userID,
	}
}

func (g *MessageGateway) State() State {
	return State(g.state.Load())
}

// Open subscribes the accepted connection to its group.
func (g *MessageGateway) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.State() != Connecting {
		return errors.ErrGatewayClosed
	}
	g.registry.Subscribe(g.groupID, g.conn)
	g.state.Store(int32(Subscribed))
	g.monitor.ConnectionOpened()
	g.log.Info("Connection subscribed")
	return nil
}

// Handle processes one inbound frame. Rejected events are answered with an
// error envelope and leave the gateway subscribed; the returned error is only
// set when the gateway cannot go on.
func (g *MessageGateway) Handle(ctx context.Context, raw []byte) error {
	if g.State() != Subscribed {
		return errors.ErrGatewayClosed
	}

	in, err := event.DecodeInbound(raw)
	if err == nil {
		err = g.dispatch(ctx, in)
	}
	if err != nil {
		return g.Reject(ctx, err)
	}
	return nil
}

// Reject answers the sender alone with the public text of err.
func (g *MessageGateway) Reject(ctx context.Context, err error) error {
	g.monitor.EventRejected()
	if errors.MapToHTTPStatus(err) == http.StatusInternalServerError {
		g.log.Error("Event failed", "error", err)
	} else {
		g.log.Debug("Event rejected", "error", err)
	}

	payload, encodeErr := event.Encode(event.Error{Message: errors.PublicMessage(err)})
	if encodeErr != nil {
		return encodeErr
	}
	if sendErr := g.conn.Send(ctx, payload); sendErr != nil {
		return fmt.Errorf("%w: %v", errors.ErrConnectionClosed, sendErr)
	}
	return nil
}

func (g *MessageGateway) dispatch(ctx context.Context, in event.Inbound) error {
	author, err := g.author(in)
	if err != nil {
		return err
	}

	switch evt := in.(type) {
	case event.PostEvent:
		_, err = g.chat.PostMessage(ctx, chat.PostMessageCommand{
			AuthorID: author,
			Content:  evt.Content,
			GroupID:  &g.groupID,
		})
	case event.EditEvent:
		_, err = g.chat.EditMessage(ctx, chat.EditMessageCommand{
			RequesterID: author,
			MessageID:   evt.MessageID,
			Content:     evt.Content,
		})
	case event.DeleteEvent:
		err = g.chat.DeleteMessage(ctx, chat.DeleteMessageCommand{
			RequesterID: author,
			MessageID:   evt.MessageID,
		})
	default:
		err = fmt.Errorf("%w: %T", errors.ErrUnknownEvent, in)
	}
	return err
}

// author resolves who is writing. A frame may omit its author; it may not
// speak for someone else than the authenticated user.
func (g *MessageGateway) author(in event.Inbound) (chat.UserID, error) {
	claimed := in.Author()
	switch {
	case g.userID == 0 && claimed == 0:
		return 0, errors.ErrMissingAuthor
	case g.userID == 0:
		return claimed, nil
	case claimed == 0 || claimed == g.userID:
		return g.userID, nil
	default:
		return 0, errors.ErrNotAuthorized
	}
}

// Close unsubscribes and closes the connection. Only the first call has an effect.
func (g *MessageGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	previous := State(g.state.Swap(int32(Closed)))
	if previous == Closed {
		return
	}
	if previous == Subscribed {
		g.registry.Unsubscribe(g.groupID, g.conn)
		g.monitor.ConnectionClosed()
	}
	if err := g.conn.Close(); err != nil {
		g.log.Debug("Closing connection", "error", err)
	}
	g.log.Info("Connection closed", "from", previous.String())
}
