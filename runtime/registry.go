package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var _ contract.IRegistry = (*Registry)(nil)

// Registry maps each group to the live connections subscribed to it.
// The registry lock only guards the lookup table; membership and fan-out
// are synchronized per group.
type Registry struct {
	mu          sync.RWMutex
	channels    map[chat.GroupID]*groupChannel
	log         *slog.Logger
	monitor     *observability.Monitor
	sendTimeout time.Duration
}

func NewRegistry(log *slog.Logger, monitor *observability.Monitor, sendTimeout time.Duration) *Registry {
	return &Registry{
		channels:    make(map[chat.GroupID]*groupChannel),
		log:         log,
		monitor:     monitor,
		sendTimeout: sendTimeout,
	}
}

// Subscribe adds the connection to the group, creating the channel on first use.
// Subscribing the same connection twice has no further effect.
func (r *Registry) Subscribe(groupID chat.GroupID, conn contract.Connection) {
	for {
		// A retired channel refuses the connection: retry on its replacement
		if r.channelFor(groupID).add(conn) {
			r.log.Debug("Connection subscribed", "group_id", groupID, "conn_id", conn.ID())
			return
		}
	}
}

// Unsubscribe removes the connection from the group and drops the channel
// when nobody is left. Unknown connections and groups are ignored.
func (r *Registry) Unsubscribe(groupID chat.GroupID, conn contract.Connection) {
	r.mu.RLock()
	ch, ok := r.channels[groupID]
	r.mu.RUnlock()
	if !ok || !ch.remove(conn) {
		return
	}

	r.mu.Lock()
	// A newer channel may already have taken its place
	if r.channels[groupID] == ch {
		delete(r.channels, groupID)
	}
	r.mu.Unlock()
	r.log.Debug("Group channel removed", "group_id", groupID)
}

// Broadcast sends the envelope to every connection subscribed to the group
// when the call starts. A connection failing to accept it within the send
// timeout is unsubscribed and closed; the others are not affected and the
// caller is never told.
func (r *Registry) Broadcast(ctx context.Context, groupID chat.GroupID, envelope event.Envelope) {
	payload, err := event.Encode(envelope)
	if err != nil {
		r.log.Error("Unable to encode envelope", "group_id", groupID, "error", err)
		return
	}

	r.mu.RLock()
	ch, ok := r.channels[groupID]
	r.mu.RUnlock()
	if !ok {
		r.log.Debug("No live connection for group", "group_id", groupID, "type", envelope.Type())
		return
	}

	// The sender leaving must not abort delivery to the others
	ctx = context.WithoutCancel(ctx)

	ch.sendMu.Lock()
	defer ch.sendMu.Unlock()

	members := ch.snapshot()
	var failed []contract.Connection
	for _, conn := range members {
		sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
		err := conn.Send(sendCtx, payload)
		cancel()
		if err != nil {
			r.log.Warn("Dropping unreachable connection", "group_id", groupID, "conn_id", conn.ID(), "error", err)
			failed = append(failed, conn)
		}
	}
	r.monitor.Broadcast(len(members)-len(failed), len(failed))

	for _, conn := range failed {
		r.Unsubscribe(groupID, conn)
		if err := conn.Close(); err != nil {
			r.log.Debug("Closing pruned connection", "conn_id", conn.ID(), "error", err)
		}
	}
	r.monitor.Pruned(len(failed))
}

// Members returns how many connections are subscribed to the group.
func (r *Registry) Members(groupID chat.GroupID) int {
	r.mu.RLock()
	ch, ok := r.channels[groupID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}
	return ch.size()
}

// Groups lists the groups having at least one live connection, in ascending order.
func (r *Registry) Groups() []chat.GroupID {
	r.mu.RLock()
	channels := make([]*groupChannel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	r.mu.RUnlock()

	groups := make([]chat.GroupID, 0, len(channels))
	for _, ch := range channels {
		if ch.size() > 0 {
			groups = append(groups, ch.id)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}

func (r *Registry) Len() int {
	return len(r.Groups())
}

func (r *Registry) channelFor(groupID chat.GroupID) *groupChannel {
	r.mu.RLock()
	ch, ok := r.channels[groupID]
	r.mu.RUnlock()
	if ok && !ch.isRetired() {
		return ch
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok = r.channels[groupID]
	if !ok || ch.isRetired() {
		ch = newGroupChannel(groupID)
		r.channels[groupID] = ch
	}
	return ch
}
