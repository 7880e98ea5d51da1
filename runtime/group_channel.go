package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"sync"

	"github.com/google/uuid"
)

// groupChannel is the fan-out unit of one group. Its members are guarded by
// its own lock so that groups never contend with each other.
//
// Once the last member leaves the channel is retired: it accepts no new member
// and the registry replaces it on the next subscription.
type groupChannel struct {
	id chat.GroupID

	mu      sync.Mutex
	members map[uuid.UUID]contract.Connection
	retired bool

	// Held for a whole fan-out so every member sees the group's envelopes in the same order.
	sendMu sync.Mutex
}

func newGroupChannel(id chat.GroupID) *groupChannel {
	return &groupChannel{id: id, members: make(map[uuid.UUID]contract.Connection)}
}

// add returns false when the channel has been retired in the meantime.
func (c *groupChannel) add(conn contract.Connection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retired {
		return false
	}
	c.members[conn.ID()] = conn
	return true
}

// remove returns true when this call emptied and retired the channel.
func (c *groupChannel) remove(conn contract.Connection) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.members[conn.ID()]; !ok {
		return false
	}
	delete(c.members, conn.ID())
	if len(c.members) == 0 {
		c.retired = true
		return true
	}
	return false
}

func (c *groupChannel) snapshot() []contract.Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns := make([]contract.Connection, 0, len(c.members))
	for _, conn := range c.members {
		conns = append(conns, conn)
	}
	return conns
}

func (c *groupChannel) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.members)
}

func (c *groupChannel) isRetired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retired
}
