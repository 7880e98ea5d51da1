// Package chat contains the core concepts of the messaging system:
// users, groups and the messages exchanged between them.
package chat

import (
	"time"
)

type UserID int64
type GroupID int64
type MessageID int64

// Message is a persisted chat message. A message targets either a group or
// a single recipient, never both.
type Message struct {
	ID          MessageID
	Content     string
	AuthorID    UserID
	GroupID     *GroupID
	RecipientID *UserID
	At          time.Time
	Edited      int
}

// InGroup reports whether the message belongs to the given group.
func (m Message) InGroup(groupID GroupID) bool {
	return m.GroupID != nil && *m.GroupID == groupID
}

// Page is one slice of a message history read newest first.
type Page struct {
	Messages   []Message
	NextCursor *string
}
