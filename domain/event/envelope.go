// Package event defines what travels over a live connection: the envelopes
// pushed to clients and the events they send back.
package event

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"
)

type Type string

const (
	NewMessageType     Type = "new_message"
	UpdatedMessageType Type = "updated_message"
	DeletedMessageType Type = "deleted_message"
	ErrorType          Type = "error"
)

// Envelope is an outbound notification. The set of implementations is closed:
// NewMessage, UpdatedMessage, DeletedMessage and Error.
type Envelope interface {
	Type() Type
	sealed()
}

// MessagePayload is the client view of a stored message.
type MessagePayload struct {
	ID             chat.MessageID `json:"id"`
	Content        string         `json:"content"`
	AuthorID       chat.UserID    `json:"author_id"`
	AuthorUsername string         `json:"author_username"`
	GroupID        *chat.GroupID  `json:"group_id"`
	RecipientID    *chat.UserID   `json:"recipient_id,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Edited         int            `json:"edited"`
}

type NewMessage struct {
	MessagePayload
}

type UpdatedMessage struct {
	MessagePayload
}

type DeletedMessage struct {
	ID      chat.MessageID
	GroupID *chat.GroupID
}

// Error is only ever sent to the connection whose event caused it.
type Error struct {
	Message string
}

func (NewMessage) Type() Type     { return NewMessageType }
func (UpdatedMessage) Type() Type { return UpdatedMessageType }
func (DeletedMessage) Type() Type { return DeletedMessageType }
func (Error) Type() Type          { return ErrorType }

func (NewMessage) sealed()     {}
func (UpdatedMessage) sealed() {}
func (DeletedMessage) sealed() {}
func (Error) sealed()          {}

// ToPayload builds the payload from the stored message, never from client input.
func ToPayload(m chat.Message, authorUsername string) MessagePayload {
	return MessagePayload{
		ID:             m.ID,
		Content:        m.Content,
		AuthorID:       m.AuthorID,
		AuthorUsername: authorUsername,
		GroupID:        m.GroupID,
		RecipientID:    m.RecipientID,
		Timestamp:      m.At,
		Edited:         m.Edited,
	}
}

type dataFrame struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

type errorFrame struct {
	Type  Type   `json:"type"`
	Error string `json:"error"`
}

type deletedData struct {
	ID chat.MessageID `json:"id"`
}

// Encode renders an envelope as the JSON text frame sent to clients.
func Encode(e Envelope) ([]byte, error) {
	switch v := e.(type) {
	case NewMessage:
		return json.Marshal(dataFrame{Type: NewMessageType, Data: v.MessagePayload})
	case UpdatedMessage:
		return json.Marshal(dataFrame{Type: UpdatedMessageType, Data: v.MessagePayload})
	case DeletedMessage:
		return json.Marshal(dataFrame{Type: DeletedMessageType, Data: deletedData{ID: v.ID}})
	case Error:
		return json.Marshal(errorFrame{Type: ErrorType, Error: v.Message})
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEnvelope, e)
	}
}

// GroupOf returns the group an envelope is addressed to, if any.
func GroupOf(e Envelope) (chat.GroupID, bool) {
	var g *chat.GroupID
	switch v := e.(type) {
	case NewMessage:
		g = v.GroupID
	case UpdatedMessage:
		g = v.GroupID
	case DeletedMessage:
		g = v.GroupID
	}
	if g == nil {
		return 0, false
	}
	return *g, true
}
