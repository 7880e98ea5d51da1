package event

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
)

type InboundType string

const (
	PostInbound   InboundType = "new_message"
	EditInbound   InboundType = "edit_message"
	DeleteInbound InboundType = "delete_message"
)

// Inbound is an event received from a live connection. The set is closed:
// PostEvent, EditEvent and DeleteEvent.
type Inbound interface {
	Author() chat.UserID
	inbound()
}

type PostEvent struct {
	AuthorID chat.UserID
	Content  string
}

type EditEvent struct {
	AuthorID  chat.UserID
	MessageID chat.MessageID
	Content   string
}

type DeleteEvent struct {
	AuthorID  chat.UserID
	MessageID chat.MessageID
}

func (p PostEvent) Author() chat.UserID   { return p.AuthorID }
func (e EditEvent) Author() chat.UserID   { return e.AuthorID }
func (d DeleteEvent) Author() chat.UserID { return d.AuthorID }

func (PostEvent) inbound()   {}
func (EditEvent) inbound()   {}
func (DeleteEvent) inbound() {}

type rawInbound struct {
	Type      InboundType     `json:"type"`
	Content   *string         `json:"content"`
	AuthorID  *chat.UserID    `json:"authorID"`
	MessageID *chat.MessageID `json:"messageID"`
}

// DecodeInbound parses a client frame. A frame without a type is a new message.
// Missing fields are left at their zero value so that the caller reports
// the precise validation error.
func DecodeInbound(raw []byte) (Inbound, error) {
	var r rawInbound
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedEvent, err)
	}
	var author chat.UserID
	if r.AuthorID != nil {
		author = *r.AuthorID
	}
	var content string
	if r.Content != nil {
		content = *r.Content
	}
	var messageID chat.MessageID
	if r.MessageID != nil {
		messageID = *r.MessageID
	}

	switch r.Type {
	case "", PostInbound:
		return PostEvent{AuthorID: author, Content: content}, nil
	case EditInbound:
		if r.MessageID == nil {
			return nil, fmt.Errorf("%w: messageID is required", errors.ErrMalformedEvent)
		}
		return EditEvent{AuthorID: author, MessageID: messageID, Content: content}, nil
	case DeleteInbound:
		if r.MessageID == nil {
			return nil, fmt.Errorf("%w: messageID is required", errors.ErrMalformedEvent)
		}
		return DeleteEvent{AuthorID: author, MessageID: messageID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, r.Type)
	}
}
