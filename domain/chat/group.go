package chat

import (
	"fmt"
	"time"
)

const PrivateChatBackground = "#E5DDD5"

type ChatType string

const (
	GroupChat   ChatType = "group"
	PrivateChat ChatType = "private"
)

type Group struct {
	ID         GroupID
	Name       string
	Background *string
	CreatedAt  time.Time
}

// Chat is the conversation list view of a group.
type Chat struct {
	ID         GroupID
	Name       string
	Type       ChatType
	Background *string
}

func PrivateChatName(recipient string) string {
	return fmt.Sprintf("Chat with %s", recipient)
}
