package rest

import (
	"chat-relay/domain/chat"
	"time"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID       chat.UserID `json:"id"`
	Username string      `json:"username"`
	Avatar   string      `json:"avatar"`
}

type memberResponse struct {
	ID       chat.UserID `json:"id"`
	Username string      `json:"username"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	UserID      chat.UserID `json:"user_id"`
}

type groupRequest struct {
	Name       string  `json:"name"`
	Background *string `json:"background"`
}

type groupResponse struct {
	ID         chat.GroupID `json:"id"`
	Name       string       `json:"name"`
	Background *string      `json:"background"`
}

type chatResponse struct {
	ID         chat.GroupID  `json:"id"`
	Name       string        `json:"name"`
	Type       chat.ChatType `json:"type"`
	Background *string       `json:"background"`
}

type privateChatRequest struct {
	UserID      chat.UserID `json:"user_id"`
	RecipientID chat.UserID `json:"recipient_id"`
}

type messageRequest struct {
	Content     string        `json:"content"`
	GroupID     *chat.GroupID `json:"group_id"`
	RecipientID *chat.UserID  `json:"recipient_id"`
}

type editRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID          chat.MessageID `json:"id"`
	Content     string         `json:"content"`
	AuthorID    chat.UserID    `json:"author_id"`
	GroupID     *chat.GroupID  `json:"group_id"`
	RecipientID *chat.UserID   `json:"recipient_id"`
	Timestamp   time.Time      `json:"timestamp"`
	Edited      int            `json:"edited"`
}

type pageResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *string           `json:"next_cursor"`
}

func toUserResponse(u chat.User, _ int) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

func toMemberResponse(u chat.User, _ int) memberResponse {
	return memberResponse{ID: u.ID, Username: u.Username}
}

func toGroupResponse(g chat.Group) groupResponse {
	return groupResponse{ID: g.ID, Name: g.Name, Background: g.Background}
}

func toChatResponse(c chat.Chat, _ int) chatResponse {
	return chatResponse{ID: c.ID, Name: c.Name, Type: c.Type, Background: c.Background}
}

func toMessageResponse(m chat.Message, _ int) messageResponse {
	return messageResponse{
		ID:          m.ID,
		Content:     m.Content,
		AuthorID:    m.AuthorID,
		GroupID:     m.GroupID,
		RecipientID: m.RecipientID,
		Timestamp:   m.At,
		Edited:      m.Edited,
	}
}
