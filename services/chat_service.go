package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const defaultSearchLimit = 20

type IChatService interface {
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error)
	EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (chat.Message, error)
	DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) error
	GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) (chat.Page, error)
	SearchMessages(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error)
}

var _ IChatService = (*ChatService)(nil)

// ChatService is the single write path for messages: the live gateway and the
// REST API both go through it, so both trigger the same broadcasts.
type ChatService struct {
	log              *slog.Logger
	messages         contract.MessageStore
	memberships      contract.MembershipStore
	users            contract.UserDirectory
	index            contract.MessageIndex
	registry         contract.IRegistry
	moderator        *moderation.Moderator
	monitor          *observability.Monitor
	events           chan<- event.Envelope
	maxContentLength int
	storeTimeout     time.Duration
}

func NewChatService(log *slog.Logger, messages contract.MessageStore, memberships contract.MembershipStore,
	users contract.UserDirectory, index contract.MessageIndex, registry contract.IRegistry,
	moderator *moderation.Moderator, monitor *observability.Monitor, events chan<- event.Envelope,
	maxContentLength int, storeTimeout time.Duration) *ChatService {
	return &ChatService{
		log:              log,
		messages:         messages,
		memberships:      memberships,
		users:            users,
		index:            index,
		registry:         registry,
		moderator:        moderator,
		monitor:          monitor,
		events:           events,
		maxContentLength: maxContentLength,
		storeTimeout:     storeTimeout,
	}
}

// PostMessage validates, persists and announces a new message.
// Nothing is stored nor broadcast when the author may not write to the target.
func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (chat.Message, error) {
	if cmd.AuthorID == 0 {
		return chat.Message{}, errors.ErrMissingAuthor
	}
	if err := s.checkContent(cmd.Content); err != nil {
		return chat.Message{}, err
	}

	switch {
	case cmd.GroupID != nil && cmd.RecipientID != nil:
		return chat.Message{}, errors.ErrAmbiguousTarget
	case cmd.GroupID != nil:
		if err := s.requireMember(ctx, *cmd.GroupID, cmd.AuthorID); err != nil {
			return chat.Message{}, err
		}
	case cmd.RecipientID != nil:
		if _, err := s.getUser(ctx, *cmd.RecipientID); err != nil {
			return chat.Message{}, s.failure("get recipient", err)
		}
	default:
		return chat.Message{}, errors.ErrMissingTarget
	}

	content, _ := s.moderator.Censor(cmd.Content)
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	message, err := s.messages.Create(storeCtx, chat.Message{
		Content:     content,
		AuthorID:    cmd.AuthorID,
		GroupID:     cmd.GroupID,
		RecipientID: cmd.RecipientID,
	})
	if err != nil {
		return chat.Message{}, s.failure("create message", err)
	}
	s.monitor.MessageCreated()
	s.log.Debug("Message created", "message_id", message.ID, "user_id", message.AuthorID)

	s.announce(ctx, message, event.NewMessage{MessagePayload: s.payload(ctx, message)})
	return message, nil
}

// EditMessage replaces the content of a message owned by the requester.
func (s *ChatService) EditMessage(ctx context.Context, cmd chat.EditMessageCommand) (chat.Message, error) {
	if err := s.checkContent(cmd.Content); err != nil {
		return chat.Message{}, err
	}
	if _, err := s.authorized(ctx, cmd.MessageID, cmd.RequesterID); err != nil {
		return chat.Message{}, err
	}

	content, _ := s.moderator.Censor(cmd.Content)
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	message, err := s.messages.Update(storeCtx, cmd.MessageID, content)
	if err != nil {
		return chat.Message{}, s.failure("update message", err)
	}
	s.monitor.MessageEdited()
	s.log.Debug("Message edited", "message_id", message.ID, "edited", message.Edited)

	s.announce(ctx, message, event.UpdatedMessage{MessagePayload: s.payload(ctx, message)})
	return message, nil
}

// DeleteMessage removes a message owned by the requester.
func (s *ChatService) DeleteMessage(ctx context.Context, cmd chat.DeleteMessageCommand) error {
	message, err := s.authorized(ctx, cmd.MessageID, cmd.RequesterID)
	if err != nil {
		return err
	}

	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	if err := s.messages.Delete(storeCtx, message.ID); err != nil {
		return s.failure("delete message", err)
	}
	s.monitor.MessageDeleted()
	s.log.Debug("Message deleted", "message_id", message.ID)

	s.announce(ctx, message, event.DeletedMessage{ID: message.ID, GroupID: message.GroupID})
	return nil
}

// GetMessages reads one page of a group history or of the requester's inbox, newest first.
func (s *ChatService) GetMessages(ctx context.Context, cmd chat.GetMessagesCommand) (chat.Page, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	switch {
	case cmd.GroupID != nil && cmd.RecipientID != nil:
		return chat.Page{}, errors.ErrAmbiguousTarget
	case cmd.GroupID != nil:
		if err := s.requireMember(ctx, *cmd.GroupID, cmd.RequesterID); err != nil {
			return chat.Page{}, err
		}
		page, err := s.messages.ListByGroup(storeCtx, *cmd.GroupID, cmd.Cursor)
		return page, s.failure("list group messages", err)
	case cmd.RecipientID != nil:
		if *cmd.RecipientID != cmd.RequesterID {
			return chat.Page{}, errors.ErrNotAuthorized
		}
		page, err := s.messages.ListByRecipient(storeCtx, *cmd.RecipientID, cmd.Cursor)
		return page, s.failure("list direct messages", err)
	default:
		return chat.Page{}, errors.ErrMissingTarget
	}
}

// SearchMessages runs a full-text query over the messages of a group the requester belongs to.
func (s *ChatService) SearchMessages(ctx context.Context, cmd chat.SearchMessagesCommand) ([]chat.Message, error) {
	cmd.Query = strings.TrimSpace(cmd.Query)
	if cmd.Query == "" {
		return nil, errors.ErrEmptySearchQuery
	}
	if err := auth.Validate(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidArgument, err)
	}
	if err := s.requireMember(ctx, cmd.GroupID, cmd.RequesterID); err != nil {
		return nil, err
	}
	if cmd.Limit == 0 {
		cmd.Limit = defaultSearchLimit
	}

	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	ids, err := s.index.Search(storeCtx, cmd.GroupID, cmd.Query, cmd.Lang, cmd.Limit)
	if err != nil {
		return nil, s.failure("search messages", err)
	}

	messages := make([]chat.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.Get(storeCtx, id)
		if stderrors.Is(err, errors.ErrMessageNotFound) {
			// The index lags behind deletions
			continue
		}
		if err != nil {
			return nil, s.failure("get message", err)
		}
		// Never leak a message that moved out of the group
		if message.InGroup(cmd.GroupID) {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (s *ChatService) checkContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.ErrEmptyContent
	}
	if s.maxContentLength > 0 && utf8.RuneCountInString(content) > s.maxContentLength {
		return errors.ErrContentTooLong
	}
	return nil
}

func (s *ChatService) requireMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) error {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	member, err := s.memberships.IsMember(storeCtx, groupID, userID)
	if err != nil {
		return s.failure("check membership", err)
	}
	if !member {
		s.log.Debug("Rejected non member", "group_id", groupID, "user_id", userID)
		return errors.ErrNotMember
	}
	return nil
}

// authorized loads the message and checks the requester wrote it and,
// for a group message, still belongs to the group.
func (s *ChatService) authorized(ctx context.Context, id chat.MessageID, requester chat.UserID) (chat.Message, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	message, err := s.messages.Get(storeCtx, id)
	if err != nil {
		return chat.Message{}, s.failure("get message", err)
	}
	if message.AuthorID != requester {
		s.log.Warn("Rejected foreign message change", "message_id", id, "user_id", requester)
		return chat.Message{}, errors.ErrNotAuthorized
	}
	if message.GroupID != nil {
		if err := s.requireMember(ctx, *message.GroupID, requester); err != nil {
			return chat.Message{}, err
		}
	}
	return message, nil
}

func (s *ChatService) getUser(ctx context.Context, id chat.UserID) (chat.User, error) {
	storeCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()
	return s.users.GetUser(storeCtx, id)
}

// payload builds the envelope data from the stored message.
// The author name is a courtesy: it is left empty when it cannot be read.
func (s *ChatService) payload(ctx context.Context, message chat.Message) event.MessagePayload {
	var username string
	if author, err := s.getUser(ctx, message.AuthorID); err == nil {
		username = author.Username
	} else {
		s.log.Debug("Author name unavailable", "user_id", message.AuthorID, "error", err)
	}
	return event.ToPayload(message, username)
}

// announce broadcasts to the live group channel, then hands the envelope to the sinks.
func (s *ChatService) announce(ctx context.Context, message chat.Message, envelope event.Envelope) {
	if message.GroupID != nil {
		s.registry.Broadcast(ctx, *message.GroupID, envelope)
	}
	if s.events == nil {
		return
	}
	select {
	case s.events <- envelope:
	default:
		s.monitor.IndexingDropped()
		s.log.Warn("Event channel full, envelope dropped", "message_id", message.ID, "type", envelope.Type())
	}
}

func (s *ChatService) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// failure logs the errors the client will only see as "service unavailable".
func (s *ChatService) failure(op string, err error) error {
	if err != nil && errors.MapToHTTPStatus(err) == http.StatusInternalServerError {
		s.log.Error("Store failure", "op", op, "error", err)
	}
	return err
}
