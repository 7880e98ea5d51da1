package services

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/moderation"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	messages    *mocks.MockMessageStore
	memberships *mocks.MockMembershipStore
	users       *mocks.MockUserDirectory
	index       *mocks.MockMessageIndex
	registry    *mocks.MockIRegistry
	events      chan event.Envelope
	svc         *ChatService
}

func newChatFixture(t *testing.T) chatFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.NoError(t, err)

	f := chatFixture{
		messages:    mocks.NewMockMessageStore(ctrl),
		memberships: mocks.NewMockMembershipStore(ctrl),
		users:       mocks.NewMockUserDirectory(ctrl),
		index:       mocks.NewMockMessageIndex(ctrl),
		registry:    mocks.NewMockIRegistry(ctrl),
		events:      make(chan event.Envelope, 10),
	}
	f.svc = NewChatService(log, f.messages, f.memberships, f.users, f.index, f.registry,
		moderator, nil, f.events, 50, time.Second)
	return f
}

var at = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestChatService_PostMessage_To_Group(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)
	stored := chat.Message{ID: 1, Content: "hi", AuthorID: 7, GroupID: &groupID, At: at}
	expected := event.NewMessage{MessagePayload: event.MessagePayload{
		ID: 1, Content: "hi", AuthorID: 7, AuthorUsername: "alice", GroupID: &groupID, Timestamp: at,
	}}

	// Given user 7 is a member of group 42
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), chat.Message{Content: "hi", AuthorID: 7, GroupID: &groupID}).Return(stored, nil)
	f.users.EXPECT().GetUser(gomock.Any(), chat.UserID(7)).Return(chat.User{ID: 7, Username: "alice"}, nil)
	f.registry.EXPECT().Broadcast(gomock.Any(), groupID, expected).Times(1)

	// When posting
	message, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "hi", GroupID: &groupID})

	// Then the stored message is returned and the sinks are fed
	req.NoError(err)
	req.Equal(stored, message)
	req.Len(f.events, 1)
	req.Equal(expected, <-f.events)
}

func TestChatService_PostMessage_Non_Member_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)

	// Given user 3 is not in group 42
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(3)).Return(false, nil)
	// Then nothing is persisted nor broadcast
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 3, Content: "hi", GroupID: &groupID})

	req.ErrorIs(err, errors.ErrNotMember)
	req.Empty(f.events)
}

func TestChatService_PostMessage_Validation(t *testing.T) {
	groupID := chat.GroupID(42)
	userID := chat.UserID(9)

	tests := []struct {
		name    string
		cmd     chat.PostMessageCommand
		wantErr error
	}{
		{"Empty content", chat.PostMessageCommand{AuthorID: 7, Content: "", GroupID: &groupID}, errors.ErrEmptyContent},
		{"Whitespace content", chat.PostMessageCommand{AuthorID: 7, Content: " \n\t", GroupID: &groupID}, errors.ErrEmptyContent},
		{"Content too long", chat.PostMessageCommand{AuthorID: 7, Content: strings.Repeat("é", 51), GroupID: &groupID}, errors.ErrContentTooLong},
		{"Missing author", chat.PostMessageCommand{Content: "hi", GroupID: &groupID}, errors.ErrMissingAuthor},
		{"Missing target", chat.PostMessageCommand{AuthorID: 7, Content: "hi"}, errors.ErrMissingTarget},
		{"Both targets", chat.PostMessageCommand{AuthorID: 7, Content: "hi", GroupID: &groupID, RecipientID: &userID}, errors.ErrAmbiguousTarget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newChatFixture(t)

			_, err := f.svc.PostMessage(context.Background(), tt.cmd)

			req.ErrorIs(err, tt.wantErr)
			req.Empty(f.events)
		})
	}
}

func TestChatService_PostMessage_Direct_Is_Not_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	recipient := chat.UserID(9)
	stored := chat.Message{ID: 3, Content: "psst", AuthorID: 7, RecipientID: &recipient, At: at}

	f.users.EXPECT().GetUser(gomock.Any(), recipient).Return(chat.User{ID: 9, Username: "bob"}, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(stored, nil)
	f.users.EXPECT().GetUser(gomock.Any(), chat.UserID(7)).Return(chat.User{ID: 7, Username: "alice"}, nil)
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	message, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "psst", RecipientID: &recipient})

	req.NoError(err)
	req.Equal(stored, message)
	req.Len(f.events, 1)
}

func TestChatService_PostMessage_Unknown_Recipient(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	recipient := chat.UserID(404)

	f.users.EXPECT().GetUser(gomock.Any(), recipient).Return(chat.User{}, errors.ErrUserNotFound)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "psst", RecipientID: &recipient})

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestChatService_PostMessage_Censors_Content(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)
	var persisted chat.Message

	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, m chat.Message) (chat.Message, error) {
			persisted = m
			m.ID = 1
			return m, nil
		})
	f.users.EXPECT().GetUser(gomock.Any(), chat.UserID(7)).Return(chat.User{}, errors.ErrUserNotFound)
	f.registry.EXPECT().Broadcast(gomock.Any(), groupID, gomock.Any())

	message, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "the b4dger is here", GroupID: &groupID})

	req.NoError(err)
	req.Equal("the ****** is here", persisted.Content)
	req.Equal("the ****** is here", message.Content)
}

func TestChatService_PostMessage_Store_Failure(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)

	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(chat.Message{}, fmt.Errorf("disk full"))
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "hi", GroupID: &groupID})

	req.Error(err)
	req.Equal("service unavailable", errors.PublicMessage(err))
}

func TestChatService_PostMessage_Full_Event_Channel_Does_Not_Block(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)
	for len(f.events) < cap(f.events) {
		f.events <- event.Error{Message: "filler"}
	}

	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(chat.Message{ID: 1, GroupID: &groupID}, nil)
	f.users.EXPECT().GetUser(gomock.Any(), gomock.Any()).Return(chat.User{}, nil)
	f.registry.EXPECT().Broadcast(gomock.Any(), groupID, gomock.Any())

	_, err := f.svc.PostMessage(context.Background(), chat.PostMessageCommand{AuthorID: 7, Content: "hi", GroupID: &groupID})

	req.NoError(err)
	req.Len(f.events, cap(f.events))
}

func TestChatService_EditMessage(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)
	original := chat.Message{ID: 1, Content: "hi", AuthorID: 7, GroupID: &groupID, At: at}
	edited := chat.Message{ID: 1, Content: "x", AuthorID: 7, GroupID: &groupID, At: at, Edited: 1}

	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).Return(original, nil)
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Update(gomock.Any(), chat.MessageID(1), "x").Return(edited, nil)
	f.users.EXPECT().GetUser(gomock.Any(), chat.UserID(7)).Return(chat.User{ID: 7, Username: "alice"}, nil)
	f.registry.EXPECT().Broadcast(gomock.Any(), groupID, event.UpdatedMessage{MessagePayload: event.MessagePayload{
		ID: 1, Content: "x", AuthorID: 7, AuthorUsername: "alice", GroupID: &groupID, Timestamp: at, Edited: 1,
	}})

	message, err := f.svc.EditMessage(context.Background(), chat.EditMessageCommand{RequesterID: 7, MessageID: 1, Content: "x"})

	req.NoError(err)
	req.Equal(1, message.Edited)
}

func TestChatService_EditMessage_By_Other_User_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)

	// Given a message written by user 7
	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).Return(chat.Message{ID: 1, Content: "hi", AuthorID: 7, GroupID: &groupID}, nil)
	// Then user 9 cannot change it
	f.messages.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.EditMessage(context.Background(), chat.EditMessageCommand{RequesterID: 9, MessageID: 1, Content: "x"})

	req.ErrorIs(err, errors.ErrNotAuthorized)
	req.Equal("not authorized", errors.PublicMessage(err))
	req.Empty(f.events)
}

func TestChatService_EditMessage_Unknown_Or_Empty(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(404)).Return(chat.Message{}, errors.ErrMessageNotFound)

	_, err := f.svc.EditMessage(context.Background(), chat.EditMessageCommand{RequesterID: 7, MessageID: 404, Content: "x"})
	req.ErrorIs(err, errors.ErrMessageNotFound)

	_, err = f.svc.EditMessage(context.Background(), chat.EditMessageCommand{RequesterID: 7, MessageID: 1, Content: "  "})
	req.ErrorIs(err, errors.ErrEmptyContent)
}

func TestChatService_DeleteMessage(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)

	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).Return(chat.Message{ID: 1, AuthorID: 7, GroupID: &groupID}, nil)
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.messages.EXPECT().Delete(gomock.Any(), chat.MessageID(1)).Return(nil)
	f.registry.EXPECT().Broadcast(gomock.Any(), groupID, event.DeletedMessage{ID: 1, GroupID: &groupID})

	err := f.svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{RequesterID: 7, MessageID: 1})

	req.NoError(err)
	req.Equal(event.DeletedMessage{ID: 1, GroupID: &groupID}, <-f.events)
}

func TestChatService_DeleteMessage_By_Other_User_Is_Rejected(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)

	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).Return(chat.Message{ID: 1, AuthorID: 7}, nil)
	f.messages.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := f.svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{RequesterID: 9, MessageID: 1})

	req.ErrorIs(err, errors.ErrNotAuthorized)
}

func TestChatService_Author_Who_Left_The_Group_Cannot_Change_Messages(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)

	// Given a message of user 7 in a group user 7 no longer belongs to
	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).
		Return(chat.Message{ID: 1, Content: "hi", AuthorID: 7, GroupID: &groupID}, nil).Times(2)
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(false, nil).Times(2)
	// Then nothing is stored nor broadcast
	f.messages.EXPECT().Update(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	f.messages.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(0)
	f.registry.EXPECT().Broadcast(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.EditMessage(context.Background(), chat.EditMessageCommand{RequesterID: 7, MessageID: 1, Content: "x"})
	req.ErrorIs(err, errors.ErrNotMember)

	err = f.svc.DeleteMessage(context.Background(), chat.DeleteMessageCommand{RequesterID: 7, MessageID: 1})
	req.ErrorIs(err, errors.ErrNotMember)
	req.Empty(f.events)
}

func TestChatService_GetMessages(t *testing.T) {
	groupID := chat.GroupID(42)
	page := chat.Page{Messages: []chat.Message{{ID: 2}, {ID: 1}}, NextCursor: lo.ToPtr("1")}

	t.Run("group history for a member", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
		f.messages.EXPECT().ListByGroup(gomock.Any(), groupID, (*string)(nil)).Return(page, nil)

		got, err := f.svc.GetMessages(context.Background(), chat.GetMessagesCommand{RequesterID: 7, GroupID: &groupID})

		req.NoError(err)
		req.Equal(page, got)
	})

	t.Run("group history for a stranger", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(3)).Return(false, nil)
		f.messages.EXPECT().ListByGroup(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.GetMessages(context.Background(), chat.GetMessagesCommand{RequesterID: 3, GroupID: &groupID})

		req.ErrorIs(err, errors.ErrNotMember)
	})

	t.Run("own inbox only", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		cursor := lo.ToPtr("5")
		f.messages.EXPECT().ListByRecipient(gomock.Any(), chat.UserID(9), cursor).Return(page, nil)

		got, err := f.svc.GetMessages(context.Background(), chat.GetMessagesCommand{RequesterID: 9, RecipientID: lo.ToPtr(chat.UserID(9)), Cursor: cursor})
		req.NoError(err)
		req.Equal(page, got)

		_, err = f.svc.GetMessages(context.Background(), chat.GetMessagesCommand{RequesterID: 7, RecipientID: lo.ToPtr(chat.UserID(9))})
		req.ErrorIs(err, errors.ErrNotAuthorized)
	})

	t.Run("target is required", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)

		_, err := f.svc.GetMessages(context.Background(), chat.GetMessagesCommand{RequesterID: 7})

		req.ErrorIs(err, errors.ErrMissingTarget)
	})
}

func TestChatService_SearchMessages(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID, otherGroup := chat.GroupID(42), chat.GroupID(5)

	// Given the index knows three ids, one deleted and one moved elsewhere
	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(7)).Return(true, nil)
	f.index.EXPECT().Search(gomock.Any(), groupID, "badger", "en", defaultSearchLimit).
		Return([]chat.MessageID{3, 2, 1}, nil)
	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(3)).Return(chat.Message{ID: 3, GroupID: &groupID}, nil)
	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(2)).Return(chat.Message{}, errors.ErrMessageNotFound)
	f.messages.EXPECT().Get(gomock.Any(), chat.MessageID(1)).Return(chat.Message{ID: 1, GroupID: &otherGroup}, nil)

	// When searching
	messages, err := f.svc.SearchMessages(context.Background(), chat.SearchMessagesCommand{
		RequesterID: 7, GroupID: groupID, Query: " badger ", Lang: "en",
	})

	// Then only the live messages of the group are returned
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal(chat.MessageID(3), messages[0].ID)
}

func TestChatService_SearchMessages_Rejections(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	groupID := chat.GroupID(42)
	f.index.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_, err := f.svc.SearchMessages(context.Background(), chat.SearchMessagesCommand{RequesterID: 7, GroupID: groupID, Query: "  "})
	req.ErrorIs(err, errors.ErrEmptySearchQuery)

	_, err = f.svc.SearchMessages(context.Background(), chat.SearchMessagesCommand{RequesterID: 7, GroupID: groupID, Query: "x", Lang: "english"})
	req.ErrorIs(err, errors.ErrInvalidArgument)

	_, err = f.svc.SearchMessages(context.Background(), chat.SearchMessagesCommand{RequesterID: 7, GroupID: groupID, Query: "x", Limit: 1000})
	req.ErrorIs(err, errors.ErrInvalidArgument)

	f.memberships.EXPECT().IsMember(gomock.Any(), groupID, chat.UserID(3)).Return(false, nil)
	_, err = f.svc.SearchMessages(context.Background(), chat.SearchMessagesCommand{RequesterID: 3, GroupID: groupID, Query: "x"})
	req.ErrorIs(err, errors.ErrNotMember)
}
