package services

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newGroupService(t *testing.T) (*GroupService, *mocks.MockIGroupRepository, *mocks.MockIUserRepository) {
	ctrl := gomock.NewController(t)
	groups := mocks.NewMockIGroupRepository(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)
	return NewGroupService(logs.GetLoggerFromLevel(slog.LevelDebug), groups, users), groups, users
}

func TestGroupService_CreateGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes the first member", func(t *testing.T) {
		req := require.New(t)
		svc, groups, _ := newGroupService(t)
		background := lo.ToPtr("#000000")
		groups.EXPECT().CreateGroup(ctx, "friends", background, chat.UserID(7)).
			Return(chat.Group{ID: 42, Name: "friends", Background: background}, nil)

		group, err := svc.CreateGroup(ctx, 7, " friends ", background)

		req.NoError(err)
		req.Equal(chat.GroupID(42), group.ID)
	})

	t.Run("name is required", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newGroupService(t)

		_, err := svc.CreateGroup(ctx, 7, "   ", nil)

		req.ErrorIs(err, errors.ErrInvalidArgument)
	})
}

func TestGroupService_AddUser(t *testing.T) {
	ctx := context.Background()

	t.Run("member adds a registered user", func(t *testing.T) {
		req := require.New(t)
		svc, groups, users := newGroupService(t)
		groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil)
		groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(7)).Return(true, nil)
		users.EXPECT().GetUser(ctx, chat.UserID(9)).Return(chat.User{ID: 9}, nil)
		groups.EXPECT().AddMember(ctx, chat.GroupID(42), chat.UserID(9)).Return(nil)

		req.NoError(svc.AddUser(ctx, 7, 42, 9))
	})

	t.Run("unknown group", func(t *testing.T) {
		req := require.New(t)
		svc, groups, _ := newGroupService(t)
		groups.EXPECT().GetGroup(ctx, chat.GroupID(404)).Return(chat.Group{}, errors.ErrGroupNotFound)

		req.ErrorIs(svc.AddUser(ctx, 7, 404, 9), errors.ErrNotFound)
	})

	t.Run("stranger cannot add anybody", func(t *testing.T) {
		req := require.New(t)
		svc, groups, _ := newGroupService(t)
		groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil)
		groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(3)).Return(false, nil)
		groups.EXPECT().AddMember(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		req.ErrorIs(svc.AddUser(ctx, 3, 42, 3), errors.ErrNotMember)
	})

	t.Run("unknown user", func(t *testing.T) {
		req := require.New(t)
		svc, groups, users := newGroupService(t)
		groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil)
		groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(7)).Return(true, nil)
		users.EXPECT().GetUser(ctx, chat.UserID(404)).Return(chat.User{}, errors.ErrUserNotFound)

		req.ErrorIs(svc.AddUser(ctx, 7, 42, 404), errors.ErrUserNotFound)
	})

	t.Run("already a member", func(t *testing.T) {
		req := require.New(t)
		svc, groups, users := newGroupService(t)
		groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil)
		groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(7)).Return(true, nil)
		users.EXPECT().GetUser(ctx, chat.UserID(9)).Return(chat.User{ID: 9}, nil)
		groups.EXPECT().AddMember(ctx, chat.GroupID(42), chat.UserID(9)).Return(errors.ErrAlreadyMember)

		req.ErrorIs(svc.AddUser(ctx, 7, 42, 9), errors.ErrAlreadyMember)
	})
}

func TestGroupService_DeleteGroup(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, groups, _ := newGroupService(t)

	groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil).Times(2)
	groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(3)).Return(false, nil)
	groups.EXPECT().IsMember(ctx, chat.GroupID(42), chat.UserID(7)).Return(true, nil)
	groups.EXPECT().DeleteGroup(ctx, chat.GroupID(42)).Return(nil).Times(1)

	req.ErrorIs(svc.DeleteGroup(ctx, 3, 42), errors.ErrNotMember)
	req.NoError(svc.DeleteGroup(ctx, 7, 42))
}

func TestGroupService_ListUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, groups, users := newGroupService(t)

	groups.EXPECT().GetGroup(ctx, chat.GroupID(42)).Return(chat.Group{ID: 42}, nil)
	groups.EXPECT().ListMembers(ctx, chat.GroupID(42)).Return([]chat.UserID{7, 9}, nil)
	users.EXPECT().GetUser(ctx, chat.UserID(7)).Return(chat.User{ID: 7, Username: "alice"}, nil)
	users.EXPECT().GetUser(ctx, chat.UserID(9)).Return(chat.User{ID: 9, Username: "bob"}, nil)

	members, err := svc.ListUsers(ctx, 42)

	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, lo.Map(members, func(u chat.User, _ int) string { return u.Username }))
}

func TestGroupService_ListChats(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc, groups, users := newGroupService(t)

	users.EXPECT().GetUser(ctx, chat.UserID(7)).Return(chat.User{ID: 7}, nil)
	groups.EXPECT().ListUserGroups(ctx, chat.UserID(7)).Return([]chat.Group{
		{ID: 1, Name: "friends"},
		{ID: 2, Name: "Chat with bob", Background: lo.ToPtr(chat.PrivateChatBackground)},
	}, nil)

	chats, err := svc.ListChats(ctx, 7)

	req.NoError(err)
	req.Equal([]chat.Chat{
		{ID: 1, Name: "friends", Type: chat.GroupChat},
		{ID: 2, Name: "Chat with bob", Type: chat.GroupChat, Background: lo.ToPtr(chat.PrivateChatBackground)},
	}, chats)
}

func TestGroupService_CreatePrivateChat(t *testing.T) {
	ctx := context.Background()

	t.Run("two member group named after the recipient", func(t *testing.T) {
		req := require.New(t)
		svc, groups, users := newGroupService(t)
		background := lo.ToPtr(chat.PrivateChatBackground)
		users.EXPECT().GetUser(ctx, chat.UserID(7)).Return(chat.User{ID: 7, Username: "alice"}, nil)
		users.EXPECT().GetUser(ctx, chat.UserID(9)).Return(chat.User{ID: 9, Username: "bob"}, nil)
		groups.EXPECT().CreateGroup(ctx, "Chat with bob", background, chat.UserID(7), chat.UserID(9)).
			Return(chat.Group{ID: 12, Name: "Chat with bob", Background: background}, nil)

		created, err := svc.CreatePrivateChat(ctx, 7, 7, 9)

		req.NoError(err)
		req.Equal(chat.Chat{ID: 12, Name: "Chat with bob", Type: chat.PrivateChat, Background: background}, created)
	})

	t.Run("only the caller can open it", func(t *testing.T) {
		req := require.New(t)
		svc, groups, _ := newGroupService(t)
		groups.EXPECT().CreateGroup(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.CreatePrivateChat(ctx, 3, 7, 9)

		req.ErrorIs(err, errors.ErrNotAuthorized)
	})

	t.Run("not with oneself", func(t *testing.T) {
		req := require.New(t)
		svc, _, _ := newGroupService(t)

		_, err := svc.CreatePrivateChat(ctx, 7, 7, 7)

		req.ErrorIs(err, errors.ErrInvalidArgument)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		req := require.New(t)
		svc, _, users := newGroupService(t)
		users.EXPECT().GetUser(ctx, chat.UserID(7)).Return(chat.User{ID: 7}, nil)
		users.EXPECT().GetUser(ctx, chat.UserID(404)).Return(chat.User{}, errors.ErrUserNotFound)

		_, err := svc.CreatePrivateChat(ctx, 7, 7, 404)

		req.ErrorIs(err, errors.ErrUserNotFound)
	})
}
