package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"log/slog"
	"strings"

	"github.com/samber/lo"
)

type IGroupService interface {
	CreateGroup(ctx context.Context, creator chat.UserID, name string, background *string) (chat.Group, error)
	GetGroup(ctx context.Context, id chat.GroupID) (chat.Group, error)
	DeleteGroup(ctx context.Context, requester chat.UserID, id chat.GroupID) error
	AddUser(ctx context.Context, requester chat.UserID, groupID chat.GroupID, userID chat.UserID) error
	ListUsers(ctx context.Context, groupID chat.GroupID) ([]chat.User, error)
	ListChats(ctx context.Context, userID chat.UserID) ([]chat.Chat, error)
	CreatePrivateChat(ctx context.Context, requester, userID, recipientID chat.UserID) (chat.Chat, error)
}

var _ IGroupService = (*GroupService)(nil)

// GroupService manages groups and their memberships. Membership changes are
// not pushed to live channels: a connection keeps its subscription until it leaves.
type GroupService struct {
	log    *slog.Logger
	groups contract.IGroupRepository
	users  contract.IUserRepository
}

func NewGroupService(log *slog.Logger, groups contract.IGroupRepository, users contract.IUserRepository) *GroupService {
	return &GroupService{log: log, groups: groups, users: users}
}

// CreateGroup creates the group with its creator as first member.
func (s *GroupService) CreateGroup(ctx context.Context, creator chat.UserID, name string, background *string) (chat.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Group{}, errors.ErrInvalidArgument
	}
	group, err := s.groups.CreateGroup(ctx, name, background, creator)
	if err != nil {
		return chat.Group{}, err
	}
	s.log.Info("Group created", "group_id", group.ID, "user_id", creator)
	return group, nil
}

func (s *GroupService) GetGroup(ctx context.Context, id chat.GroupID) (chat.Group, error) {
	return s.groups.GetGroup(ctx, id)
}

// DeleteGroup is reserved to members. Messages of the group stay in the history.
func (s *GroupService) DeleteGroup(ctx context.Context, requester chat.UserID, id chat.GroupID) error {
	if err := s.requireMember(ctx, id, requester); err != nil {
		return err
	}
	if err := s.groups.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.log.Info("Group deleted", "group_id", id, "user_id", requester)
	return nil
}

// AddUser lets a member bring another registered user into the group.
func (s *GroupService) AddUser(ctx context.Context, requester chat.UserID, groupID chat.GroupID, userID chat.UserID) error {
	if err := s.requireMember(ctx, groupID, requester); err != nil {
		return err
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return err
	}
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.log.Debug("User added to group", "group_id", groupID, "user_id", userID)
	return nil
}

func (s *GroupService) ListUsers(ctx context.Context, groupID chat.GroupID) ([]chat.User, error) {
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	ids, err := s.groups.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	users := make([]chat.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.users.GetUser(ctx, id)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// ListChats returns every group the user belongs to, private chats included.
func (s *GroupService) ListChats(ctx context.Context, userID chat.UserID) ([]chat.Chat, error) {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	groups, err := s.groups.ListUserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(groups, func(g chat.Group, _ int) chat.Chat {
		return chat.Chat{ID: g.ID, Name: g.Name, Type: chat.GroupChat, Background: g.Background}
	}), nil
}

// CreatePrivateChat opens a two member group between userID and recipientID.
// Only userID may open it.
func (s *GroupService) CreatePrivateChat(ctx context.Context, requester, userID, recipientID chat.UserID) (chat.Chat, error) {
	if requester != userID {
		return chat.Chat{}, errors.ErrNotAuthorized
	}
	if userID == recipientID {
		return chat.Chat{}, errors.ErrInvalidArgument
	}
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		return chat.Chat{}, err
	}
	recipient, err := s.users.GetUser(ctx, recipientID)
	if err != nil {
		return chat.Chat{}, err
	}

	name := chat.PrivateChatName(recipient.Username)
	group, err := s.groups.CreateGroup(ctx, name, lo.ToPtr(chat.PrivateChatBackground), userID, recipientID)
	if err != nil {
		return chat.Chat{}, err
	}
	s.log.Info("Private chat created", "group_id", group.ID, "user_id", userID, "recipient_id", recipientID)
	return chat.Chat{ID: group.ID, Name: group.Name, Type: chat.PrivateChat, Background: group.Background}, nil
}

func (s *GroupService) requireMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) error {
	if _, err := s.groups.GetGroup(ctx, groupID); err != nil {
		return err
	}
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotMember
	}
	return nil
}
