package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"log/slog"
)

type IUserService interface {
	GetUser(ctx context.Context, id chat.UserID) (chat.User, error)
	ListUsers(ctx context.Context) ([]chat.User, error)
}

var _ IUserService = (*UserService)(nil)

type UserService struct {
	log   *slog.Logger
	users contract.IUserRepository
}

func NewUserService(log *slog.Logger, users contract.IUserRepository) *UserService {
	return &UserService{log: log, users: users}
}

func (s *UserService) GetUser(ctx context.Context, id chat.UserID) (chat.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]chat.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Error("Unable to list users", "error", err)
		return nil, err
	}
	return users, nil
}
