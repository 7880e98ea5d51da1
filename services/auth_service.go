package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type IAuthService interface {
	Register(ctx context.Context, username, password string) (chat.User, error)
	Login(ctx context.Context, username, password string) (Session, error)
	Authenticate(token string) (chat.UserID, error)
}

var _ IAuthService = (*AuthService)(nil)

type AuthService struct {
	log            *slog.Logger
	userRepository contract.IUserRepository
	tokens         *auth.TokenManager
}

type Token string

func (t Token) String() string {
	return string(t)
}

// Session is what a successful login hands back to the client.
type Session struct {
	AccessToken Token
	UserID      chat.UserID
}

func NewAuthService(log *slog.Logger, repo contract.IUserRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{log: log, userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (chat.User, error) {
	// 1. Validate business rules before any expensive cryptographic operation
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return chat.User{}, err
	}

	// 2. Hash the password using Argon2id
	// Done in the service layer to keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return chat.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	user, err := s.userRepository.CreateUser(ctx, username, hashedPassword)
	if err != nil {
		return chat.User{}, err // ErrUserAlreadyExists when the name is taken
	}
	s.log.Info("User registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (Session, error) {
	// 1. Retrieve user by username from storage
	user, err := s.userRepository.GetUserByUsername(ctx, username)
	if err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			s.log.Error("Unable to read user", "error", err)
		}
		// Generic error to prevent user enumeration attacks
		return Session{}, errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		s.log.Warn("Login failed", "user_id", user.ID)
		return Session{}, errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: Token(token), UserID: user.ID}, nil
}

func (s *AuthService) Authenticate(token string) (chat.UserID, error) {
	return s.tokens.Authenticate(token)
}
