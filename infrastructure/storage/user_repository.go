package storage

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.UserDirectory = (*UserRepository)(nil)

// UserRepository stores accounts under "user:{id}" with a case-insensitive
// "username:{name}" index holding the ID.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewUserRepository(db *badger.DB, log *slog.Logger) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte(userSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq, log: log}, nil
}

func (u *UserRepository) Close() error {
	return u.seq.Release()
}

// CreateUser persists a new account. The password must already be hashed.
func (u *UserRepository) CreateUser(ctx context.Context, username, hashedPassword string) (chat.User, error) {
	id, err := nextID(u.seq)
	if err != nil {
		return chat.User{}, err
	}
	user := chat.User{
		ID:           chat.UserID(id),
		Username:     username,
		PasswordHash: hashedPassword,
		Avatar:       chat.DefaultAvatar,
		CreatedAt:    time.Now().UTC(),
	}

	err = update(ctx, u.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(userKey(user.ID), EncodeUser(user)); err != nil {
			return err
		}
		return txn.Set(usernameKey(username), []byte(strconv.FormatInt(id, 10)))
	})
	if err != nil {
		return chat.User{}, err
	}
	u.log.Debug("User created", "user_id", user.ID)
	return user, nil
}

func (u *UserRepository) GetUser(ctx context.Context, id chat.UserID) (chat.User, error) {
	if err := ctx.Err(); err != nil {
		return chat.User{}, err
	}
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	return user, err
}

func (u *UserRepository) GetUserByUsername(ctx context.Context, username string) (chat.User, error) {
	if err := ctx.Err(); err != nil {
		return chat.User{}, err
	}
	var user chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var id int64
		err = item.Value(func(val []byte) error {
			id, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
		if err != nil {
			return err
		}
		user, err = getUser(txn, chat.UserID(id))
		return err
	})
	return user, err
}

func (u *UserRepository) ListUsers(ctx context.Context) ([]chat.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []chat.User
	err := u.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(UserPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				user, err := DecodeUser(val)
				if err != nil {
					return err
				}
				users = append(users, user)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func getUser(txn *badger.Txn, id chat.UserID) (chat.User, error) {
	item, err := txn.Get(userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.User{}, errors.ErrUserNotFound
	}
	if err != nil {
		return chat.User{}, err
	}
	var user chat.User
	err = item.Value(func(val []byte) error {
		user, err = DecodeUser(val)
		return err
	})
	return user, err
}
