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

var _ contract.MessageStore = (*MessageRepository)(nil)

// MessageRepository persists messages in BadgerDB.
//
// A message lives under "msg:{id}" and is referenced by an empty index key,
// "msg_group:{group}:{id}" or "msg_recipient:{user}:{id}", so that a history
// page is a reverse prefix scan. IDs come from a badger sequence and only grow,
// so the scan order is the creation order.
type MessageRepository struct {
	db            *badger.DB
	seq           *badger.Sequence
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{
		db:            db,
		seq:           seq,
		log:           log,
		limitMessages: limitMessages,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close returns the leased but unused IDs to the database.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// Create stores a new message. The ID, the timestamp and the edit counter
// are always set here, never trusted from the caller.
func (m *MessageRepository) Create(ctx context.Context, message chat.Message) (chat.Message, error) {
	id, err := nextID(m.seq)
	if err != nil {
		return chat.Message{}, err
	}
	message.ID = chat.MessageID(id)
	message.At = m.now()
	message.Edited = 0

	err = update(ctx, m.db, func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), EncodeMessage(message)); err != nil {
			return err
		}
		if indexKey := targetKey(message); indexKey != nil {
			return txn.Set(indexKey, nil)
		}
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	m.log.Debug("Message stored", "id", message.ID, "author_id", message.AuthorID)
	return message, nil
}

// Update replaces the content and increments the edit counter.
func (m *MessageRepository) Update(ctx context.Context, id chat.MessageID, content string) (chat.Message, error) {
	var updated chat.Message
	err := update(ctx, m.db, func(txn *badger.Txn) error {
		message, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		message.Content = content
		message.Edited++
		updated = message
		return txn.Set(messageKey(id), EncodeMessage(message))
	})
	return updated, err
}

func (m *MessageRepository) Delete(ctx context.Context, id chat.MessageID) error {
	return update(ctx, m.db, func(txn *badger.Txn) error {
		message, err := getMessage(txn, id)
		if err != nil {
			return err
		}
		if indexKey := targetKey(message); indexKey != nil {
			if err := txn.Delete(indexKey); err != nil {
				return err
			}
		}
		return txn.Delete(messageKey(id))
	})
}

func (m *MessageRepository) Get(ctx context.Context, id chat.MessageID) (chat.Message, error) {
	if err := ctx.Err(); err != nil {
		return chat.Message{}, err
	}
	var message chat.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = getMessage(txn, id)
		return err
	})
	return message, err
}

// ListByGroup returns the messages of a group, newest first.
func (m *MessageRepository) ListByGroup(ctx context.Context, groupID chat.GroupID, cursor *string) (chat.Page, error) {
	return m.list(ctx, messageByGroupPrefix(groupID), cursor)
}

// ListByRecipient returns the direct messages received by a user, newest first.
func (m *MessageRepository) ListByRecipient(ctx context.Context, userID chat.UserID, cursor *string) (chat.Page, error) {
	return m.list(ctx, messageByRecipientPrefix(userID), cursor)
}

func (m *MessageRepository) list(ctx context.Context, prefix string, cursor *string) (chat.Page, error) {
	if err := ctx.Err(); err != nil {
		return chat.Page{}, err
	}
	if cursor != nil {
		// Keys are padded, so "5" and its padded form designate the same position
		n, err := strconv.ParseInt(*cursor, 10, 64)
		if err != nil || n < 0 {
			return chat.Page{}, fmt.Errorf("%w: %q", errors.ErrInvalidCursor, *cursor)
		}
		padded := pad(n)
		cursor = &padded
	}
	limit := 0
	if m.limitMessages != nil {
		limit = *m.limitMessages
	}

	var page chat.Page
	err := m.db.View(func(txn *badger.Txn) error {
		ids, next, err := scanIDs(txn, prefix, true, cursor, limit)
		if err != nil {
			return err
		}
		page.NextCursor = next
		page.Messages = make([]chat.Message, 0, len(ids))
		for _, id := range ids {
			message, err := getMessage(txn, chat.MessageID(id))
			if err != nil {
				return err
			}
			page.Messages = append(page.Messages, message)
		}
		return nil
	})
	if err != nil {
		return chat.Page{}, err
	}
	if page.NextCursor != nil {
		m.log.Debug(fmt.Sprintf("Maximum of %d message reached", limit))
	}
	return page, nil
}

func getMessage(txn *badger.Txn, id chat.MessageID) (chat.Message, error) {
	item, err := txn.Get(messageKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Message{}, errors.ErrMessageNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	var message chat.Message
	err = item.Value(func(val []byte) error {
		message, err = DecodeMessage(val)
		return err
	})
	return message, err
}

func targetKey(message chat.Message) []byte {
	id := pad(int64(message.ID))
	switch {
	case message.GroupID != nil:
		return []byte(messageByGroupPrefix(*message.GroupID) + id)
	case message.RecipientID != nil:
		return []byte(messageByRecipientPrefix(*message.RecipientID) + id)
	default:
		return nil
	}
}
