package storage

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var _ contract.MembershipStore = (*GroupRepository)(nil)

// GroupRepository stores groups under "group:{id}". Membership is kept in
// both directions, "member:{group}:{user}" and "user_group:{user}:{group}",
// so that listing members and listing a user's chats are both prefix scans.
type GroupRepository struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) (*GroupRepository, error) {
	seq, err := db.GetSequence([]byte(groupSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("group sequence: %w", err)
	}
	return &GroupRepository{db: db, seq: seq, log: log}, nil
}

func (g *GroupRepository) Close() error {
	return g.seq.Release()
}

// CreateGroup stores the group and its initial members in one transaction.
func (g *GroupRepository) CreateGroup(ctx context.Context, name string, background *string, members ...chat.UserID) (chat.Group, error) {
	id, err := nextID(g.seq)
	if err != nil {
		return chat.Group{}, err
	}
	group := chat.Group{ID: chat.GroupID(id), Name: name, Background: background, CreatedAt: time.Now().UTC()}

	err = update(ctx, g.db, func(txn *badger.Txn) error {
		if err := txn.Set(groupKey(group.ID), EncodeGroup(group)); err != nil {
			return err
		}
		for _, userID := range members {
			if err := setMember(txn, group.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return chat.Group{}, err
	}
	g.log.Debug("Group created", "group_id", group.ID, "members", len(members))
	return group, nil
}

func (g *GroupRepository) GetGroup(ctx context.Context, id chat.GroupID) (chat.Group, error) {
	if err := ctx.Err(); err != nil {
		return chat.Group{}, err
	}
	var group chat.Group
	err := g.db.View(func(txn *badger.Txn) error {
		var err error
		group, err = getGroup(txn, id)
		return err
	})
	return group, err
}

// DeleteGroup removes the group and every membership. Messages are kept.
func (g *GroupRepository) DeleteGroup(ctx context.Context, id chat.GroupID) error {
	return update(ctx, g.db, func(txn *badger.Txn) error {
		if _, err := getGroup(txn, id); err != nil {
			return err
		}
		members, err := listMembers(txn, id)
		if err != nil {
			return err
		}
		for _, userID := range members {
			if err := txn.Delete(memberKey(id, userID)); err != nil {
				return err
			}
			if err := txn.Delete(userGroupKey(userID, id)); err != nil {
				return err
			}
		}
		return txn.Delete(groupKey(id))
	})
}

func (g *GroupRepository) AddMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) error {
	return update(ctx, g.db, func(txn *badger.Txn) error {
		if _, err := getGroup(txn, groupID); err != nil {
			return err
		}
		if _, err := txn.Get(memberKey(groupID, userID)); err == nil {
			return errors.ErrAlreadyMember
		} else if !stderrors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setMember(txn, groupID, userID)
	})
}

func (g *GroupRepository) IsMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var member bool
	err := g.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(groupID, userID))
		switch {
		case err == nil:
			member = true
			return nil
		case stderrors.Is(err, badger.ErrKeyNotFound):
			return nil
		default:
			return err
		}
	})
	return member, err
}

func (g *GroupRepository) ListMembers(ctx context.Context, groupID chat.GroupID) ([]chat.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var members []chat.UserID
	err := g.db.View(func(txn *badger.Txn) error {
		if _, err := getGroup(txn, groupID); err != nil {
			return err
		}
		var err error
		members, err = listMembers(txn, groupID)
		return err
	})
	return members, err
}

// ListUserGroups returns the groups a user belongs to, oldest first.
func (g *GroupRepository) ListUserGroups(ctx context.Context, userID chat.UserID) ([]chat.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var groups []chat.Group
	err := g.db.View(func(txn *badger.Txn) error {
		ids, _, err := scanIDs(txn, userGroupPrefix(userID), false, nil, 0)
		if err != nil {
			return err
		}
		for _, id := range ids {
			group, err := getGroup(txn, chat.GroupID(id))
			if stderrors.Is(err, errors.ErrGroupNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			groups = append(groups, group)
		}
		return nil
	})
	return groups, err
}

func setMember(txn *badger.Txn, groupID chat.GroupID, userID chat.UserID) error {
	if err := txn.Set(memberKey(groupID, userID), nil); err != nil {
		return err
	}
	return txn.Set(userGroupKey(userID, groupID), nil)
}

func listMembers(txn *badger.Txn, groupID chat.GroupID) ([]chat.UserID, error) {
	ids, _, err := scanIDs(txn, memberPrefix(groupID), false, nil, 0)
	if err != nil {
		return nil, err
	}
	members := make([]chat.UserID, 0, len(ids))
	for _, id := range ids {
		members = append(members, chat.UserID(id))
	}
	return members, nil
}

func getGroup(txn *badger.Txn, id chat.GroupID) (chat.Group, error) {
	item, err := txn.Get(groupKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return chat.Group{}, errors.ErrGroupNotFound
	}
	if err != nil {
		return chat.Group{}, err
	}
	var group chat.Group
	err = item.Value(func(val []byte) error {
		group, err = DecodeGroup(val)
		return err
	})
	return group, err
}
