//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is a live client endpoint. The registry only sends to it and
// never decides its lifetime.
type Connection interface {
	ID() uuid.UUID
	// Send delivers one encoded envelope. It must return once ctx is done.
	Send(ctx context.Context, payload []byte) error
	Close() error
}

type IRegistry interface {
	Subscribe(groupID chat.GroupID, conn Connection)
	Unsubscribe(groupID chat.GroupID, conn Connection)
	Broadcast(ctx context.Context, groupID chat.GroupID, envelope event.Envelope)
}

type MembershipStore interface {
	IsMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) (bool, error)
}

// MessageStore is the durable message log.
// Create assigns the ID and the timestamp and resets the edit counter.
// Update increments the edit counter.
type MessageStore interface {
	Create(ctx context.Context, message chat.Message) (chat.Message, error)
	Update(ctx context.Context, id chat.MessageID, content string) (chat.Message, error)
	Delete(ctx context.Context, id chat.MessageID) error
	Get(ctx context.Context, id chat.MessageID) (chat.Message, error)
	ListByGroup(ctx context.Context, groupID chat.GroupID, cursor *string) (chat.Page, error)
	ListByRecipient(ctx context.Context, userID chat.UserID, cursor *string) (chat.Page, error)
}

type UserDirectory interface {
	GetUser(ctx context.Context, id chat.UserID) (chat.User, error)
}

type MessageIndex interface {
	Index(message chat.Message) error
	Remove(id chat.MessageID) error
	Search(ctx context.Context, groupID chat.GroupID, query, lang string, limit int) ([]chat.MessageID, error)
}

// EventSink receives every envelope that was broadcast, after the fact.
type EventSink interface {
	Consume(ctx context.Context, e event.Envelope) error
}

type IUserRepository interface {
	UserDirectory
	CreateUser(ctx context.Context, username, hashedPassword string) (chat.User, error)
	GetUserByUsername(ctx context.Context, username string) (chat.User, error)
	ListUsers(ctx context.Context) ([]chat.User, error)
}

type IGroupRepository interface {
	MembershipStore
	CreateGroup(ctx context.Context, name string, background *string, members ...chat.UserID) (chat.Group, error)
	GetGroup(ctx context.Context, id chat.GroupID) (chat.Group, error)
	DeleteGroup(ctx context.Context, id chat.GroupID) error
	AddMember(ctx context.Context, groupID chat.GroupID, userID chat.UserID) error
	ListMembers(ctx context.Context, groupID chat.GroupID) ([]chat.UserID, error)
	ListUserGroups(ctx context.Context, userID chat.UserID) ([]chat.Group, error)
}
