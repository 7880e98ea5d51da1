package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_Create_Assigns_Server_Fields(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), nil)

	// When a message arrives with client side values
	created, err := repo.Create(ctx, chat.Message{ID: 999, Content: "hi", AuthorID: 7, GroupID: lo.ToPtr(chat.GroupID(42)), Edited: 5})
	req.NoError(err)

	// Then the store decides the ID, the timestamp and the counter
	req.Equal(chat.MessageID(1), created.ID)
	req.False(created.At.IsZero())
	req.Zero(created.Edited)

	fetched, err := repo.Get(ctx, created.ID)
	req.NoError(err)
	req.Equal(created, fetched)

	second, err := repo.Create(ctx, chat.Message{Content: "again", AuthorID: 7, GroupID: lo.ToPtr(chat.GroupID(42))})
	req.NoError(err)
	req.Greater(second.ID, created.ID)
}

func TestMessageRepository_Update_Increments_Edited(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), nil)
	created, err := repo.Create(ctx, chat.Message{Content: "hi", AuthorID: 7, GroupID: lo.ToPtr(chat.GroupID(42))})
	req.NoError(err)

	updated, err := repo.Update(ctx, created.ID, "x")
	req.NoError(err)
	req.Equal("x", updated.Content)
	req.Equal(1, updated.Edited)
	req.Equal(created.At, updated.At)

	updated, err = repo.Update(ctx, created.ID, "y")
	req.NoError(err)
	req.Equal(2, updated.Edited)

	_, err = repo.Update(ctx, 404, "x")
	req.ErrorIs(err, errors.ErrMessageNotFound)
}

func TestMessageRepository_Delete(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), nil)
	created, err := repo.Create(ctx, chat.Message{Content: "hi", AuthorID: 7, GroupID: lo.ToPtr(chat.GroupID(42))})
	req.NoError(err)

	req.NoError(repo.Delete(ctx, created.ID))

	_, err = repo.Get(ctx, created.ID)
	req.ErrorIs(err, errors.ErrMessageNotFound)
	page, err := repo.ListByGroup(ctx, 42, nil)
	req.NoError(err)
	req.Empty(page.Messages)

	req.ErrorIs(repo.Delete(ctx, created.ID), errors.ErrMessageNotFound)
}

func TestMessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), lo.ToPtr(4))
	groupID := chat.GroupID(42)

	// Given 10 messages in the group, oldest first, and noise elsewhere
	for i := 1; i <= 10; i++ {
		_, err := repo.Create(ctx, chat.Message{Content: fmt.Sprintf("Message %d", i), AuthorID: 7, GroupID: &groupID})
		req.NoError(err)
		_, err = repo.Create(ctx, chat.Message{Content: "elsewhere", AuthorID: 7, GroupID: lo.ToPtr(chat.GroupID(5))})
		req.NoError(err)
	}

	// --- PAGE 1 ---
	page1, err := repo.ListByGroup(ctx, groupID, nil)
	req.NoError(err)
	req.Len(page1.Messages, 4)
	req.Equal("Message 10", page1.Messages[0].Content)
	req.Equal("Message 7", page1.Messages[3].Content)
	req.NotNil(page1.NextCursor)

	// --- PAGE 2 ---
	page2, err := repo.ListByGroup(ctx, groupID, page1.NextCursor)
	req.NoError(err)
	req.Len(page2.Messages, 4)
	req.Equal("Message 6", page2.Messages[0].Content)
	req.Equal("Message 3", page2.Messages[3].Content)
	req.NotNil(page2.NextCursor)

	// --- PAGE 3 (end) ---
	page3, err := repo.ListByGroup(ctx, groupID, page2.NextCursor)
	req.NoError(err)
	req.Len(page3.Messages, 2)
	req.Equal("Message 2", page3.Messages[0].Content)
	req.Equal("Message 1", page3.Messages[1].Content)
	req.Nil(page3.NextCursor)
}

func TestMessageRepository_Cursor_On_Deleted_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), lo.ToPtr(2))
	groupID := chat.GroupID(42)
	var ids []chat.MessageID
	for i := 1; i <= 5; i++ {
		m, err := repo.Create(ctx, chat.Message{Content: fmt.Sprintf("Message %d", i), AuthorID: 7, GroupID: &groupID})
		req.NoError(err)
		ids = append(ids, m.ID)
	}

	page1, err := repo.ListByGroup(ctx, groupID, nil)
	req.NoError(err)
	req.Equal("Message 4", page1.Messages[1].Content)

	// When the last message of the page is deleted before the next read
	req.NoError(repo.Delete(ctx, ids[3]))

	// Then the next page still starts right after it
	page2, err := repo.ListByGroup(ctx, groupID, page1.NextCursor)
	req.NoError(err)
	req.Equal("Message 3", page2.Messages[0].Content)
}

func TestMessageRepository_ListByRecipient(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), nil)

	_, err := repo.Create(ctx, chat.Message{Content: "to 9", AuthorID: 7, RecipientID: lo.ToPtr(chat.UserID(9))})
	req.NoError(err)
	_, err = repo.Create(ctx, chat.Message{Content: "to 8", AuthorID: 7, RecipientID: lo.ToPtr(chat.UserID(8))})
	req.NoError(err)

	page, err := repo.ListByRecipient(ctx, 9, nil)
	req.NoError(err)
	req.Len(page.Messages, 1)
	req.Equal("to 9", page.Messages[0].Content)
	req.Nil(page.NextCursor)
}

func TestMessageRepository_Unpadded_Cursor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := newMessageRepository(t, openDB(t), lo.ToPtr(3))
	groupID := chat.GroupID(42)
	var ids []chat.MessageID
	for i := 1; i <= 10; i++ {
		m, err := repo.Create(ctx, chat.Message{Content: fmt.Sprintf("Message %d", i), AuthorID: 7, GroupID: &groupID})
		req.NoError(err)
		ids = append(ids, m.ID)
	}

	// When the cursor is the plain ID of the fifth message
	page, err := repo.ListByGroup(ctx, groupID, lo.ToPtr(strconv.FormatInt(int64(ids[4]), 10)))

	// Then the page starts right after it
	req.NoError(err)
	req.Len(page.Messages, 3)
	req.Equal([]chat.MessageID{ids[3], ids[2], ids[1]}, lo.Map(page.Messages, func(m chat.Message, _ int) chat.MessageID { return m.ID }))
	req.NotNil(page.NextCursor)
}

func TestMessageRepository_Negative_Cursor_Is_Invalid(t *testing.T) {
	repo := newMessageRepository(t, openDB(t), nil)

	_, err := repo.ListByGroup(context.Background(), 42, lo.ToPtr("-3"))

	require.ErrorIs(t, err, errors.ErrInvalidCursor)
}

func TestMessageRepository_Invalid_Cursor(t *testing.T) {
	repo := newMessageRepository(t, openDB(t), nil)

	_, err := repo.ListByGroup(context.Background(), 42, lo.ToPtr("not-a-cursor"))

	require.ErrorIs(t, err, errors.ErrInvalidCursor)
}
