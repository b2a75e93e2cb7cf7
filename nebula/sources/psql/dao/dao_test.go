package dao_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"nebula/nebula/sources/psql/dao"
	"nebula/nebula/sources/psql/models"
	"nebula/nebula/sources/psql/psqltest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func seedMessages(t *testing.T, msgDAO *dao.MessageDAO, chat *models.Chat, n int) []models.Message {
	t.Helper()
	out := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		m, err := msgDAO.Create(context.Background(), &models.Message{
			UserID:  chat.UserID,
			ChatID:  chat.ID,
			Role:    models.RoleUser,
			Content: strPtr(fmt.Sprintf("msg-%02d", i)),
		})
		require.NoError(t, err)
		out = append(out, *m)
	}
	return out
}

func TestUserDAO_GetOrCreateUser(t *testing.T) {
	db := psqltest.NewDatabase(t)
	users := dao.NewUserDAO(db.DB)
	ctx := context.Background()

	missing, err := users.GetUserByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, missing)

	u1, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	u2, err := users.GetOrCreateUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u1.ID, u2.ID)
	assert.Equal(t, "alice@example.com", u2.Email)
}

func TestUserDAO_GetOrCreateUserConcurrent(t *testing.T) {
	db := psqltest.NewDatabase(t)
	users := dao.NewUserDAO(db.DB)
	ctx := context.Background()

	const n = 8
	ids := make([]int, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := users.GetOrCreateUser(ctx, "carol")
			errs[i] = err
			if u != nil {
				ids[i] = u.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, db.DB.Model(&models.User{}).Where("username = ?", "carol").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestChatDAO_CreateListGet(t *testing.T) {
	db := psqltest.NewDatabase(t)
	alice := psqltest.SeedUser(t, db, "alice")
	bob := psqltest.SeedUser(t, db, "bob")
	chats := dao.NewChatDAO(db.DB)
	ctx := context.Background()

	_, err := chats.CreateChat(ctx, alice.ID, "   ")
	assert.ErrorIs(t, err, dao.ErrInvalidTitle)
	_, err = chats.CreateChat(ctx, alice.ID, strings.Repeat("x", 201))
	assert.ErrorIs(t, err, dao.ErrInvalidTitle)

	first, err := chats.CreateChat(ctx, alice.ID, "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := chats.CreateChat(ctx, alice.ID, " second ")
	require.NoError(t, err)
	assert.Equal(t, "second", second.Title)

	list, err := chats.ListChats(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)

	_, err = chats.GetChat(ctx, bob.ID, first.ID)
	assert.ErrorIs(t, err, dao.ErrChatNotFound, "foreign chat is invisible")
	got, err := chats.GetChat(ctx, alice.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)
}

func TestMessageDAO_ListRecentOrderingAndLimit(t *testing.T) {
	db := psqltest.NewDatabase(t)
	alice := psqltest.SeedUser(t, db, "alice")
	chat, err := dao.NewChatDAO(db.DB).CreateChat(context.Background(), alice.ID, "c")
	require.NoError(t, err)
	msgs := dao.NewMessageDAO(db.DB)
	seeded := seedMessages(t, msgs, chat, 25)

	recent, err := msgs.ListRecent(context.Background(), chat.ID, 20)
	require.NoError(t, err)
	require.Len(t, recent, 20)
	assert.Equal(t, "msg-05", recent[0].Text())
	assert.Equal(t, "msg-24", recent[19].Text())
	for i := 1; i < len(recent); i++ {
		assert.False(t, recent[i].CreatedAt.Before(recent[i-1].CreatedAt), "ascending at %d", i)
	}
	assert.Equal(t, seeded[24].ID, recent[19].ID)

	again, err := msgs.ListRecent(context.Background(), chat.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, recent, again, "idempotent without writes")

	none, err := msgs.ListRecent(context.Background(), chat.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMessageDAO_ListPageBefore(t *testing.T) {
	db := psqltest.NewDatabase(t)
	alice := psqltest.SeedUser(t, db, "alice")
	chat, err := dao.NewChatDAO(db.DB).CreateChat(context.Background(), alice.ID, "c")
	require.NoError(t, err)
	msgs := dao.NewMessageDAO(db.DB)
	var seeded []models.Message
	for i := 0; i < 6; i++ {
		seeded = append(seeded, seedMessages(t, msgs, chat, 1)...)
		time.Sleep(2 * time.Millisecond)
	}

	cursor := seeded[4].CreatedAt
	page, err := msgs.ListPage(context.Background(), chat.ID, 2, &cursor)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, seeded[2].ID, page[0].ID)
	assert.Equal(t, seeded[3].ID, page[1].ID)
}

func TestMessageDAO_CreateKeepsAttachmentFields(t *testing.T) {
	db := psqltest.NewDatabase(t)
	alice := psqltest.SeedUser(t, db, "alice")
	chat, err := dao.NewChatDAO(db.DB).CreateChat(context.Background(), alice.ID, "c")
	require.NoError(t, err)
	msgs := dao.NewMessageDAO(db.DB)

	m, err := msgs.Create(context.Background(), &models.Message{
		UserID:   alice.ID,
		ChatID:   chat.ID,
		Role:     models.RoleUser,
		File:     true,
		FileURL:  strPtr("http://cdn/x.png"),
		FileType: strPtr("image/png"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	recent, err := msgs.ListRecent(context.Background(), chat.ID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Nil(t, recent[0].Content)
	assert.True(t, recent[0].File)
	assert.Equal(t, "http://cdn/x.png", *recent[0].FileURL)

	_, err = msgs.Create(context.Background(), &models.Message{UserID: alice.ID, Role: models.RoleUser})
	assert.Error(t, err)
}

func TestChatDAO_DeleteCascadesMessages(t *testing.T) {
	db := psqltest.NewDatabase(t)
	alice := psqltest.SeedUser(t, db, "alice")
	bob := psqltest.SeedUser(t, db, "bob")
	chats := dao.NewChatDAO(db.DB)
	msgs := dao.NewMessageDAO(db.DB)
	ctx := context.Background()

	doomed, err := chats.CreateChat(ctx, alice.ID, "doomed")
	require.NoError(t, err)
	kept, err := chats.CreateChat(ctx, alice.ID, "kept")
	require.NoError(t, err)
	seedMessages(t, msgs, doomed, 3)
	seedMessages(t, msgs, kept, 2)

	_, err = chats.DeleteChat(ctx, bob.ID, doomed.ID)
	assert.True(t, errors.Is(err, dao.ErrChatNotFound), "other users cannot delete")

	n, err := chats.DeleteChat(ctx, alice.ID, doomed.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	gone, err := msgs.ListRecent(ctx, doomed.ID, 20)
	require.NoError(t, err)
	assert.Empty(t, gone)
	left, err := msgs.ListRecent(ctx, kept.ID, 20)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	_, err = chats.DeleteChat(ctx, alice.ID, doomed.ID)
	assert.ErrorIs(t, err, dao.ErrChatNotFound)
}
