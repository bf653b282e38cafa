package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/data/database/mgo/mongoutil"
	"socialchat/module/chat/model"
	"socialchat/tools/errs"
)

// exerciseStore runs the behaviour every backend must share. Ids are UUIDs
// so the relational schema accepts them.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	alice := &model.User{ID: uuid.NewString(), Name: "alice", Gender: model.GenderFemale}
	bob := &model.User{ID: uuid.NewString(), Name: "bob"}
	require.NoError(t, s.Users().Upsert(ctx, alice))
	require.NoError(t, s.Users().Upsert(ctx, bob))

	users, err := s.Users().FindByIDs(ctx, []string{alice.ID, bob.ID, uuid.NewString()})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	now := time.Now().UTC().Truncate(time.Millisecond)
	conv := &model.Conversation{ID: uuid.NewString(), ParticipantIDs: []string{alice.ID, bob.ID}, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Conversations().Create(ctx, conv))

	pair, err := s.Conversations().FindPair(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, pair.ID)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, pair.ParticipantIDs)

	dup := &model.Conversation{ID: uuid.NewString(), ParticipantIDs: []string{bob.ID, alice.ID}, CreatedAt: now, UpdatedAt: now}
	again, err := s.Conversations().CreatePair(ctx, dup)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	_, err = s.Conversations().Get(ctx, dup.ID)
	assert.Equal(t, errs.NotFoundError, errs.Code(err))

	_, err = s.Conversations().Get(ctx, uuid.NewString())
	assert.Equal(t, errs.NotFoundError, errs.Code(err))

	var last *model.Message
	for i := 0; i < 3; i++ {
		m := &model.Message{
			ID:             uuid.NewString(),
			ConversationID: conv.ID,
			SenderID:       alice.ID,
			Content:        "hi",
			Type:           model.MessageText,
			Seq:            int64(i),
			CreatedAt:      now.Add(time.Duration(i) * time.Second),
		}
		m.UpdatedAt = m.CreatedAt
		require.NoError(t, s.Messages().Create(ctx, m))
		require.NoError(t, s.Conversations().SetLastMessage(ctx, conv.ID, m.ID, m.CreatedAt))
		last = m
	}

	page, err := s.Messages().ListPage(ctx, conv.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, last.ID, page[0].ID)

	latest, err := s.Messages().Latest(ctx, []string{conv.ID})
	require.NoError(t, err)
	require.Contains(t, latest, conv.ID)
	assert.Equal(t, last.ID, latest[conv.ID].ID)

	require.NoError(t, s.Messages().MarkRead(ctx, last.ID))
	got, err := s.Messages().Get(ctx, last.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	list, err := s.Conversations().ListForUser(ctx, bob.ID)
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.Equal(t, conv.ID, list[0].ID)

	require.NoError(t, s.Messages().Delete(ctx, last.ID))
	c, err := s.Conversations().Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, c.LastMessageID)
	assert.Equal(t, errs.NotFoundError, errs.Code(s.Messages().Delete(ctx, last.ID)))
}

func TestMemoryBackend(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestPostgresBackend(t *testing.T) {
	url := os.Getenv("CHAT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHAT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s, err := NewPostgres(ctx, url, true)
	require.NoError(t, err)
	defer s.Close(ctx)

	require.NoError(t, s.Ping(ctx))
	exerciseStore(t, s)
}

func TestMongoBackend(t *testing.T) {
	uri := os.Getenv("CHAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("CHAT_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	cli, err := mongoutil.NewMongoDB(ctx, &mongoutil.Config{Uri: uri, Database: "socialchat_test"})
	require.NoError(t, err)
	defer cli.Disconnect(ctx)

	s := NewMongo(cli.GetDB())
	require.NoError(t, s.EnsureIndexes(ctx))
	exerciseStore(t, s)
}
