package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/module/chat/model"
	"socialchat/module/chat/store"
	"socialchat/tools/errs"
)

func newChat(t *testing.T, users ...string) *Chat {
	t.Helper()
	st := store.NewMemory()
	for _, id := range users {
		require.NoError(t, st.Users().Upsert(context.Background(), &model.User{ID: id, Name: "user " + id}))
	}
	c := New(st)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c
}

func TestCreateConversationIsIdempotentForPairs(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b")

	first, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)
	second, err := c.CreateConversation(ctx, "b", []string{"a"})
	require.NoError(t, err)
	third, err := c.CreateConversation(ctx, "a", []string{"b", "b", "a"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
	assert.Len(t, first.Participants, 2)
}

// lateLookup hides existing pairs from FindPair so every create takes the
// insert path, as concurrent callers do when neither sees the other's row.
type lateLookup struct{ store.ConversationStore }

func (lateLookup) FindPair(context.Context, string, string) (*model.Conversation, error) {
	return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
}

func TestCreateConversationConcurrentPairs(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	for _, id := range []string{"a", "b"} {
		require.NoError(t, st.Users().Upsert(ctx, &model.User{ID: id, Name: id}))
	}
	c := New(st)
	c.convs = lateLookup{st.Conversations()}

	const n = 16
	got := make([]string, n)
	errCh := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, other := "a", "b"
			if i%2 == 1 {
				caller, other = other, caller
			}
			conv, err := c.CreateConversation(ctx, caller, []string{other})
			if err != nil {
				errCh <- err
				return
			}
			got[i] = conv.ID
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	for _, id := range got {
		assert.Equal(t, got[0], id)
	}
	list, err := c.ListConversations(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCreateConversationGroupIsNotAPair(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b", "c")

	group, err := c.CreateConversation(ctx, "a", []string{"b", "c"})
	require.NoError(t, err)
	pair, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)

	assert.NotEqual(t, group.ID, pair.ID)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, group.ParticipantIDs)
}

func TestCreateConversationUnknownParticipant(t *testing.T) {
	c := newChat(t, "a")
	_, err := c.CreateConversation(context.Background(), "a", []string{"ghost"})
	require.Error(t, err)
	assert.Equal(t, errs.NotFoundError, errs.Code(err))
	assert.Equal(t, "One or more participants not found", errs.Message(err))
}

func TestGetConversationAuthorization(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b", "x")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)

	got, err := c.GetConversation(ctx, "b", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = c.GetConversation(ctx, "x", conv.ID)
	assert.Equal(t, errs.ForbiddenError, errs.Code(err))

	// a missing conversation is NotFound for anyone
	_, err = c.GetConversation(ctx, "x", "missing")
	assert.Equal(t, errs.NotFoundError, errs.Code(err))
	_, err = c.GetConversation(ctx, "a", "missing")
	assert.Equal(t, errs.NotFoundError, errs.Code(err))
}

func TestListMessagesPagesFromNewest(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		_, err := c.SendMessage(ctx, "a", SendInput{ConversationID: conv.ID, Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	page, err := c.ListMessages(ctx, "b", conv.ID, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "5", "6"}, contents(page))
	require.NotNil(t, page[0].Sender)
	assert.Equal(t, "a", page[0].Sender.ID)

	page, err = c.ListMessages(ctx, "b", conv.ID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, contents(page))

	page, err = c.ListMessages(ctx, "b", conv.ID, 3, 6)
	require.NoError(t, err)
	assert.Equal(t, []string{"0"}, contents(page))

	// concatenating pages from the oldest end rebuilds the full history
	var all []string
	for off := 6; off >= 0; off -= 3 {
		p, err := c.ListMessages(ctx, "a", conv.ID, 3, off)
		require.NoError(t, err)
		all = append(all, contents(p)...)
	}
	assert.Equal(t, []string{"0", "1", "2", "3", "4", "5", "6"}, all)
}

func TestListMessagesDefaultsAndForbidden(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b", "x")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)

	page, err := c.ListMessages(ctx, "a", conv.ID, 0, -5)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = c.ListMessages(ctx, "x", conv.ID, 10, 0)
	assert.Equal(t, errs.ForbiddenError, errs.Code(err))
}

func TestSendMessageUpdatesConversation(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b", "c")
	older, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)
	newer, err := c.CreateConversation(ctx, "a", []string{"c"})
	require.NoError(t, err)

	msg, err := c.SendMessage(ctx, "a", SendInput{ConversationID: older.ID, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, model.MessageText, msg.Type)
	assert.False(t, msg.IsRead)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "user a", msg.Sender.Name)

	list, err := c.ListConversations(ctx, "a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, older.ID, list[0].ID)
	assert.Equal(t, newer.ID, list[1].ID)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, msg.ID, list[0].LastMessage.ID)
	assert.Equal(t, msg.ID, list[0].LastMessageID)
	assert.Nil(t, list[1].LastMessage)
	assert.Len(t, list[0].Participants, 2)
}

func TestSendMessageRejectsUnknownType(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)

	_, err = c.SendMessage(ctx, "a", SendInput{ConversationID: conv.ID, Content: "x", Type: "video"})
	assert.Equal(t, errs.ValidationError, errs.Code(err))

	img, err := c.SendMessage(ctx, "a", SendInput{ConversationID: conv.ID, Content: "pic", Type: model.MessageImage, ImageURL: "https://cdn/x.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/x.png", img.ImageURL)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b", "x")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)
	msg, err := c.SendMessage(ctx, "a", SendInput{ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)

	// the sender marking its own message is a no-op
	got, err := c.MarkRead(ctx, "a", msg.ID)
	require.NoError(t, err)
	assert.False(t, got.IsRead)

	for i := 0; i < 2; i++ {
		got, err = c.MarkRead(ctx, "b", msg.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)
	}

	_, err = c.MarkRead(ctx, "x", msg.ID)
	assert.Equal(t, errs.ForbiddenError, errs.Code(err))
	_, err = c.MarkRead(ctx, "b", "missing")
	assert.Equal(t, errs.NotFoundError, errs.Code(err))
}

func TestDeleteMessageOnlyBySender(t *testing.T) {
	ctx := context.Background()
	c := newChat(t, "a", "b")
	conv, err := c.CreateConversation(ctx, "a", []string{"b"})
	require.NoError(t, err)
	msg, err := c.SendMessage(ctx, "a", SendInput{ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)

	_, err = c.DeleteMessage(ctx, "b", msg.ID)
	assert.Equal(t, errs.ForbiddenError, errs.Code(err))
	assert.Equal(t, "You can only delete your own messages", errs.Message(err))

	page, err := c.ListMessages(ctx, "a", conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = c.DeleteMessage(ctx, "a", msg.ID)
	require.NoError(t, err)
	_, err = c.DeleteMessage(ctx, "a", msg.ID)
	assert.Equal(t, errs.NotFoundError, errs.Code(err))
}

func TestNormalizePage(t *testing.T) {
	l, o := NormalizePage(0, -1)
	assert.Equal(t, DefaultPageLimit, l)
	assert.Equal(t, 0, o)
	l, _ = NormalizePage(1000, 0)
	assert.Equal(t, MaxPageLimit, l)
}

func contents(msgs []*model.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}
