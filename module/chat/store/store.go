package store

import (
	"context"
	"time"

	"socialchat/module/chat/model"
)

// UserStore resolves public user profiles. Users are owned by another
// service; Upsert exists for seeding and projections.
type UserStore interface {
	// FindByIDs returns the users that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	Upsert(ctx context.Context, u *model.User) error
}

type ConversationStore interface {
	Create(ctx context.Context, c *model.Conversation) error
	// Get fails with errs.ErrNotFound when the conversation does not exist.
	Get(ctx context.Context, id string) (*model.Conversation, error)
	// FindPair returns the conversation whose participants are exactly a and b,
	// or errs.ErrNotFound.
	FindPair(ctx context.Context, a, b string) (*model.Conversation, error)
	// CreatePair stores a two-party conversation unless one already exists
	// for the same pair, and returns whichever conversation is stored. Two
	// concurrent calls for a pair always return the same conversation.
	CreatePair(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	// ListForUser returns the user's conversations, most recently updated first.
	ListForUser(ctx context.Context, userID string) ([]*model.Conversation, error)
	// SetLastMessage moves the last-message pointer and bumps updated-at.
	SetLastMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) error
	Get(ctx context.Context, id string) (*model.Message, error)
	// ListPage returns up to limit messages of a conversation, newest first,
	// skipping the offset newest ones.
	ListPage(ctx context.Context, conversationID string, limit, offset int) ([]*model.Message, error)
	// Latest returns the newest message of each given conversation that has one.
	Latest(ctx context.Context, conversationIDs []string) (map[string]*model.Message, error)
	// MarkRead sets the read flag; an already-read message is left as is.
	MarkRead(ctx context.Context, id string) error
	// Delete removes the message and clears any last-message pointer to it.
	Delete(ctx context.Context, id string) error
}

// Store bundles the three stores of one backend.
type Store interface {
	Users() UserStore
	Conversations() ConversationStore
	Messages() MessageStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
