package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"socialchat/module/chat/model"
)

type swapDB struct {
	mu sync.Mutex
	db *mongo.Database
}

func (s *swapDB) set(db *mongo.Database) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

func (s *swapDB) TryGetDB() (*mongo.Database, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db, s.db != nil
}

func TestMongoFollowsReplacedClient(t *testing.T) {
	ctx := context.Background()
	src := &swapDB{}
	s := NewMongoFrom(src)

	err := s.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongo not connected")
	_, err = s.Conversations().Get(ctx, "c1")
	assert.Contains(t, err.Error(), "mongo not connected")

	// Connect does not dial, so an unreachable address is enough here.
	first, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	defer first.Disconnect(ctx)
	second, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)
	defer second.Disconnect(ctx)

	src.set(first.Database("chat_a"))
	c, err := s.convs()
	require.NoError(t, err)
	assert.Equal(t, "chat_a", c.Database().Name())
	assert.Equal(t, (&model.Conversation{}).GetTableName(), c.Name())
	assert.Same(t, first, c.Database().Client())

	src.set(second.Database("chat_b"))
	c, err = s.convs()
	require.NoError(t, err)
	assert.Equal(t, "chat_b", c.Database().Name())
	assert.Same(t, second, c.Database().Client())

	src.set(nil)
	_, err = s.msgs()
	assert.Error(t, err)
}
