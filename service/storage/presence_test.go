package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisx "socialchat/service/storage/redis"
	"socialchat/tools/ids"
)

func TestPresenceKeys(t *testing.T) {
	assert.Equal(t, "im:presence:u1", presenceKey("u1"))
	assert.Equal(t, "u1", ExtractUser(presenceKey("u1")))
	assert.Equal(t, "", ExtractUser("other:u1"))
	assert.Equal(t, "gw-1:42", presenceMember("gw-1", "42"))
}

func TestPresenceLocalTracking(t *testing.T) {
	p := NewPresence(nil, PresenceConfig{})
	assert.Equal(t, 90*time.Second, p.conf.TTL)

	p.track("u", "c1", true)
	p.track("u", "c2", true)
	p.track("v", "c3", true)
	p.track("v", "c3", false)

	snap := p.snapshot()
	assert.ElementsMatch(t, []string{"c1", "c2"}, snap["u"])
	_, ok := snap["v"]
	assert.False(t, ok)
}

func TestPresenceIgnoresOnlineAfterOffline(t *testing.T) {
	p := NewPresence(nil, PresenceConfig{})

	p.track("u", "c1", false)
	assert.False(t, p.track("u", "c1", true))
	assert.Empty(t, p.snapshot())

	// a late online for a closed connection is dropped before touching redis
	require.NoError(t, p.Online(context.Background(), "u", "c1"))
	assert.Empty(t, p.snapshot())

	p.prune(time.Now().Add(time.Second))
	assert.True(t, p.track("u", "c1", true))
	assert.Equal(t, []string{"c1"}, p.snapshot()["u"])
}

// Runs against a real server when REDIS_URL is set.
func TestPresenceRoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := redisx.NewClient(ctx, redisx.Config{URL: url})
	require.NoError(t, err)
	defer rdb.Close()

	p := NewPresence(rdb, PresenceConfig{TTL: time.Minute, NodeID: "test"})
	user := ids.NewUUID()
	defer rdb.Del(ctx, presenceKey(user))

	require.NoError(t, p.Online(ctx, user, "c1"))
	require.NoError(t, p.Online(ctx, user, "c2"))
	online, n, err := p.IsOnline(ctx, user)
	require.NoError(t, err)
	assert.True(t, online)
	assert.EqualValues(t, 2, n)

	require.NoError(t, p.Offline(ctx, user, "c1"))
	require.NoError(t, p.Offline(ctx, user, "c2"))
	online, _, err = p.IsOnline(ctx, user)
	require.NoError(t, err)
	assert.False(t, online)
}
