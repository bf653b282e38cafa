package chat

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryPresenceAcrossConnections(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.Register("u", "c1"))
	assert.False(t, r.Register("u", "c2"))
	assert.True(t, r.IsOnline("u"))
	assert.ElementsMatch(t, []string{"c1", "c2"}, r.ConnectionsOf("u"))

	last, _ := r.Unregister("u", "c1")
	assert.False(t, last)
	assert.True(t, r.IsOnline("u"))

	last, _ = r.Unregister("u", "c2")
	assert.True(t, last)
	assert.False(t, r.IsOnline("u"))

	last, _ = r.Unregister("u", "c2")
	assert.False(t, last, "offline is reported once")
	assert.Empty(t, r.ConnectionsOf("u"))
}

func TestRegistryTypingChanges(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.SetTyping("k", "u"))
	assert.False(t, r.SetTyping("k", "u"))
	assert.Equal(t, []string{"u"}, typers(r, "k"))

	assert.True(t, r.ClearTyping("k", "u"))
	assert.False(t, r.ClearTyping("k", "u"))
	assert.False(t, r.ClearTyping("missing", "u"))
	assert.Empty(t, typers(r, "k"))
}

func TestRegistryUnregisterPurgesTyping(t *testing.T) {
	r := NewRegistry()
	r.Register("u", "c1")
	r.Register("v", "c2")
	r.SetTyping("k2", "u")
	r.SetTyping("k1", "u")
	r.SetTyping("k1", "v")

	last, stopped := r.Unregister("u", "c1")
	assert.True(t, last)
	assert.Equal(t, []string{"k1", "k2"}, stopped)
	assert.Equal(t, []string{"v"}, typers(r, "k1"))
	assert.Empty(t, typers(r, "k2"))

	_, stopped = r.Unregister("unknown", "c9")
	assert.Empty(t, stopped)
}

func TestRegistryOnlineUserIDs(t *testing.T) {
	r := NewRegistry()
	r.Register("b", "1")
	r.Register("a", "2")
	r.Register("b", "3")

	assert.Equal(t, []string{"a", "b"}, r.OnlineUserIDs())
	assert.Equal(t, 2, r.OnlineCount())
}

func typers(r *Registry, conversationID string) []string {
	out := make([]string, 0)
	for id := range r.typing[conversationID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func TestRegistryDropKeepsTyping(t *testing.T) {
	r := NewRegistry()
	r.Register("u", "c1")
	r.SetTyping("k", "u")

	r.Drop("u", "c1")
	assert.Empty(t, r.ConnectionsOf("u"))
	assert.Empty(t, r.OnlineUserIDs())
	assert.Equal(t, []string{"u"}, typers(r, "k"))

	r.Drop("nobody", "c9")
}
