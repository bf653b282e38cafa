package global

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomKey(t *testing.T) {
	room := RoomKey("k1")
	assert.Equal(t, "conversation:k1", room)

	id, ok := ConversationOfRoom(room)
	assert.True(t, ok)
	assert.Equal(t, "k1", id)

	_, ok = ConversationOfRoom("user:k1")
	assert.False(t, ok)
	_, ok = ConversationOfRoom("conversation:")
	assert.False(t, ok)
}

func TestTopicKeys(t *testing.T) {
	assert.Equal(t, "conv:k1", TopicKeyConversation("k1"))
	assert.Equal(t, "user:u1", TopicKeyUser("u1"))
}
