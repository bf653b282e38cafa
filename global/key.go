package global

import "strings"

const roomPrefix = "conversation:"

// RoomKey is the broadcast room of a conversation.
func RoomKey(conversationID string) string {
	return roomPrefix + conversationID
}

// ConversationOfRoom reverses RoomKey.
func ConversationOfRoom(room string) (string, bool) {
	if !strings.HasPrefix(room, roomPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(room, roomPrefix)
	return id, id != ""
}

// TopicKeyConversation keys broker records so that one conversation's
// events land on one partition.
func TopicKeyConversation(conversationID string) string {
	return "conv:" + conversationID
}

// TopicKeyUser keys records that have no conversation (presence).
func TopicKeyUser(userID string) string {
	return "user:" + userID
}
