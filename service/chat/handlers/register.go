package handlers

import "socialchat/service/chat"

// RegisterAll wires every event handler into s.
func RegisterAll(s *chat.Server) {
	s.Handle(
		NewCreateConversationHandler(),
		NewJoinConversationHandler(),
		NewGetConversationsHandler(),
		NewGetMessagesHandler(),
		NewSendMessageHandler(),
		NewReadMessageHandler(),
		NewDeleteMessageHandler(),
		NewTypingStartHandler(),
		NewTypingStopHandler(),
		NewOnlineUsersHandler(),
	)
}
