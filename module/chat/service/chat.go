package service

import (
	"context"
	"time"

	"socialchat/module/chat/model"
	"socialchat/module/chat/store"
	"socialchat/tools/errs"
	"socialchat/tools/ids"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Chat enforces the participant rules over the conversation and message
// stores. It holds no socket state and caches nothing between calls.
type Chat struct {
	users store.UserStore
	convs store.ConversationStore
	msgs  store.MessageStore
	now   func() time.Time
}

func New(st store.Store) *Chat {
	return &Chat{
		users: st.Users(),
		convs: st.Conversations(),
		msgs:  st.Messages(),
		now:   time.Now,
	}
}

// SendInput is the content of a new message.
type SendInput struct {
	ConversationID string
	Content        string
	Type           model.MessageType
	ImageURL       string
}

// CreateConversation returns the existing conversation when the caller and
// participants form exactly one pair that already talks; otherwise it
// creates a new one.
func (s *Chat) CreateConversation(ctx context.Context, callerID string, participantIDs []string) (*model.Conversation, error) {
	all := dedupe(append([]string{callerID}, participantIDs...))

	users, err := s.users.FindByIDs(ctx, all)
	if err != nil {
		return nil, err
	}
	if len(users) != len(all) {
		return nil, errs.ErrNotFound.WrapMsg("One or more participants not found")
	}

	if len(all) == 2 {
		existing, err := s.convs.FindPair(ctx, all[0], all[1])
		switch {
		case err == nil:
			return s.GetConversation(ctx, callerID, existing.ID)
		case errs.Code(err) != errs.NotFoundError:
			return nil, err
		}
	}

	now := s.now()
	conv := &model.Conversation{
		ID:             ids.NewUUID(),
		ParticipantIDs: all,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(all) == 2 {
		// a concurrent create of the same pair resolves to one row
		stored, err := s.convs.CreatePair(ctx, conv)
		if err != nil {
			return nil, err
		}
		return s.GetConversation(ctx, callerID, stored.ID)
	}
	if err := s.convs.Create(ctx, conv); err != nil {
		return nil, err
	}
	return s.GetConversation(ctx, callerID, conv.ID)
}

// ListConversations returns the user's conversations, most recent first,
// each carrying its newest message.
func (s *Chat) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	convs, err := s.convs.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return convs, nil
	}

	convIDs := make([]string, 0, len(convs))
	var userIDs []string
	for _, c := range convs {
		convIDs = append(convIDs, c.ID)
		userIDs = append(userIDs, c.ParticipantIDs...)
	}
	latest, err := s.msgs.Latest(ctx, convIDs)
	if err != nil {
		return nil, err
	}
	profiles, err := s.profiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		c.LastMessage = latest[c.ID]
		c.Participants = resolve(c.ParticipantIDs, profiles)
	}
	return convs, nil
}

// GetConversation fails NotFound before Forbidden: a missing conversation
// is reported as missing whoever asks.
func (s *Chat) GetConversation(ctx context.Context, callerID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, errs.ErrForbidden.WrapMsg("You are not a participant in this conversation")
	}
	profiles, err := s.profiles(ctx, conv.ParticipantIDs)
	if err != nil {
		return nil, err
	}
	conv.Participants = resolve(conv.ParticipantIDs, profiles)
	return conv, nil
}

// ListMessages pages backwards from the newest message and returns the
// page in chronological order.
func (s *Chat) ListMessages(ctx context.Context, callerID, conversationID string, limit, offset int) ([]*model.Message, error) {
	if _, err := s.GetConversation(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	limit, offset = NormalizePage(limit, offset)

	page, err := s.msgs.ListPage(ctx, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	if err := s.attachSenders(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Chat) SendMessage(ctx context.Context, callerID string, in SendInput) (*model.Message, error) {
	if in.Type == "" {
		in.Type = model.MessageText
	}
	if !in.Type.Valid() {
		return nil, errs.ErrValidation.WrapMsg("type must be one of text, image")
	}
	if _, err := s.GetConversation(ctx, callerID, in.ConversationID); err != nil {
		return nil, err
	}

	now := s.now()
	msg := &model.Message{
		ID:             ids.NewUUID(),
		ConversationID: in.ConversationID,
		SenderID:       callerID,
		Content:        in.Content,
		Type:           in.Type,
		ImageURL:       in.ImageURL,
		Seq:            ids.Generate(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.msgs.Create(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.convs.SetLastMessage(ctx, in.ConversationID, msg.ID, now); err != nil {
		return nil, err
	}
	if err := s.attachSenders(ctx, []*model.Message{msg}); err != nil {
		return nil, err
	}
	return msg, nil
}

// MarkRead flips the read flag when the caller is a participant other than
// the sender. Repeated calls and the sender's own calls change nothing.
func (s *Chat) MarkRead(ctx context.Context, callerID, messageID string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := s.convs.Get(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(callerID) {
		return nil, errs.ErrForbidden.WrapMsg("You are not a participant in this conversation")
	}
	if msg.SenderID != callerID && !msg.IsRead {
		if err := s.msgs.MarkRead(ctx, messageID); err != nil {
			return nil, err
		}
		msg.IsRead = true
	}
	return msg, nil
}

func (s *Chat) DeleteMessage(ctx context.Context, callerID, messageID string) (*model.Message, error) {
	msg, err := s.msgs.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != callerID {
		return nil, errs.ErrForbidden.WrapMsg("You can only delete your own messages")
	}
	if err := s.msgs.Delete(ctx, messageID); err != nil {
		return nil, err
	}
	return msg, nil
}

// FindUser returns the public profile of id.
func (s *Chat) FindUser(ctx context.Context, id string) (*model.User, error) {
	users, err := s.users.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errs.ErrNotFound.WrapMsg("User not found")
	}
	return users[0], nil
}

// NormalizePage applies the default and bounds of a message page.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Chat) profiles(ctx context.Context, userIDs []string) (map[string]*model.User, error) {
	users, err := s.users.FindByIDs(ctx, dedupe(userIDs))
	if err != nil {
		return nil, err
	}
	out := make(map[string]*model.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Chat) attachSenders(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	senderIDs := make([]string, 0, len(msgs))
	for _, m := range msgs {
		senderIDs = append(senderIDs, m.SenderID)
	}
	profiles, err := s.profiles(ctx, senderIDs)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		m.Sender = profiles[m.SenderID]
	}
	return nil
}

// resolve keeps the participant order and skips users that no longer exist.
func resolve(userIDs []string, profiles map[string]*model.User) []*model.User {
	out := make([]*model.User, 0, len(userIDs))
	for _, id := range userIDs {
		if u, ok := profiles[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
