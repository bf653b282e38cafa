package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"socialchat/module/chat/model"
	"socialchat/tools/errs"
)

// Memory keeps everything in process. It backs tests and single-node
// development runs.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*model.User
	convs map[string]*model.Conversation
	msgs  map[string]*model.Message
	// pairs maps a pair key to its conversation id.
	pairs map[string]string
	// byConv holds message ids per conversation in insertion order.
	byConv map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[string]*model.User),
		convs:  make(map[string]*model.Conversation),
		msgs:   make(map[string]*model.Message),
		pairs:  make(map[string]string),
		byConv: make(map[string][]string),
	}
}

func (s *Memory) Users() UserStore                 { return memUsers{s} }
func (s *Memory) Conversations() ConversationStore { return memConvs{s} }
func (s *Memory) Messages() MessageStore           { return memMsgs{s} }
func (s *Memory) Ping(context.Context) error       { return nil }
func (s *Memory) Close(context.Context) error      { return nil }

type memUsers struct{ *Memory }

func (s memUsers) FindByIDs(_ context.Context, ids []string) ([]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.User, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := s.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s memUsers) Upsert(_ context.Context, u *model.User) error {
	if u == nil || u.ID == "" {
		return errs.ErrValidation.WrapMsg("user id is required")
	}
	cp := *u
	if cp.Gender == "" {
		cp.Gender = model.GenderOther
	}
	s.mu.Lock()
	s.users[u.ID] = &cp
	s.mu.Unlock()
	return nil
}

type memConvs struct{ *Memory }

func (s memConvs) Create(_ context.Context, c *model.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(c)
}

func (s memConvs) CreatePair(_ context.Context, c *model.Conversation) (*model.Conversation, error) {
	key := model.PairKeyOf(c.ParticipantIDs)
	if key == "" {
		return nil, errs.ErrValidation.WrapMsg("a pair needs two distinct participants")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.pairs[key]; ok {
		return s.convs[id].Clone(), nil
	}
	if err := s.insertLocked(c); err != nil {
		return nil, err
	}
	return s.convs[c.ID].Clone(), nil
}

func (s memConvs) insertLocked(c *model.Conversation) error {
	if _, ok := s.convs[c.ID]; ok {
		return errs.New("conversation already exists", "id", c.ID)
	}
	cp := c.Clone()
	cp.PairKey = model.PairKeyOf(cp.ParticipantIDs)
	if cp.PairKey != "" {
		if _, ok := s.pairs[cp.PairKey]; ok {
			return errs.New("pair conversation already exists", "pair", cp.PairKey)
		}
		s.pairs[cp.PairKey] = cp.ID
	}
	s.convs[cp.ID] = cp
	return nil
}

func (s memConvs) Get(_ context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	return c.Clone(), nil
}

func (s memConvs) FindPair(_ context.Context, a, b string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairs[model.PairKeyOf([]string{a, b})]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	return s.convs[id].Clone(), nil
}

func (s memConvs) ListForUser(_ context.Context, userID string) ([]*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Conversation, 0)
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (s memConvs) SetLastMessage(_ context.Context, conversationID, messageID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[conversationID]
	if !ok {
		return errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	c.LastMessageID = messageID
	c.UpdatedAt = at
	return nil
}

type memMsgs struct{ *Memory }

func (s memMsgs) Create(_ context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.convs[m.ConversationID]; !ok {
		return errs.ErrNotFound.WrapMsg("Conversation not found")
	}
	cp := m.Clone()
	cp.Sender = nil
	s.msgs[m.ID] = cp
	s.byConv[m.ConversationID] = append(s.byConv[m.ConversationID], m.ID)
	return nil
}

func (s memMsgs) Get(_ context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgs[id]
	if !ok {
		return nil, errs.ErrNotFound.WrapMsg("Message not found")
	}
	return m.Clone(), nil
}

// newestFirst must be called with the lock held.
func (s memMsgs) newestFirst(conversationID string) []*model.Message {
	idsInConv := s.byConv[conversationID]
	out := make([]*model.Message, 0, len(idsInConv))
	for _, id := range idsInConv {
		out = append(out, s.msgs[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Newer(out[j]) })
	return out
}

func (s memMsgs) ListPage(_ context.Context, conversationID string, limit, offset int) ([]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.newestFirst(conversationID)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) || limit <= 0 {
		return []*model.Message{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*model.Message, 0, end-offset)
	for _, m := range all[offset:end] {
		out = append(out, m.Clone())
	}
	return out, nil
}

func (s memMsgs) Latest(_ context.Context, conversationIDs []string) (map[string]*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*model.Message, len(conversationIDs))
	for _, cid := range conversationIDs {
		var latest *model.Message
		for _, id := range s.byConv[cid] {
			if m := s.msgs[id]; m.Newer(latest) {
				latest = m
			}
		}
		if latest != nil {
			out[cid] = latest.Clone()
		}
	}
	return out, nil
}

func (s memMsgs) MarkRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return errs.ErrNotFound.WrapMsg("Message not found")
	}
	if !m.IsRead {
		m.IsRead = true
		m.UpdatedAt = time.Now()
	}
	return nil
}

func (s memMsgs) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgs[id]
	if !ok {
		return errs.ErrNotFound.WrapMsg("Message not found")
	}
	delete(s.msgs, id)
	list := s.byConv[m.ConversationID]
	for i, mid := range list {
		if mid == id {
			s.byConv[m.ConversationID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if c, ok := s.convs[m.ConversationID]; ok && c.LastMessageID == id {
		c.LastMessageID = ""
	}
	return nil
}
