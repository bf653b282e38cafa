package chat

import (
	"sort"
	"sync"
)

// Registry tracks presence (user -> open connection ids) and typing
// (conversation -> users typing). It is process local and starts empty.
type Registry struct {
	mu       sync.RWMutex
	presence map[string]map[string]struct{}
	typing   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		presence: make(map[string]map[string]struct{}),
		typing:   make(map[string]map[string]struct{}),
	}
}

// Register adds connID to the user's set and reports whether it is the
// user's first connection.
func (r *Registry) Register(userID, connID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.presence[userID]
	if set == nil {
		set = make(map[string]struct{})
		r.presence[userID] = set
	}
	first = len(set) == 0
	set[connID] = struct{}{}
	return first
}

// Unregister removes connID and reports whether it was the user's last
// connection. The user is also purged from every typing set; the
// conversations whose typing state changed are returned.
func (r *Registry) Unregister(userID, connID string) (last bool, stoppedTyping []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.presence[userID]
	if !ok {
		return false, nil
	}
	if _, ok := set[connID]; !ok {
		return false, nil
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.presence, userID)
		last = true
	}

	for convID, users := range r.typing {
		if _, ok := users[userID]; !ok {
			continue
		}
		delete(users, userID)
		if len(users) == 0 {
			delete(r.typing, convID)
		}
		stoppedTyping = append(stoppedTyping, convID)
	}
	sort.Strings(stoppedTyping)
	return last, stoppedTyping
}

// Drop removes a connection without touching typing state. It undoes a
// Register whose connection never came up.
func (r *Registry) Drop(userID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.presence[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.presence, userID)
	}
}

// ConnectionsOf returns a snapshot of the user's connection ids.
func (r *Registry) ConnectionsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.presence[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.presence[userID]) > 0
}

// SetTyping reports whether the user was not already marked typing.
func (r *Registry) SetTyping(conversationID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := r.typing[conversationID]
	if users == nil {
		users = make(map[string]struct{})
		r.typing[conversationID] = users
	}
	if _, ok := users[userID]; ok {
		return false
	}
	users[userID] = struct{}{}
	return true
}

// ClearTyping reports whether an entry was actually removed.
func (r *Registry) ClearTyping(conversationID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, ok := r.typing[conversationID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(r.typing, conversationID)
	}
	return true
}

// OnlineUserIDs returns a sorted snapshot of users with at least one connection.
func (r *Registry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presence))
	for id := range r.presence {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.presence)
}
