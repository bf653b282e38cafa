package chat

import (
	"sync"
)

// ConnManager indexes live clients by connection id.
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*Client
}

func NewConnManager() *ConnManager {
	return &ConnManager{bySnow: make(map[string]*Client)}
}

func (m *ConnManager) Add(c *Client) {
	m.mu.Lock()
	m.bySnow[c.ConnID] = c
	m.mu.Unlock()
}

// Lookup resolves ids to live clients, skipping unknown ones and except.
func (m *ConnManager) Lookup(connIDs []string, except string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(connIDs))
	for _, id := range connIDs {
		if id == except {
			continue
		}
		if c, ok := m.bySnow[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// All returns every live client except the given id.
func (m *ConnManager) All(except string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Client, 0, len(m.bySnow))
	for id, c := range m.bySnow {
		if id != except {
			out = append(out, c)
		}
	}
	return out
}

func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	delete(m.bySnow, connID)
	m.mu.Unlock()
}

func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// CloseAll asks every client to close; each one's read loop then runs its
// own disconnect handling.
func (m *ConnManager) CloseAll() {
	for _, c := range m.All("") {
		c.Close()
	}
}
