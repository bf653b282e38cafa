package chat

import "sync"

// Rooms is the broadcast membership of connections, keyed by room name.
type Rooms struct {
	mu     sync.RWMutex
	byRoom map[string]map[string]struct{} // room -> conn ids
	byConn map[string]map[string]struct{} // conn id -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		byRoom: make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(room, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byRoom[room] == nil {
		r.byRoom[room] = make(map[string]struct{})
	}
	r.byRoom[room][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][room] = struct{}{}
}

// LeaveAll drops connID from every room it joined.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.byConn[connID] {
		r.leaveLocked(room, connID)
	}
	delete(r.byConn, connID)
}

func (r *Rooms) leaveLocked(room, connID string) {
	if members := r.byRoom[room]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.byRoom, room)
		}
	}
	if rooms := r.byConn[connID]; rooms != nil {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.byConn, connID)
		}
	}
}

// Members returns the connection ids in room.
func (r *Rooms) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byRoom[room]))
	for id := range r.byRoom[room] {
		out = append(out, id)
	}
	return out
}

func (r *Rooms) IsMember(room, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byRoom[room][connID]
	return ok
}
