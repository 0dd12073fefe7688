package presence

import "sync"

// Rooms keeps group channel subscriptions in both directions, keyed by session id.
type Rooms struct {
	sync.RWMutex
	members map[string]map[string]Conn     // group id -> sid -> conn
	groups  map[string]map[string]struct{} // sid -> group ids
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Conn),
		groups:  make(map[string]map[string]struct{}),
	}
}

func (r *Rooms) Join(groupID string, conn Conn) {
	r.Lock()
	defer r.Unlock()
	m, ok := r.members[groupID]
	if !ok {
		m = make(map[string]Conn)
		r.members[groupID] = m
	}
	m[conn.Sid()] = conn

	g, ok := r.groups[conn.Sid()]
	if !ok {
		g = make(map[string]struct{})
		r.groups[conn.Sid()] = g
	}
	g[groupID] = struct{}{}
}

// Leave unsubscribes conn, reports whether it was subscribed.
func (r *Rooms) Leave(groupID string, conn Conn) bool {
	r.Lock()
	defer r.Unlock()
	return r.leave(groupID, conn.Sid())
}

func (r *Rooms) leave(groupID, sid string) bool {
	m, ok := r.members[groupID]
	if !ok {
		return false
	}
	if _, ok := m[sid]; !ok {
		return false
	}
	delete(m, sid)
	if len(m) == 0 {
		delete(r.members, groupID)
	}
	if g, ok := r.groups[sid]; ok {
		delete(g, groupID)
		if len(g) == 0 {
			delete(r.groups, sid)
		}
	}
	return true
}

// LeaveAll drops every subscription of conn, used when it disconnects.
func (r *Rooms) LeaveAll(conn Conn) {
	r.Lock()
	defer r.Unlock()
	for groupID := range r.groups[conn.Sid()] {
		r.leave(groupID, conn.Sid())
	}
}

// Close drops the channel of a deleted group, returns the connections that were subscribed.
func (r *Rooms) Close(groupID string) []Conn {
	r.Lock()
	defer r.Unlock()
	var out []Conn
	for sid, c := range r.members[groupID] {
		out = append(out, c)
		r.leave(groupID, sid)
	}
	return out
}

func (r *Rooms) Members(groupID string) []Conn {
	r.RLock()
	defer r.RUnlock()
	out := make([]Conn, 0, len(r.members[groupID]))
	for _, c := range r.members[groupID] {
		out = append(out, c)
	}
	return out
}

func (r *Rooms) IsMember(groupID string, conn Conn) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.members[groupID][conn.Sid()]
	return ok
}
