// Package presence tracks which users are connected, and which connections
// subscribe to which group channels.
package presence

import (
	"sort"
	"sync"

	"github.com/golang/glog"
)

// Conn is a live connection of a user.
type Conn interface {
	Sid() string
	Uid() string

	// Send queues an event to the peer, reports false if the connection is closing.
	Send(event string, data interface{}) bool

	// Kickoff closes the connection because another one of the same user replaced it.
	Kickoff()
}

// Registry maps a user to the connection on record. At most one connection is
// kept per user, the last registered one wins.
type Registry struct {
	sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register records conn for its user. A previous connection of the same user is kicked off.
func (r *Registry) Register(conn Conn) {
	r.Lock()
	prev := r.conns[conn.Uid()]
	r.conns[conn.Uid()] = conn
	r.Unlock()

	if prev != nil && prev.Sid() != conn.Sid() {
		glog.V(5).Infof("registry: uid %s: session %s replaced by %s", conn.Uid(), prev.Sid(), conn.Sid())
		prev.Kickoff()
	}
}

// Unregister removes conn if it is still the connection on record for its user.
func (r *Registry) Unregister(conn Conn) bool {
	r.Lock()
	defer r.Unlock()
	if cur, ok := r.conns[conn.Uid()]; ok && cur.Sid() == conn.Sid() {
		delete(r.conns, conn.Uid())
		return true
	}
	return false
}

func (r *Registry) Lookup(uid string) Conn {
	r.RLock()
	defer r.RUnlock()
	return r.conns[uid]
}

func (r *Registry) IsOnline(uid string) bool {
	return r.Lookup(uid) != nil
}

// OnlineUsers returns the sorted ids of the connected users.
func (r *Registry) OnlineUsers() []string {
	r.RLock()
	out := make([]string, 0, len(r.conns))
	for uid := range r.conns {
		out = append(out, uid)
	}
	r.RUnlock()
	sort.Strings(out)
	return out
}

func (r *Registry) Conns() []Conn {
	r.RLock()
	defer r.RUnlock()
	out := make([]Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.RLock()
	defer r.RUnlock()
	return len(r.conns)
}
