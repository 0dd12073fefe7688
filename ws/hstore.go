package ws

import (
	"sync"
)

// memory handler store for local sessions, keyed by session id.
type HandlerStore struct {
	sync.RWMutex
	handlers map[string]*Handler
}

func (hs *HandlerStore) del(sid string) bool {
	hs.Lock()
	defer hs.Unlock()
	if _, ok := hs.handlers[sid]; ok {
		delete(hs.handlers, sid)
		return true
	}
	return false
}

func (hs *HandlerStore) add(handler *Handler) {
	hs.Lock()
	sid := handler.session.Sid
	hs.handlers[sid] = handler
	hs.Unlock()
}

func (hs *HandlerStore) len() int {
	hs.RLock()
	defer hs.RUnlock()
	return len(hs.handlers)
}

// drain removes and returns all handlers.
func (hs *HandlerStore) drain() []*Handler {
	hs.Lock()
	defer hs.Unlock()
	out := make([]*Handler, 0, len(hs.handlers))
	for sid, h := range hs.handlers {
		out = append(out, h)
		delete(hs.handlers, sid)
	}
	return out
}
