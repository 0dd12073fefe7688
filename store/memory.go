package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements `IStore` in process memory. All data is lost on exit,
// it serves development runs and tests.
type MemoryStore struct {
	mu sync.RWMutex

	users    map[string]*User
	unread   map[string]map[ConvKey]int32
	tokens   map[string][]*DeviceToken
	messages []*Message
	msgIndex map[string]*Message
	groups   map[string]*Group
	pins     map[string][]pinEntry
	stars    map[string][]string
}

var _ IStore = (*MemoryStore)(nil)

type pinEntry struct {
	key   ConvKey
	msgID string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		unread:   make(map[string]map[ConvKey]int32),
		tokens:   make(map[string][]*DeviceToken),
		msgIndex: make(map[string]*Message),
		groups:   make(map[string]*Group),
		pins:     make(map[string][]pinEntry),
		stars:    make(map[string][]string),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func copyMessage(m *Message) *Message {
	out := *m
	out.HiddenFor = append([]string(nil), m.HiddenFor...)
	if m.EditTime != nil {
		t := *m.EditTime
		out.EditTime = &t
	}
	return &out
}

func copyGroup(g *Group) *Group {
	out := *g
	out.Members = append([]string(nil), g.Members...)
	out.Admins = append([]string(nil), g.Admins...)
	return &out
}

func (s *MemoryStore) GetUser(ctx context.Context, uid string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *User) error {
	if !ValidUserID(u.ID) {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicate
	}
	v := *u
	s.users[u.ID] = &v
	return nil
}

func (s *MemoryStore) SetPresence(ctx context.Context, uid string, online bool, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[uid]
	if !ok {
		return ErrNotFound
	}
	u.Online = online
	if !online {
		u.LastSeen = &lastSeen
	}
	return nil
}

func (s *MemoryStore) IncrUnread(ctx context.Context, uid string, key ConvKey) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.unread[uid]
	if !ok {
		m = make(map[ConvKey]int32)
		s.unread[uid] = m
	}
	m[key]++
	return m[key], nil
}

func (s *MemoryStore) GetUnread(ctx context.Context, uid string, key ConvKey) (int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread[uid][key], nil
}

func (s *MemoryStore) ClearUnread(ctx context.Context, uid string, key ConvKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unread[uid][key] == 0 {
		return false, nil
	}
	s.unread[uid][key] = 0
	return true, nil
}

func (s *MemoryStore) GetUnreadCounts(ctx context.Context, uid string) (map[ConvKey]int32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[ConvKey]int32)
	for k, v := range s.unread[uid] {
		if v > 0 {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) AddDeviceToken(ctx context.Context, uid string, token *DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens[uid] {
		if t.Token == token.Token {
			t.DeviceType = token.DeviceType
			return nil
		}
	}
	v := *token
	s.tokens[uid] = append(s.tokens[uid], &v)
	return nil
}

func (s *MemoryStore) RemoveDeviceToken(ctx context.Context, uid, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	slice := s.tokens[uid]
	for i, t := range slice {
		if t.Token == token {
			s.tokens[uid] = append(slice[:i:i], slice[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) GetDeviceTokens(ctx context.Context, uid string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, t := range s.tokens[uid] {
		out = append(out, t.Token)
	}
	return out, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := copyMessage(m)
	s.messages = append(s.messages, v)
	s.msgIndex[v.ID] = v
	return nil
}

func (s *MemoryStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.msgIndex[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(m), nil
}

func (s *MemoryStore) AdvanceStatus(ctx context.Context, id string, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgIndex[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.Status >= to {
		return false, nil
	}
	m.Status = to
	return true, nil
}

// advance moves every message matching fn forward, returns copies of the moved ones.
func (s *MemoryStore) advance(to Status, fn func(m *Message) bool) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Message
	for _, m := range s.messages {
		if m.Status < to && fn(m) {
			m.Status = to
			out = append(out, copyMessage(m))
		}
	}
	return out
}

func (s *MemoryStore) DeliverPending(ctx context.Context, uid string) ([]*Message, error) {
	return s.advance(StatusDelivered, func(m *Message) bool {
		return m.ReceiverID == uid && m.Status == StatusSent
	}), nil
}

func (s *MemoryStore) DeliverPendingInGroups(ctx context.Context, uid string, groupIDs []string) ([]*Message, error) {
	return s.advance(StatusDelivered, func(m *Message) bool {
		return m.IsGroup() && m.SenderID != uid && m.Status == StatusSent && contains(groupIDs, m.GroupID)
	}), nil
}

func (s *MemoryStore) MarkSeen(ctx context.Context, senderID, receiverID string) ([]string, error) {
	return messageIDs(s.advance(StatusSeen, func(m *Message) bool {
		return m.SenderID == senderID && m.ReceiverID == receiverID
	})), nil
}

func (s *MemoryStore) MarkGroupSeen(ctx context.Context, groupID, uid string) ([]string, error) {
	return messageIDs(s.advance(StatusSeen, func(m *Message) bool {
		return m.GroupID == groupID && m.SenderID != uid
	})), nil
}

func (s *MemoryStore) EditMessage(ctx context.Context, id, text string, editTime time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgIndex[id]
	if !ok {
		return ErrNotFound
	}
	if m.DeletedForEveryone {
		return ErrNotFound
	}
	m.Text = text
	m.Edited = true
	m.EditTime = &editTime
	return nil
}

func (s *MemoryStore) HideMessage(ctx context.Context, id, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgIndex[id]
	if !ok {
		return false, ErrNotFound
	}
	if m.HiddenFrom(uid) {
		return false, nil
	}
	m.HiddenFor = append(m.HiddenFor, uid)
	return true, nil
}

func (s *MemoryStore) DeleteForEveryone(ctx context.Context, id, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.msgIndex[id]
	if !ok {
		return ErrNotFound
	}
	m.DeletedForEveryone = true
	m.DeletedBy = by
	m.Text = Tombstone
	m.Image = ""
	return nil
}

func (s *MemoryStore) SearchMessages(ctx context.Context, uid string, groupIDs []string, query string, limit int) ([]*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	query = strings.ToLower(query)
	var out []*Message
	for i := len(s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.messages[i]
		if m.DeletedForEveryone || m.HiddenFrom(uid) {
			continue
		}
		if m.SenderID != uid && m.ReceiverID != uid && !contains(groupIDs, m.GroupID) {
			continue
		}
		if strings.Contains(strings.ToLower(m.Text), query) {
			out = append(out, copyMessage(m))
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return ErrDuplicate
	}
	s.groups[g.ID] = copyGroup(g)
	return nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyGroup(g), nil
}

func (s *MemoryStore) ListUserGroups(ctx context.Context, uid string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, g := range s.groups {
		if g.IsMember(uid) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) UpdateGroup(ctx context.Context, g *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.groups[g.ID]
	if !ok {
		return ErrNotFound
	}
	v.Name = g.Name
	v.Description = g.Description
	v.Image = g.Image
	return nil
}

func (s *MemoryStore) AddMembers(ctx context.Context, groupID string, uids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, ErrNotFound
	}
	var added []string
	for _, uid := range uids {
		if !g.IsMember(uid) {
			g.Members = append(g.Members, uid)
			added = append(added, uid)
		}
	}
	return added, nil
}

func remove(slice []string, v string) []string {
	out := slice[:0]
	for _, x := range slice {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func (s *MemoryStore) RemoveMember(ctx context.Context, groupID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return ErrNotFound
	}
	g.Members = remove(g.Members, uid)
	g.Admins = remove(g.Admins, uid)
	return nil
}

func (s *MemoryStore) PromoteAdmin(ctx context.Context, groupID, uid string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, ErrNotFound
	}
	if !g.IsMember(uid) || g.IsAdmin(uid) {
		return false, nil
	}
	g.Admins = append(g.Admins, uid)
	return true, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)

	removed := make(map[string]bool)
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.GroupID == id {
			removed[m.ID] = true
			delete(s.msgIndex, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept

	for uid, slice := range s.pins {
		out := slice[:0]
		for _, p := range slice {
			if !removed[p.msgID] {
				out = append(out, p)
			}
		}
		s.pins[uid] = out
	}
	for uid, slice := range s.stars {
		out := slice[:0]
		for _, msgID := range slice {
			if !removed[msgID] {
				out = append(out, msgID)
			}
		}
		s.stars[uid] = out
	}
	for _, m := range s.unread {
		delete(m, GroupKey(id))
	}
	return nil
}

func (s *MemoryStore) AddPin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pins[uid] {
		if p.key == key && p.msgID == msgID {
			return false, nil
		}
	}
	s.pins[uid] = append(s.pins[uid], pinEntry{key: key, msgID: msgID})
	return true, nil
}

func (s *MemoryStore) RemovePin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slice := s.pins[uid]
	for i, p := range slice {
		if p.key == key && p.msgID == msgID {
			s.pins[uid] = append(slice[:i:i], slice[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) RemovePinsOf(ctx context.Context, msgID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for uid, slice := range s.pins {
		out := slice[:0]
		for _, p := range slice {
			if p.msgID == msgID {
				n++
				continue
			}
			out = append(out, p)
		}
		s.pins[uid] = out
	}
	return n, nil
}

func (s *MemoryStore) ListPins(ctx context.Context, uid string, key ConvKey) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, p := range s.pins[uid] {
		if p.key == key {
			out = append(out, p.msgID)
		}
	}
	return out, nil
}

func (s *MemoryStore) AddStar(ctx context.Context, uid, msgID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contains(s.stars[uid], msgID) {
		return false, nil
	}
	s.stars[uid] = append(s.stars[uid], msgID)
	return true, nil
}

func (s *MemoryStore) RemoveStar(ctx context.Context, uid, msgID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !contains(s.stars[uid], msgID) {
		return false, nil
	}
	s.stars[uid] = remove(s.stars[uid], msgID)
	return true, nil
}

func (s *MemoryStore) ListStars(ctx context.Context, uid string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.stars[uid]))
	for i := len(s.stars[uid]) - 1; i >= 0; i-- {
		out = append(out, s.stars[uid][i])
	}
	return out, nil
}
