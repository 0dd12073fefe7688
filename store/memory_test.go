package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMessage(id, from, to string) *Message {
	return &Message{ID: id, SenderID: from, ReceiverID: to, Text: "hello " + id, CreateTime: time.Now()}
}

func TestMemoryStatusNeverRegresses(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("m1", "a", "b")))

	ok, err := s.AdvanceStatus(ctx, "m1", StatusSeen)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AdvanceStatus(ctx, "m1", StatusDelivered)
	assert.NoError(t, err)
	assert.False(t, ok)

	m, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, StatusSeen, m.Status)

	delivered, err := s.DeliverPending(ctx, "b")
	assert.NoError(t, err)
	assert.Empty(t, delivered)
}

func TestMemoryCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.CreateUser(ctx, &User{ID: "a", FullName: "Alice"}))
	assert.ErrorIs(t, s.CreateUser(ctx, &User{ID: "a", FullName: "Other"}), ErrDuplicate)
	assert.ErrorIs(t, s.CreateUser(ctx, &User{ID: "group_g1"}), ErrInvalidID)
	assert.ErrorIs(t, s.CreateUser(ctx, &User{}), ErrInvalidID)

	u, err := s.GetUser(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.FullName)

	g := &Group{ID: "g1", Name: "team", Members: []string{"a"}, Admins: []string{"a"}}
	require.NoError(t, s.CreateGroup(ctx, g))
	assert.ErrorIs(t, s.CreateGroup(ctx, g), ErrDuplicate)
}

func TestMemoryEditDeleted(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("m1", "a", "b")))

	require.NoError(t, s.EditMessage(ctx, "m1", "edited", time.Now()))
	require.NoError(t, s.DeleteForEveryone(ctx, "m1", "a"))
	assert.ErrorIs(t, s.EditMessage(ctx, "m1", "again", time.Now()), ErrNotFound)
	assert.ErrorIs(t, s.EditMessage(ctx, "m2", "again", time.Now()), ErrNotFound)

	m, err := s.GetMessage(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, Tombstone, m.Text)
}

func TestMemoryDeliverPendingIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("m1", "a", "c")))
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("m2", "b", "c")))
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("m3", "a", "d")))

	out, err := s.DeliverPending(ctx, "c")
	assert.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, messageIDs(out))
	for _, m := range out {
		assert.Equal(t, StatusDelivered, m.Status)
	}

	out, err = s.DeliverPending(ctx, "c")
	assert.NoError(t, err)
	assert.Empty(t, out)

	m, _ := s.GetMessage(ctx, "m3")
	assert.Equal(t, StatusSent, m.Status)
}

func TestMemoryDeliverPendingInGroups(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "g1", SenderID: "a", GroupID: "g", Text: "x"}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "g2", SenderID: "b", GroupID: "g", Text: "x"}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "g3", SenderID: "a", GroupID: "h", Text: "x"}))

	out, err := s.DeliverPendingInGroups(ctx, "b", []string{"g"})
	assert.NoError(t, err)
	assert.Equal(t, []string{"g1"}, messageIDs(out))

	out, err = s.DeliverPendingInGroups(ctx, "b", nil)
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryConcurrentUnread(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	const N = 50
	var wg sync.WaitGroup
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.IncrUnread(ctx, "b", DirectKey("a"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := s.GetUnread(ctx, "b", DirectKey("a"))
	assert.NoError(t, err)
	assert.Equal(t, int32(N), n)

	changed, err := s.ClearUnread(ctx, "b", DirectKey("a"))
	assert.NoError(t, err)
	assert.True(t, changed)

	changed, err = s.ClearUnread(ctx, "b", DirectKey("a"))
	assert.NoError(t, err)
	assert.False(t, changed)

	counts, err := s.GetUnreadCounts(ctx, "b")
	assert.NoError(t, err)
	assert.Empty(t, counts)
}

func TestMemoryMarkSeen(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateMessage(ctx, newTestMessage(fmt.Sprintf("m%d", i), "a", "b")))
	}
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("r1", "b", "a")))

	ids, err := s.MarkSeen(ctx, "a", "b")
	assert.NoError(t, err)
	assert.Equal(t, []string{"m0", "m1", "m2"}, ids)

	ids, err = s.MarkSeen(ctx, "a", "b")
	assert.NoError(t, err)
	assert.Empty(t, ids)

	m, _ := s.GetMessage(ctx, "r1")
	assert.Equal(t, StatusSent, m.Status)
}

func TestMemoryPins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	added, err := s.AddPin(ctx, "a", DirectKey("b"), "m1")
	assert.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddPin(ctx, "a", DirectKey("b"), "m1")
	assert.NoError(t, err)
	assert.False(t, added)

	_, _ = s.AddPin(ctx, "b", DirectKey("a"), "m1")
	_, _ = s.AddPin(ctx, "b", DirectKey("a"), "m2")

	removed, err := s.RemovePin(ctx, "a", DirectKey("b"), "m9")
	assert.NoError(t, err)
	assert.False(t, removed)

	n, err := s.RemovePinsOf(ctx, "m1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)

	pins, _ := s.ListPins(ctx, "a", DirectKey("b"))
	assert.Empty(t, pins)
	pins, _ = s.ListPins(ctx, "b", DirectKey("a"))
	assert.Equal(t, []string{"m2"}, pins)
}

func TestMemoryDeleteGroupCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateGroup(ctx, &Group{ID: "g", Name: "team", Members: []string{"a", "b"}, Admins: []string{"a"}}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "g1", SenderID: "a", GroupID: "g", Text: "x"}))
	require.NoError(t, s.CreateMessage(ctx, newTestMessage("d1", "a", "b")))
	_, _ = s.AddPin(ctx, "b", GroupKey("g"), "g1")
	_, _ = s.AddStar(ctx, "b", "g1")
	_, _ = s.IncrUnread(ctx, "b", GroupKey("g"))

	require.NoError(t, s.DeleteGroup(ctx, "g"))

	_, err := s.GetGroup(ctx, "g")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMessage(ctx, "g1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetMessage(ctx, "d1")
	assert.NoError(t, err)

	pins, _ := s.ListPins(ctx, "b", GroupKey("g"))
	assert.Empty(t, pins)
	stars, _ := s.ListStars(ctx, "b")
	assert.Empty(t, stars)
	n, _ := s.GetUnread(ctx, "b", GroupKey("g"))
	assert.Zero(t, n)
}

func TestMemorySearchVisibility(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "1", SenderID: "a", ReceiverID: "b", Text: "Lunch today?"}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "2", SenderID: "c", ReceiverID: "d", Text: "lunch plans"}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "3", SenderID: "c", GroupID: "g", Text: "team lunch"}))
	require.NoError(t, s.CreateMessage(ctx, &Message{ID: "4", SenderID: "b", ReceiverID: "a", Text: "lunch at noon"}))
	_, _ = s.HideMessage(ctx, "4", "a")

	out, err := s.SearchMessages(ctx, "a", []string{"g"}, "LUNCH", 30)
	assert.NoError(t, err)
	assert.Equal(t, []string{"3", "1"}, messageIDs(out))

	out, _ = s.SearchMessages(ctx, "a", []string{"g"}, "lunch", 1)
	assert.Len(t, out, 1)
}
