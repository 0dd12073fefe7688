package presence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomsJoinLeave(t *testing.T) {
	r := NewRooms()
	a := &fakeConn{sid: "s1", uid: "a"}
	b := &fakeConn{sid: "s2", uid: "b"}

	r.Join("g1", a)
	r.Join("g1", b)
	r.Join("g2", a)
	assert.Len(t, r.Members("g1"), 2)
	assert.True(t, r.IsMember("g2", a))

	assert.True(t, r.Leave("g1", b))
	assert.False(t, r.Leave("g1", b))
	assert.Len(t, r.Members("g1"), 1)

	r.LeaveAll(a)
	assert.Empty(t, r.Members("g1"))
	assert.Empty(t, r.Members("g2"))
	assert.Empty(t, r.groups)
	assert.Empty(t, r.members)
}

func TestRoomsClose(t *testing.T) {
	r := NewRooms()
	a := &fakeConn{sid: "s1", uid: "a"}
	b := &fakeConn{sid: "s2", uid: "b"}
	r.Join("g1", a)
	r.Join("g1", b)
	r.Join("g2", b)

	out := r.Close("g1")
	assert.Len(t, out, 2)
	assert.Empty(t, r.Members("g1"))
	assert.True(t, r.IsMember("g2", b))
	assert.False(t, r.IsMember("g1", a))
}
