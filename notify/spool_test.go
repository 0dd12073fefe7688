package notify

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	sync.Mutex
	err  error
	sent []*Notification
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, n *Notification) error {
	d.Lock()
	defer d.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, n)
	return nil
}

func (d *fakeDispatcher) setErr(err error) {
	d.Lock()
	d.err = err
	d.Unlock()
}

func openTestSpool(t *testing.T, next Dispatcher) *Spool {
	s, err := OpenSpool(next, SpoolConfig{Path: filepath.Join(t.TempDir(), "spool.db"), TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSpoolKeepsFailedNotifications(t *testing.T) {
	next := &fakeDispatcher{err: errors.New("broker down")}
	s := openTestSpool(t, next)
	ctx := context.Background()

	for _, uid := range []string{"u1", "u2", "u3"} {
		assert.NoError(t, s.Dispatch(ctx, &Notification{Uid: uid, CreateTime: time.Now()}))
	}
	assert.Equal(t, 3, s.Len())

	n, err := s.Flush(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, s.Len())

	next.setErr(nil)
	n, err = s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, s.Len())

	var uids []string
	for _, v := range next.sent {
		uids = append(uids, v.Uid)
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, uids)
}

func TestSpoolDispatchPassThrough(t *testing.T) {
	next := &fakeDispatcher{}
	s := openTestSpool(t, next)

	require.NoError(t, s.Dispatch(context.Background(), &Notification{Uid: "u1"}))
	assert.Equal(t, 0, s.Len())
	assert.Len(t, next.sent, 1)
}

func TestSpoolRejectsTooLarge(t *testing.T) {
	next := &fakeDispatcher{err: ErrTooLarge}
	s := openTestSpool(t, next)

	err := s.Dispatch(context.Background(), &Notification{Uid: "u1"})
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Equal(t, 0, s.Len())
}

func TestSpoolDropsExpired(t *testing.T) {
	next := &fakeDispatcher{err: errors.New("broker down")}
	s := openTestSpool(t, next)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, s.Dispatch(ctx, &Notification{Uid: "old", CreateTime: now.Add(-2 * time.Hour)}))
	require.NoError(t, s.Dispatch(ctx, &Notification{Uid: "new", CreateTime: now}))

	next.setErr(nil)
	n, err := s.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, next.sent, 1)
	assert.Equal(t, "new", next.sent[0].Uid)
}

func TestSpoolSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spool.db")
	next := &fakeDispatcher{err: errors.New("broker down")}

	s, err := OpenSpool(next, SpoolConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, s.Dispatch(context.Background(), &Notification{Uid: "u1", CreateTime: time.Now()}))
	require.NoError(t, s.Close())

	s, err = OpenSpool(next, SpoolConfig{Path: path})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.Len())
}

func TestSpoolRunStopsOnCancel(t *testing.T) {
	next := &fakeDispatcher{}
	s := openTestSpool(t, next)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestBackoff(t *testing.T) {
	var d time.Duration
	backoff(&d)
	assert.Equal(t, BackoffMinInterval, d)
	backoff(&d)
	assert.Equal(t, 1500*time.Millisecond, d)

	d = 50 * time.Second
	backoff(&d)
	assert.Equal(t, BackoffMinInterval, d)
}
