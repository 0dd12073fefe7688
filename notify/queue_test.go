package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingDispatcher holds every Dispatch until release is closed.
type blockingDispatcher struct {
	fakeDispatcher
	release chan struct{}
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, n *Notification) error {
	<-d.release
	return d.fakeDispatcher.Dispatch(ctx, n)
}

func (d *blockingDispatcher) uids() []string {
	d.Lock()
	defer d.Unlock()
	var out []string
	for _, v := range d.sent {
		out = append(out, v.Uid)
	}
	return out
}

func TestQueueDispatchDoesNotWait(t *testing.T) {
	next := &blockingDispatcher{release: make(chan struct{})}
	q := NewQueue(next, 2)

	start := time.Now()
	assert.NoError(t, q.Dispatch(context.Background(), &Notification{Uid: "u1"}))
	assert.NoError(t, q.Dispatch(context.Background(), &Notification{Uid: "u2"}))
	assert.ErrorIs(t, q.Dispatch(context.Background(), &Notification{Uid: "u3"}), ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 2, q.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	close(next.release)
	assert.Eventually(t, func() bool {
		return len(next.uids()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"u1", "u2"}, next.uids())
}

func TestQueueDrainsOnStop(t *testing.T) {
	next := &blockingDispatcher{release: make(chan struct{})}
	close(next.release)
	q := NewQueue(next, 8)

	for _, uid := range []string{"u1", "u2", "u3"} {
		require.NoError(t, q.Dispatch(context.Background(), &Notification{Uid: uid}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		q.Run(ctx)
	}()
	wg.Wait()

	assert.Equal(t, 0, q.Len())
	assert.ElementsMatch(t, []string{"u1", "u2", "u3"}, next.uids())
}
