package notify

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"
)

const (
	DefaultQueueSize = 1024

	queueDrainTimeout = 5 * time.Second
)

// ErrQueueFull is returned when the queue buffer has no room left.
var ErrQueueFull = errors.New("notify: queue is full")

// Queue hands notifications to the wrapped dispatcher from Run, so Dispatch
// never waits on the broker.
type Queue struct {
	next Dispatcher
	ch   chan *Notification
}

var _ Dispatcher = (*Queue)(nil)

func NewQueue(next Dispatcher, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{next: next, ch: make(chan *Notification, size)}
}

// Dispatch enqueues n. The notification is dropped with ErrQueueFull when the
// buffer is full.
func (q *Queue) Dispatch(ctx context.Context, n *Notification) error {
	select {
	case q.ch <- n:
		queueSize.Inc()
		return nil
	default:
		dispatchFailures.WithLabelValues("queue_full").Inc()
		return ErrQueueFull
	}
}

func (q *Queue) Len() int {
	return len(q.ch)
}

// Run dispatches queued notifications until ctx is done, then drains what is
// left within queueDrainTimeout.
func (q *Queue) Run(ctx context.Context) {
	glog.Infof("notification queue is running, size: %d", cap(q.ch))
	for {
		select {
		case n := <-q.ch:
			q.send(ctx, n)
		case <-ctx.Done():
			q.drain()
			glog.Info("notification queue stopped")
			return
		}
	}
}

func (q *Queue) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), queueDrainTimeout)
	defer cancel()
	for {
		select {
		case n := <-q.ch:
			q.send(ctx, n)
		default:
			return
		}
	}
}

func (q *Queue) send(ctx context.Context, n *Notification) {
	queueSize.Dec()
	if err := q.next.Dispatch(ctx, n); err != nil {
		glog.Errorf("send(): uid: %s, dispatch error: %v", n.Uid, err)
	}
}
