package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchResult struct {
	msg kafka.Message
	err error
}

// scriptedReader replays fetch results, then blocks until ctx is done.
type scriptedReader struct {
	fetches    []fetchResult
	commitErrs []error
	committed  []int64
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.fetches) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	v := r.fetches[0]
	r.fetches = r.fetches[1:]
	return v.msg, v.err
}

func (r *scriptedReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if len(r.commitErrs) > 0 {
		err := r.commitErrs[0]
		r.commitErrs = r.commitErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func encoded(t *testing.T, offset int64, uid string) kafka.Message {
	b, err := json.Marshal(&Notification{Uid: uid})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestConsumerRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{
		fetches: []fetchResult{
			{err: errors.New("broker down")},
			{msg: encoded(t, 1, "a")},
			{msg: encoded(t, 2, "b")},
		},
		commitErrs: []error{errors.New("rebalance"), nil},
	}

	var got []string
	var waits []time.Duration
	failures := 2
	c := NewConsumer(reader, func(ctx context.Context, n *Notification) error {
		if n.Uid == "b" && failures > 0 {
			failures--
			return errors.New("push gateway unavailable")
		}
		got = append(got, n.Uid)
		if n.Uid == "b" {
			cancel()
		}
		return nil
	})
	c.wait = func(ctx context.Context, d time.Duration) bool {
		waits = append(waits, d)
		return ctx.Err() == nil
	}
	c.Run(ctx)

	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []int64{1, 2}, reader.committed)
	// fetch error, commit error, then two handler failures with a fresh backoff.
	assert.Equal(t, []time.Duration{
		BackoffMinInterval,
		BackoffMinInterval,
		BackoffMinInterval,
		time.Duration(float64(BackoffMinInterval) * BackoffMultiplier),
	}, waits)
}

func TestConsumerStopsWhileRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &scriptedReader{fetches: []fetchResult{{msg: encoded(t, 1, "a")}}}
	calls := 0
	c := NewConsumer(reader, func(ctx context.Context, n *Notification) error {
		calls++
		if calls == 3 {
			cancel()
		}
		return errors.New("down")
	})
	c.wait = func(ctx context.Context, d time.Duration) bool { return ctx.Err() == nil }
	c.Run(ctx)

	assert.Equal(t, 3, calls)
	// Not committed, the message is fetched again after restart.
	assert.Empty(t, reader.committed)
}
