package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang/glog"
	"github.com/segmentio/kafka-go"
)

const kafkaReadTimeout = 10 * time.Second

func NewKafkaReader(brokers []string, groupID, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer: &kafka.Dialer{
			Timeout:   kafkaReadTimeout,
			DualStack: true,
		},
	})
}

// HandleFunc delivers one notification. A returned error makes the consumer
// retry the same notification.
type HandleFunc func(ctx context.Context, n *Notification) error

// Consumer reads notifications from the topic in order and commits each one
// after it was handled. Undecodable messages are skipped.
type Consumer struct {
	reader IKafkaReader
	handle HandleFunc

	wait func(ctx context.Context, d time.Duration) bool
}

func NewConsumer(reader IKafkaReader, handle HandleFunc) *Consumer {
	return &Consumer{reader: reader, handle: handle, wait: wait}
}

// wait sleeps for d, reports false if ctx is done first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run consumes until ctx is done.
func (c *Consumer) Run(ctx context.Context) {
	var sleep time.Duration
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				glog.V(5).Info("consumer: fetch was cancelled")
				return
			}
			glog.Errorf("consumer: fetch message error: %v", err)
			backoff(&sleep)
			if !c.wait(ctx, sleep) {
				return
			}
			continue
		}
		sleep = 0

		n := &Notification{}
		if err := json.Unmarshal(msg.Value, n); err != nil {
			glog.Warningf("consumer: skip bad message at offset %d: %v", msg.Offset, err)
		} else if !c.deliver(ctx, n) {
			return
		}

		for {
			err := c.reader.CommitMessages(ctx, msg)
			if err == nil {
				break
			}
			// If the message is not committed back, it is fetched again after restart.
			glog.Errorf("consumer: commit offset %d error: %v", msg.Offset, err)
			if errors.Is(err, context.Canceled) {
				return
			}
			backoff(&sleep)
			if !c.wait(ctx, sleep) {
				return
			}
		}
		sleep = 0
	}
}

func (c *Consumer) deliver(ctx context.Context, n *Notification) bool {
	var sleep time.Duration
	for {
		err := c.handle(ctx, n)
		if err == nil {
			return true
		}
		glog.Errorf("consumer: handle notification for uid %s error: %v", n.Uid, err)
		backoff(&sleep)
		if !c.wait(ctx, sleep) {
			return false
		}
	}
}
