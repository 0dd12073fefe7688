package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/segmentio/kafka-go"
)

const (
	kafkaWriteTimeout = 3 * time.Second
	kafkaBatchTimeout = 10 * time.Millisecond
	DefaultMaxBytes   = 64 * 1024
)

// ErrTooLarge is returned for a notification exceeding the payload limit.
// Retrying it never helps.
var ErrTooLarge = errors.New("notify: notification exceeds max size")

func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: kafkaBatchTimeout,
		Dialer:       &kafka.Dialer{
			Timeout:   kafkaWriteTimeout,
			DualStack: true,
		},
	})
}

// KafkaDispatcher writes notifications to a topic keyed by the recipient uid, so
// that the notifications of one user stay ordered.
type KafkaDispatcher struct {
	writer   IKafkaWriter
	maxBytes int
}

var _ Dispatcher = (*KafkaDispatcher)(nil)

func NewKafkaDispatcher(writer IKafkaWriter, maxBytes int) *KafkaDispatcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &KafkaDispatcher{writer: writer, maxBytes: maxBytes}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, n *Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification for %s: %w", n.Uid, err)
	}
	if len(value) > d.maxBytes {
		dispatchFailures.WithLabelValues("too_large").Inc()
		return fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(value), d.maxBytes)
	}

	ctx2, cancel := context.WithTimeout(ctx, kafkaWriteTimeout)
	defer cancel()
	if err := d.writer.WriteMessages(ctx2, kafka.Message{Key: []byte(n.Uid), Value: value}); err != nil {
		dispatchFailures.WithLabelValues("write").Inc()
		return fmt.Errorf("write notification to kafka: %w", err)
	}
	dispatched.Inc()
	glog.V(5).Infof("Dispatch(): uid: %s, %d tokens, %d bytes", n.Uid, len(n.Tokens), len(value))
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
