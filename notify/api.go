// Package notify hands push notifications for offline users to the
// notification service, through a Kafka topic.
package notify

//go:generate mockgen -destination=mock/mock_notify.go -package=mock github.com/OgheneDev/FlowChat/notify Dispatcher,IKafkaWriter,IKafkaReader

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Notification is consumed by the push service, which delivers it to the device tokens.
type Notification struct {
	Uid        string            `json:"uid"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Tokens     []string          `json:"tokens"`
	Data       map[string]string `json:"data,omitempty"`
	CreateTime time.Time         `json:"createTime"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, n *Notification) error
}

type IKafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type IKafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
