package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OgheneDev/FlowChat/notify"
	notify_mock "github.com/OgheneDev/FlowChat/notify/mock"
)

func TestKafkaDispatch(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := notify_mock.NewMockIKafkaWriter(mockCtrl)
	d := notify.NewKafkaDispatcher(writer, 0)

	n := &notify.Notification{
		Uid:    "u2",
		Title:  "Alice",
		Body:   "hi",
		Tokens: []string{"t1"},
		Data:   map[string]string{"type": "new_message", "senderId": "u1"},
	}
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, msgs ...kafka.Message) error {
		require.Len(t, msgs, 1)
		assert.Equal(t, "u2", string(msgs[0].Key))
		var got notify.Notification
		require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
		assert.Equal(t, "Alice", got.Title)
		assert.Equal(t, "new_message", got.Data["type"])
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return nil
	})
	assert.NoError(t, d.Dispatch(context.Background(), n))
}

func TestKafkaDispatchTooLarge(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := notify_mock.NewMockIKafkaWriter(mockCtrl)
	d := notify.NewKafkaDispatcher(writer, 128)

	err := d.Dispatch(context.Background(), &notify.Notification{Uid: "u2", Body: strings.Repeat("x", 200)})
	assert.True(t, errors.Is(err, notify.ErrTooLarge))
}

func TestKafkaDispatchWriteError(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	writer := notify_mock.NewMockIKafkaWriter(mockCtrl)
	writer.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(errors.New("leader not available"))
	d := notify.NewKafkaDispatcher(writer, 0)

	err := d.Dispatch(context.Background(), &notify.Notification{Uid: "u2", CreateTime: time.Now()})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, notify.ErrTooLarge))
}
