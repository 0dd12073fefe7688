package server

import (
	"context"
	"io/ioutil"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWorker struct {
	running int32
	stopped int32
}

func (w *testWorker) Run(ctx context.Context) {
	atomic.StoreInt32(&w.running, 1)
	<-ctx.Done()
	atomic.StoreInt32(&w.stopped, 1)
}

type testHub struct {
	closed bool
}

func (h *testHub) Close() { h.closed = true }

func TestServerRun(t *testing.T) {
	worker := &testWorker{}
	hub := &testHub{}
	s := New(Conf{
		Addr:    "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("pong"))
		}),
		Hub:     hub,
		Workers: []Worker{worker},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&worker.running) == 1 }, 3*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Addr().String())
	require.NoError(t, err)
	body, err := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, hub.closed)
	assert.Equal(t, int32(1), atomic.LoadInt32(&worker.stopped))
}

func TestServerListenError(t *testing.T) {
	s := New(Conf{Addr: "not-an-address", Handler: http.NotFoundHandler()})
	assert.Error(t, s.Run(context.Background()))
}
