// Package server runs the HTTP server together with the background workers
// until the context is cancelled, then stops them in order.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
)

const shutdownTimeout = 10 * time.Second

// Worker runs in background until ctx is done.
type Worker interface {
	Run(ctx context.Context)
}

// Closer is closed after the http server shut down, e.g. the websocket hub.
type Closer interface {
	Close()
}

type Conf struct {
	Addr    string
	Handler http.Handler
	Hub     Closer
	Workers []Worker
}

type Server struct {
	conf       Conf
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
}

func New(conf Conf) *Server {
	return &Server{
		conf:       conf,
		httpServer: &http.Server{Handler: conf.Handler},
	}
}

// Addr returns the listening address, nil before Run listens.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Run blocks until ctx is done or the http server fails.
func (s *Server) Run(ctx context.Context) error {
	glog.Infof("server is starting")

	lis, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return fmt.Errorf("listen %s error: %v", s.conf.Addr, err)
	}
	s.mu.Lock()
	s.addr = lis.Addr()
	s.mu.Unlock()

	serveErrC := make(chan error, 1)
	go func() {
		glog.Infof("http server is listening %v", lis.Addr())
		if err := s.httpServer.Serve(lis); errors.Is(err, http.ErrServerClosed) {
			glog.Infof("http server closed")
			serveErrC <- nil
		} else {
			serveErrC <- fmt.Errorf("error serve http mux server: %v", err)
		}
	}()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, w := range s.conf.Workers {
		wg.Add(1)
		go func(w Worker) {
			defer wg.Done()
			w.Run(workerCtx)
		}(w)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		glog.Infof("server is stopping")
	case serveErr = <-serveErrC:
		glog.Errorf("server is stopping: %v", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		glog.Errorf("http server shutdown error: %v", err)
	}
	glog.Infof("server: http server shutdown done")

	if s.conf.Hub != nil {
		s.conf.Hub.Close()
		glog.Infof("server: hub stopped")
	}

	cancelWorkers()
	wg.Wait()
	glog.Infof("server: workers stopped")
	return serveErr
}
