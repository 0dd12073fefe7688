// Package api serves the HTTP surface: the websocket endpoint, group
// management routes, health and metrics.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/OgheneDev/FlowChat/auth"
	"github.com/OgheneDev/FlowChat/chat"
)

// Hub is the part of the websocket hub the routes depend on.
type Hub interface {
	http.Handler
	ApplyAs(uid string, effects chat.Effects)
	Stats() (sessions, users int)
}

type Conf struct {
	DisableMetrics bool
	AllowedOrigins []string
}

type Server struct {
	hub        Hub
	service    *chat.Service
	authClient auth.Client
}

// NewRouter builds the HTTP handler with CORS applied.
func NewRouter(hub Hub, service *chat.Service, authClient auth.Client, conf Conf) http.Handler {
	s := &Server{hub: hub, service: service, authClient: authClient}

	r := mux.NewRouter()
	r.Handle("/ws", hub)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if !conf.DisableMetrics {
		r.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}

	groups := r.PathPrefix("/api/groups").Subrouter()
	groups.HandleFunc("", s.authed(s.createGroup)).Methods(http.MethodPost)
	groups.HandleFunc("/{groupId}", s.authed(s.updateGroup)).Methods(http.MethodPut)
	groups.HandleFunc("/{groupId}", s.authed(s.deleteGroup)).Methods(http.MethodDelete)
	groups.HandleFunc("/{groupId}/members", s.authed(s.addMembers)).Methods(http.MethodPost)
	groups.HandleFunc("/{groupId}/members/{memberId}", s.authed(s.removeMember)).Methods(http.MethodDelete)
	groups.HandleFunc("/{groupId}/admins", s.authed(s.promoteAdmin)).Methods(http.MethodPost)
	groups.HandleFunc("/{groupId}/leave", s.authed(s.exitGroup)).Methods(http.MethodPost)

	// Without configured origins only same-origin requests are served.
	if len(conf.AllowedOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, uid string)

func (s *Server) authed(fn authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := s.authClient.Auth(r)
		if err != nil {
			glog.V(5).Infof("%s %s: authenticate error: %v", r.Method, r.URL.Path, err)
			writeError(w, &chat.Error{Code: chat.ErrorCodeUnauthenticated, Message: "authentication required"})
			return
		}
		fn(w, r, uid)
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	sessions, users := s.hub.Stats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": sessions,
		"online":   users,
	})
}

var statusCodes = map[int]int{
	chat.ErrorCodeInvalidArguments:  http.StatusBadRequest,
	chat.ErrorCodeNotFound:          http.StatusNotFound,
	chat.ErrorCodePermissionDenied:  http.StatusForbidden,
	chat.ErrorCodeResourceExhausted: http.StatusTooManyRequests,
	chat.ErrorCodeInternal:          http.StatusInternalServerError,
	chat.ErrorCodeUnauthenticated:   http.StatusUnauthorized,
}

func writeError(w http.ResponseWriter, err error) {
	e := chat.AsError(err)
	status, ok := statusCodes[e.Code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		glog.Errorf("api error: %v", err)
	}
	writeJSON(w, status, map[string]interface{}{"error": e})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("writeJSON(): encode error: %v", err)
	}
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return chat.NewInvalidArgumentError("malformed request body")
	}
	return nil
}
