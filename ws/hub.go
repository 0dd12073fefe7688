package ws

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pborman/uuid"

	"github.com/OgheneDev/FlowChat/auth"
	"github.com/OgheneDev/FlowChat/chat"
	"github.com/OgheneDev/FlowChat/presence"
)

const (
	DefaultRateLimit       = 20
	DefaultRateBurst       = 40
	DefaultMaxMessageBytes = 8 << 20
	DefaultSendQueueSize   = 256
)

// Conf configures websocket sessions.
type Conf struct {
	// RateLimit is the number of client events allowed per second, with bursts of RateBurst.
	RateLimit float64
	RateBurst int

	// MaxMessageBytes bounds one inbound frame. Inline images travel in frames.
	MaxMessageBytes int64

	SendQueueSize int

	// AllowedOrigins is checked on upgrade. Empty or "*" allows any origin.
	AllowedOrigins []string
}

func (c *Conf) setDefaults() {
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = DefaultRateBurst
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
}

// Hub works as a hub that manages and serves sessions.
type Hub struct {
	authClient auth.Client
	service    *chat.Service
	eventApi   *EventApi
	registry   *presence.Registry
	rooms      *presence.Rooms
	hstore     *HandlerStore
	upgrader   websocket.Upgrader
	conf       Conf

	// ctx is passed to service calls, it is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	stopping bool
}

// NewHub creates a `Hub`. registry must be the one the service was created with.
func NewHub(authClient auth.Client, service *chat.Service, registry *presence.Registry, conf Conf) *Hub {
	conf.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		authClient: authClient,
		service:    service,
		eventApi:   NewApi(service),
		registry:   registry,
		rooms:      presence.NewRooms(),
		hstore: &HandlerStore{
			handlers: make(map[string]*Handler),
		},
		conf:   conf,
		ctx:    ctx,
		cancel: cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin accepts the configured origins, or the request host only when
// none are configured.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.conf.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		glog.Warningf("checkOrigin(): cross origin request from %s to %s", origin, r.Host)
		return false
	}
	for _, v := range h.conf.AllowedOrigins {
		if v == "*" || strings.EqualFold(v, origin) {
			return true
		}
	}
	glog.Warningf("checkOrigin(): origin not allowed: %s", origin)
	return false
}

// ServeHTTP handles websocket requests from the peer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	stopping := h.stopping
	h.mu.RUnlock()
	if stopping {
		http.Error(w, "Server is stopping", http.StatusServiceUnavailable)
		return
	}

	uid, err := h.authClient.Auth(r)
	if err != nil {
		glog.V(5).Infof("ServeHTTP(): authenticate error: %v", err)
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	if _, err := h.service.Identify(r.Context(), uid); err != nil {
		e := chat.AsError(err)
		if e.Code == chat.ErrorCodeUnauthenticated {
			http.Error(w, "Authentication error", http.StatusUnauthorized)
		} else {
			glog.Errorf("ServeHTTP(): identify uid: %s, error: %v", uid, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	sess := &Session{
		Uid:        uid,
		Sid:        strings.ReplaceAll(uuid.New(), "-", ""),
		CreateTime: time.Now(),
		Ip:         getRemoteIP(r),
	}

	// If the upgrade fails, then Upgrade replies to the client with an HTTP error response.
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Errorf("ServeHTTP(): upgrader.Upgrade error, uid: %s, err: %s", uid, err)
		return
	}

	// NOTE:  after upgrade, `w.WriteHeader(...)`` causes error `response.Write on hijacked connection`.

	handler := newHandler(h, sess, conn)
	h.hstore.add(handler)
	connections.Inc()
	glog.V(5).Infof("ServeHTTP(): new session: %s", handler)

	go handler.sendLoop()
	h.Apply(handler, h.service.Connect(h.ctx, handler))
	onlineUsers.Set(float64(h.registry.Len()))
	go handler.recvLoop()
}

// Apply executes effects on behalf of self. self may be nil when the acting
// user has no connection, ToSelf effects are then skipped.
func (h *Hub) Apply(self presence.Conn, effects chat.Effects) {
	for _, e := range effects {
		switch e.Kind {
		case chat.ToSelf:
			if self != nil {
				self.Send(e.Event.Name, e.Event.Data)
			}
		case chat.ToUser:
			if c := h.registry.Lookup(e.UserID); c != nil {
				c.Send(e.Event.Name, e.Event.Data)
			}
		case chat.ToGroup:
			for _, c := range h.rooms.Members(e.GroupID) {
				if e.UserID != "" && c.Uid() == e.UserID {
					continue
				}
				c.Send(e.Event.Name, e.Event.Data)
			}
		case chat.ToAll:
			for _, c := range h.registry.Conns() {
				c.Send(e.Event.Name, e.Event.Data)
			}
		case chat.Subscribe:
			if c := h.registry.Lookup(e.UserID); c != nil {
				h.rooms.Join(e.GroupID, c)
			}
		case chat.Unsubscribe:
			if c := h.registry.Lookup(e.UserID); c != nil {
				h.rooms.Leave(e.GroupID, c)
			}
		case chat.CloseGroup:
			conns := h.rooms.Close(e.GroupID)
			glog.V(5).Infof("Apply(): group %s closed, %d subscriptions dropped", e.GroupID, len(conns))
		default:
			glog.Errorf("Apply(): unknown effect kind: %d", e.Kind)
		}
	}
}

// Stats reports the number of live sessions and registered users.
func (h *Hub) Stats() (sessions, users int) {
	return h.hstore.len(), h.registry.Len()
}

// ApplyAs executes effects of an operation uid performed outside a websocket
// session. ToSelf effects go to the connection of uid, if any.
func (h *Hub) ApplyAs(uid string, effects chat.Effects) {
	var self presence.Conn
	if c := h.registry.Lookup(uid); c != nil {
		self = c
	}
	h.Apply(self, effects)
}

func (h *Hub) delHandler(handler *Handler) {
	if !h.hstore.del(handler.Sid()) {
		return
	}
	connections.Dec()
	h.rooms.LeaveAll(handler)
	h.Apply(nil, h.service.Disconnect(h.ctx, handler))
	onlineUsers.Set(float64(h.registry.Len()))
}

// Close rejects new connections, then closes the live ones and records their users offline.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.stopping {
		h.mu.Unlock()
		return
	}
	h.stopping = true
	h.mu.Unlock()

	glog.Infof("close connections ...")
	handlers := h.hstore.drain()
	for _, handler := range handlers {
		handler.close(ServerStop)
		h.rooms.LeaveAll(handler)
		h.service.Disconnect(context.Background(), handler)
	}
	connections.Sub(float64(len(handlers)))
	onlineUsers.Set(float64(h.registry.Len()))
	h.cancel()
	glog.Infof("close connections done, %d closed", len(handlers))
}

func getRemoteIP(r *http.Request) string {
	ip := r.Header.Get("X-REAL-IP")
	if ip == "" {
		if ips := r.Header.Get("X-FORWARDED-FOR"); ips != "" {
			slice := strings.Split(ips, ",")
			for _, x := range slice {
				if x = strings.TrimSpace(x); x != "" {
					ip = x
				}
			}
		}
	}
	if ip == "" {
		ip, _, _ = net.SplitHostPort(r.RemoteAddr)
	}

	return ip
}
