// Package chat routes messages between users and groups, tracks delivery
// status and unread counters, and applies message actions. Operations return
// the effects (pushes and channel subscriptions) to apply, they never write to
// a connection themselves.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pborman/uuid"

	"github.com/OgheneDev/FlowChat/media"
	"github.com/OgheneDev/FlowChat/notify"
	"github.com/OgheneDev/FlowChat/presence"
	"github.com/OgheneDev/FlowChat/store"
)

// UnreadPolicy decides when a recipient's unread counter is incremented.
type UnreadPolicy string

const (
	// UnreadOffline increments only for recipients offline at send time.
	UnreadOffline UnreadPolicy = "offline"
	// UnreadUnseen increments for every recipient at send time.
	UnreadUnseen UnreadPolicy = "unseen"
)

const (
	DefaultPreviewLen  = 50
	DefaultSearchLimit = 30
)

type Config struct {
	UnreadPolicy UnreadPolicy
	PreviewLen   int
	SearchLimit  int
}

func (c *Config) Validate() error {
	switch c.UnreadPolicy {
	case UnreadOffline, UnreadUnseen:
	default:
		return fmt.Errorf("unread policy: expect %q or %q, got %q", UnreadOffline, UnreadUnseen, c.UnreadPolicy)
	}
	if c.PreviewLen <= 0 {
		return fmt.Errorf("preview length: should be positive integer")
	}
	if c.SearchLimit <= 0 || c.SearchLimit > 100 {
		return fmt.Errorf("search limit: expect in range [1, 100]")
	}
	return nil
}

// Presence is the part of the presence registry the service depends on.
type Presence interface {
	Register(conn presence.Conn)
	Unregister(conn presence.Conn) bool
	IsOnline(uid string) bool
	OnlineUsers() []string
}

type Service struct {
	store    store.IStore
	presence Presence
	uploader media.Uploader
	notifier notify.Dispatcher
	conf     Config

	now   func() time.Time
	newID func() string
}

// NewService creates a Service. uploader and notifier may be nil: inline images
// are then rejected and notifications are skipped.
func NewService(st store.IStore, p Presence, uploader media.Uploader, notifier notify.Dispatcher, conf Config) *Service {
	if conf.UnreadPolicy == "" {
		conf.UnreadPolicy = UnreadOffline
	}
	if conf.PreviewLen <= 0 {
		conf.PreviewLen = DefaultPreviewLen
	}
	if conf.SearchLimit <= 0 {
		conf.SearchLimit = DefaultSearchLimit
	}
	return &Service{
		store:    st,
		presence: p,
		uploader: uploader,
		notifier: notifier,
		conf:     conf,
		now:      time.Now,
		newID: func() string {
			return strings.ReplaceAll(uuid.New(), "-", "")
		},
	}
}

// Identify resolves the user of a new connection. It must succeed before the
// connection is registered.
func (s *Service) Identify(ctx context.Context, uid string) (*store.User, error) {
	if !store.ValidUserID(uid) {
		return nil, newError(ErrorCodeUnauthenticated, "invalid user id")
	}
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		e := lookupError(err, "user", "identifying user")
		if e.Code == ErrorCodeNotFound {
			return nil, newError(ErrorCodeUnauthenticated, "unknown user")
		}
		return nil, e
	}
	return u, nil
}

// Connect registers conn as the user's connection, broadcasts presence,
// subscribes the connection to the user's groups and reconciles pending deliveries.
func (s *Service) Connect(ctx context.Context, conn presence.Conn) Effects {
	uid := conn.Uid()
	s.presence.Register(conn)
	if err := s.store.SetPresence(ctx, uid, true, s.now()); err != nil {
		glog.Errorf("Connect(): uid: %s, set online error: %v", uid, err)
	}

	var out Effects
	groups, err := s.store.ListUserGroups(ctx, uid)
	if err != nil {
		glog.Errorf("Connect(): uid: %s, list groups error: %v", uid, err)
	}
	for _, groupID := range groups {
		out.subscribe(uid, groupID)
	}
	out.all(EventOnlineUsers, s.presence.OnlineUsers())

	rec, err := s.reconcile(ctx, uid, groups)
	if err != nil {
		glog.Errorf("Connect(): uid: %s, reconcile error: %v", uid, err)
	}
	return append(out, rec...)
}

// Disconnect unregisters conn. Nothing happens when conn was already replaced
// by a newer connection of the same user.
func (s *Service) Disconnect(ctx context.Context, conn presence.Conn) Effects {
	if !s.presence.Unregister(conn) {
		return nil
	}
	uid := conn.Uid()
	if err := s.store.SetPresence(ctx, uid, false, s.now()); err != nil {
		glog.Errorf("Disconnect(): uid: %s, set offline error: %v", uid, err)
	}
	var out Effects
	out.all(EventOnlineUsers, s.presence.OnlineUsers())
	return out
}
