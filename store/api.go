package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a referenced user, message or group does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when creating a user or group whose id is taken.
	ErrDuplicate = errors.New("store: duplicate id")

	// ErrInvalidID is returned for a user id that could be mistaken for a group key.
	ErrInvalidID = errors.New("store: invalid user id")
)

type IUserStore interface {
	GetUser(ctx context.Context, uid string) (*User, error)

	CreateUser(ctx context.Context, u *User) error

	// SetPresence persists the online flag. lastSeen is stored when going offline.
	SetPresence(ctx context.Context, uid string, online bool, lastSeen time.Time) error

	// IncrUnread atomically increments the unread counter and returns the new value.
	IncrUnread(ctx context.Context, uid string, key ConvKey) (int32, error)

	GetUnread(ctx context.Context, uid string, key ConvKey) (int32, error)

	// ClearUnread zeroes the counter, reports whether it was non-zero.
	ClearUnread(ctx context.Context, uid string, key ConvKey) (bool, error)

	// GetUnreadCounts returns all non-zero counters of the user.
	GetUnreadCounts(ctx context.Context, uid string) (map[ConvKey]int32, error)

	AddDeviceToken(ctx context.Context, uid string, token *DeviceToken) error
	RemoveDeviceToken(ctx context.Context, uid, token string) error
	GetDeviceTokens(ctx context.Context, uid string) ([]string, error)
}

type IMessageStore interface {
	CreateMessage(ctx context.Context, m *Message) error

	// GetMessage returns the message with its hidden-for set loaded.
	GetMessage(ctx context.Context, id string) (*Message, error)

	// AdvanceStatus moves the status forward to `to`. It reports false when the
	// message is already at or beyond `to`.
	AdvanceStatus(ctx context.Context, id string, to Status) (bool, error)

	// DeliverPending moves every direct message addressed to uid from sent to
	// delivered, and returns exactly the messages it moved.
	DeliverPending(ctx context.Context, uid string) ([]*Message, error)

	// DeliverPendingInGroups is DeliverPending for group messages not authored by uid.
	DeliverPendingInGroups(ctx context.Context, uid string, groupIDs []string) ([]*Message, error)

	// MarkSeen moves the messages sent by senderID to receiverID to seen,
	// returns the ids it moved.
	MarkSeen(ctx context.Context, senderID, receiverID string) ([]string, error)

	// MarkGroupSeen moves the group messages not authored by uid to seen.
	MarkGroupSeen(ctx context.Context, groupID, uid string) ([]string, error)

	// EditMessage returns ErrNotFound for a message deleted for everyone.
	EditMessage(ctx context.Context, id, text string, editTime time.Time) error

	// HideMessage adds uid to the hidden-for set, reports whether it was added.
	HideMessage(ctx context.Context, id, uid string) (bool, error)

	// DeleteForEveryone replaces the content with the tombstone.
	DeleteForEveryone(ctx context.Context, id, by string) error

	// SearchMessages finds messages visible to uid, newest first.
	SearchMessages(ctx context.Context, uid string, groupIDs []string, query string, limit int) ([]*Message, error)
}

type IGroupStore interface {
	CreateGroup(ctx context.Context, g *Group) error
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListUserGroups(ctx context.Context, uid string) ([]string, error)

	// UpdateGroup saves name, description and image.
	UpdateGroup(ctx context.Context, g *Group) error

	// AddMembers returns the uids that were not members before.
	AddMembers(ctx context.Context, groupID string, uids []string) ([]string, error)
	RemoveMember(ctx context.Context, groupID, uid string) error
	PromoteAdmin(ctx context.Context, groupID, uid string) (bool, error)

	// DeleteGroup removes the group with its members, messages, pins and unread counters.
	DeleteGroup(ctx context.Context, id string) error
}

// IPinStore keeps per-user pins (scoped to a conversation) and stars.
type IPinStore interface {
	AddPin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error)
	RemovePin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error)

	// RemovePinsOf removes the message from every user's pins.
	RemovePinsOf(ctx context.Context, msgID string) (int64, error)

	ListPins(ctx context.Context, uid string, key ConvKey) ([]string, error)

	AddStar(ctx context.Context, uid, msgID string) (bool, error)
	RemoveStar(ctx context.Context, uid, msgID string) (bool, error)
	ListStars(ctx context.Context, uid string) ([]string, error)
}

type IStore interface {
	IUserStore
	IMessageStore
	IGroupStore
	IPinStore

	Close() error
}
