package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the delivery status of a message. It only moves forward:
// sent -> delivered -> seen.
type Status int8

const (
	StatusSent Status = iota
	StatusDelivered
	StatusSeen
)

const (
	// MaxTextLen is the max number of characters of a message text.
	MaxTextLen = 2000

	// Tombstone replaces the content of a message deleted for everyone.
	Tombstone = "This message was deleted"
)

var statusNames = [...]string{"sent", "delivered", "seen"}

func (s Status) String() string {
	if s < StatusSent || s > StatusSeen {
		return fmt.Sprintf("status(%d)", int8(s))
	}
	return statusNames[s]
}

func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status: %q", v)
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	out, err := ParseStatus(v)
	if err != nil {
		return err
	}
	*s = out
	return nil
}

type User struct {
	ID       string     `json:"id"`
	FullName string     `json:"fullName"`
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type DeviceToken struct {
	Token      string    `json:"token"`
	DeviceType string    `json:"deviceType"`
	CreateTime time.Time `json:"createTime"`
}

// MessageRef is the abbreviated form of a replied-to message.
type MessageRef struct {
	ID       string `json:"id"`
	SenderID string `json:"senderId"`
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
}

type Message struct {
	ID                 string      `json:"id"`
	SenderID           string      `json:"senderId"`
	ReceiverID         string      `json:"receiverId,omitempty"`
	GroupID            string      `json:"groupId,omitempty"`
	Text               string      `json:"text,omitempty"`
	Image              string      `json:"image,omitempty"`
	Status             Status      `json:"status"`
	ReplyTo            string      `json:"replyTo,omitempty"`
	Reply              *MessageRef `json:"reply,omitempty"`
	HiddenFor          []string    `json:"-"`
	DeletedForEveryone bool        `json:"deletedForEveryone,omitempty"`
	DeletedBy          string      `json:"deletedBy,omitempty"`
	Edited             bool        `json:"edited,omitempty"`
	EditTime           *time.Time  `json:"editedAt,omitempty"`
	CreateTime         time.Time   `json:"createdAt"`
}

func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}

// Key returns the conversation key of this message as seen by uid.
func (m *Message) Key(uid string) ConvKey {
	if m.IsGroup() {
		return GroupKey(m.GroupID)
	}
	if m.SenderID == uid {
		return DirectKey(m.ReceiverID)
	}
	return DirectKey(m.SenderID)
}

// Peer returns the other participant of a direct message.
func (m *Message) Peer(uid string) string {
	if m.SenderID == uid {
		return m.ReceiverID
	}
	return m.SenderID
}

func (m *Message) HiddenFrom(uid string) bool {
	for _, v := range m.HiddenFor {
		if v == uid {
			return true
		}
	}
	return false
}

func (m *Message) Ref() *MessageRef {
	return &MessageRef{ID: m.ID, SenderID: m.SenderID, Text: m.Text, Image: m.Image}
}

// Validate checks the invariants every persisted message holds.
func (m *Message) Validate() error {
	var errs []string
	if m.SenderID == "" {
		errs = append(errs, "senderId: required")
	}
	if (m.ReceiverID == "") == (m.GroupID == "") {
		errs = append(errs, "exactly one of receiverId and groupId is required")
	}
	if strings.TrimSpace(m.Text) == "" && m.Image == "" {
		errs = append(errs, "text or image is required")
	}
	if utf8.RuneCountInString(m.Text) > MaxTextLen {
		errs = append(errs, fmt.Sprintf("text: exceeds %d characters", MaxTextLen))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid message: %s", strings.Join(errs, "; "))
	}
	return nil
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	CreateTime  time.Time `json:"createdAt"`
}

func (g *Group) IsMember(uid string) bool {
	return contains(g.Members, uid)
}

func (g *Group) IsAdmin(uid string) bool {
	return contains(g.Admins, uid)
}

// Others returns the members except uid.
func (g *Group) Others(uid string) []string {
	out := make([]string, 0, len(g.Members))
	for _, v := range g.Members {
		if v != uid {
			out = append(out, v)
		}
	}
	return out
}

func contains(slice []string, v string) bool {
	for _, x := range slice {
		if x == v {
			return true
		}
	}
	return false
}
