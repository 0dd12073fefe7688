package chat

import (
	"time"

	"github.com/OgheneDev/FlowChat/store"
)

// Client to server events.
const (
	EventSendMessage             = "sendMessage"
	EventSendGroupMessage        = "sendGroupMessage"
	EventMarkMessagesAsSeen      = "markMessagesAsSeen"
	EventMarkGroupMessagesAsSeen = "markGroupMessagesAsSeen"
	EventTyping                  = "typing"
	EventStopTyping              = "stopTyping"
	EventPinMessage              = "pinMessage"
	EventUnpinMessage            = "unpinMessage"
	EventStarMessage             = "starMessage"
	EventUnstarMessage           = "unstarMessage"
	EventDeleteMessage           = "deleteMessage"
	EventEditMessage             = "editMessage"
	EventJoinGroup               = "joinGroup"
	EventLeaveGroup              = "leaveGroup"
	EventRegisterDeviceToken     = "registerDeviceToken"
	EventRemoveDeviceToken       = "removeDeviceToken"
	EventSearchMessages          = "searchMessages"
	EventClearSearch             = "clearSearch"
	EventRequestUnreadCounts     = "requestUnreadCounts"
)

// Server to client events.
const (
	EventOnlineUsers                  = "getOnlineUsers"
	EventNewMessage                   = "newMessage"
	EventNewGroupMessage              = "newGroupMessage"
	EventMessageStatusUpdate          = "messageStatusUpdate"
	EventGroupMessageStatusUpdate     = "groupMessageStatusUpdate"
	EventBulkMessageStatusUpdate      = "bulkMessageStatusUpdate"
	EventBulkGroupMessageStatusUpdate = "bulkGroupMessageStatusUpdate"
	EventRecentChatUpdated            = "recentChatUpdated"
	EventRecentGroupUpdated           = "recentGroupUpdated"
	EventUnreadCountUpdated           = "unreadCountUpdated"
	EventGroupUnreadCountUpdated      = "groupUnreadCountUpdated"
	EventAllUnreadCounts              = "allUnreadCounts"
	EventMessagesSeen                 = "messagesSeen"
	EventGroupMessagesSeen            = "groupMessagesSeen"
	EventMessagePinned                = "messagePinned"
	EventMessageUnpinned              = "messageUnpinned"
	EventMessageStarred               = "messageStarred"
	EventMessageUnstarred             = "messageUnstarred"
	EventMessageDeleted               = "messageDeleted"
	EventMessageEdited                = "messageEdited"
	EventJoinedGroupRoom              = "joinedGroupRoom"
	EventLeftGroupRoom                = "leftGroupRoom"
	EventYouWereRemoved               = "youWereRemoved"
	EventGroupAdded                   = "groupAdded"
	EventGroupUpdated                 = "groupUpdated"
	EventGroupDeleted                 = "groupDeleted"
	EventMemberAdded                  = "memberAdded"
	EventMemberRemoved                = "memberRemoved"
	EventMemberPromoted               = "memberPromoted"
	EventMemberLeft                   = "memberLeft"
	EventDeviceTokenRegistered        = "deviceTokenRegistered"
	EventDeviceTokenRemoved           = "deviceTokenRemoved"
	EventSearchResults                = "searchResults"
	EventKickoff                      = "kickoff"
	EventError                        = "error"
)

const (
	DeleteForMe       = "me"
	DeleteForEveryone = "everyone"
)

type SendMessageReq struct {
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	ReplyTo    string `json:"replyTo,omitempty"`
}

type SendGroupMessageReq struct {
	GroupID string `json:"groupId"`
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
	ReplyTo string `json:"replyTo,omitempty"`
}

type MarkSeenReq struct {
	SenderID string `json:"senderId"`
}

type GroupReq struct {
	GroupID string `json:"groupId"`
}

type TypingReq struct {
	ReceiverID string `json:"receiverId"`
}

// PinReq names the conversation either by chatPartnerId or by groupId.
type PinReq struct {
	MessageID     string `json:"messageId"`
	ChatPartnerID string `json:"chatPartnerId,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
}

type MessageReq struct {
	MessageID string `json:"messageId"`
}

type DeleteReq struct {
	MessageID  string `json:"messageId"`
	DeleteType string `json:"deleteType"`
}

type EditReq struct {
	MessageID string `json:"messageId"`
	NewText   string `json:"newText"`
}

type DeviceTokenReq struct {
	Token      string `json:"token"`
	DeviceType string `json:"deviceType,omitempty"`
}

type SearchReq struct {
	Query string `json:"query"`
}

type StatusUpdate struct {
	MessageID string       `json:"messageId"`
	Status    store.Status `json:"status"`
}

type BulkStatusUpdate struct {
	MessageIDs []string     `json:"messageIds"`
	Status     store.Status `json:"status"`
	GroupID    string       `json:"groupId,omitempty"`
}

type RecentChat struct {
	PartnerID   string         `json:"partnerId"`
	LastMessage *store.Message `json:"lastMessage"`
}

type RecentGroup struct {
	GroupID     string         `json:"groupId"`
	LastMessage *store.Message `json:"lastMessage"`
}

type UnreadCount struct {
	ChatID      string `json:"chatId"`
	UnreadCount int32  `json:"unreadCount"`
}

type GroupUnreadCount struct {
	GroupID     string `json:"groupId"`
	UnreadCount int32  `json:"unreadCount"`
}

type UnreadEntry struct {
	Count   int32 `json:"count"`
	IsGroup bool  `json:"isGroup"`
}

type MessagesSeen struct {
	SeenBy     string   `json:"seenBy"`
	SenderID   string   `json:"senderId"`
	MessageIDs []string `json:"messageIds"`
}

type GroupMessagesSeen struct {
	GroupID    string   `json:"groupId"`
	SeenBy     string   `json:"seenBy"`
	MessageIDs []string `json:"messageIds"`
}

type PinUpdate struct {
	MessageID     string `json:"messageId"`
	ChatPartnerID string `json:"chatPartnerId,omitempty"`
	GroupID       string `json:"groupId,omitempty"`
}

type MessageDeleted struct {
	MessageID          string `json:"messageId"`
	DeleteType         string `json:"deleteType"`
	DeletedForEveryone bool   `json:"deletedForEveryone,omitempty"`
	DeletedBy          string `json:"deletedBy,omitempty"`
	Text               string `json:"text,omitempty"`
	GroupID            string `json:"groupId,omitempty"`
}

type MessageEdited struct {
	MessageID string    `json:"messageId"`
	NewText   string    `json:"newText"`
	EditTime  time.Time `json:"editedAt"`
	GroupID   string    `json:"groupId,omitempty"`
}

type TypingEvent struct {
	SenderID string `json:"senderId"`
}

type DeviceTokenResult struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
}

type GroupRef struct {
	GroupID string `json:"groupId"`
}

type GroupInfo struct {
	Group *store.Group `json:"group"`
}

type MemberAdded struct {
	GroupID   string   `json:"groupId"`
	MemberIDs []string `json:"memberIds"`
}

type MemberRemoved struct {
	GroupID         string `json:"groupId"`
	RemovedMemberID string `json:"removedMemberId"`
}

type MemberPromoted struct {
	GroupID    string   `json:"groupId"`
	NewAdminID string   `json:"newAdminId"`
	Admins     []string `json:"admins"`
}

type MemberLeft struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}
