package chat

import "github.com/OgheneDev/FlowChat/store"

// ConversationTarget is either a direct conversation or a group.
type ConversationTarget interface {
	Key() store.ConvKey
	pinUpdate(msgID string) *PinUpdate
}

type DirectTarget struct {
	PartnerID string
}

type GroupTarget struct {
	GroupID string
}

func (t DirectTarget) Key() store.ConvKey {
	return store.DirectKey(t.PartnerID)
}

func (t DirectTarget) pinUpdate(msgID string) *PinUpdate {
	return &PinUpdate{MessageID: msgID, ChatPartnerID: t.PartnerID}
}

func (t GroupTarget) Key() store.ConvKey {
	return store.GroupKey(t.GroupID)
}

func (t GroupTarget) pinUpdate(msgID string) *PinUpdate {
	return &PinUpdate{MessageID: msgID, GroupID: t.GroupID}
}

// Target resolves the conversation named by the request.
func (r *PinReq) Target() (ConversationTarget, error) {
	switch {
	case r.ChatPartnerID != "" && r.GroupID != "":
		return nil, invalidArgument("only one of chatPartnerId and groupId is allowed")
	case r.ChatPartnerID != "":
		return DirectTarget{PartnerID: r.ChatPartnerID}, nil
	case r.GroupID != "":
		return GroupTarget{GroupID: r.GroupID}, nil
	}
	return nil, invalidArgument("chatPartnerId or groupId is required")
}

// TargetOf returns the conversation of m as seen by uid.
func TargetOf(m *store.Message, uid string) ConversationTarget {
	if m.IsGroup() {
		return GroupTarget{GroupID: m.GroupID}
	}
	return DirectTarget{PartnerID: m.Peer(uid)}
}
