package chat

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/store"
)

const defaultDeviceType = "web"

// participant loads the message and checks uid takes part in its conversation.
// The group is returned for group messages.
func (s *Service) participant(ctx context.Context, uid, msgID, op string) (*store.Message, *store.Group, error) {
	if msgID == "" {
		return nil, nil, invalidArgument("messageId is required")
	}
	m, err := s.store.GetMessage(ctx, msgID)
	if err != nil {
		return nil, nil, lookupError(err, "message", op)
	}
	if !m.IsGroup() {
		if m.SenderID != uid && m.ReceiverID != uid {
			return nil, nil, permissionDenied("not authorized for this message")
		}
		return m, nil, nil
	}
	g, err := s.store.GetGroup(ctx, m.GroupID)
	if err != nil {
		return nil, nil, lookupError(err, "group", op)
	}
	if !g.IsMember(uid) {
		return nil, nil, permissionDenied("not authorized for this group")
	}
	return m, g, nil
}

// notifyConversation pushes an event about m to the other side of its
// conversation: the partner when online, or the group channel.
func (s *Service) notifyConversation(out *Effects, uid string, m *store.Message, name string, data interface{}) {
	if m.IsGroup() {
		out.group(m.GroupID, uid, name, data)
		return
	}
	if peer := m.Peer(uid); s.presence.IsOnline(peer) {
		out.user(peer, name, data)
	}
}

func (s *Service) pinTarget(ctx context.Context, uid string, req *PinReq, op string) (*store.Message, ConversationTarget, error) {
	target, err := req.Target()
	if err != nil {
		return nil, nil, err
	}
	m, _, err := s.participant(ctx, uid, req.MessageID, op)
	if err != nil {
		return nil, nil, err
	}
	if TargetOf(m, uid) != target {
		return nil, nil, invalidArgument("message does not belong to this conversation")
	}
	return m, target, nil
}

// Pin adds the message to the pins uid keeps for the conversation. Pinning an
// already pinned message succeeds without change.
func (s *Service) Pin(ctx context.Context, uid string, req *PinReq) (Effects, error) {
	m, target, err := s.pinTarget(ctx, uid, req, "pinning message")
	if err != nil {
		return nil, err
	}
	if m.DeletedForEveryone || m.HiddenFrom(uid) {
		return nil, invalidArgument("message was deleted")
	}
	added, err := s.store.AddPin(ctx, uid, target.Key(), m.ID)
	if err != nil {
		return nil, internalError(err, "pinning message")
	}
	glog.V(5).Infof("Pin(): uid: %s, conversation: %s, message: %s, added: %v", uid, target.Key(), m.ID, added)

	var out Effects
	out.self(EventMessagePinned, target.pinUpdate(m.ID))
	return out, nil
}

func (s *Service) Unpin(ctx context.Context, uid string, req *PinReq) (Effects, error) {
	m, target, err := s.pinTarget(ctx, uid, req, "unpinning message")
	if err != nil {
		return nil, err
	}
	removed, err := s.store.RemovePin(ctx, uid, target.Key(), m.ID)
	if err != nil {
		return nil, internalError(err, "unpinning message")
	}
	glog.V(5).Infof("Unpin(): uid: %s, conversation: %s, message: %s, removed: %v", uid, target.Key(), m.ID, removed)

	var out Effects
	out.self(EventMessageUnpinned, target.pinUpdate(m.ID))
	return out, nil
}

func (s *Service) Star(ctx context.Context, uid string, req *MessageReq) (Effects, error) {
	m, _, err := s.participant(ctx, uid, req.MessageID, "starring message")
	if err != nil {
		return nil, err
	}
	if m.DeletedForEveryone || m.HiddenFrom(uid) {
		return nil, invalidArgument("message was deleted")
	}
	if _, err := s.store.AddStar(ctx, uid, m.ID); err != nil {
		return nil, internalError(err, "starring message")
	}
	var out Effects
	out.self(EventMessageStarred, &MessageReq{MessageID: m.ID})
	return out, nil
}

func (s *Service) Unstar(ctx context.Context, uid string, req *MessageReq) (Effects, error) {
	if req.MessageID == "" {
		return nil, invalidArgument("messageId is required")
	}
	if _, err := s.store.RemoveStar(ctx, uid, req.MessageID); err != nil {
		return nil, internalError(err, "unstarring message")
	}
	var out Effects
	out.self(EventMessageUnstarred, &MessageReq{MessageID: req.MessageID})
	return out, nil
}

// Edit replaces the text of a message. Only the sender may edit.
func (s *Service) Edit(ctx context.Context, uid string, req *EditReq) (Effects, error) {
	text := strings.TrimSpace(req.NewText)
	if text == "" {
		return nil, invalidArgument("newText is required")
	}
	if utf8.RuneCountInString(text) > store.MaxTextLen {
		return nil, invalidArgument("newText: exceeds %d characters", store.MaxTextLen)
	}
	m, _, err := s.participant(ctx, uid, req.MessageID, "editing message")
	if err != nil {
		return nil, err
	}
	if m.SenderID != uid {
		return nil, permissionDenied("only the sender can edit this message")
	}
	if m.DeletedForEveryone {
		return nil, invalidArgument("message was deleted")
	}

	now := s.now()
	if err := s.store.EditMessage(ctx, m.ID, text, now); err != nil {
		return nil, lookupError(err, "message", "editing message")
	}

	edited := &MessageEdited{MessageID: m.ID, NewText: text, EditTime: now, GroupID: m.GroupID}
	var out Effects
	out.self(EventMessageEdited, edited)
	s.notifyConversation(&out, uid, m, EventMessageEdited, edited)
	return out, nil
}

// Delete hides a message for the caller or, with DeleteForEveryone, replaces
// its content with the tombstone for all participants.
func (s *Service) Delete(ctx context.Context, uid string, req *DeleteReq) (Effects, error) {
	switch req.DeleteType {
	case DeleteForMe, DeleteForEveryone:
	default:
		return nil, invalidArgument("deleteType: expect %q or %q", DeleteForMe, DeleteForEveryone)
	}
	m, g, err := s.participant(ctx, uid, req.MessageID, "deleting message")
	if err != nil {
		return nil, err
	}

	var out Effects
	if req.DeleteType == DeleteForMe {
		if _, err := s.store.HideMessage(ctx, m.ID, uid); err != nil {
			return nil, lookupError(err, "message", "deleting message")
		}
		if _, err := s.store.RemovePin(ctx, uid, m.Key(uid), m.ID); err != nil {
			glog.Errorf("Delete(): uid: %s, message: %s, remove pin error: %v", uid, m.ID, err)
		}
		out.self(EventMessageDeleted, &MessageDeleted{MessageID: m.ID, DeleteType: DeleteForMe, GroupID: m.GroupID})
		return out, nil
	}

	if m.SenderID != uid && !(g != nil && g.IsAdmin(uid)) {
		return nil, permissionDenied("only the sender or a group admin can delete for everyone")
	}
	if err := s.store.DeleteForEveryone(ctx, m.ID, uid); err != nil {
		return nil, lookupError(err, "message", "deleting message")
	}
	n, err := s.store.RemovePinsOf(ctx, m.ID)
	if err != nil {
		glog.Errorf("Delete(): message: %s, remove pins error: %v", m.ID, err)
	}
	glog.V(5).Infof("Delete(): uid: %s, message: %s deleted for everyone, %d pins removed", uid, m.ID, n)

	deleted := &MessageDeleted{
		MessageID:          m.ID,
		DeleteType:         DeleteForEveryone,
		DeletedForEveryone: true,
		DeletedBy:          uid,
		Text:               store.Tombstone,
		GroupID:            m.GroupID,
	}
	out.self(EventMessageDeleted, deleted)
	s.notifyConversation(&out, uid, m, EventMessageDeleted, deleted)
	return out, nil
}

func (s *Service) Typing(ctx context.Context, uid string, req *TypingReq) (Effects, error) {
	return s.relayTyping(uid, req, EventTyping)
}

func (s *Service) StopTyping(ctx context.Context, uid string, req *TypingReq) (Effects, error) {
	return s.relayTyping(uid, req, EventStopTyping)
}

func (s *Service) relayTyping(uid string, req *TypingReq, name string) (Effects, error) {
	if req.ReceiverID == "" {
		return nil, invalidArgument("receiverId is required")
	}
	var out Effects
	if s.presence.IsOnline(req.ReceiverID) {
		out.user(req.ReceiverID, name, &TypingEvent{SenderID: uid})
	}
	return out, nil
}

func (s *Service) RegisterDeviceToken(ctx context.Context, uid string, req *DeviceTokenReq) (Effects, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, invalidArgument("token is required")
	}
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = defaultDeviceType
	}
	err := s.store.AddDeviceToken(ctx, uid, &store.DeviceToken{Token: token, DeviceType: deviceType, CreateTime: s.now()})
	if err != nil {
		return nil, internalError(err, "registering device token")
	}
	glog.V(5).Infof("RegisterDeviceToken(): uid: %s, device type: %s", uid, deviceType)

	var out Effects
	out.self(EventDeviceTokenRegistered, &DeviceTokenResult{Success: true, Token: token})
	return out, nil
}

func (s *Service) RemoveDeviceToken(ctx context.Context, uid string, req *DeviceTokenReq) (Effects, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, invalidArgument("token is required")
	}
	if err := s.store.RemoveDeviceToken(ctx, uid, token); err != nil {
		return nil, internalError(err, "removing device token")
	}
	var out Effects
	out.self(EventDeviceTokenRemoved, &DeviceTokenResult{Success: true})
	return out, nil
}

// Search looks up messages of the conversations uid takes part in, newest first.
func (s *Service) Search(ctx context.Context, uid string, req *SearchReq) (Effects, error) {
	query := strings.TrimSpace(req.Query)
	results := []*store.Message{}
	if query != "" {
		groups, err := s.store.ListUserGroups(ctx, uid)
		if err != nil {
			return nil, internalError(err, "searching messages")
		}
		found, err := s.store.SearchMessages(ctx, uid, groups, query, s.conf.SearchLimit)
		if err != nil {
			return nil, internalError(err, "searching messages")
		}
		results = append(results, found...)
	}
	var out Effects
	out.self(EventSearchResults, results)
	return out, nil
}
