package chat

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/media"
	"github.com/OgheneDev/FlowChat/notify"
	"github.com/OgheneDev/FlowChat/store"
)

const (
	notificationTypeMessage      = "new_message"
	notificationTypeGroupMessage = "new_group_message"
	imagePreview                 = "Photo"
)

func validateContent(text, image string) *Error {
	if strings.TrimSpace(text) == "" && image == "" {
		return invalidArgument("text or image is required")
	}
	if utf8.RuneCountInString(text) > store.MaxTextLen {
		return invalidArgument("text: exceeds %d characters", store.MaxTextLen)
	}
	return nil
}

func (s *Service) resolveReply(ctx context.Context, replyTo string) (*store.MessageRef, error) {
	if replyTo == "" {
		return nil, nil
	}
	m, err := s.store.GetMessage(ctx, replyTo)
	if err != nil {
		return nil, lookupError(err, "reply message", "resolving reply")
	}
	return m.Ref(), nil
}

// upload replaces an inline image with the URL of the stored copy.
func (s *Service) upload(ctx context.Context, image string) (string, error) {
	if !media.IsInline(image) {
		return image, nil
	}
	if s.uploader == nil {
		return "", invalidArgument("inline images are not supported")
	}
	url, err := s.uploader.Upload(ctx, image)
	if err != nil {
		var e *media.Error
		if errors.As(err, &e) {
			return "", invalidArgument("image: %s", e.Message)
		}
		return "", internalError(err, "uploading image")
	}
	return url, nil
}

// preview truncates the content to the configured number of characters.
func (s *Service) preview(m *store.Message) string {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return imagePreview
	}
	if utf8.RuneCountInString(text) <= s.conf.PreviewLen {
		return text
	}
	return string([]rune(text)[:s.conf.PreviewLen]) + "..."
}

// dispatch sends a notification to the device tokens of uid. Failures are logged only.
func (s *Service) dispatch(ctx context.Context, uid, title string, m *store.Message, data map[string]string) {
	if s.notifier == nil {
		return
	}
	tokens, err := s.store.GetDeviceTokens(ctx, uid)
	if err != nil {
		glog.Errorf("dispatch(): uid: %s, get device tokens error: %v", uid, err)
		return
	}
	if len(tokens) == 0 {
		glog.V(5).Infof("dispatch(): uid: %s has no device token", uid)
		return
	}
	n := &notify.Notification{
		Uid:        uid,
		Title:      title,
		Body:       s.preview(m),
		Tokens:     tokens,
		Data:       data,
		CreateTime: s.now(),
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		glog.Errorf("dispatch(): uid: %s, message: %s, error: %v", uid, m.ID, err)
	}
}

func (s *Service) senderName(ctx context.Context, uid string) string {
	u, err := s.store.GetUser(ctx, uid)
	if err != nil {
		glog.Warningf("senderName(): uid: %s, error: %v", uid, err)
		return "New message"
	}
	return u.FullName
}

// SendDirect persists a direct message and routes it to the receiver.
func (s *Service) SendDirect(ctx context.Context, uid string, req *SendMessageReq) (*store.Message, Effects, error) {
	if req.ReceiverID == "" {
		return nil, nil, invalidArgument("receiverId is required")
	}
	if err := validateContent(req.Text, req.Image); err != nil {
		return nil, nil, err
	}

	receiver, err := s.store.GetUser(ctx, req.ReceiverID)
	if err != nil {
		return nil, nil, lookupError(err, "receiver", "sending message")
	}
	reply, err := s.resolveReply(ctx, req.ReplyTo)
	if err != nil {
		return nil, nil, err
	}
	image, err := s.upload(ctx, req.Image)
	if err != nil {
		return nil, nil, err
	}

	m := &store.Message{
		ID:         s.newID(),
		SenderID:   uid,
		ReceiverID: receiver.ID,
		Text:       req.Text,
		Image:      image,
		Status:     store.StatusSent,
		ReplyTo:    req.ReplyTo,
		CreateTime: s.now(),
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, nil, internalError(err, "sending message")
	}
	m.Reply = reply

	var out Effects
	if s.presence.IsOnline(receiver.ID) {
		if _, err := s.store.AdvanceStatus(ctx, m.ID, store.StatusDelivered); err != nil {
			glog.Errorf("SendDirect(): message: %s, set delivered error: %v", m.ID, err)
		} else {
			m.Status = store.StatusDelivered
		}
		out.user(receiver.ID, EventNewMessage, m)
		out.user(receiver.ID, EventRecentChatUpdated, &RecentChat{PartnerID: uid, LastMessage: m})
		if s.conf.UnreadPolicy == UnreadUnseen {
			if n, err := s.store.IncrUnread(ctx, receiver.ID, store.DirectKey(uid)); err != nil {
				glog.Errorf("SendDirect(): uid: %s, incr unread error: %v", receiver.ID, err)
			} else {
				out.user(receiver.ID, EventUnreadCountUpdated, &UnreadCount{ChatID: uid, UnreadCount: n})
			}
		}
	} else {
		if _, err := s.store.IncrUnread(ctx, receiver.ID, store.DirectKey(uid)); err != nil {
			glog.Errorf("SendDirect(): uid: %s, incr unread error: %v", receiver.ID, err)
		}
		s.dispatch(ctx, receiver.ID, s.senderName(ctx, uid), m, map[string]string{
			"type":      notificationTypeMessage,
			"senderId":  uid,
			"chatId":    uid,
			"messageId": m.ID,
		})
	}

	out.self(EventMessageStatusUpdate, &StatusUpdate{MessageID: m.ID, Status: m.Status})
	out.self(EventRecentChatUpdated, &RecentChat{PartnerID: receiver.ID, LastMessage: m})

	messagesSent.WithLabelValues("direct", m.Status.String()).Inc()
	glog.V(5).Infof("SendDirect(): %s -> %s, message: %s, status: %s", uid, receiver.ID, m.ID, m.Status)
	return m, out, nil
}

// SendGroup persists a group message and fans it out to the other members.
func (s *Service) SendGroup(ctx context.Context, uid string, req *SendGroupMessageReq) (*store.Message, Effects, error) {
	if req.GroupID == "" {
		return nil, nil, invalidArgument("groupId is required")
	}
	if err := validateContent(req.Text, req.Image); err != nil {
		return nil, nil, err
	}

	g, err := s.store.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, nil, lookupError(err, "group", "sending group message")
	}
	if !g.IsMember(uid) {
		return nil, nil, permissionDenied("not authorized for this group")
	}
	reply, err := s.resolveReply(ctx, req.ReplyTo)
	if err != nil {
		return nil, nil, err
	}
	image, err := s.upload(ctx, req.Image)
	if err != nil {
		return nil, nil, err
	}

	m := &store.Message{
		ID:         s.newID(),
		SenderID:   uid,
		GroupID:    g.ID,
		Text:       req.Text,
		Image:      image,
		Status:     store.StatusSent,
		ReplyTo:    req.ReplyTo,
		CreateTime: s.now(),
	}
	if err := s.store.CreateMessage(ctx, m); err != nil {
		return nil, nil, internalError(err, "sending group message")
	}
	m.Reply = reply

	var online, offline []string
	for _, member := range g.Others(uid) {
		if s.presence.IsOnline(member) {
			online = append(online, member)
		} else {
			offline = append(offline, member)
		}
	}

	if len(online) > 0 {
		if _, err := s.store.AdvanceStatus(ctx, m.ID, store.StatusDelivered); err != nil {
			glog.Errorf("SendGroup(): message: %s, set delivered error: %v", m.ID, err)
		} else {
			m.Status = store.StatusDelivered
		}
	}

	// Members other than the sender always see the message as delivered.
	delivered := *m
	delivered.Status = store.StatusDelivered

	key := store.GroupKey(g.ID)
	var out Effects
	for _, member := range online {
		out.user(member, EventNewGroupMessage, &delivered)
		var (
			n   int32
			err error
		)
		if s.conf.UnreadPolicy == UnreadUnseen {
			n, err = s.store.IncrUnread(ctx, member, key)
		} else {
			n, err = s.store.GetUnread(ctx, member, key)
		}
		if err != nil {
			glog.Errorf("SendGroup(): uid: %s, unread error: %v", member, err)
			continue
		}
		out.user(member, EventGroupUnreadCountUpdated, &GroupUnreadCount{GroupID: g.ID, UnreadCount: n})
	}

	if len(offline) > 0 {
		title := s.senderName(ctx, uid) + " in " + g.Name
		for _, member := range offline {
			if _, err := s.store.IncrUnread(ctx, member, key); err != nil {
				glog.Errorf("SendGroup(): uid: %s, incr unread error: %v", member, err)
			}
			s.dispatch(ctx, member, title, m, map[string]string{
				"type":      notificationTypeGroupMessage,
				"senderId":  uid,
				"groupId":   g.ID,
				"groupName": g.Name,
				"messageId": m.ID,
			})
		}
	}

	out.self(EventGroupMessageStatusUpdate, &StatusUpdate{MessageID: m.ID, Status: m.Status})
	out.group(g.ID, uid, EventRecentGroupUpdated, &RecentGroup{GroupID: g.ID, LastMessage: &delivered})
	out.self(EventRecentGroupUpdated, &RecentGroup{GroupID: g.ID, LastMessage: m})

	messagesSent.WithLabelValues("group", m.Status.String()).Inc()
	glog.V(5).Infof("SendGroup(): %s -> group %s, message: %s, status: %s, online: %d, offline: %d",
		uid, g.ID, m.ID, m.Status, len(online), len(offline))
	return m, out, nil
}
