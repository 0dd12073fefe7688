package chat

import (
	"context"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/store"
)

// MarkSeen moves the messages req.SenderID sent to uid to seen and clears the
// unread counter of that conversation. The partner is told only when some
// message actually changed, so a repeated call is a no-op for them.
func (s *Service) MarkSeen(ctx context.Context, uid string, req *MarkSeenReq) (Effects, error) {
	if req.SenderID == "" {
		return nil, invalidArgument("senderId is required")
	}
	ids, err := s.store.MarkSeen(ctx, req.SenderID, uid)
	if err != nil {
		return nil, internalError(err, "marking messages as seen")
	}
	cleared, err := s.store.ClearUnread(ctx, uid, store.DirectKey(req.SenderID))
	if err != nil {
		return nil, internalError(err, "clearing unread count")
	}

	seen := &MessagesSeen{SeenBy: uid, SenderID: req.SenderID, MessageIDs: ids}
	var out Effects
	out.self(EventMessagesSeen, seen)
	if cleared {
		out.self(EventUnreadCountUpdated, &UnreadCount{ChatID: req.SenderID})
	}
	if len(ids) > 0 && s.presence.IsOnline(req.SenderID) {
		out.user(req.SenderID, EventMessagesSeen, seen)
	}
	glog.V(5).Infof("MarkSeen(): uid: %s, sender: %s, seen %d messages", uid, req.SenderID, len(ids))
	return out, nil
}

// MarkGroupSeen is MarkSeen for the messages of one group not authored by uid.
func (s *Service) MarkGroupSeen(ctx context.Context, uid string, req *GroupReq) (Effects, error) {
	if req.GroupID == "" {
		return nil, invalidArgument("groupId is required")
	}
	g, err := s.store.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, lookupError(err, "group", "marking group messages as seen")
	}
	if !g.IsMember(uid) {
		return nil, permissionDenied("not authorized for this group")
	}
	ids, err := s.store.MarkGroupSeen(ctx, g.ID, uid)
	if err != nil {
		return nil, internalError(err, "marking group messages as seen")
	}
	cleared, err := s.store.ClearUnread(ctx, uid, store.GroupKey(g.ID))
	if err != nil {
		return nil, internalError(err, "clearing unread count")
	}

	seen := &GroupMessagesSeen{GroupID: g.ID, SeenBy: uid, MessageIDs: ids}
	var out Effects
	out.self(EventGroupMessagesSeen, seen)
	if cleared {
		out.self(EventGroupUnreadCountUpdated, &GroupUnreadCount{GroupID: g.ID})
	}
	if len(ids) > 0 {
		out.group(g.ID, uid, EventGroupMessagesSeen, seen)
	}
	glog.V(5).Infof("MarkGroupSeen(): uid: %s, group: %s, seen %d messages", uid, g.ID, len(ids))
	return out, nil
}

// RequestUnreadCounts pushes every non-zero unread counter of uid, keyed by
// conversation key.
func (s *Service) RequestUnreadCounts(ctx context.Context, uid string) (Effects, error) {
	counts, err := s.store.GetUnreadCounts(ctx, uid)
	if err != nil {
		return nil, internalError(err, "loading unread counts")
	}
	data := make(map[string]UnreadEntry, len(counts))
	for k, n := range counts {
		data[string(k)] = UnreadEntry{Count: n, IsGroup: k.IsGroup()}
	}
	var out Effects
	out.self(EventAllUnreadCounts, data)
	return out, nil
}
