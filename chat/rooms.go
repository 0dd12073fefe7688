package chat

import (
	"context"

	"github.com/golang/glog"
)

// JoinGroup subscribes the connection of uid to the group channel. Only current
// members may join.
func (s *Service) JoinGroup(ctx context.Context, uid string, req *GroupReq) (Effects, error) {
	if req.GroupID == "" {
		return nil, invalidArgument("groupId is required")
	}
	g, err := s.store.GetGroup(ctx, req.GroupID)
	if err != nil {
		return nil, lookupError(err, "group", "joining group")
	}
	if !g.IsMember(uid) {
		return nil, permissionDenied("not authorized for this group")
	}

	var out Effects
	out.subscribe(uid, g.ID)
	out.self(EventJoinedGroupRoom, &GroupRef{GroupID: g.ID})
	glog.V(5).Infof("JoinGroup(): uid: %s, group: %s", uid, g.ID)
	return out, nil
}

// LeaveGroup unsubscribes the connection of uid from the group channel.
// Membership is not touched.
func (s *Service) LeaveGroup(ctx context.Context, uid string, req *GroupReq) (Effects, error) {
	if req.GroupID == "" {
		return nil, invalidArgument("groupId is required")
	}
	var out Effects
	out.unsubscribe(uid, req.GroupID)
	out.self(EventLeftGroupRoom, &GroupRef{GroupID: req.GroupID})
	return out, nil
}
