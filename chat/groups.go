package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/store"
)

type CreateGroupReq struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Members     []string `json:"members"`
}

// UpdateGroupReq leaves a field unchanged when it is nil.
type UpdateGroupReq struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Image       *string `json:"image,omitempty"`
}

type MembersReq struct {
	Members []string `json:"members"`
}

type PromoteReq struct {
	UserID string `json:"userId"`
}

func (s *Service) memberGroup(ctx context.Context, uid, groupID, op string) (*store.Group, error) {
	if groupID == "" {
		return nil, invalidArgument("groupId is required")
	}
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, lookupError(err, "group", op)
	}
	if !g.IsMember(uid) {
		return nil, permissionDenied("not authorized for this group")
	}
	return g, nil
}

func (s *Service) adminGroup(ctx context.Context, uid, groupID, op string) (*store.Group, error) {
	g, err := s.memberGroup(ctx, uid, groupID, op)
	if err != nil {
		return nil, err
	}
	if !g.IsAdmin(uid) {
		return nil, permissionDenied("only group admins can do this")
	}
	return g, nil
}

// checkUsers dedups uids, drops except and verifies that every user exists.
func (s *Service) checkUsers(ctx context.Context, uids []string, except, op string) ([]string, error) {
	seen := map[string]bool{except: true}
	var out []string
	for _, uid := range uids {
		uid = strings.TrimSpace(uid)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		if _, err := s.store.GetUser(ctx, uid); err != nil {
			e := lookupError(err, "user "+uid, op)
			if e.Code == ErrorCodeNotFound {
				e.Code = ErrorCodeInvalidArguments
			}
			return nil, e
		}
		out = append(out, uid)
	}
	return out, nil
}

// welcome subscribes the online users to the group channel and sends them the group.
func (s *Service) welcome(out *Effects, g *store.Group, uids []string) {
	for _, uid := range uids {
		if !s.presence.IsOnline(uid) {
			continue
		}
		out.subscribe(uid, g.ID)
		out.user(uid, EventGroupAdded, &GroupInfo{Group: g})
	}
}

// CreateGroup creates a group administered by uid.
func (s *Service) CreateGroup(ctx context.Context, uid string, req *CreateGroupReq) (*store.Group, Effects, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, invalidArgument("name is required")
	}
	members, err := s.checkUsers(ctx, req.Members, uid, "creating group")
	if err != nil {
		return nil, nil, err
	}
	if len(members) == 0 {
		return nil, nil, invalidArgument("members: at least one other member is required")
	}
	image, err := s.upload(ctx, req.Image)
	if err != nil {
		return nil, nil, err
	}

	g := &store.Group{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Image:       image,
		Members:     append([]string{uid}, members...),
		Admins:      []string{uid},
		CreateTime:  s.now(),
	}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, nil, invalidArgument("group %s already exists", g.ID)
		}
		return nil, nil, internalError(err, "creating group")
	}

	var out Effects
	s.welcome(&out, g, g.Members)
	glog.Infof("CreateGroup(): uid: %s, group: %s, members: %d", uid, g.ID, len(g.Members))
	return g, out, nil
}

func (s *Service) UpdateGroup(ctx context.Context, uid, groupID string, req *UpdateGroupReq) (*store.Group, Effects, error) {
	g, err := s.adminGroup(ctx, uid, groupID, "updating group")
	if err != nil {
		return nil, nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, nil, invalidArgument("name can not be empty")
		}
		g.Name = name
	}
	if req.Description != nil {
		g.Description = strings.TrimSpace(*req.Description)
	}
	if req.Image != nil {
		if g.Image, err = s.upload(ctx, *req.Image); err != nil {
			return nil, nil, err
		}
	}
	if err := s.store.UpdateGroup(ctx, g); err != nil {
		return nil, nil, lookupError(err, "group", "updating group")
	}

	var out Effects
	out.group(g.ID, "", EventGroupUpdated, &GroupInfo{Group: g})
	return g, out, nil
}

func (s *Service) AddMembers(ctx context.Context, uid, groupID string, req *MembersReq) (*store.Group, Effects, error) {
	g, err := s.adminGroup(ctx, uid, groupID, "adding members")
	if err != nil {
		return nil, nil, err
	}
	candidates, err := s.checkUsers(ctx, req.Members, uid, "adding members")
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, nil, invalidArgument("members is required")
	}
	added, err := s.store.AddMembers(ctx, g.ID, candidates)
	if err != nil {
		return nil, nil, lookupError(err, "group", "adding members")
	}
	if g, err = s.store.GetGroup(ctx, g.ID); err != nil {
		return nil, nil, lookupError(err, "group", "adding members")
	}

	var out Effects
	if len(added) > 0 {
		s.welcome(&out, g, added)
		out.group(g.ID, "", EventMemberAdded, &MemberAdded{GroupID: g.ID, MemberIDs: added})
	}
	glog.V(5).Infof("AddMembers(): uid: %s, group: %s, added: %v", uid, g.ID, added)
	return g, out, nil
}

// RemoveMember removes a non-admin member. The removed user is told and
// unsubscribed before the channel learns about the removal.
func (s *Service) RemoveMember(ctx context.Context, uid, groupID, memberID string) (Effects, error) {
	g, err := s.adminGroup(ctx, uid, groupID, "removing member")
	if err != nil {
		return nil, err
	}
	if !g.IsMember(memberID) {
		return nil, newError(ErrorCodeNotFound, "member not found")
	}
	if g.IsAdmin(memberID) {
		return nil, permissionDenied("group admins can not be removed")
	}
	if err := s.store.RemoveMember(ctx, g.ID, memberID); err != nil {
		return nil, lookupError(err, "group", "removing member")
	}
	if _, err := s.store.ClearUnread(ctx, memberID, store.GroupKey(g.ID)); err != nil {
		glog.Warningf("RemoveMember(): uid: %s, clear unread error: %v", memberID, err)
	}

	var out Effects
	out.user(memberID, EventYouWereRemoved, &GroupRef{GroupID: g.ID})
	out.unsubscribe(memberID, g.ID)
	out.group(g.ID, "", EventMemberRemoved, &MemberRemoved{GroupID: g.ID, RemovedMemberID: memberID})
	glog.V(5).Infof("RemoveMember(): uid: %s, group: %s, removed: %s", uid, g.ID, memberID)
	return out, nil
}

func (s *Service) PromoteAdmin(ctx context.Context, uid, groupID string, req *PromoteReq) (*store.Group, Effects, error) {
	g, err := s.adminGroup(ctx, uid, groupID, "promoting member")
	if err != nil {
		return nil, nil, err
	}
	if !g.IsMember(req.UserID) {
		return nil, nil, newError(ErrorCodeNotFound, "member not found")
	}
	promoted, err := s.store.PromoteAdmin(ctx, g.ID, req.UserID)
	if err != nil {
		return nil, nil, lookupError(err, "group", "promoting member")
	}
	if !promoted {
		return g, nil, nil
	}
	g.Admins = append(g.Admins, req.UserID)

	var out Effects
	out.group(g.ID, "", EventMemberPromoted, &MemberPromoted{GroupID: g.ID, NewAdminID: req.UserID, Admins: g.Admins})
	return g, out, nil
}

// ExitGroup removes uid from the group members. The last admin can not leave.
func (s *Service) ExitGroup(ctx context.Context, uid, groupID string) (Effects, error) {
	g, err := s.memberGroup(ctx, uid, groupID, "leaving group")
	if err != nil {
		return nil, err
	}
	if g.IsAdmin(uid) && len(g.Admins) == 1 {
		return nil, permissionDenied("the only admin can not leave the group")
	}
	if err := s.store.RemoveMember(ctx, g.ID, uid); err != nil {
		return nil, lookupError(err, "group", "leaving group")
	}
	if _, err := s.store.ClearUnread(ctx, uid, store.GroupKey(g.ID)); err != nil {
		glog.Warningf("ExitGroup(): uid: %s, clear unread error: %v", uid, err)
	}

	var out Effects
	out.unsubscribe(uid, g.ID)
	out.group(g.ID, uid, EventMemberLeft, &MemberLeft{GroupID: g.ID, UserID: uid})
	return out, nil
}

// DeleteGroup removes the group with its messages, pins and unread counters
// and closes its channel.
func (s *Service) DeleteGroup(ctx context.Context, uid, groupID string) (Effects, error) {
	g, err := s.adminGroup(ctx, uid, groupID, "deleting group")
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteGroup(ctx, g.ID); err != nil {
		return nil, internalError(err, "deleting group")
	}

	var out Effects
	out.group(g.ID, "", EventGroupDeleted, &GroupRef{GroupID: g.ID})
	out.closeGroup(g.ID)
	glog.Infof("DeleteGroup(): uid: %s, group: %s", uid, g.ID)
	return out, nil
}
