package chat

import (
	"context"
	"sort"

	"github.com/golang/glog"

	"github.com/OgheneDev/FlowChat/store"
)

// Reconcile moves the messages that reached uid while it was offline to
// delivered, and tells each online sender once about its affected messages.
// Replaying it emits nothing for messages already delivered or seen.
func (s *Service) Reconcile(ctx context.Context, uid string) (Effects, error) {
	groups, err := s.store.ListUserGroups(ctx, uid)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, uid, groups)
}

func (s *Service) reconcile(ctx context.Context, uid string, groups []string) (Effects, error) {
	var out Effects

	direct, err := s.store.DeliverPending(ctx, uid)
	if err != nil {
		return nil, err
	}
	for _, b := range groupBySender(direct) {
		if s.presence.IsOnline(b.sender) {
			out.user(b.sender, EventBulkMessageStatusUpdate, &BulkStatusUpdate{
				MessageIDs: b.ids,
				Status:     store.StatusDelivered,
			})
		}
	}

	grouped, err := s.store.DeliverPendingInGroups(ctx, uid, groups)
	if err != nil {
		return out, err
	}
	for _, b := range groupBySender(grouped) {
		if s.presence.IsOnline(b.sender) {
			out.user(b.sender, EventBulkGroupMessageStatusUpdate, &BulkStatusUpdate{
				MessageIDs: b.ids,
				Status:     store.StatusDelivered,
			})
		}
	}

	if n := len(direct) + len(grouped); n > 0 {
		reconciled.WithLabelValues("direct").Add(float64(len(direct)))
		reconciled.WithLabelValues("group").Add(float64(len(grouped)))
		glog.V(5).Infof("reconcile(): uid: %s, delivered %d direct and %d group messages", uid, len(direct), len(grouped))
	}
	return out, nil
}

type senderBatch struct {
	sender string
	ids    []string
}

// groupBySender keeps the message order within a sender, senders are sorted.
func groupBySender(slice []*store.Message) []senderBatch {
	index := make(map[string]int)
	var out []senderBatch
	for _, m := range slice {
		i, ok := index[m.SenderID]
		if !ok {
			i = len(out)
			index[m.SenderID] = i
			out = append(out, senderBatch{sender: m.SenderID})
		}
		out[i].ids = append(out[i].ids, m.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sender < out[j].sender })
	return out
}
