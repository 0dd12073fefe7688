package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OgheneDev/FlowChat/chat"
)

type route func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error)

// EventApi serves websocket client events.
type EventApi struct {
	service *chat.Service
	routes  map[string]route
}

func NewApi(service *chat.Service) *EventApi {
	a := &EventApi{service: service}
	s := service
	a.routes = map[string]route{
		chat.EventSendMessage: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.SendMessageReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			_, out, err := s.SendDirect(ctx, uid, req)
			return out, err
		},
		chat.EventSendGroupMessage: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.SendGroupMessageReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			_, out, err := s.SendGroup(ctx, uid, req)
			return out, err
		},
		chat.EventMarkMessagesAsSeen: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.MarkSeenReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			return s.MarkSeen(ctx, uid, req)
		},
		chat.EventMarkGroupMessagesAsSeen: groupRoute(s.MarkGroupSeen),
		chat.EventJoinGroup:               groupRoute(s.JoinGroup),
		chat.EventLeaveGroup:              groupRoute(s.LeaveGroup),
		chat.EventTyping:                  typingRoute(s.Typing),
		chat.EventStopTyping:              typingRoute(s.StopTyping),
		chat.EventPinMessage:              pinRoute(s.Pin),
		chat.EventUnpinMessage:            pinRoute(s.Unpin),
		chat.EventStarMessage:             messageRoute(s.Star),
		chat.EventUnstarMessage:           messageRoute(s.Unstar),
		chat.EventDeleteMessage: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.DeleteReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			return s.Delete(ctx, uid, req)
		},
		chat.EventEditMessage: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.EditReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			return s.Edit(ctx, uid, req)
		},
		chat.EventRegisterDeviceToken: tokenRoute(s.RegisterDeviceToken),
		chat.EventRemoveDeviceToken:   tokenRoute(s.RemoveDeviceToken),
		chat.EventSearchMessages: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			req := &chat.SearchReq{}
			if err := decode(data, req); err != nil {
				return nil, err
			}
			return s.Search(ctx, uid, req)
		},
		chat.EventClearSearch: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			return nil, nil
		},
		chat.EventRequestUnreadCounts: func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
			return s.RequestUnreadCounts(ctx, uid)
		},
	}
	return a
}

func (a *EventApi) Known(event string) bool {
	_, ok := a.routes[event]
	return ok
}

// Serve runs the operation bound to event.
func (a *EventApi) Serve(ctx context.Context, uid, event string, data json.RawMessage) (chat.Effects, error) {
	fn, ok := a.routes[event]
	if !ok {
		return nil, chat.NewInvalidArgumentError(fmt.Sprintf("unsupported event: %q", event))
	}
	return fn(ctx, uid, data)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return chat.NewInvalidArgumentError(fmt.Sprintf("malformed payload: %v", err))
	}
	return nil
}

func groupRoute(fn func(context.Context, string, *chat.GroupReq) (chat.Effects, error)) route {
	return func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
		req := &chat.GroupReq{}
		if err := decode(data, req); err != nil {
			return nil, err
		}
		return fn(ctx, uid, req)
	}
}

func typingRoute(fn func(context.Context, string, *chat.TypingReq) (chat.Effects, error)) route {
	return func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
		req := &chat.TypingReq{}
		if err := decode(data, req); err != nil {
			return nil, err
		}
		return fn(ctx, uid, req)
	}
}

func pinRoute(fn func(context.Context, string, *chat.PinReq) (chat.Effects, error)) route {
	return func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
		req := &chat.PinReq{}
		if err := decode(data, req); err != nil {
			return nil, err
		}
		return fn(ctx, uid, req)
	}
}

func messageRoute(fn func(context.Context, string, *chat.MessageReq) (chat.Effects, error)) route {
	return func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
		req := &chat.MessageReq{}
		if err := decode(data, req); err != nil {
			return nil, err
		}
		return fn(ctx, uid, req)
	}
}

func tokenRoute(fn func(context.Context, string, *chat.DeviceTokenReq) (chat.Effects, error)) route {
	return func(ctx context.Context, uid string, data json.RawMessage) (chat.Effects, error) {
		req := &chat.DeviceTokenReq{}
		if err := decode(data, req); err != nil {
			return nil, err
		}
		return fn(ctx, uid, req)
	}
}
