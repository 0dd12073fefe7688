package ws

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/OgheneDev/FlowChat/chat"
	"github.com/OgheneDev/FlowChat/presence"
)

type SessionError int

const (
	ReadError  SessionError = 1
	WriteError SessionError = 2
	PingError  SessionError = 3
	BadRequest SessionError = 4
	ServerStop SessionError = 5
	KickedOff  SessionError = 6
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 3 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	// Recommend configure nginx with `keep-alive_timeout` >= 65s.
	pingPeriod = 20 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 25 * time.Second
)

// Session describes one websocket connection.
type Session struct {
	Uid        string    `json:"uid"`
	Sid        string    `json:"sid"`
	Ip         string    `json:"ip"`
	CreateTime time.Time `json:"createTime"`
}

// Handler manages an active connection to an end user.
type Handler struct {
	sync.Mutex

	hub     *Hub
	session *Session
	conn    *websocket.Conn
	limiter *rate.Limiter

	dataChan chan *SessionData
	closing  bool
}

var _ presence.Conn = (*Handler)(nil)

// SessionData is the data structure for `dataChan`.
type SessionData struct {
	Event   *chat.Event
	kickoff bool
}

// inbound is the envelope of a client event.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func newHandler(hub *Hub, sess *Session, conn *websocket.Conn) *Handler {
	return &Handler{
		hub:      hub,
		session:  sess,
		conn:     conn,
		limiter:  rate.NewLimiter(rate.Limit(hub.conf.RateLimit), hub.conf.RateBurst),
		dataChan: make(chan *SessionData, hub.conf.SendQueueSize),
	}
}

func (h *Handler) String() string {
	return fmt.Sprintf("{uid: %s, sid: %s, ip: %s}", h.session.Uid, h.session.Sid, h.session.Ip)
}

func (h *Handler) Sid() string {
	return h.session.Sid
}

func (h *Handler) Uid() string {
	return h.session.Uid
}

// Send queues an event for the peer. The event is dropped when the connection
// is closing or its queue is full.
func (h *Handler) Send(event string, data interface{}) bool {
	if h.push(&SessionData{Event: &chat.Event{Name: event, Data: data}}) {
		return true
	}
	droppedEvents.Inc()
	glog.Warningf("Send(): drop event %s, session: %s", event, h)
	return false
}

// Kickoff tells the peer it was replaced by a newer connection, then closes.
func (h *Handler) Kickoff() {
	glog.V(5).Infof("Kickoff(): session: %s", h)
	if !h.push(&SessionData{Event: &chat.Event{Name: chat.EventKickoff}, kickoff: true}) {
		h.close(KickedOff)
	}
}

func (h *Handler) push(v *SessionData) bool {
	h.Lock()
	defer h.Unlock()
	if h.closing {
		return false
	}
	select {
	case h.dataChan <- v:
		return true
	default:
		return false
	}
}

func (h *Handler) close(cause SessionError) {
	h.Lock()
	if h.closing {
		h.Unlock()
		return
	}
	h.closing = true
	_ = h.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
	h.conn.Close()
	close(h.dataChan)
	h.Unlock()

	glog.V(5).Infof("session closed, cause: %d, %s", cause, h)
	if cause != ServerStop {
		// Ask the hub to remove this handler.
		h.hub.delHandler(h)
	}
}

func (h *Handler) isClosing() bool {
	h.Lock()
	defer h.Unlock()
	return h.closing
}

func (h *Handler) sendError(err error) {
	e := chat.AsError(err)
	if e.Code == chat.ErrorCodeInternal {
		glog.Errorf("session: %s, error: %v", h, err)
	} else {
		glog.V(5).Infof("session: %s, error: %v", h, err)
	}
	eventErrors.WithLabelValues(fmt.Sprint(e.Code)).Inc()
	h.Send(chat.EventError, e)
}

func (h *Handler) recvLoop() {
	defer func() { glog.V(5).Infof("recvLoop(): exited, session: %s", h) }()

	h.conn.SetReadLimit(h.hub.conf.MaxMessageBytes)
	h.conn.SetPongHandler(func(s string) error {
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for !h.isClosing() {
		// Reset on every read, the time spent serving the previous event
		// does not count against the pong wait.
		h.conn.SetReadDeadline(time.Now().Add(pongWait))
		msgType, msg, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				glog.Errorf("recvLoop(): read error: %v, session: %s", err, h)
			}
			h.close(ReadError)
			return
		}

		if glog.V(7) {
			glog.Infof("recvLoop(): incoming client message: %s", msg)
		}

		if msgType != websocket.TextMessage {
			h.sendError(chat.NewInvalidArgumentError("websocket only supports TextMessage"))
			continue
		}

		req := inbound{}
		if err := json.Unmarshal(msg, &req); err != nil {
			h.sendError(chat.NewInvalidArgumentError(fmt.Sprintf("malformed event: %v", err)))
			continue
		}

		if !h.limiter.Allow() {
			h.sendError(chat.NewRateLimitError())
			continue
		}

		if h.hub.eventApi.Known(req.Event) {
			inboundEvents.WithLabelValues(req.Event).Inc()
		}
		glog.V(5).Infof("recvLoop(): event: %s, session: %s", req.Event, h)

		effects, err := h.hub.eventApi.Serve(h.hub.ctx, h.Uid(), req.Event, req.Data)
		if err != nil {
			h.sendError(err)
			continue
		}
		h.hub.Apply(h, effects)
	}
}

func (h *Handler) sendLoop() {
	pingTicker := time.NewTicker(pingPeriod)
	defer func() {
		pingTicker.Stop()
		glog.V(5).Infof("sendLoop(): exited, session: %s", h)
	}()

	for {
		select {
		case v, ok := <-h.dataChan:
			if !ok { // chan was closed
				return
			}

			out, err := json.Marshal(v.Event)
			if err != nil {
				glog.Errorf("sendLoop(): marshal event %s error: %v", v.Event.Name, err)
				continue
			}
			if glog.V(7) {
				logValue := string(out)
				if len(logValue) > 100 {
					logValue = logValue[:100] + " ..."
				}
				glog.Infof("sendLoop(): value: %s, session: %s", logValue, h)
			}

			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.TextMessage, out); err != nil {
				glog.Errorf("sendLoop(): error write message, session: %s, err: %v", h, err)
				h.close(WriteError)
				return
			}
			if v.kickoff {
				h.close(KickedOff)
				return
			}
		case <-pingTicker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				glog.Errorf("sendLoop(): error write ping message, session: %s, err: %v", h, err)
				h.close(PingError)
				return
			}
		}
	}
}
