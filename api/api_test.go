package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OgheneDev/FlowChat/auth"
	"github.com/OgheneDev/FlowChat/chat"
	"github.com/OgheneDev/FlowChat/presence"
	"github.com/OgheneDev/FlowChat/store"
	"github.com/OgheneDev/FlowChat/ws"
)

type testServer struct {
	*httptest.Server
	st *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	ctx := context.Background()
	st := store.NewMemoryStore()
	for id, name := range map[string]string{"a": "Alice", "b": "Bob", "c": "Carol"} {
		require.NoError(t, st.CreateUser(ctx, &store.User{ID: id, FullName: name}))
	}
	reg := presence.NewRegistry()
	service := chat.NewService(st, reg, nil, nil, chat.Config{})
	authClient := &auth.MockClient{}
	hub := ws.NewHub(authClient, service, reg, ws.Conf{})
	srv := httptest.NewServer(NewRouter(hub, service, authClient, Conf{}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &testServer{Server: srv, st: st}
}

func (s *testServer) do(t *testing.T, uid, method, path string, body interface{}) (int, []byte) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if uid != "" {
		req.Header.Set("x-uid", uid)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out.Bytes()
}

func (s *testServer) createGroup(t *testing.T) *store.Group {
	code, body := s.do(t, "a", http.MethodPost, "/api/groups", &chat.CreateGroupReq{Name: "Friends", Members: []string{"b"}})
	require.Equal(t, http.StatusCreated, code, string(body))
	g := &store.Group{}
	require.NoError(t, json.Unmarshal(body, g))
	return g
}

func errorCode(t *testing.T, body []byte) int {
	var out struct {
		Error chat.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Error.Code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, "", http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"status":"ok"`)

	code, _ = s.do(t, "", http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCORS(t *testing.T) {
	st := store.NewMemoryStore()
	reg := presence.NewRegistry()
	service := chat.NewService(st, reg, nil, nil, chat.Config{})
	authClient := &auth.MockClient{}
	hub := ws.NewHub(authClient, service, reg, ws.Conf{})
	defer hub.Close()

	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/groups", nil)
		r.Header.Set("Origin", origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	// No configured origins: cross origin requests get no CORS grant.
	h := NewRouter(hub, service, authClient, Conf{})
	assert.Empty(t, preflight(h, "https://evil.example.com").Header().Get("Access-Control-Allow-Origin"))

	h = NewRouter(hub, service, authClient, Conf{AllowedOrigins: []string{"https://app.example.com"}})
	w := preflight(h, "https://app.example.com")
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, preflight(h, "https://evil.example.com").Header().Get("Access-Control-Allow-Origin"))
}

func TestGroupLifecycle(t *testing.T) {
	s := newTestServer(t)
	g := s.createGroup(t)
	assert.Equal(t, []string{"a", "b"}, g.Members)
	assert.Equal(t, []string{"a"}, g.Admins)

	name := "Best friends"
	code, body := s.do(t, "a", http.MethodPut, "/api/groups/"+g.ID, &chat.UpdateGroupReq{Name: &name})
	require.Equal(t, http.StatusOK, code, string(body))
	assert.Contains(t, string(body), name)

	code, body = s.do(t, "a", http.MethodPost, "/api/groups/"+g.ID+"/members", &chat.MembersReq{Members: []string{"c"}})
	require.Equal(t, http.StatusOK, code, string(body))

	code, body = s.do(t, "a", http.MethodPost, "/api/groups/"+g.ID+"/admins", &chat.PromoteReq{UserID: "b"})
	require.Equal(t, http.StatusOK, code, string(body))

	code, _ = s.do(t, "a", http.MethodDelete, "/api/groups/"+g.ID+"/members/c", nil)
	require.Equal(t, http.StatusNoContent, code)

	code, _ = s.do(t, "a", http.MethodPost, "/api/groups/"+g.ID+"/leave", nil)
	require.Equal(t, http.StatusNoContent, code)

	stored, err := s.st.GetGroup(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, stored.Members)

	code, _ = s.do(t, "b", http.MethodDelete, "/api/groups/"+g.ID, nil)
	require.Equal(t, http.StatusNoContent, code)
	_, err = s.st.GetGroup(context.Background(), g.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGroupErrors(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, "", http.MethodPost, "/api/groups", &chat.CreateGroupReq{Name: "x", Members: []string{"b"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(t, "a", http.MethodPost, "/api/groups", &chat.CreateGroupReq{Members: []string{"b"}})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, chat.ErrorCodeInvalidArguments, errorCode(t, body))

	g := s.createGroup(t)
	code, body = s.do(t, "b", http.MethodDelete, "/api/groups/"+g.ID, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, chat.ErrorCodePermissionDenied, errorCode(t, body))

	code, _ = s.do(t, "a", http.MethodDelete, "/api/groups/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)

	req, err := http.NewRequest(http.MethodPost, s.URL+"/api/groups", strings.NewReader("{broken"))
	require.NoError(t, err)
	req.Header.Set("x-uid", "a")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateGroupNotifiesMembers(t *testing.T) {
	s := newTestServer(t)

	header := http.Header{}
	header.Set("x-uid", "b")
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	// Wait until the session is registered.
	waitFor(t, conn, chat.EventOnlineUsers)

	g := s.createGroup(t)
	var info chat.GroupInfo
	require.NoError(t, json.Unmarshal(waitFor(t, conn, chat.EventGroupAdded), &info))
	assert.Equal(t, g.ID, info.Group.ID)

	// Bob is now subscribed to the group channel.
	name := "Renamed"
	code, _ := s.do(t, "a", http.MethodPut, "/api/groups/"+g.ID, &chat.UpdateGroupReq{Name: &name})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(waitFor(t, conn, chat.EventGroupUpdated), &info))
	assert.Equal(t, name, info.Group.Name)
}

func waitFor(t *testing.T, conn *websocket.Conn, name string) json.RawMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var e struct {
			Name string          `json:"event"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&e), "waiting for %s", name)
		if e.Name == name {
			return e.Data
		}
	}
}
