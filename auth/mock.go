package auth

import (
	"net/http"
	"strings"
)

// MockClient trusts the x-uid cookie or header. Development only.
type MockClient struct{}

var _ Client = (*MockClient)(nil)

func (c *MockClient) Auth(r *http.Request) (string, error) {
	var uid string
	if c, err := r.Cookie("x-uid"); err == nil {
		uid = c.Value
	}
	if uid == "" {
		uid = r.Header.Get("x-uid")
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", ErrNoCredential
	}
	return uid, nil
}
