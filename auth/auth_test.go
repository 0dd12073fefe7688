package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTCookie(t *testing.T) {
	c := NewJWTClient("secret", "")
	token, err := c.Sign("u1", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	uid, err := c.Auth(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestJWTBearer(t *testing.T) {
	c := NewJWTClient("secret", "")
	token, err := c.Sign("u2", nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	uid, err := c.Auth(r)
	require.NoError(t, err)
	assert.Equal(t, "u2", uid)
}

func TestJWTRejected(t *testing.T) {
	c := NewJWTClient("secret", "")

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err := c.Auth(r)
	assert.True(t, errors.Is(err, ErrNoCredential))

	expired, err := c.Sign("u1", jwt.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	require.NoError(t, err)
	other, err := NewJWTClient("other", "").Sign("u1", nil)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"bad secret": other,
		"no user id": noUser,
		"garbage":    "not-a-token",
	} {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: "jwt", Value: token})
		_, err := c.Auth(r)
		assert.Error(t, err, name)
	}
}

func TestMockClient(t *testing.T) {
	c := &MockClient{}

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	_, err := c.Auth(r)
	assert.Error(t, err)

	r.AddCookie(&http.Cookie{Name: "x-uid", Value: "u1"})
	uid, err := c.Auth(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("x-uid", "u2")
	uid, err = c.Auth(r)
	require.NoError(t, err)
	assert.Equal(t, "u2", uid)
}
