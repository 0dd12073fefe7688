package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "jwt"
	UserIDClaim       = "userId"
)

// JWTClient verifies an HS256 token from the cookie, or from the
// "Authorization: Bearer" header for clients that can not send cookies.
type JWTClient struct {
	secret     []byte
	cookieName string
	parser     *jwt.Parser
}

var _ Client = (*JWTClient)(nil)

func NewJWTClient(secret, cookieName string) *JWTClient {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &JWTClient{
		secret:     []byte(secret),
		cookieName: cookieName,
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

func (c *JWTClient) token(r *http.Request) string {
	if cookie, err := r.Cookie(c.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (c *JWTClient) Auth(r *http.Request) (string, error) {
	raw := c.token(r)
	if raw == "" {
		return "", ErrNoCredential
	}
	claims := jwt.MapClaims{}
	_, err := c.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}
	uid, _ := claims[UserIDClaim].(string)
	if uid == "" {
		return "", errors.New("auth: token has no user id")
	}
	return uid, nil
}

// Sign issues a token for uid. Used by tests and dev tools.
func (c *JWTClient) Sign(uid string, claims jwt.MapClaims) (string, error) {
	all := jwt.MapClaims{UserIDClaim: uid}
	for k, v := range claims {
		all[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, all).SignedString(c.secret)
}
