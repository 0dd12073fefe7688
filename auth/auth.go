// Package auth resolves the user of an incoming connection.
package auth

import (
	"errors"
	"net/http"
)

// ErrNoCredential is returned when the request carries no credential at all.
var ErrNoCredential = errors.New("auth: no credential")

type Client interface {
	// Auth authenticates the current user, returns the uid.
	Auth(r *http.Request) (string, error)
}
