// Package auth resolves the token presented on the stream and on every
// POST into the identity that owns a session.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is who opened a session. Sessions compare identities to decide
// whether a POST belongs to them.
type Identity struct {
	Subject string
	Issuer  string
}

func (i Identity) Equal(other Identity) bool {
	return i.Subject == other.Subject && i.Issuer == other.Issuer
}

func (i Identity) String() string {
	if i.Issuer == "" {
		return i.Subject
	}
	return i.Issuer + "/" + i.Subject
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
}

// AuthFunc adapts a plain function to Authenticator.
type AuthFunc func(ctx context.Context, token string) (Identity, error)

func (f AuthFunc) Authenticate(ctx context.Context, token string) (Identity, error) {
	return f(ctx, token)
}

// Token extracts the credential from the Authorization header, falling
// back to the query parameter param.
func Token(r *http.Request, param string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	if param == "" {
		return ""
	}
	return r.URL.Query().Get(param)
}
