package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

// LocalUserID is the backend user of every client when auth is disabled.
const LocalUserID = "local"

// ClientInfo holds metadata about an authenticated gateway client.
type ClientInfo struct {
	Name   string
	UserID string // backend user the conversations belong to
}

// Authenticator validates incoming gateway connections.
type Authenticator interface {
	Authenticate(token string) (*ClientInfo, error)
}

// NewAuthenticator builds the authenticator selected by cfg.Type.
func NewAuthenticator(cfg config.AuthConfig) Authenticator {
	if cfg.Type == "static" {
		return NewStaticTokenAuth(cfg.Tokens)
	}
	return NoAuth{}
}

// NoAuth accepts every client as the local user.
type NoAuth struct{}

// Authenticate always succeeds.
func (NoAuth) Authenticate(string) (*ClientInfo, error) {
	return &ClientInfo{Name: "local", UserID: LocalUserID}, nil
}

type authEntry struct {
	token []byte
	info  ClientInfo
}

// StaticTokenAuth authenticates clients against a static token list
// using constant-time comparison to prevent timing attacks.
type StaticTokenAuth struct {
	entries []authEntry
}

// NewStaticTokenAuth builds an authenticator from configured tokens.
// A token without a user id acts as a user named after the token's name.
func NewStaticTokenAuth(tokens []config.TokenConfig) *StaticTokenAuth {
	a := &StaticTokenAuth{entries: make([]authEntry, 0, len(tokens))}
	for _, t := range tokens {
		if t.Token == "" {
			continue
		}
		userID := t.UserID
		if userID == "" {
			userID = t.Name
		}
		a.entries = append(a.entries, authEntry{
			token: []byte(t.Token),
			info:  ClientInfo{Name: t.Name, UserID: userID},
		})
	}
	return a
}

// Authenticate returns client info if the token is valid.
// Every entry is compared so the time taken does not depend on the match.
func (s *StaticTokenAuth) Authenticate(token string) (*ClientInfo, error) {
	tokenBytes := []byte(token)
	var found *ClientInfo
	for i := range s.entries {
		if subtle.ConstantTimeCompare(tokenBytes, s.entries[i].token) == 1 && found == nil {
			info := s.entries[i].info
			found = &info
		}
	}
	if found == nil || token == "" {
		return nil, domain.ErrGatewayAuthFailed
	}
	return found, nil
}

// requestToken reads the token from the `token` query parameter or a
// Bearer Authorization header. Preview frames can only use the query form.
func requestToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
