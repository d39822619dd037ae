// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// SessionCookieName is the cookie the HTTP API mints on registration/login
// and the websocket handshake reads back (spec.md §4.3 handshake mode a,
// §6 "HMAC-signed session cookie").
const SessionCookieName = "vap_session"

// Binding is the authenticated identity a websocket handshake resolved to,
// and the exact session/token record revalidation must keep checking
// against (spec.md §4.3 "Session revalidation").
type Binding struct {
	Identity  string
	SessionID string // non-empty for cookie auth
	TokenID   string // non-empty for one-shot token auth
}

// Authenticator resolves the two handshake auth modes (spec.md §4.3
// "Handshake") and revalidates a binding on a timer.
type Authenticator struct {
	sessions     storage.SessionStore
	jwtSecret    []byte
	cookieSecret []byte
}

// NewAuthenticator builds an Authenticator. jwtSecret signs one-shot chat
// tokens with HS256 (spec.md's SPEC_FULL domain stack: golang-jwt/jwt for
// "one-shot chat token signing"). cookieSecret HMACs the session cookie
// value so a stolen database row alone can't be replayed as a cookie.
func NewAuthenticator(sessions storage.SessionStore, jwtSecret, cookieSecret []byte) *Authenticator {
	return &Authenticator{sessions: sessions, jwtSecret: jwtSecret, cookieSecret: cookieSecret}
}

// SignCookie produces the public cookie value for sessionID: the session
// ID followed by a base64url HMAC-SHA256 tag over it, so the cookie can't
// be forged or have its session ID swapped without the server's secret.
func (a *Authenticator) SignCookie(sessionID string) string {
	mac := hmac.New(sha256.New, a.cookieSecret)
	mac.Write([]byte(sessionID))
	tag := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return sessionID + "." + tag
}

// verifyCookie splits a signed cookie value and checks its tag, returning
// the bare session ID on success.
func (a *Authenticator) verifyCookie(value string) (string, bool) {
	sessionID, tag, ok := strings.Cut(value, ".")
	if !ok || sessionID == "" || tag == "" {
		return "", false
	}
	want, err := base64.RawURLEncoding.DecodeString(tag)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, a.cookieSecret)
	mac.Write([]byte(sessionID))
	if subtle.ConstantTimeCompare(want, mac.Sum(nil)) != 1 {
		return "", false
	}
	return sessionID, true
}

type chatTokenClaims struct {
	jwt.RegisteredClaims
	TokenID  string `json:"tid"`
	Identity string `json:"identity"`
	JobID    string `json:"jobId"`
}

// IssueToken mints a one-shot JWT for use as ?token= on the websocket
// handshake, backed by a durable ChatToken row so ConsumeToken's
// single-use guarantee survives process restart.
func (a *Authenticator) IssueToken(ctx context.Context, identity, jobID string, ttl time.Duration) (string, error) {
	rec := &storage.ChatToken{
		ID:        uuid.NewString(),
		Identity:  identity,
		JobID:     jobID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := a.sessions.CreateChatToken(ctx, rec); err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "create chat token", err)
	}

	claims := chatTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt)},
		TokenID:          rec.ID,
		Identity:         identity,
		JobID:            jobID,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(a.jwtSecret)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeInternal, "sign chat token", err)
	}
	return signed, nil
}

// AuthByCookie resolves a cookie-bound session (spec.md §4.3 handshake mode
// a). cookieValue is the raw cookie as the browser sent it — sessionID plus
// HMAC tag, as minted by SignCookie.
func (a *Authenticator) AuthByCookie(ctx context.Context, cookieValue string) (*Binding, error) {
	sessionID, ok := a.verifyCookie(cookieValue)
	if !ok {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid session cookie")
	}
	sess, err := a.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid session")
	}
	if sess.ExpiresAt.Before(time.Now()) {
		return nil, apperr.New(apperr.CodeUnauthorized, "session expired")
	}
	return &Binding{Identity: sess.Identity, SessionID: sess.ID}, nil
}

// AuthByToken consumes a one-shot chat token (spec.md §4.3 handshake mode
// b). The token is single-use: a second presentation — even of a
// structurally valid, unexpired JWT — fails because the backing
// storage.ChatToken row is already marked used.
func (a *Authenticator) AuthByToken(ctx context.Context, tokenStr string) (*Binding, error) {
	claims := &chatTokenClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return a.jwtSecret, nil
	})
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "invalid chat token")
	}

	rec, err := a.sessions.ConsumeChatToken(ctx, claims.TokenID)
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "chat token already used or expired")
	}
	return &Binding{Identity: rec.Identity, TokenID: rec.ID}, nil
}

// Revalidate re-checks the exact binding that produced the connection is
// still valid (spec.md §4.3: "Any other active session for the same
// identity is not sufficient"). Token-based bindings are one-shot by
// construction — once consumed they never revalidate again, so a
// token-authenticated connection relies entirely on its own liveness
// rather than a revalidation success.
func (a *Authenticator) Revalidate(ctx context.Context, b *Binding) bool {
	if b.SessionID == "" {
		return true
	}
	sess, err := a.sessions.GetSession(ctx, b.SessionID)
	if err != nil {
		return false
	}
	return sess.Identity == b.Identity && sess.ExpiresAt.After(time.Now())
}
