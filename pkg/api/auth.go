// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/chat"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// sessionTTL is how long a cookie session lasts after it's minted.
const sessionTTL = 30 * 24 * time.Hour

// decodeEnvelope reads a sigverify.Envelope request body.
func decodeEnvelope(r *http.Request) (sigverify.Envelope, error) {
	var env sigverify.Envelope
	if err := decodeJSON(r, &env); err != nil {
		return env, err
	}
	return env, nil
}

// verifyEnvelope runs the envelope through C4, rejecting if its `action`
// field doesn't match what the calling handler expects.
func (s *Server) verifyEnvelope(ctx context.Context, env sigverify.Envelope, wantAction string) (*sigverify.Result, error) {
	if env.Action != wantAction {
		return nil, apperr.New(apperr.CodeValidation, "action mismatch")
	}
	return s.deps.Verifier.Verify(ctx, env, nil)
}

// identityFromCookie resolves the caller's identity from the session
// cookie (spec.md §4.3/§6 handshake mode a, reused here for plain HTTP
// reads that don't carry a signed envelope).
func (s *Server) identityFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(chat.SessionCookieName)
	if err != nil {
		return "", apperr.New(apperr.CodeUnauthorized, "missing session cookie")
	}
	binding, err := s.deps.Chat.AuthByCookie(r.Context(), cookie.Value)
	if err != nil {
		return "", err
	}
	return binding.Identity, nil
}

// mintSession creates a durable Session row and sets the HMAC-signed
// cookie on the response (spec.md §6 "HMAC-signed session cookie").
func (s *Server) mintSession(w http.ResponseWriter, r *http.Request, identity string) error {
	sess := &storage.Session{
		ID:         uuid.NewString(),
		Identity:   identity,
		ExpiresAt:  time.Now().Add(sessionTTL),
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
	}
	if err := s.deps.Store.CreateSession(r.Context(), sess); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "create session", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     chat.SessionCookieName,
		Value:    s.deps.Chat.SignCookie(sess.ID),
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
