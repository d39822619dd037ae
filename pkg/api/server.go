// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/chat"
	"github.com/verus-agent-platform/vap/pkg/holdqueue"
	"github.com/verus-agent-platform/vap/pkg/jobs"
	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Deps collects every component the API layer dispatches to. It is kept
// as one struct (rather than a longer NewServer parameter list) because
// nearly every handler needs two or three of these together.
type Deps struct {
	Store    storage.Store
	Verifier *sigverify.Verifier
	Jobs     *jobs.Machine
	Chat     *chat.Authenticator
	HoldQ    *holdqueue.Queue
	Notify   *notify.Service
	CORS       []string
	FilesDir   string
	WebhookEncryptionKey []byte
	ChatServer *chat.Server
	Log        logger.Logger
}

// Server is the C7 signed-request API: a thin net/http layer that
// authenticates each request (signed envelope or session cookie), then
// delegates to the domain packages for every actual business rule.
type Server struct {
	deps Deps
	mux  *http.ServeMux
	http *http.Server
}

// NewServer builds a Server and registers every route.
func NewServer(addr string, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logger.NewDefaultLogger()
	}
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.withCORS(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /api/agents", s.handleSearchAgents)
	s.mux.HandleFunc("GET /api/agents/{id}", s.handleGetAgent)
	s.mux.HandleFunc("PATCH /api/agents/{id}", s.handleUpdateAgent)
	s.mux.HandleFunc("POST /api/agents/{id}/deactivate", s.handleDeactivateAgent)
	s.mux.HandleFunc("GET /api/agents/{id}/endpoints", s.handleListEndpoints)
	s.mux.HandleFunc("GET /api/agents/{id}/services", s.handleListServices)
	s.mux.HandleFunc("GET /api/agents/{id}/reviews", s.handleListReviewsForAgent)
	s.mux.HandleFunc("GET /api/agents/{id}/reputation", s.handleReputation)
	s.mux.HandleFunc("GET /api/agents/{id}/trust", s.handleTrust)
	s.mux.HandleFunc("GET /api/agents/{id}/webhooks", s.handleListWebhooks)
	s.mux.HandleFunc("POST /api/agents/{id}/webhooks", s.handleCreateWebhook)
	s.mux.HandleFunc("DELETE /api/webhooks/{id}", s.handleDeleteWebhook)

	s.mux.HandleFunc("POST /api/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	s.mux.HandleFunc("POST /api/jobs/{id}/accept", s.handleAcceptJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/payment", s.handleRecordPayment)
	s.mux.HandleFunc("POST /api/jobs/{id}/platform-fee", s.handleRecordPlatformFee)
	s.mux.HandleFunc("POST /api/jobs/{id}/deliver", s.handleDeliverJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/complete", s.handleCompleteJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/dispute", s.handleDisputeJob)
	s.mux.HandleFunc("POST /api/jobs/{id}/data-policy", s.handleAcceptDataPolicy)
	s.mux.HandleFunc("POST /api/jobs/{id}/attestation", s.handleSignAttestation)
	s.mux.HandleFunc("GET /api/jobs/{id}/messages", s.handleListMessages)
	s.mux.HandleFunc("GET /api/jobs/{id}/files", s.handleListFiles)
	s.mux.HandleFunc("POST /api/jobs/{id}/files", s.handleUploadFile)
	s.mux.HandleFunc("DELETE /api/files/{id}", s.handleDeleteFile)
	s.mux.HandleFunc("POST /api/jobs/{id}/chat-token", s.handleIssueChatToken)

	s.mux.HandleFunc("POST /api/reviews", s.handleSubmitReview)

	s.mux.HandleFunc("GET /api/inbox", s.handleListInbox)
	s.mux.HandleFunc("POST /api/inbox/{id}/accept", s.handleInboxAccept)
	s.mux.HandleFunc("POST /api/inbox/{id}/reject", s.handleInboxReject)

	s.mux.HandleFunc("GET /api/notifications", s.handleListNotifications)
	s.mux.HandleFunc("POST /api/notifications/{id}/ack", s.handleAckNotification)

	s.mux.HandleFunc("GET /api/holdqueue", s.handleListHoldQueue)
	s.mux.HandleFunc("POST /api/holdqueue/{id}/release", s.handleReleaseHold)
	s.mux.HandleFunc("POST /api/holdqueue/{id}/reject", s.handleRejectHold)

	if s.deps.ChatServer != nil {
		s.mux.Handle("/ws", s.deps.ChatServer)
	}
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(s.deps.CORS))
	for _, o := range s.deps.CORS {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start begins serving; it blocks until the listener errors or Shutdown is
// called, mirroring pkg/health.Server's ListenAndServe/Stop shape.
func (s *Server) Start() error {
	s.deps.Log.Info("api server listening", logger.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
