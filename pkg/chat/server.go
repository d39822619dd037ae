// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/internal/ratelimit"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// JobAuthorizer narrows storage.JobStore to what the handshake needs to
// confirm a caller is actually a participant of the job it's joining.
type JobAuthorizer interface {
	GetJob(ctx context.Context, id string) (*storage.Job, error)
}

// Server wires the room registry, authenticator and pipeline to an
// http.Handler that upgrades a request to a websocket connection (spec.md
// §4.3 "Handshake", mirroring the teacher's upgrader/connection-map shape).
type Server struct {
	registry    *Registry
	auth        *Authenticator
	pipeline    *Pipeline
	jobs        JobAuthorizer
	log         logger.Logger
	defaultTTL  time.Duration
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	perIP      map[string]int
	perIdent   map[string]int
	maxPerIP   int
	maxPerIdent int
}

// NewServer builds a Server. defaultTTL is the session duration of every
// room this server creates; a service's own session duration is not
// consulted.
func NewServer(registry *Registry, auth *Authenticator, pipeline *Pipeline, jobs JobAuthorizer, defaultTTL time.Duration, maxPerIP, maxPerIdent int, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	if maxPerIP <= 0 {
		maxPerIP = 10
	}
	if maxPerIdent <= 0 {
		maxPerIdent = 5
	}
	return &Server{
		registry:    registry,
		auth:        auth,
		pipeline:    pipeline,
		jobs:        jobs,
		log:         log,
		defaultTTL:  defaultTTL,
		maxPerIP:    maxPerIP,
		maxPerIdent: maxPerIdent,
		perIP:       make(map[string]int),
		perIdent:    make(map[string]int),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request, resolves the handshake auth mode, enforces
// connection quotas, joins the job's room, and runs the connection's
// read/write pumps until it closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	binding, err := s.authenticate(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), apperr.CodeUnauthorized.HTTPStatus())
		return
	}

	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		http.Error(w, "jobId is required", http.StatusBadRequest)
		return
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if binding.Identity != job.Buyer && binding.Identity != job.Seller {
		http.Error(w, "not a participant of this job", http.StatusForbidden)
		return
	}

	ip := clientIP(r)
	if !s.reserve(ip, binding.Identity) {
		http.Error(w, "too many concurrent chat connections", http.StatusTooManyRequests)
		return
	}
	defer s.release(ip, binding.Identity)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ttl := s.defaultTTL
	room := s.registry.GetOrCreate(jobID, ttl)
	userWindow := ratelimit.NewWindow(perSocketLimit, perSocketWindow)
	conn := newConn(ws, room, binding.Identity, binding, userWindow.Allow)
	defer conn.close()

	metrics.ChatConnections.Inc()
	defer metrics.ChatConnections.Dec()

	members := room.Join(conn)
	room.Broadcast(newServerEvent(ServerUserJoined, jobID, map[string]string{"identity": binding.Identity}), conn)
	conn.enqueue(mustMarshal(newServerEvent(ServerJoined, jobID, map[string]interface{}{"members": members})))

	revalidateCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.revalidateLoop(revalidateCtx, conn)
	go s.expiryLoop(revalidateCtx, room, conn)

	go conn.writePump(s.log)
	conn.readPump(ctx, s.log, s.handleEvent)

	if room.Leave(conn) {
		s.registry.Drop(jobID)
	} else {
		room.Broadcast(newServerEvent(ServerUserLeft, jobID, map[string]string{"identity": binding.Identity}), conn)
	}
}

func (s *Server) authenticate(ctx context.Context, r *http.Request) (*Binding, error) {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return s.auth.AuthByToken(ctx, tok)
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, apperr.New(apperr.CodeUnauthorized, "missing session cookie or token")
	}
	return s.auth.AuthByCookie(ctx, cookie.Value)
}

func (s *Server) handleEvent(ctx context.Context, conn *Conn, ev ClientEvent) {
	room, ok := s.registry.Get(ev.JobID)
	if !ok || room != conn.room {
		conn.enqueue(mustMarshal(errorEvent("not joined to this job")))
		return
	}

	now := time.Now()
	switch ev.Type {
	case ClientMessage:
		if !room.AllowMessage(conn.identity, now) {
			conn.enqueue(mustMarshal(errorEvent("rate limit exceeded")))
			return
		}
		s.pipeline.Process(ctx, room, conn, ev.Content)
	case ClientTyping:
		if room.AllowTyping(conn.identity, now) {
			room.Broadcast(newServerEvent(ServerTyping, ev.JobID, map[string]string{"identity": conn.identity}), conn)
		}
	case ClientRead:
		if room.AllowRead(conn.identity, now) {
			room.Broadcast(newServerEvent(ServerRead, ev.JobID, map[string]string{"identity": conn.identity}), conn)
		}
	case ClientLeaveJob:
		conn.close()
	default:
		conn.enqueue(mustMarshal(errorEvent("unknown event type")))
	}
}

// revalidateLoop re-checks the binding that authenticated this connection
// on a fixed interval and forces a disconnect the moment it stops holding
// (spec.md §4.3 "Session revalidation").
func (s *Server) revalidateLoop(ctx context.Context, conn *Conn) {
	ticker := time.NewTicker(sessionRevalidateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.auth.Revalidate(ctx, conn.binding) {
				conn.enqueue(mustMarshal(errorEvent("session no longer valid")))
				conn.close()
				return
			}
		}
	}
}

// expiryLoop sends the session_expiring warning and forces disconnect at
// room expiry.
func (s *Server) expiryLoop(ctx context.Context, room *Room, conn *Conn) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if room.ShouldWarn(now) {
				conn.enqueue(mustMarshal(newServerEvent(ServerSessionExpiring, room.JobID, map[string]int64{"expiresAt": room.ExpiresAt().Unix()})))
			}
			if !room.ExpiresAt().After(now) {
				conn.close()
				return
			}
		}
	}
}

const sessionRevalidateInterval = 60 * time.Second

func (s *Server) reserve(ip, identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.perIP[ip] >= s.maxPerIP || s.perIdent[identity] >= s.maxPerIdent {
		return false
	}
	s.perIP[ip]++
	s.perIdent[identity]++
	return true
}

func (s *Server) release(ip, identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perIP[ip]--
	if s.perIP[ip] <= 0 {
		delete(s.perIP, ip)
	}
	s.perIdent[identity]--
	if s.perIdent[identity] <= 0 {
		delete(s.perIdent, identity)
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
