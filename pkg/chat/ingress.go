// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/pkg/holdqueue"
	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/safechat"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Pipeline runs every inbound chat message through the full safety path
// (spec.md §4.3 "Message ingress"): sanitize, room breaker, SafeChat scan,
// crescendo scoring, canary check, hold-queue escalation, persistence and
// broadcast, and finally event fan-out via notify.Service. The scan/score/
// hold stage is skipped entirely when the job opted out via
// storage.Job.SafechatEnabled == false.
type Pipeline struct {
	jobs      storage.JobStore
	canaries  storage.CanaryStore
	scanner   safechat.Scanner
	scorer    *holdqueue.Scorer
	hold      *holdqueue.Queue
	notifier  *notify.Service
	log       logger.Logger
}

// NewPipeline builds a Pipeline.
func NewPipeline(jobs storage.JobStore, canaries storage.CanaryStore, scanner safechat.Scanner, scorer *holdqueue.Scorer, hold *holdqueue.Queue, notifier *notify.Service, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Pipeline{jobs: jobs, canaries: canaries, scanner: scanner, scorer: scorer, hold: hold, notifier: notifier, log: log}
}

// Process handles a single inbound "message" event for an already-joined
// connection. While the room breaker holds the room paused the message is
// rejected, and the pause is announced to the room once as a system notice.
func (p *Pipeline) Process(ctx context.Context, room *Room, conn *Conn, raw string) {
	now := time.Now()

	content := safechat.Sanitize(raw)
	if content == "" {
		conn.enqueue(mustMarshal(errorEvent("message is empty after sanitization")))
		return
	}

	if room.breaker.Record(conn.identity, now) {
		if room.breaker.ShouldNotify() {
			metrics.ChatRoomPauses.Inc()
			room.Broadcast(newServerEvent(ServerMessage, room.JobID, systemNotice("this room has been paused because of unusually rapid messaging; it will resume automatically")), nil)
		}
		metrics.ChatMessages.WithLabelValues("rejected").Inc()
		conn.enqueue(mustMarshal(errorEvent("room is temporarily paused")))
		return
	}

	job, err := p.jobs.GetJob(ctx, room.JobID)
	if err != nil {
		conn.enqueue(mustMarshal(errorEvent("job not found")))
		return
	}

	isSeller := conn.identity == job.Seller

	var (
		scanRes   safechat.Result
		escalated bool
	)
	if job.SafechatEnabled {
		var err error
		scanRes, err = p.scan(ctx, isSeller, content)
		if err != nil {
			p.log.Error("safechat scan failed", logger.String("jobId", room.JobID), logger.Error(err))
			scanRes = safechat.Result{Score: 0, Classification: safechat.ClassSafe}
		}

		if isSeller {
			if hit, err := p.canaryHit(ctx, job.Seller, content); err != nil {
				p.log.Error("canary lookup failed", logger.Error(err))
			} else if hit {
				scanRes.Score = 1.0
				scanRes.Classification = safechat.ClassUnsafe
				scanRes.Flags = append(scanRes.Flags, storage.SafetyFlag{Type: "canary_leak", Severity: "critical", Detail: "agent canary string observed in outbound content"})
			}
		}

		escalated = p.scorer.Record(conn.identity, room.JobID, scanRes.Score, now)
	} else {
		scanRes = safechat.Result{Score: 0, Classification: safechat.ClassSafe}
	}

	msg := &storage.JobMessage{
		ID:          uuid.NewString(),
		JobID:       room.JobID,
		Sender:      conn.identity,
		Content:     content,
		SafetyScore: &scanRes.Score,
		CreatedAt:   now,
	}

	const (
		inboundRejectScore = 0.8
		outboundHoldScore  = 0.6
	)
	if job.SafechatEnabled && !isSeller && !escalated && scanRes.Score >= inboundRejectScore {
		metrics.ChatMessages.WithLabelValues("rejected").Inc()
		conn.enqueue(mustMarshal(errorEvent("message rejected")))
		return
	}
	if job.SafechatEnabled && (escalated || (isSeller && scanRes.Score >= outboundHoldScore)) {
		p.holdMessage(ctx, room, conn, msg, scanRes, escalated)
		return
	}

	if err := p.jobs.AppendMessage(ctx, msg); err != nil {
		conn.enqueue(mustMarshal(errorEvent("failed to persist message")))
		return
	}
	metrics.ChatMessages.WithLabelValues("delivered").Inc()
	room.Broadcast(newServerEvent(ServerMessage, room.JobID, messagePayload(msg)), nil)
	p.emitMessageEvent(ctx, job, msg)
}

func (p *Pipeline) scan(ctx context.Context, isSeller bool, content string) (safechat.Result, error) {
	start := time.Now()
	var (
		res safechat.Result
		err error
	)
	direction := "inbound"
	if isSeller {
		direction = "outbound"
		res, err = p.scanner.Outbound(ctx, content)
	} else {
		res, err = p.scanner.Inbound(ctx, content)
	}
	metrics.SafeChatScanDuration.WithLabelValues("pipeline", direction).Observe(time.Since(start).Seconds())
	return res, err
}

func (p *Pipeline) canaryHit(ctx context.Context, agentID, content string) (bool, error) {
	canaries, err := p.canaries.ListCanariesForAgent(ctx, agentID)
	if err != nil {
		return false, err
	}
	values := make([]string, len(canaries))
	for i, c := range canaries {
		values[i] = c.Value
	}
	return safechat.ContainsCanary(content, values), nil
}

func (p *Pipeline) holdMessage(ctx context.Context, room *Room, conn *Conn, msg *storage.JobMessage, res safechat.Result, escalated bool) {
	if escalated {
		metrics.ChatMessages.WithLabelValues("escalation_rejected").Inc()
		conn.enqueue(mustMarshal(errorEvent("message rejected")))
		return
	}
	metrics.ChatMessages.WithLabelValues("held").Inc()
	metrics.HoldQueueSize.Inc()

	entry := &storage.HoldQueueEntry{
		ID:        uuid.NewString(),
		JobID:     room.JobID,
		Sender:    conn.identity,
		Content:   msg.Content,
		Score:     res.Score,
		Flags:     res.Flags,
		CreatedAt: time.Now(),
	}
	if err := p.hold.Hold(ctx, entry); err != nil {
		p.log.Error("hold queue insert failed", logger.Error(err))
	}
	conn.enqueue(mustMarshal(newServerEvent(ServerMessageHeld, room.JobID, map[string]string{"reason": string(res.Classification)})))
}

// Release implements holdqueue.ReleaseFunc: it is called once a buyer
// approves a held message (or the auto-release sweeper fires), persisting
// it to job history and broadcasting it to the live room if one exists.
func (p *Pipeline) Release(registry *Registry) holdqueue.ReleaseFunc {
	return func(ctx context.Context, entry *storage.HoldQueueEntry) error {
		msg := &storage.JobMessage{
			ID:               uuid.NewString(),
			JobID:            entry.JobID,
			Sender:           entry.Sender,
			Content:          entry.Content,
			SafetyScore:      &entry.Score,
			ReleasedFromHold: true,
			CreatedAt:        time.Now(),
		}
		if err := p.jobs.AppendMessage(ctx, msg); err != nil {
			return apperr.Wrap(apperr.CodeInternal, "persist released message", err)
		}
		metrics.HoldQueueSize.Dec()
		if room, ok := registry.Get(entry.JobID); ok {
			room.Broadcast(newServerEvent(ServerMessage, entry.JobID, messagePayload(msg)), nil)
		}
		if job, err := p.jobs.GetJob(ctx, entry.JobID); err == nil {
			p.emitMessageEvent(ctx, job, msg)
		}
		return nil
	}
}

func (p *Pipeline) emitMessageEvent(ctx context.Context, job *storage.Job, msg *storage.JobMessage) {
	if p.notifier == nil {
		return
	}
	recipient := job.Buyer
	if msg.Sender == job.Buyer {
		recipient = job.Seller
	}
	if err := p.notifier.Emit(ctx, notify.Emission{
		Recipient: recipient,
		Event:     notify.EventMessageNew,
		Title:     "New message",
		Body:      msg.Content,
		JobID:     job.ID,
	}); err != nil {
		p.log.Error("notify emit failed", logger.Error(err))
	}
}

func messagePayload(m *storage.JobMessage) map[string]interface{} {
	return map[string]interface{}{
		"id":               m.ID,
		"sender":           m.Sender,
		"content":          m.Content,
		"releasedFromHold": m.ReleasedFromHold,
		"createdAt":        m.CreatedAt.Unix(),
	}
}

func systemNotice(text string) map[string]interface{} {
	return map[string]interface{}{
		"sender":  "system",
		"content": text,
	}
}
