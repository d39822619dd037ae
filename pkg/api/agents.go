// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/reputation"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/trust"
)

// decodeData re-marshals an envelope's loosely-typed Data map into a
// concrete struct, so handlers get normal Go field access after C4 has
// already verified the envelope's signature over that same map.
func decodeData(data map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return apperr.Wrap(apperr.CodeValidation, "malformed request data", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apperr.Wrap(apperr.CodeValidation, "malformed request data", err)
	}
	return nil
}

type registerAgentData struct {
	Name string             `json:"name"`
	Type storage.AgentType  `json:"type"`
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	res, err := s.verifyEnvelope(r.Context(), env, "register")
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	var data registerAgentData
	if err := decodeData(env.Data, &data); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if data.Name == "" {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "name is required"))
		return
	}

	now := time.Now()
	agent := &storage.Agent{
		IdentityAddress: res.IdentityAddress,
		Name:            data.Name,
		Type:            data.Type,
		Status:          storage.AgentActive,
		Owner:           res.IdentityAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.deps.Store.UpsertAgent(r.Context(), agent); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "upsert agent", err))
		return
	}
	if err := s.mintSession(w, r, res.IdentityAddress); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

type updateAgentData struct {
	Name *string            `json:"name"`
	Type *storage.AgentType `json:"type"`
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	res, err := s.verifyEnvelope(r.Context(), env, "update")
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if res.IdentityAddress != id {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this agent's identity"))
		return
	}
	agent, err := s.deps.Store.GetAgent(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "agent not found"))
		return
	}
	var data updateAgentData
	if err := decodeData(env.Data, &data); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if data.Name != nil {
		agent.Name = *data.Name
	}
	if data.Type != nil {
		agent.Type = *data.Type
	}
	agent.UpdatedAt = time.Now()
	if err := s.deps.Store.UpsertAgent(r.Context(), agent); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "update agent", err))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleDeactivateAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	res, err := s.verifyEnvelope(r.Context(), env, "deactivate")
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if res.IdentityAddress != id {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this agent's identity"))
		return
	}
	if err := s.deps.Store.DeactivateAgent(r.Context(), id); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "deactivate agent", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.deps.Store.GetAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "agent not found"))
		return
	}
	writeJSON(w, http.StatusOK, agent)
}

func (s *Server) handleSearchAgents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	agents, err := s.deps.Store.SearchAgents(r.Context(), r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "search agents", err))
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	eps, err := s.deps.Store.ListEndpoints(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list endpoints", err))
		return
	}
	writeJSON(w, http.StatusOK, eps)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	svcs, err := s.deps.Store.ListServices(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list services", err))
		return
	}
	writeJSON(w, http.StatusOK, svcs)
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	reviews, err := s.deps.Store.ListForAgent(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list reviews", err))
		return
	}
	buyerCounts := make(map[string]int, len(reviews))
	for _, rv := range reviews {
		buyerReviews, err := s.deps.Store.ListForBuyer(r.Context(), rv.Buyer)
		if err != nil {
			writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list buyer reviews", err))
			return
		}
		buyerCounts[rv.Buyer] = len(buyerReviews)
	}
	report := reputation.Compute(id, reviews, buyerCounts, time.Now())
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrust(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	agent, err := s.deps.Store.GetAgent(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "agent not found"))
		return
	}
	jobList, err := s.deps.Store.ListJobsForParticipant(r.Context(), id, 1000, 0)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list jobs", err))
		return
	}
	reviews, err := s.deps.Store.ListForAgent(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list reviews", err))
		return
	}

	stats := trust.Stats{
		IdentityAgeDays: time.Since(agent.CreatedAt).Hours() / 24,
		ActiveDays:      time.Since(agent.CreatedAt).Hours() / 24,
	}
	for _, j := range jobList {
		if j.Seller != id {
			continue
		}
		stats.TotalJobs++
		switch j.Status {
		case storage.JobCompleted:
			stats.CompletedJobs++
		case storage.JobDisputed:
			stats.DisputedJobs++
		}
	}
	var ratingSum float64
	var ratingCount int
	for _, rv := range reviews {
		if rv.Rating != nil {
			ratingSum += float64(*rv.Rating)
			ratingCount++
		}
		if rv.Verified {
			stats.VerifiedReviews++
		}
	}
	if ratingCount > 0 {
		stats.AverageRating = ratingSum / float64(ratingCount)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"level": trust.Classify(stats),
		"score": trust.Score(stats),
	})
}
