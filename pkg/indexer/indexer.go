// SPDX-License-Identifier: LGPL-3.0-or-later

package indexer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// ChainReader is the subset of pkg/chain.Client the indexer needs. Defined
// here (rather than depending on the concrete *chain.Client) so tests can
// supply a fake without spinning up RPC machinery.
type ChainReader interface {
	GetIdentity(ctx context.Context, verusID string) (*chain.IdentityResponse, error)
	GetBlockchainInfo(ctx context.Context) (*chain.BlockchainInfo, error)
}

const (
	minPollInterval = 10 * time.Second
	maxBackoff      = 60 * time.Second

	// reorgMargin is not referenced by the poll loop: pollOnce re-reads the
	// current content map of every watched identity on each poll, whatever
	// height was last indexed, since the node gives no generic "list updated
	// identities since height" call.
	reorgMargin = 2
)

// StatusActive is the getIdentity "status" value for a live, unrevoked
// identity. Anything else (e.g. "revoked") demotes the agent to inactive.
const StatusActive = "active"

// Indexer polls a fixed watchlist of Verus identities for content-map
// changes and decodes them into agents, services, and reviews (spec.md
// component C5). It has no event feed to subscribe to, so it re-polls the
// whole watchlist on a timer rather than tailing a log.
type Indexer struct {
	chain  ChainReader
	agents storage.AgentStore
	reviews storage.ReviewStore
	log    logger.Logger

	mu               sync.Mutex
	watchlist        map[string]struct{}
	lastIndexedBlock int64
}

// New builds an Indexer with an empty watchlist.
func New(chain ChainReader, agents storage.AgentStore, reviews storage.ReviewStore, log logger.Logger) *Indexer {
	return &Indexer{
		chain:     chain,
		agents:    agents,
		reviews:   reviews,
		log:       log,
		watchlist: make(map[string]struct{}),
	}
}

// Watch adds a Verus identity to the polling watchlist. It is the only way
// an identity enters the watchlist, and no code in this module calls it:
// neither agent registration nor the cmd/ entrypoints add or seed
// identities, so an Indexer built by New polls none until a caller does.
func (ix *Indexer) Watch(verusID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.watchlist[verusID] = struct{}{}
}

// Unwatch removes an identity from the watchlist, e.g. on deactivation.
func (ix *Indexer) Unwatch(verusID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.watchlist, verusID)
}

func (ix *Indexer) snapshotWatchlist() []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]string, 0, len(ix.watchlist))
	for id := range ix.watchlist {
		out = append(out, id)
	}
	return out
}

// LastIndexedBlock reports the watermark, for health/metrics.
func (ix *Indexer) LastIndexedBlock() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lastIndexedBlock
}

// Run polls the watchlist every interval until ctx is cancelled, applying
// exponential backoff (capped at 60s) on consecutive failures. interval is
// floored at 10s regardless of the caller's value.
func (ix *Indexer) Run(ctx context.Context, interval time.Duration) {
	if interval < minPollInterval {
		interval = minPollInterval
	}
	backoff := interval

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if err := ix.pollOnce(ctx); err != nil {
			metrics.IndexerErrors.Inc()
			if ix.log != nil {
				ix.log.Warn("indexer poll failed", logger.Error(err))
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			timer.Reset(backoff)
			continue
		}

		backoff = interval
		timer.Reset(interval)
	}
}

// pollOnce indexes every watched identity and advances the watermark from
// getBlockchainInfo. A single identity's failure does not abort the others;
// the first error encountered is returned after the full pass completes so
// Run can still apply backoff.
func (ix *Indexer) pollOnce(ctx context.Context) error {
	info, err := ix.chain.GetBlockchainInfo(ctx)
	if err != nil {
		return err
	}

	var firstErr error
	for _, id := range ix.snapshotWatchlist() {
		if err := ix.IndexIdentity(ctx, id); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			if ix.log != nil {
				ix.log.Warn("indexer identity decode failed", logger.String("identity", id), logger.Error(err))
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	ix.mu.Lock()
	ix.lastIndexedBlock = info.Blocks
	ix.mu.Unlock()
	metrics.IndexerLastBlock.Set(float64(info.Blocks))
	return nil
}

// IndexIdentity fetches a single identity's current content map and
// decodes+upserts its agent, services, and reviews. It is idempotent: the
// decoded snapshot fully replaces the prior one rather than merging, since
// the content map itself is the chain's authoritative current state, not a
// delta.
func (ix *Indexer) IndexIdentity(ctx context.Context, verusID string) error {
	resp, err := ix.chain.GetIdentity(ctx, verusID)
	if err != nil {
		return err
	}

	cm := resp.Identity.ContentMultiMap
	now := time.Now()

	agent := &storage.Agent{
		IdentityAddress: resp.Identity.IdentityAddress,
		Name:            firstOr(cm, fieldAgentName, resp.Identity.IdentityAddress),
		Type:            storage.AgentType(firstOr(cm, fieldAgentType, string(storage.AgentAssisted))),
		Status:          decodeStatus(resp.Status),
		Owner:           firstOr(cm, fieldAgentOwner, ""),
		Watermark:       uint64(resp.BlockHeight),
		UpdatedAt:       now,
	}
	if err := ix.agents.UpsertAgent(ctx, agent); err != nil {
		return err
	}

	services := decodeServices(cm, resp.Identity.IdentityAddress)
	if err := ix.agents.ReplaceServices(ctx, resp.Identity.IdentityAddress, services); err != nil {
		return err
	}

	for _, r := range decodeReviews(cm, resp.Identity.IdentityAddress) {
		if err := ix.reviews.Upsert(ctx, r); err != nil {
			return err
		}
	}

	return nil
}

func decodeStatus(rpcStatus string) storage.AgentStatus {
	if rpcStatus == StatusActive {
		return storage.AgentActive
	}
	return storage.AgentInactive
}

func firstOr(cm map[string][]string, key, fallback string) string {
	if v, ok := firstField(cm, key); ok {
		return v
	}
	return fallback
}

// decodeServices reconstructs the services array. Each array index i holds
// the i-th service's scalar fields and, via decodeSessionAt, its optional
// session parameters — the content map carries one flat array per field, so
// services line up positionally across fieldService* and fieldSession*
// keys rather than being individually addressable.
func decodeServices(cm map[string][]string, agentID string) []*storage.Service {
	names := listField(cm, fieldServiceName)
	prices := listField(cm, fieldServicePrice)
	currencies := listField(cm, fieldServiceCurrency)
	categories := listField(cm, fieldServiceCategory)
	turnarounds := listField(cm, fieldServiceTurnaround)

	out := make([]*storage.Service, 0, len(names))
	for i, name := range names {
		svc := &storage.Service{
			ID:         agentID + ":" + strconv.Itoa(i),
			AgentID:    agentID,
			Name:       name,
			Currency:   atIndex(currencies, i),
			Category:   atIndex(categories, i),
			Turnaround: atIndex(turnarounds, i),
			Session:    decodeSessionAt(cm, i),
		}
		if p, err := strconv.ParseFloat(atIndex(prices, i), 64); err == nil {
			svc.Price = p
		}
		out = append(out, svc)
	}
	return out
}

func decodeSessionAt(cm map[string][]string, i int) storage.SessionParams {
	durations := listField(cm, fieldSessionDuration)
	maxTokens := listField(cm, fieldSessionMaxTokens)
	maxImages := listField(cm, fieldSessionMaxImages)
	maxMessages := listField(cm, fieldSessionMaxMessages)
	maxFileMB := listField(cm, fieldSessionMaxFileMB)
	mimeLists := listField(cm, fieldSessionMIME)

	p := storage.SessionParams{}
	p.DurationSeconds = atoiOr(atIndex(durations, i), 0)
	p.MaxTokens = atoiOr(atIndex(maxTokens, i), 0)
	p.MaxImages = atoiOr(atIndex(maxImages, i), 0)
	p.MaxMessages = atoiOr(atIndex(maxMessages, i), 0)
	p.MaxFileSizeMB = atoiOr(atIndex(maxFileMB, i), 0)
	if mime := atIndex(mimeLists, i); mime != "" {
		p.AllowedMIME = splitMIME(mime)
	}
	return p
}

func decodeReviews(cm map[string][]string, agentID string) []*storage.Review {
	buyers := listField(cm, fieldReviewBuyer)
	jobHashes := listField(cm, fieldReviewJobHash)
	ratings := listField(cm, fieldReviewRating)
	messages := listField(cm, fieldReviewMessage)
	sigs := listField(cm, fieldReviewSig)

	out := make([]*storage.Review, 0, len(buyers))
	for i, buyer := range buyers {
		r := &storage.Review{
			ID:        agentID + ":review:" + strconv.Itoa(i),
			AgentID:   agentID,
			Buyer:     buyer,
			JobHash:   atIndex(jobHashes, i),
			Message:   atIndex(messages, i),
			Signature: atIndex(sigs, i),
		}
		if rating, err := strconv.Atoi(atIndex(ratings, i)); err == nil {
			r.Rating = &rating
		}
		out = append(out, r)
	}
	return out
}

func atIndex(values []string, i int) string {
	if i < 0 || i >= len(values) {
		return ""
	}
	return values[i]
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// splitMIME splits a comma-joined MIME allowlist, as stored in a single
// content-map value rather than its own array (there is no bound on how
// many MIME types a service allows, so it isn't given one slot per type).
func splitMIME(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
