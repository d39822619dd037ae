// SPDX-License-Identifier: LGPL-3.0-or-later

package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// WebhookPayload is the JSON body delivered to subscribers. EventID lets a
// receiver dedupe retried deliveries carrying identical bytes (spec.md §8
// "Round-trips/idempotence").
type WebhookPayload struct {
	EventID   string                 `json:"eventId"`
	Event     string                 `json:"event"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

// WebhookDispatcher enqueues and delivers agent webhook subscriptions with
// exponential backoff and optional AEAD encryption; when the dispatcher has
// an encryption key, that one key seals every subscription's payloads
// (spec.md §4.8).
type WebhookDispatcher struct {
	store         storage.WebhookStore
	httpClient    *http.Client
	encryptionKey []byte // WEBHOOK_ENCRYPTION_KEY, required in production boot
	maxRetries    int
	initialBackoff time.Duration
	maxBackoff    time.Duration
	log           logger.Logger
}

// NewWebhookDispatcher builds a dispatcher. encryptionKey may be nil only
// outside production (config.Load refuses to boot a production process
// without one, per spec.md §6 "WEBHOOK_ENCRYPTION_KEY").
func NewWebhookDispatcher(store storage.WebhookStore, encryptionKey []byte, maxRetries int, initialBackoff, maxBackoff time.Duration, log logger.Logger) *WebhookDispatcher {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if initialBackoff <= 0 {
		initialBackoff = 30 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Minute
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &WebhookDispatcher{
		store:          store,
		httpClient:     &http.Client{Timeout: 10 * time.Second},
		encryptionKey:  encryptionKey,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
		log:            log,
	}
}

// Enqueue creates one WebhookDelivery per subscription the agent has
// registered for event, capturing the exact payload bytes up front so a
// retry across a restart resends byte-identical content.
func (d *WebhookDispatcher) Enqueue(ctx context.Context, agentID, event string, data map[string]interface{}) error {
	subs, err := d.store.ListSubscriptionsForEvent(ctx, agentID, event)
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "list webhook subscriptions", err)
	}
	eventID := uuid.NewString()
	payload, err := json.Marshal(WebhookPayload{EventID: eventID, Event: event, Data: data, Timestamp: time.Now().Unix()})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "marshal webhook payload", err)
	}
	for _, sub := range subs {
		del := &storage.WebhookDelivery{
			ID:             uuid.NewString(),
			SubscriptionID: sub.ID,
			EventID:        eventID,
			EventType:      event,
			Payload:        payload,
			NextAttempt:    time.Now(),
			CreatedAt:      time.Now(),
		}
		if err := d.store.CreateDelivery(ctx, del); err != nil {
			return apperr.Wrap(apperr.CodeInternal, "create webhook delivery", err)
		}
	}
	return nil
}

// DeliverPending attempts every due delivery once and reschedules failures
// with exponential backoff, giving up after maxRetries (spec.md §5
// "Webhook delivery: per-subscription queue with retry backoff").
func (d *WebhookDispatcher) DeliverPending(ctx context.Context) (int, error) {
	pending, err := d.store.ListPendingDeliveries(ctx, time.Now())
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeInternal, "list pending webhook deliveries", err)
	}

	delivered := 0
	for _, del := range pending {
		if del.GaveUp {
			continue
		}
		if d.deliverOne(ctx, del) {
			delivered++
		}
	}
	return delivered, nil
}

func (d *WebhookDispatcher) deliverOne(ctx context.Context, del *storage.WebhookDelivery) bool {
	sub, err := d.store.GetSubscription(ctx, del.SubscriptionID)
	if err != nil || sub == nil || !sub.Active {
		return false
	}

	secret, err := d.unwrapSecret(sub.EncryptedSecret)
	if err != nil {
		d.log.Error("unwrap webhook secret", logger.String("subscription", sub.ID), logger.Error(err))
		return false
	}

	sendBody := del.Payload
	if d.encryptionKey != nil {
		sealed, sealErr := sealPayload(d.encryptionKey, del.Payload)
		if sealErr != nil {
			d.log.Error("seal webhook payload", logger.Error(sealErr))
			return false
		}
		sendBody = sealed
	}

	sig := signBody(secret, sendBody)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(sendBody))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-VAP-Signature", sig)
	req.Header.Set("X-VAP-Event-Id", del.EventID)

	resp, err := d.httpClient.Do(req)
	ok := err == nil && resp != nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	if resp != nil {
		resp.Body.Close()
	}

	del.Attempts++
	if ok {
		del.Delivered = true
		_ = d.store.UpdateDelivery(ctx, del)
		return true
	}

	if del.Attempts >= d.maxRetries {
		del.GaveUp = true
		_ = d.store.UpdateDelivery(ctx, del)
		d.log.Warn("webhook delivery exhausted retries", logger.String("subscription", sub.ID), logger.String("event", del.EventType))
		return false
	}

	backoff := d.initialBackoff << uint(del.Attempts-1)
	if backoff > d.maxBackoff || backoff <= 0 {
		backoff = d.maxBackoff
	}
	del.NextAttempt = time.Now().Add(backoff)
	_ = d.store.UpdateDelivery(ctx, del)
	return false
}

// StartDeliveryLoop runs DeliverPending on a ticker until ctx is cancelled.
func (d *WebhookDispatcher) StartDeliveryLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.DeliverPending(ctx); err != nil {
					d.log.Error("webhook delivery sweep failed", logger.Error(err))
				}
			}
		}
	}()
}

func signBody(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func sealPayload(masterKey, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	hk := hkdf.New(sha256.New, masterKey, nil, nonce)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

func (d *WebhookDispatcher) unwrapSecret(encrypted []byte) ([]byte, error) {
	if d.encryptionKey == nil || len(encrypted) == 0 {
		return encrypted, nil
	}
	if len(encrypted) < chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("encrypted secret too short")
	}
	nonce, ciphertext := encrypted[:chacha20poly1305.NonceSize], encrypted[chacha20poly1305.NonceSize:]
	hk := hkdf.New(sha256.New, d.encryptionKey, nil, nonce)
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}

// SealSecret encrypts a freshly-generated shared secret for storage,
// called at subscription-creation time.
func SealSecret(encryptionKey, secret []byte) ([]byte, error) {
	if encryptionKey == nil {
		return secret, nil
	}
	return sealPayload(encryptionKey, secret)
}

// GenerateSecret returns 32 random bytes for a new webhook subscription's
// shared secret, base64-encoded for display to the agent exactly once.
func GenerateSecret() (raw []byte, display string, err error) {
	raw = make([]byte, 32)
	if _, err = io.ReadFull(rand.Reader, raw); err != nil {
		return nil, "", err
	}
	return raw, base64.StdEncoding.EncodeToString(raw), nil
}
