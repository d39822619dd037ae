// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// HTTPProvider calls out to an external content-safety service (the
// scanner implementation itself is out of scope; spec.md Non-goals). The
// request/response body is optionally sealed with an AEAD transport key
// when EncryptionKey is set.
type HTTPProvider struct {
	baseURL       string
	httpClient    *http.Client
	encryptionKey []byte
}

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	BaseURL       string
	Timeout       time.Duration
	EncryptionKey []byte // nil disables transport encryption
}

// NewHTTPProvider builds an HTTPProvider.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 800 * time.Millisecond
	}
	return &HTTPProvider{
		baseURL:       cfg.BaseURL,
		httpClient:    &http.Client{Timeout: timeout},
		encryptionKey: cfg.EncryptionKey,
	}
}

type scanRequest struct {
	Content string `json:"content"`
}

type wireEnvelope struct {
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

type scanResponse struct {
	Score          float64               `json:"score"`
	Classification Classification        `json:"classification"`
	Flags          []flagWire            `json:"flags"`
}

type flagWire struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

func (p *HTTPProvider) call(ctx context.Context, direction, content string) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.SafeChatScanDuration.WithLabelValues("http", direction).Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(scanRequest{Content: content})
	if err != nil {
		return Result{}, fmt.Errorf("marshal scan request: %w", err)
	}

	var reqBody []byte
	if p.encryptionKey != nil {
		nonce, ciphertext, err := sealRequest(p.encryptionKey, body)
		if err != nil {
			return Result{}, fmt.Errorf("seal scan request: %w", err)
		}
		reqBody, err = json.Marshal(wireEnvelope{
			Nonce: base64.StdEncoding.EncodeToString(nonce),
			Data:  base64.StdEncoding.EncodeToString(ciphertext),
		})
		if err != nil {
			return Result{}, fmt.Errorf("marshal envelope: %w", err)
		}
	} else {
		reqBody = body
	}

	url := p.baseURL + "/v1/scan/" + direction
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("safechat transport: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("safechat returned status %d", resp.StatusCode)
	}

	var respBody []byte
	if p.encryptionKey != nil {
		var env wireEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return Result{}, fmt.Errorf("decode envelope: %w", err)
		}
		nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
		if err != nil {
			return Result{}, fmt.Errorf("decode nonce: %w", err)
		}
		ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
		if err != nil {
			return Result{}, fmt.Errorf("decode ciphertext: %w", err)
		}
		respBody, err = openResponse(p.encryptionKey, nonce, ciphertext)
		if err != nil {
			return Result{}, fmt.Errorf("open scan response: %w", err)
		}
	} else {
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(resp.Body); err != nil {
			return Result{}, fmt.Errorf("read scan response: %w", err)
		}
		respBody = buf.Bytes()
	}

	var sr scanResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return Result{}, fmt.Errorf("unmarshal scan response: %w", err)
	}

	return toResult(sr), nil
}

func toResult(sr scanResponse) Result {
	res := Result{Score: sr.Score, Classification: sr.Classification}
	for _, f := range sr.Flags {
		res.Flags = append(res.Flags, storage.SafetyFlag{Type: f.Type, Severity: f.Severity, Detail: f.Detail})
	}
	return res
}

// Inbound implements Scanner.
func (p *HTTPProvider) Inbound(ctx context.Context, content string) (Result, error) {
	return p.call(ctx, "inbound", content)
}

// Outbound implements Scanner.
func (p *HTTPProvider) Outbound(ctx context.Context, content string) (Result, error) {
	return p.call(ctx, "outbound", content)
}
