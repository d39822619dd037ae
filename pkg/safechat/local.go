// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import "context"

// LocalFunc is the signature of an in-process scan implementation. The
// actual content-safety model is an external collaborator (spec.md
// Non-goals: "content moderation beyond the SafeChat contract"); this
// package only adapts whatever is linked in to the Scanner capability.
type LocalFunc func(ctx context.Context, content string) (Result, error)

// LocalProvider calls directly into an in-process scanner, skipping the
// network entirely. Used when the safety model is compiled into the same
// binary rather than served over HTTP.
type LocalProvider struct {
	InboundFn  LocalFunc
	OutboundFn LocalFunc
}

// NewLocalProvider builds a LocalProvider from the given capability funcs.
func NewLocalProvider(inbound, outbound LocalFunc) *LocalProvider {
	return &LocalProvider{InboundFn: inbound, OutboundFn: outbound}
}

// Inbound implements Scanner.
func (p *LocalProvider) Inbound(ctx context.Context, content string) (Result, error) {
	return p.InboundFn(ctx, content)
}

// Outbound implements Scanner.
func (p *LocalProvider) Outbound(ctx context.Context, content string) (Result, error) {
	return p.OutboundFn(ctx, content)
}
