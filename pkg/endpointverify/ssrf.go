// SPDX-License-Identifier: LGPL-3.0-or-later

// Package endpointverify implements the two-phase challenge/response proof
// that a claimed HTTP endpoint is controlled by the identity that claims
// it (spec.md component C6), with an SSRF-hardened transport and a fixed
// retry/backoff schedule.
package endpointverify

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
)

// maxReadBytes bounds the response body read, independent of any
// Content-Length header the remote end might lie about.
const maxReadBytes = 64 * 1024

// newSafeClient builds an http.Client whose DialContext resolves the host
// first and rejects any address in a private, loopback, link-local, or
// multicast range before connecting — closing the classic SSRF window
// where a hostname resolves differently at connect time than it appeared
// to at validation time (spec.md §4.5: "host resolved ahead of connect").
// allowPrivate exists solely for tests; production callers must never set
// it (spec.md: "allowlists only via explicit test flags that the server
// refuses to honor in production").
func newSafeClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			var safe net.IPAddr
			found := false
			for _, ip := range ips {
				if allowPrivate || !isBlockedIP(ip.IP) {
					safe = ip
					found = true
					break
				}
			}
			if !found {
				return nil, apperr.New(apperr.CodeSSRFBlocked, "resolved address is not routable")
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(safe.IP.String(), port))
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return fmt.Errorf("redirects are not followed")
		},
	}
}

func isBlockedIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	for _, block := range privateBlocks {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

var privateBlocks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",    // carrier-grade NAT
	"169.254.0.0/16",   // link-local, including the cloud metadata address
	"fc00::/7",         // unique local IPv6
	"fe80::/10",        // link-local IPv6
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}
