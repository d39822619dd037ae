// SPDX-License-Identifier: LGPL-3.0-or-later

// Command vap-endpoint-verifier runs the two-phase endpoint
// challenge/response protocol (spec.md §4.5) as a standalone daemon: it
// challenges endpoints due for (re)verification and completes any
// verification currently awaiting a response.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verus-agent-platform/vap/config"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/endpointverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
	"github.com/verus-agent-platform/vap/pkg/storage/postgres"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.NewDefaultLogger()

	var store storage.Store
	if cfg.Storage.Driver == "memory" {
		store = memory.NewStore()
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pg, err := postgres.NewStore(ctx, postgres.Config{
			Host:     cfg.Storage.Host,
			Port:     cfg.Storage.Port,
			User:     cfg.Storage.User,
			Password: cfg.Storage.Password,
			Database: cfg.Storage.Database,
			SSLMode:  cfg.Storage.SSLMode,
		})
		cancel()
		if err != nil {
			log.Fatal("connect postgres", logger.Error(err))
		}
		store = pg
	}

	worker := endpointverify.New(store, endpointverify.Config{
		AllowPrivate: cfg.SSRF.AllowLocalhost,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	log.Info("endpoint verifier starting", logger.Duration("sweep_interval", sweepInterval))
	for {
		select {
		case <-ctx.Done():
			log.Info("endpoint verifier stopped")
			return
		case <-ticker.C:
			sweep(ctx, store, worker, log)
		}
	}
}

func sweep(ctx context.Context, store storage.Store, w *endpointverify.Worker, log logger.Logger) {
	due, err := store.ListEndpointsDueForVerification(ctx, time.Now())
	if err != nil {
		log.Error("list endpoints due for verification", logger.Error(err))
		return
	}
	for _, ep := range due {
		if _, err := w.Challenge(ctx, ep, ep.AgentID); err != nil {
			log.Warn("endpoint challenge failed", logger.String("endpoint", ep.ID), logger.Error(err))
		}
	}

	pending, err := store.ListPendingVerifications(ctx, time.Now())
	if err != nil {
		log.Error("list pending verifications", logger.Error(err))
		return
	}
	for _, v := range pending {
		ep, err := store.GetEndpoint(ctx, v.EndpointID)
		if err != nil {
			continue
		}
		if err := w.Verify(ctx, v, ep); err != nil {
			log.Warn("endpoint verify failed", logger.String("endpoint", ep.ID), logger.Error(err))
		}
	}
}
