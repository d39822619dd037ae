// SPDX-License-Identifier: LGPL-3.0-or-later

// Command vap-indexer runs the blockchain indexer (spec.md §4.4) as a
// standalone daemon, separate from vap-server so a busy API process never
// delays chain polling and vice versa.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verus-agent-platform/vap/config"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/indexer"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
	"github.com/verus-agent-platform/vap/pkg/storage/postgres"
)

const pollInterval = 15 * time.Second

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

	chainClient := chain.New(chain.Config{
		RPCURL:         cfg.Chain.RPCURL,
		RPCUser:        cfg.Chain.RPCUser,
		RPCPass:        cfg.Chain.RPCPass,
		RequestTimeout: cfg.Chain.RequestTimeout,
		MaxRetries:     cfg.Chain.MaxRetries,
		RetryDelay:     cfg.Chain.RetryDelay,
		CacheSize:      cfg.Chain.IdentityCache.Size,
		CacheTTL:       cfg.Chain.IdentityCache.TTL,
	}, log)

	ix := indexer.New(chainClient, store, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("indexer starting", logger.Duration("poll_interval", pollInterval))
	ix.Run(ctx, pollInterval)
	log.Info("indexer stopped")
}
