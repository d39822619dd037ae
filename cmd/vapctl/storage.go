// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/verus-agent-platform/vap/config"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
	"github.com/verus-agent-platform/vap/pkg/storage/postgres"
)

// openStore loads the ambient config and opens its configured storage
// backend. Every subcommand calls this first; there is no connection
// pooling across invocations since each is a short-lived process.
func openStore(ctx context.Context) (storage.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.Storage.Driver == "memory" {
		return memory.NewStore(), cfg, nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := postgres.NewStore(connectCtx, postgres.Config{
		Host:     cfg.Storage.Host,
		Port:     cfg.Storage.Port,
		User:     cfg.Storage.User,
		Password: cfg.Storage.Password,
		Database: cfg.Storage.Database,
		SSLMode:  cfg.Storage.SSLMode,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return store, cfg, nil
}
