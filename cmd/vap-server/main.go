// SPDX-License-Identifier: LGPL-3.0-or-later

// Command vap-server runs the full agent marketplace backend: the signed
// REST API, the websocket chat gateway, and the background indexer,
// endpoint-verification and webhook-delivery loops, all against one
// configured storage backend.
package main

import (
	"context"
	"encoding/base64"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/verus-agent-platform/vap/config"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/api"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/chat"
	"github.com/verus-agent-platform/vap/pkg/endpointverify"
	"github.com/verus-agent-platform/vap/pkg/health"
	"github.com/verus-agent-platform/vap/pkg/holdqueue"
	"github.com/verus-agent-platform/vap/pkg/indexer"
	"github.com/verus-agent-platform/vap/pkg/jobs"
	"github.com/verus-agent-platform/vap/pkg/nonce"
	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/safechat"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
	"github.com/verus-agent-platform/vap/pkg/storage/postgres"
)

func levelFromString(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func decodeKey(b64 string) []byte {
	if b64 == "" {
		return nil
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		log.Fatalf("decode key: %v", err)
	}
	return key
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logger.NewLogger(os.Stdout, levelFromString(cfg.Logging.Level))

	var store storage.Store
	switch cfg.Storage.Driver {
	case "memory":
		store = memory.NewStore()
	default:
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
		if err := pg.Migrate(context.Background()); err != nil {
			log.Fatal("migrate postgres", logger.Error(err))
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

	nonces := nonce.New(store, cfg.Session.NonceTTL)
	verifier := sigverify.New(chainClient, nonces, cfg.Session.ClockSkew, log)
	jobMachine := jobs.New(store, chainClient, verifier, jobs.Config{
		FeeAddress:  cfg.SafeChat.FeeAddress,
		BaseRate:    cfg.Fees.BaseRate,
		MaxDiscount: cfg.Fees.MaxDiscount,
	}, log)

	webhookKey := decodeKey(cfg.Webhooks.EncryptionKeyB64)
	webhooks := notify.NewWebhookDispatcher(store, webhookKey, cfg.Webhooks.MaxRetries,
		cfg.Webhooks.InitialBackoff, cfg.Webhooks.MaxBackoff, log)
	notifier := notify.New(store, webhooks, log)

	var scanner safechat.Scanner = safechat.NewInlineProvider()
	if cfg.SafeChat.APIURL != "" {
		scanner = safechat.NewBreakerProvider(safechat.NewHTTPProvider(safechat.HTTPConfig{
			BaseURL:       cfg.SafeChat.APIURL,
			EncryptionKey: decodeKey(cfg.SafeChat.EncryptionKeyB64),
		}), safechat.NewInlineProvider())
	}

	registry := chat.NewRegistry()
	scorer := holdqueue.NewScorer()
	// holdQ and pipeline are mutually referential (a released hold must
	// re-enter the room it came from), so build holdQ with a release
	// callback that closes over the pipeline once it exists.
	var pipeline *chat.Pipeline
	holdQ := holdqueue.New(store, func(ctx context.Context, entry *storage.HoldQueueEntry) error {
		return pipeline.Release(registry)(ctx, entry)
	}, log)
	pipeline = chat.NewPipeline(store, store, scanner, scorer, holdQ, notifier, log)

	authenticator := chat.NewAuthenticator(store, []byte(cfg.Session.ChatJWTSecret), []byte(cfg.HTTP.CookieSecret))
	chatServer := chat.NewServer(registry, authenticator, pipeline, store,
		cfg.Session.DefaultRoomTTL, cfg.Session.ConnPerIP, cfg.Session.ConnPerIdentity, log)

	ix := indexer.New(chainClient, store, store, log)
	verifyWorker := endpointverify.New(store, endpointverify.Config{}, log)

	checker := health.NewChecker(cfg.Chain.RPCURL)
	checker.SetProbe(func(ctx context.Context) (uint64, error) {
		info, err := chainClient.GetBlockchainInfo(ctx)
		if err != nil {
			return 0, err
		}
		return uint64(info.Blocks), nil
	})
	healthServer := health.NewServer(checker, log, cfg.Health.Port)

	apiServer := api.NewServer(cfg.HTTP.Addr, api.Deps{
		Store:                store,
		Verifier:             verifier,
		Jobs:                 jobMachine,
		Chat:                 authenticator,
		HoldQ:                holdQ,
		Notify:               notifier,
		CORS:                 cfg.HTTP.CORSOrigins,
		FilesDir:             cfg.Storage.FilesDir,
		WebhookEncryptionKey: webhookKey,
		ChatServer:           chatServer,
		Log:                  log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go ix.Run(ctx, 15*time.Second)
	go runEndpointVerification(ctx, store, verifyWorker, log)
	go webhooks.StartDeliveryLoop(ctx, 5*time.Second)
	go notifier.StartSweeper(ctx, time.Hour)
	go func() {
		if err := healthServer.Start(); err != nil {
			log.Error("health server stopped", logger.Error(err))
		}
	}()

	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatal("api server stopped", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Error("api shutdown", logger.Error(err))
	}
	if err := healthServer.Stop(shutdownCtx); err != nil {
		log.Error("health shutdown", logger.Error(err))
	}
}

func runEndpointVerification(ctx context.Context, store storage.Store, w *endpointverify.Worker, log logger.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			due, err := store.ListEndpointsDueForVerification(ctx, time.Now())
			if err != nil {
				log.Error("list endpoints due for verification", logger.Error(err))
				continue
			}
			for _, ep := range due {
				if _, err := w.Challenge(ctx, ep, ep.AgentID); err != nil {
					log.Warn("endpoint challenge failed", logger.String("endpoint", ep.ID), logger.Error(err))
				}
			}
			pending, err := store.ListPendingVerifications(ctx, time.Now())
			if err != nil {
				log.Error("list pending verifications", logger.Error(err))
				continue
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
	}
}
