// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finsight/orchestrator/internal/bus"
	"github.com/finsight/orchestrator/internal/config"
	"github.com/finsight/orchestrator/internal/executor"
	"github.com/finsight/orchestrator/internal/logging"
	"github.com/finsight/orchestrator/internal/orchestrator"
	"github.com/finsight/orchestrator/internal/persistence/postgres"
	"github.com/finsight/orchestrator/internal/provider"
	"github.com/finsight/orchestrator/internal/store"
	httptransport "github.com/finsight/orchestrator/internal/transport/http"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	// Without DATABASE_URL the orchestrator runs on in-memory state; fine
	// for development, gone after restart.
	var kv store.Store
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()

		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("schema migration failed: %v", err)
		}

		kv = postgres.NewKVStore(pool, logger)
		logger.Info("using postgres state store")
	} else {
		kv = store.NewMemory()
		logger.Warn("DATABASE_URL not set, using in-memory state store")
	}

	workflows := store.NewWorkflowStore(kv)

	eventBus := bus.New(logger)
	defer eventBus.Close()

	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		providers = append(providers, provider.NewHTTPProvider(
			pc.Name, pc.BaseURL, pc.APIKey, pc.Model, cfg.ProviderTimeout,
		))
	}
	chain := provider.NewChain(logger, providers...)
	logger.Info("provider chain configured", "order", chain.Names())

	orch := orchestrator.New(orchestrator.Deps{
		Store:  workflows,
		Bus:    eventBus,
		Logger: logger,
	})

	// The executor shares the process with the API because the bus is
	// in-memory; it drains the firehose until shutdown.
	exec := executor.New(executor.Deps{
		Store:  workflows,
		Bus:    eventBus,
		Chain:  chain,
		Logger: logger,
	})
	go exec.Run(ctx)

	handler := httptransport.NewRouter(httptransport.Deps{
		Orchestrator:      orch,
		Workflows:         workflows,
		Bus:               eventBus,
		Logger:            logger,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Version:           Version,
		Commit:            Commit,
		BuildDate:         BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}
