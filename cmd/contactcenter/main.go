package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Rose-Bright/agentic-flow-sub000/internal/agents"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/config"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/httpapi"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/observability"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/state"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/tools"
	"github.com/Rose-Bright/agentic-flow-sub000/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	nodeWindow := observability.NewNodeWindow(512)

	ctx := context.Background()
	store, err := state.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("checkpoint store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("checkpoint store: in-memory (set DATABASE_URL for postgres)")
	} else {
		log.Printf("checkpoint store: postgres")
	}

	gateway := tools.NewRegistry()
	tools.RegisterDefaults(gateway)
	gateway.SetMetrics(metrics)

	roster := agents.NewRoster(gateway)
	classifier := agents.NewKeywordClassifier()

	var api *httpapi.Server

	engine, err := workflow.New(workflow.Options{
		Store:               store,
		Classifier:          classifier,
		Roster:              roster,
		Metrics:             metrics,
		NodeWindow:          nodeWindow,
		TurnTimeout:         cfg.TurnTimeout,
		ConversationTimeout: cfg.ConversationTimeout,
		SweepInterval:       cfg.SweepInterval,
		MaxNodeSteps:        cfg.MaxNodeSteps,
		OnEvent: func(evt workflow.Event) {
			if api != nil {
				api.Broadcast(evt)
			}
		},
	})
	if err != nil {
		log.Fatalf("workflow engine init failed: %v", err)
	}

	api = httpapi.New(cfg, engine, gateway, nodeWindow)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()
	go engine.Run(runCtx)

	go func() {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutdown signal received")

	runCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
		_ = httpServer.Close()
	}

	log.Printf("shutdown complete")
}
