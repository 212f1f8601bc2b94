// velora is the real-time audio relay: it bridges telephony media
// streams to the conversational model and back, with scheduling tool
// dispatch in between.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/velora-ai/velora/internal/config"
	"github.com/velora-ai/velora/internal/log"
	"github.com/velora-ai/velora/internal/metrics"
	"github.com/velora-ai/velora/pkg/agents"
	"github.com/velora-ai/velora/pkg/bridge"
	"github.com/velora-ai/velora/pkg/hub"
	"github.com/velora-ai/velora/pkg/realtime"
	"github.com/velora-ai/velora/pkg/scheduling"
	"github.com/velora-ai/velora/pkg/web"
)

func main() {
	configPath := flag.String("config", "velora.yaml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.Log.Level)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	resolver := agents.NewCache(
		agents.NewHTTPResolver(cfg.Agents.BaseURL, cfg.Agents.Token, nil),
		cfg.Agents.CacheTTL,
	)

	tools, err := scheduling.NewClient(cfg.Scheduling, nil)
	if err != nil {
		log.Error("scheduling client error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events := hub.New()
	go events.Run(ctx)

	b := bridge.New(bridge.Config{
		Model: realtime.ClientConfig{
			URL:    cfg.Model.URL,
			Model:  cfg.Model.Model,
			APIKey: cfg.Model.APIKey,
		},
		OutputFormat:    cfg.Audio.OutputFormat,
		ModelSampleRate: cfg.Audio.ModelSampleRate,
	}, resolver, tools, m, events)

	srv := web.NewServer(cfg.Server.Addr, b, registry, events)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownDone := make(chan struct{})
		go func() {
			srv.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Warn("shutdown timed out")
		}
	}
}
