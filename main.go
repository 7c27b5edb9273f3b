package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tausackhn/twlived-go/config"
	"github.com/tausackhn/twlived-go/internal/capture"
	"github.com/tausackhn/twlived-go/internal/download"
	"github.com/tausackhn/twlived-go/internal/eventbus"
	"github.com/tausackhn/twlived-go/internal/fetcher"
	"github.com/tausackhn/twlived-go/internal/notify"
	"github.com/tausackhn/twlived-go/internal/tracker/poll"
	"github.com/tausackhn/twlived-go/internal/tracker/webhook"
	"github.com/tausackhn/twlived-go/internal/twitchapi"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting twlived",
		"mode", cfg.Mode,
		"channels", cfg.Channels,
		"quality", cfg.Quality,
		"stream_type", cfg.StreamType,
	)

	client := twitchapi.NewHTTPClient(cfg.APIBaseURL, cfg.ClientID, cfg.AccessToken, nil)

	channels, err := client.GetUsers(context.Background(), cfg.Channels, nil)
	if err != nil {
		slog.Error("failed to resolve configured channels", "error", err)
		os.Exit(1)
	}

	bus := eventbus.New()
	bus.Connect(client)

	console := notify.NewConsoleSubscriber(os.Stdout)
	console.Subscribe(bus)

	downloader := download.New(bus, client, fetcher.NewHTTPSegmentFetcher(&http.Client{Timeout: 60 * time.Second}), download.Options{
		Concurrency: cfg.Concurrency,
	})

	facade := capture.New(bus, client, downloader, nil, nil, capture.Options{
		TempDir:      cfg.StorageDir,
		StreamType:   capture.StreamType(cfg.StreamType),
		Quality:      cfg.Quality,
		WaitVODDelay: cfg.WaitVODDelay,
	})
	facade.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	switch cfg.Mode {
	case config.ModeWebhook:
		runWebhook(ctx, channels, client, bus, cfg)
	default:
		runPoll(ctx, channels, client, bus, cfg)
	}

	slog.Info("stopped")
}

func runPoll(ctx context.Context, channels []twitchapi.Channel, client twitchapi.Client, bus *eventbus.Bus, cfg *config.Config) {
	tr := poll.New(channels, client, bus, cfg.PollPeriod)
	tr.Run(ctx)
}

func runWebhook(ctx context.Context, channels []twitchapi.Channel, client twitchapi.Client, bus *eventbus.Bus, cfg *config.Config) {
	tr, err := webhook.New(channels, client, bus, webhook.Options{
		Addr:            cfg.WebhookAddr,
		CallbackBaseURL: cfg.CallbackBaseURL,
		LeaseSeconds:    cfg.LeaseSeconds,
	})
	if err != nil {
		slog.Error("failed to construct webhook tracker", "error", err)
		return
	}
	if err := tr.Run(ctx); err != nil {
		slog.Error("webhook tracker failed to start", "error", err)
		return
	}
	<-ctx.Done()
	tr.Stop()
}
