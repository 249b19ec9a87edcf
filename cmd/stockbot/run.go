package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stockbot/internal/bus"
	"stockbot/internal/channel"
	"stockbot/internal/config"
	"stockbot/internal/dispatch"
	"stockbot/internal/domain"
	"stockbot/internal/metrics"
)

func runCmd() *cobra.Command {
	var withCLI bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot (Discord, Telegram, CLI + dispatch loop)",
		Long:  "Starts all enabled channels, the dispatch loop and, when enabled, the metrics/API server. Press Ctrl+C to stop.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if withCLI {
				cfg.Channels.CLI.Enabled = true
			}
			return runBot(cfg)
		},
	}
	cmd.Flags().BoolVar(&withCLI, "cli", false, "also chat from this terminal")
	return cmd
}

func runBot(cfg *config.Config) error {
	if err := config.ValidateSurfaces(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	messageBus := bus.New(bus.Config{Logger: logger.With("component", "bus")})

	loop := dispatch.NewLoop(dispatch.LoopConfig{
		Bus:             messageBus,
		Router:          p.router,
		Logger:          logger.With("component", "dispatch"),
		Concurrency:     cfg.General.MaxConcurrentMessages,
		TypingKeepalive: seconds(cfg.General.TypingKeepaliveSeconds),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	var channels []domain.Channel
	if dc := cfg.Channels.Discord; dc.Enabled {
		channels = append(channels, channel.NewDiscord(channel.DiscordConfig{
			Token:   dc.Token,
			GuildID: dc.GuildID,
			Refresh: p.refresh,
			Logger:  logger.With("channel", "discord"),
		}))
	}
	if tc := cfg.Channels.Telegram; tc.Enabled {
		channels = append(channels, channel.NewTelegram(channel.TelegramConfig{
			Token:     tc.Token,
			AllowFrom: tc.AllowFrom,
			Refresh:   p.refresh,
			Logger:    logger.With("channel", "telegram"),
		}))
	}
	if cfg.Channels.CLI.Enabled {
		channels = append(channels, channel.NewCLI(channel.CLIConfig{
			Logger:   logger.With("channel", "cli"),
			ChartDir: cfg.Chart.OutDir,
		}))
	}

	// A failing surface (bad token, lost connection) takes the process down.
	failed := make(chan error, len(channels)+1)
	for _, ch := range channels {
		go func(ch domain.Channel) {
			err := ch.Start(ctx, messageBus)
			if err != nil {
				logger.Error("channel error", "channel", ch.Name(), "err", err)
				failed <- fmt.Errorf("%s: %w", ch.Name(), err)
				return
			}
			if ch.Name() == "cli" && ctx.Err() == nil {
				failed <- nil // user quit the REPL
			}
		}(ch)
		logger.Info("channel enabled", "channel", ch.Name())
	}

	if cfg.Metrics.Enabled || cfg.API.Enabled {
		srv := channel.NewAPIServer(apiServerConfig(cfg, loop))
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("api server error", "err", err)
				failed <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	logger.Info("stockbot started. Press Ctrl+C to stop.", "version", version, "renderer", cfg.Chart.Renderer)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-failed:
		stop()
	}
	logger.Info("shutting down...")

	const shutdownTimeout = 10 * time.Second
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, ch := range channels {
			if err := ch.Stop(); err != nil {
				logger.Warn("channel stop failed", "channel", ch.Name(), "err", err)
			}
		}
		wg.Wait()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out, forcing exit")
		if runErr == nil {
			runErr = fmt.Errorf("shutdown timed out")
		}
	}
	return runErr
}

func apiServerConfig(cfg *config.Config, loop *dispatch.Loop) channel.APIServerConfig {
	sc := channel.APIServerConfig{
		Listen:          cfg.Server.Listen,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		Logger:          logger.With("component", "api"),
	}
	if cfg.Metrics.Enabled {
		sc.Metrics = metrics.Collector.Handler()
	}
	if cfg.API.Enabled {
		sc.APIKey = cfg.API.APIKey
		sc.Lookup = func(ctx context.Context, text string) ([]domain.Reply, string) {
			res := loop.ProcessDirect(ctx, text)
			return res.Replies, res.Text
		}
	}
	return sc
}
