package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"stockbot/internal/config"
	"stockbot/internal/domain"
)

func statusCmd() *cobra.Command {
	var offline bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Run diagnostic checks: config, tokens, Yahoo Finance, chart renderer",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "stockbot status v%s\n", version)
			fmt.Fprintf(out, "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			r := &checkReport{out: out}
			cfgPath := config.ExpandPath(resolveConfigPath())
			if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, err := loadConfig()
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			if err := config.ValidateSurfaces(cfg); err != nil {
				r.fail("Channels", err.Error())
			} else {
				r.pass("Channels", enabledChannels(cfg))
			}

			if !offline {
				p, err := newPipeline(cfg)
				if err != nil {
					r.fail("Chart renderer", err.Error())
				} else {
					defer p.Close()
					ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
					defer cancel()
					checkMarket(ctx, r, p)
					checkCharts(ctx, r, p.charts, cfg.Chart)
				}
			}

			if cfg.Metrics.Enabled || cfg.API.Enabled {
				if err := checkListen(cfg.Server.Listen); err != nil {
					r.warn("Server listen", fmt.Sprintf("%s may be in use: %v", cfg.Server.Listen, err))
				} else {
					r.pass("Server listen", cfg.Server.Listen+" available")
				}
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			return r.summary()
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip network and renderer checks")
	return cmd
}

type checkReport struct {
	out                    io.Writer
	passed, warned, failed int
}

func (r *checkReport) pass(check, detail string) {
	r.passed++
	fmt.Fprintf(r.out, "  [PASS] %-20s %s\n", check, detail)
}

func (r *checkReport) fail(check, detail string) {
	r.failed++
	fmt.Fprintf(r.out, "  [FAIL] %-20s %s\n", check, detail)
}

func (r *checkReport) warn(check, detail string) {
	r.warned++
	fmt.Fprintf(r.out, "  [WARN] %-20s %s\n", check, detail)
}

func (r *checkReport) summary() error {
	fmt.Fprintf(r.out, "\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(r.out, "Results: %d passed, %d warnings, %d failed\n", r.passed, r.warned, r.failed)
	if r.failed > 0 {
		return fmt.Errorf("%d check(s) failed", r.failed)
	}
	return nil
}

func enabledChannels(cfg *config.Config) string {
	var names []string
	if cfg.Channels.Discord.Enabled {
		names = append(names, "discord")
	}
	if cfg.Channels.Telegram.Enabled {
		names = append(names, "telegram")
	}
	if cfg.Channels.CLI.Enabled {
		names = append(names, "cli")
	}
	return fmt.Sprint(names)
}

func checkMarket(ctx context.Context, r *checkReport, p *pipeline) {
	latency, err := p.market.Ping(ctx)
	if err != nil {
		r.fail("Yahoo Finance", err.Error())
		return
	}
	r.pass("Yahoo Finance", fmt.Sprintf("search reachable in %s", latency.Round(time.Millisecond)))

	line, err := p.service.QuoteLine(ctx, "SPY")
	if err != nil {
		r.warn("Quote", err.Error())
		return
	}
	r.pass("Quote", line)
}

func checkCharts(ctx context.Context, r *checkReport, charts domain.ChartRenderer, cc config.ChartConfig) {
	if charts == nil {
		r.warn("Chart renderer", "disabled (chart.renderer=none)")
		return
	}
	now := time.Now()
	points := []domain.PricePoint{
		{Date: now.AddDate(0, 0, -2), Close: 100},
		{Date: now.AddDate(0, 0, -1), Close: 102.5},
		{Date: now, Close: 101},
	}
	png, err := charts.RenderLineChart(ctx, points, domain.ChartSpec{
		Title: "status", XLabel: "Date", YLabel: "Price (USD)", Width: cc.Width, Height: cc.Height,
	})
	if err != nil {
		r.fail("Chart renderer", fmt.Sprintf("%s: %v", cc.Renderer, err))
		return
	}
	r.pass("Chart renderer", fmt.Sprintf("%s, %d byte test chart", cc.Renderer, len(png)))
}

func checkListen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
