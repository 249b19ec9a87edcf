package main

import (
	"context"
	"time"

	"stockbot/internal/chart"
	"stockbot/internal/config"
	"stockbot/internal/dispatch"
	"stockbot/internal/domain"
	"stockbot/internal/stock"
	"stockbot/internal/yahoo"
)

// pipeline is everything between a surface and Yahoo Finance.
type pipeline struct {
	market      *yahoo.Client
	charts      domain.ChartRenderer
	service     *stock.Service
	router      *dispatch.Router
	closeCharts func()
}

func newPipeline(cfg *config.Config) (*pipeline, error) {
	market := yahoo.New(yahoo.Config{
		BaseURL:     cfg.Market.BaseURL,
		UserAgent:   cfg.Market.UserAgent,
		Timeout:     seconds(cfg.Market.TimeoutSeconds),
		SearchLimit: cfg.Market.SearchLimit,
		Logger:      logger.With("component", "yahoo"),
	})

	charts, closeCharts, err := chart.New(chart.Options{
		Renderer:      cfg.Chart.Renderer,
		ChromePath:    cfg.Chart.ChromePath,
		ChromeTimeout: seconds(cfg.Chart.ChromeTimeoutSeconds),
		Logger:        logger.With("component", "chart"),
	})
	if err != nil {
		return nil, err
	}

	service := stock.NewService(stock.Config{
		Market:        market,
		Charts:        charts,
		Logger:        logger.With("component", "stock"),
		ReturnPeriods: cfg.Market.ReturnPeriods,
		HistoryDays:   cfg.Market.HistoryDays,
		SearchLimit:   cfg.Market.SearchLimit,
		ChartWidth:    cfg.Chart.Width,
		ChartHeight:   cfg.Chart.Height,
	})

	router := dispatch.NewRouter(dispatch.RouterConfig{
		Reports:        service,
		Logger:         logger.With("component", "router"),
		MaxConcurrency: cfg.General.MaxConcurrentCommands,
		CommandTimeout: seconds(cfg.General.CommandTimeoutSeconds),
	})

	return &pipeline{
		market:      market,
		charts:      charts,
		service:     service,
		router:      router,
		closeCharts: closeCharts,
	}, nil
}

func (p *pipeline) Close() {
	if p.closeCharts != nil {
		p.closeCharts()
	}
}

// refresh adapts Router.Refresh to the callback surfaces take.
func (p *pipeline) refresh(ctx context.Context, ev domain.ControlEvent) domain.Reply {
	return p.router.Refresh(ctx, ev)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
