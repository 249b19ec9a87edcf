// Package dispatch routes parsed commands to the report service, batches the
// replies and drives the inbound message loop.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stockbot/internal/command"
	"stockbot/internal/domain"
	"stockbot/internal/metrics"
	"stockbot/internal/stock"
)

const (
	defaultMaxConcurrentCommands = 4
	defaultCommandTimeout        = 30 * time.Second
)

// Reporter is the report service consumed by the router.
type Reporter interface {
	Report(ctx context.Context, symbol string, chartMonths int) (*stock.Report, error)
	Brief(ctx context.Context, symbol string) (*stock.Brief, error)
	Search(ctx context.Context, query string) ([]domain.SymbolMatch, error)
	QuoteLine(ctx context.Context, symbol string) (string, error)
}

type RouterConfig struct {
	Reports        Reporter
	Logger         *slog.Logger
	MaxConcurrency int           // parallel commands per message (default 4)
	CommandTimeout time.Duration // per-command deadline (default 30s)
}

// Router maps each command to exactly one reply. It never returns an error:
// every failure ends in an error reply scoped to the command that failed.
type Router struct {
	reports     Reporter
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
}

func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrentCommands
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = defaultCommandTimeout
	}
	return &Router{
		reports:     cfg.Reports,
		logger:      cfg.Logger,
		concurrency: cfg.MaxConcurrency,
		timeout:     cfg.CommandTimeout,
	}
}

// Route runs the commands concurrently and returns one reply per command,
// in command order.
func (r *Router) Route(ctx context.Context, cmds []command.Command) []domain.Reply {
	if len(cmds) == 0 {
		return nil
	}
	batch := uuid.NewString()
	r.logger.Debug("routing commands", "batch", batch, "count", len(cmds))

	replies := make([]domain.Reply, len(cmds))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, cmd := range cmds {
		g.Go(func() error {
			replies[i] = r.handle(ctx, batch, cmd)
			return nil
		})
	}
	_ = g.Wait()
	return replies
}

func (r *Router) handle(ctx context.Context, batch string, cmd command.Command) (reply domain.Reply) {
	start := time.Now()
	metrics.CommandsTotal(cmd.Kind.String()).Inc()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("command panicked", "batch", batch, "kind", cmd.Kind, "raw", cmd.Raw, "panic", p)
			metrics.CommandErrorsTotal.Inc()
			reply = stock.ErrorReply(subject(cmd), fmt.Errorf("internal error: %v", p))
		}
		metrics.CommandLatency.ObserveSince(start)
	}()

	switch cmd.Kind {
	case command.KindEmptySearch:
		return stock.MissingSearchTermReply()

	case command.KindSearch:
		matches, err := r.reports.Search(ctx, cmd.Query)
		if err != nil {
			r.failed(batch, cmd, err)
		}
		return stock.SearchReply(cmd.Query, matches, err)

	case command.KindMinimal:
		brief, err := r.reports.Brief(ctx, cmd.Symbol)
		switch {
		case stock.IsNotFound(err):
			return r.notFound(ctx, batch, cmd.Symbol)
		case err != nil:
			r.failed(batch, cmd, err)
			return stock.ErrorReply(cmd.Symbol, err)
		}
		out := stock.BriefReply(brief)
		out.Control = &domain.Control{Kind: domain.ControlBrief, Symbol: cmd.Symbol, PeriodMonths: command.DefaultPeriodMonths}
		return out

	case command.KindTicker, command.KindTickerWithPeriod:
		return r.full(ctx, batch, cmd)

	default:
		// Classify never produces other kinds.
		r.logger.Error("unroutable command", "batch", batch, "kind", cmd.Kind)
		metrics.CommandErrorsTotal.Inc()
		return stock.ErrorReply(subject(cmd), fmt.Errorf("unsupported command"))
	}
}

func (r *Router) full(ctx context.Context, batch string, cmd command.Command) domain.Reply {
	period := normalizePeriod(cmd.PeriodMonths)
	report, err := r.reports.Report(ctx, cmd.Symbol, period)
	switch {
	case stock.IsNotFound(err):
		return r.notFound(ctx, batch, cmd.Symbol)
	case err != nil:
		r.failed(batch, cmd, err)
		return stock.ErrorReply(cmd.Symbol, err)
	}
	reply := stock.ReportReply(report)
	reply.Control = &domain.Control{Kind: domain.ControlFull, Symbol: cmd.Symbol, PeriodMonths: period}
	return reply
}

// notFound searches for the unresolved symbol and lists the suggestions.
// A failed search just leaves the suggestion list empty.
func (r *Router) notFound(ctx context.Context, batch, symbol string) domain.Reply {
	matches, err := r.reports.Search(ctx, symbol)
	if err != nil {
		r.logger.Warn("not-found fallback search failed", "batch", batch, "symbol", symbol, "err", err)
		matches = nil
	}
	return stock.NotFoundReply(symbol, matches)
}

func (r *Router) failed(batch string, cmd command.Command, err error) {
	metrics.CommandErrorsTotal.Inc()
	r.logger.Warn("command failed", "batch", batch, "kind", cmd.Kind, "symbol", cmd.Symbol, "query", cmd.Query, "err", err)
}

// Refresh re-renders the reply a control is bound to. The returned reply
// always carries a control so the buttons survive the edit.
func (r *Router) Refresh(ctx context.Context, ev domain.ControlEvent) (reply domain.Reply) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	keep := &domain.Control{Kind: ev.Kind, Symbol: ev.Symbol, PeriodMonths: normalizePeriod(ev.PeriodMonths)}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("refresh panicked", "symbol", ev.Symbol, "action", ev.Action, "panic", p)
			reply = stock.ErrorReply(ev.Symbol, fmt.Errorf("internal error: %v", p))
			reply.Control = keep
		}
	}()
	r.logger.Debug("control pressed", "kind", ev.Kind, "action", ev.Action, "symbol", ev.Symbol, "period", ev.PeriodMonths)

	if ev.Kind == domain.ControlBrief && ev.Action != domain.ActionFull {
		brief, err := r.reports.Brief(ctx, ev.Symbol)
		switch {
		case stock.IsNotFound(err):
			reply = stock.RefreshFailedReply(ev.Symbol)
		case err != nil:
			reply = stock.ErrorReply(ev.Symbol, err)
		default:
			reply = stock.BriefReply(brief)
		}
		reply.Control = keep
		return reply
	}

	period := keep.PeriodMonths
	if ev.Action == domain.ActionFull {
		period = command.DefaultPeriodMonths
	}
	report, err := r.reports.Report(ctx, ev.Symbol, period)
	switch {
	case stock.IsNotFound(err):
		reply = stock.RefreshFailedReply(ev.Symbol)
		reply.Control = keep
	case err != nil:
		reply = stock.ErrorReply(ev.Symbol, err)
		reply.Control = keep
	default:
		reply = stock.ReportReply(report)
		reply.Control = &domain.Control{Kind: domain.ControlFull, Symbol: ev.Symbol, PeriodMonths: period}
	}
	return reply
}

func normalizePeriod(months int) int {
	if months <= 0 {
		return command.DefaultPeriodMonths
	}
	return months
}

func subject(cmd command.Command) string {
	if cmd.Symbol != "" {
		return cmd.Symbol
	}
	return cmd.Query
}
