package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stockbot/internal/domain"
)

// CLI implements domain.Channel for an interactive terminal session.
type CLI struct {
	bus       domain.MessageBus
	logger    *slog.Logger
	in        io.Reader
	out       io.Writer
	chartDir  string
	outMu     sync.Mutex
	thinking  bool
	thinkMu   sync.Mutex
	thinkStop chan struct{}
	thinkDone chan struct{}
}

type CLIConfig struct {
	Logger   *slog.Logger
	In       io.Reader
	Out      io.Writer
	ChartDir string // charts are written here when set
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		logger:   cfg.Logger,
		in:       cfg.In,
		out:      cfg.Out,
		chartDir: cfg.ChartDir,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the interactive REPL and blocks until context is cancelled.
func (c *CLI) Start(ctx context.Context, bus domain.MessageBus) error {
	c.bus = bus

	bus.OnOutbound(c.Name(), c.deliver)

	c.printf("stockbot CLI. Try [[[AAPL]]], [[[-MSFT]]], [[[?tesla]]] or !stock NVDA. Type /quit to exit.\n")
	c.printf("> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			c.stopThinking()
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			c.printf("> ")
			continue
		}
		if line == "/quit" || line == "/exit" || line == "/q" {
			c.logger.Info("user requested quit")
			c.stopThinking()
			return nil
		}

		c.bus.Publish(domain.InboundMessage{
			Channel:   c.Name(),
			ChatID:    "direct",
			SenderID:  "user",
			Content:   line,
			Timestamp: time.Now(),
		})
	}
}

// Stop is a no-op for CLI (we exit when Start returns).
func (c *CLI) Stop() error {
	c.stopThinking()
	return nil
}

func (c *CLI) deliver(msg domain.OutboundMessage) {
	switch msg.Kind {
	case domain.OutboundTyping:
		c.startThinking()
	case domain.OutboundText:
		c.stopThinking()
		c.printf("%s\n> ", msg.Content)
	case domain.OutboundReplies:
		c.stopThinking()
		c.outMu.Lock()
		if err := PrintReplies(c.out, msg.Replies, c.chartDir); err != nil {
			c.logger.Warn("cli chart write failed", "err", err)
		}
		_, _ = fmt.Fprint(c.out, "> ")
		c.outMu.Unlock()
	}
}

// PrintReplies writes replies as text separated by blank lines. When dir is
// set, charts are saved there and the path is printed under the reply.
func PrintReplies(w io.Writer, replies []domain.Reply, dir string) error {
	var firstErr error
	for i, r := range replies {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		_, _ = fmt.Fprintln(w, RenderText(r))
		if r.Image == nil || dir == "" {
			continue
		}
		path, err := saveChart(dir, r)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "  chart saved to %s\n", path)
	}
	return firstErr
}

func saveChart(dir string, r domain.Reply) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	name := r.Image.Name
	if r.Control != nil && r.Control.Symbol != "" {
		name = fmt.Sprintf("%s-%dm.png", strings.ToLower(r.Control.Symbol), r.Control.PeriodMonths)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, r.Image.Data, 0o644); err != nil {
		return "", fmt.Errorf("write chart: %w", err)
	}
	return path, nil
}

func (c *CLI) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

func (c *CLI) startThinking() {
	c.thinkMu.Lock()
	defer c.thinkMu.Unlock()
	if c.thinking {
		return
	}
	c.thinking = true
	c.thinkStop = make(chan struct{})
	c.thinkDone = make(chan struct{})
	go func(stop, done chan struct{}) {
		defer close(done)
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		i := 0
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				c.printf("\r\033[K")
				return
			case <-ticker.C:
				c.printf("\r%s Fetching...", frames[i%len(frames)])
				i++
			}
		}
	}(c.thinkStop, c.thinkDone)
}

// stopThinking stops the spinner and waits until it has cleared its line.
func (c *CLI) stopThinking() {
	c.thinkMu.Lock()
	if !c.thinking {
		c.thinkMu.Unlock()
		return
	}
	c.thinking = false
	close(c.thinkStop)
	done := c.thinkDone
	c.thinkMu.Unlock()
	<-done
}
