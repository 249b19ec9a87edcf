package chart

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"stockbot/internal/domain"
)

const defaultChromeTimeout = 20 * time.Second

type ChromeConfig struct {
	ExecPath string        // Chrome binary; empty lets chromedp search the usual locations
	Timeout  time.Duration // per-render deadline
	Logger   *slog.Logger
}

// Chrome renders the SVG chart in headless Chrome and screenshots it. The
// browser is started on first use and shared by all renders until Close.
type Chrome struct {
	execPath string
	timeout  time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

func NewChrome(cfg ChromeConfig) *Chrome {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Chrome{execPath: cfg.ExecPath, timeout: cfg.Timeout, logger: cfg.Logger}
}

var _ domain.ChartRenderer = (*Chrome)(nil)

// allocator returns the shared exec allocator, starting it if needed.
func (c *Chrome) allocator() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCtx != nil {
		return c.allocCtx
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.Flag("hide-scrollbars", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	c.logger.Info("headless chrome allocator started", "exec", c.execPath)
	return c.allocCtx
}

func (c *Chrome) RenderLineChart(ctx context.Context, points []domain.PricePoint, spec domain.ChartSpec) ([]byte, error) {
	svg, err := SVG(points, spec)
	if err != nil {
		return nil, err
	}
	l, _ := newLayout(points, spec)

	taskCtx, taskCancel := chromedp.NewContext(c.allocator())
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, c.timeout)
	defer cancel()

	// Stop the tab early if the caller gives up.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	page := `<!DOCTYPE html><html><body style="margin:0">` + svg + `</body></html>`
	url := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(page))

	var png []byte
	err = chromedp.Run(taskCtx,
		chromedp.EmulateViewport(int64(l.width), int64(l.height)),
		chromedp.Navigate(url),
		chromedp.WaitVisible("svg", chromedp.ByQuery),
		chromedp.Screenshot("svg", &png, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome render: %w", err)
	}
	return png, nil
}

// Close shuts the shared browser down.
func (c *Chrome) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.allocCancel != nil {
		c.allocCancel()
		c.allocCtx, c.allocCancel = nil, nil
	}
}
