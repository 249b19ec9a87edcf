package chart

import (
	"fmt"
	"log/slog"
	"time"

	"stockbot/internal/domain"
)

const (
	RendererRaster = "raster"
	RendererChrome = "chrome"
	RendererNone   = "none"
)

type Options struct {
	Renderer      string
	ChromePath    string
	ChromeTimeout time.Duration
	Logger        *slog.Logger
}

// New returns the renderer named by opts.Renderer, nil for "none", and a
// close function that releases any browser it started.
func New(opts Options) (domain.ChartRenderer, func(), error) {
	switch opts.Renderer {
	case "", RendererRaster:
		return NewRaster(opts.Logger), func() {}, nil
	case RendererChrome:
		c := NewChrome(ChromeConfig{ExecPath: opts.ChromePath, Timeout: opts.ChromeTimeout, Logger: opts.Logger})
		return c, c.Close, nil
	case RendererNone:
		return nil, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown chart renderer %q", opts.Renderer)
	}
}
