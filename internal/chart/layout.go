// Package chart renders price-history line charts as PNG images.
package chart

import (
	"errors"
	"fmt"
	"math"
	"time"

	"stockbot/internal/domain"
)

// ErrNotEnoughPoints is returned for series that cannot form a line.
var ErrNotEnoughPoints = errors.New("chart needs at least two points")

const (
	defaultWidth  = 1000
	defaultHeight = 500

	marginLeft   = 80
	marginRight  = 24
	marginTop    = 44
	marginBottom = 56

	yTicks = 5
	xTicks = 5
)

// layout is the geometry shared by the raster and SVG renderers.
type layout struct {
	width, height int
	plotX0, plotY0 int // top-left of the plot area
	plotX1, plotY1 int // bottom-right of the plot area

	minY, maxY float64
	minT, maxT time.Time
	n          int
}

type tick struct {
	pos   int
	label string
}

func newLayout(points []domain.PricePoint, spec domain.ChartSpec) (*layout, error) {
	if len(points) < 2 {
		return nil, ErrNotEnoughPoints
	}
	w, h := spec.Width, spec.Height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	if w <= marginLeft+marginRight+10 || h <= marginTop+marginBottom+10 {
		return nil, fmt.Errorf("chart size %dx%d too small", w, h)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Close)
		hi = math.Max(hi, p.Close)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.01, 1)
	}

	return &layout{
		width:  w,
		height: h,
		plotX0: marginLeft,
		plotY0: marginTop,
		plotX1: w - marginRight,
		plotY1: h - marginBottom,
		minY:   lo - pad,
		maxY:   hi + pad,
		minT:   points[0].Date,
		maxT:   points[len(points)-1].Date,
		n:      len(points),
	}, nil
}

// x maps the i-th point to a pixel column. Points are spread by date; a
// series without a time span falls back to even spacing.
func (l *layout) x(i int, t time.Time) int {
	span := l.maxT.Sub(l.minT)
	frac := float64(i) / float64(l.n-1)
	if span > 0 {
		frac = float64(t.Sub(l.minT)) / float64(span)
	}
	return l.plotX0 + int(math.Round(frac*float64(l.plotX1-l.plotX0)))
}

// y maps a price to a pixel row.
func (l *layout) y(v float64) int {
	frac := (v - l.minY) / (l.maxY - l.minY)
	return l.plotY1 - int(math.Round(frac*float64(l.plotY1-l.plotY0)))
}

func (l *layout) yTicks() []tick {
	ticks := make([]tick, 0, yTicks+1)
	for i := 0; i <= yTicks; i++ {
		v := l.minY + (l.maxY-l.minY)*float64(i)/yTicks
		ticks = append(ticks, tick{pos: l.y(v), label: fmt.Sprintf("%.2f", v)})
	}
	return ticks
}

func (l *layout) xTicks() []tick {
	ticks := make([]tick, 0, xTicks+1)
	span := l.maxT.Sub(l.minT)
	for i := 0; i <= xTicks; i++ {
		t := l.minT.Add(time.Duration(float64(span) * float64(i) / xTicks))
		pos := l.plotX0 + (l.plotX1-l.plotX0)*i/xTicks
		ticks = append(ticks, tick{pos: pos, label: t.Format("2006-01-02")})
	}
	return ticks
}
