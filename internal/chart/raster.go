package chart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"stockbot/internal/domain"
)

var (
	colorBackground = color.NRGBA{255, 255, 255, 255}
	colorAxis       = color.NRGBA{0, 0, 0, 255}
	colorGrid       = color.NRGBA{225, 225, 225, 255}
	colorLine       = color.NRGBA{31, 119, 180, 255}
	colorText       = color.NRGBA{30, 30, 30, 255}
)

// Raster draws charts in-process with no external dependencies at runtime.
type Raster struct {
	face   font.Face
	logger *slog.Logger
}

func NewRaster(logger *slog.Logger) *Raster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Raster{face: basicfont.Face7x13, logger: logger}
}

var _ domain.ChartRenderer = (*Raster)(nil)

func (r *Raster) RenderLineChart(ctx context.Context, points []domain.PricePoint, spec domain.ChartSpec) ([]byte, error) {
	l, err := newLayout(points, spec)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := imaging.New(l.width, l.height, colorBackground)

	for _, t := range l.yTicks() {
		hline(img, l.plotX0, l.plotX1, t.pos, colorGrid)
		r.text(img, t.label, l.plotX0-8-r.measure(t.label), t.pos+4)
	}
	for _, t := range l.xTicks() {
		vline(img, t.pos, l.plotY0, l.plotY1, colorGrid)
		r.text(img, t.label, t.pos-r.measure(t.label)/2, l.plotY1+18)
	}

	hline(img, l.plotX0, l.plotX1, l.plotY1, colorAxis)
	vline(img, l.plotX0, l.plotY0, l.plotY1, colorAxis)

	px, py := l.x(0, points[0].Date), l.y(points[0].Close)
	for i := 1; i < len(points); i++ {
		x, y := l.x(i, points[i].Date), l.y(points[i].Close)
		thickLine(img, px, py, x, y, colorLine)
		px, py = x, y
	}

	r.text(img, spec.Title, (l.width-r.measure(spec.Title))/2, marginTop/2+5)
	r.text(img, spec.XLabel, (l.plotX0+l.plotX1-r.measure(spec.XLabel))/2, l.height-12)
	if spec.YLabel != "" {
		label := r.textImage(spec.YLabel)
		rotated := imaging.Rotate90(label)
		img = imaging.Paste(img, rotated, image.Pt(8, (l.plotY0+l.plotY1-rotated.Bounds().Dy())/2))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	r.logger.Debug("chart rendered", "title", spec.Title, "points", len(points), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func (r *Raster) measure(s string) int {
	return font.MeasureString(r.face, s).Ceil()
}

// text draws s with its baseline at y.
func (r *Raster) text(dst draw.Image, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(colorText),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textImage renders s on a tight background-coloured canvas.
func (r *Raster) textImage(s string) *image.NRGBA {
	m := r.face.Metrics()
	h := (m.Ascent + m.Descent).Ceil()
	img := imaging.New(r.measure(s)+2, h+2, colorBackground)
	r.text(img, s, 1, m.Ascent.Ceil()+1)
	return img
}

func hline(img *image.NRGBA, x0, x1, y int, c color.Color) {
	for x := x0; x <= x1; x++ {
		img.Set(x, y, c)
	}
}

func vline(img *image.NRGBA, x, y0, y1 int, c color.Color) {
	for y := y0; y <= y1; y++ {
		img.Set(x, y, c)
	}
}

// thickLine draws a two-pixel Bresenham line.
func thickLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.Color) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		img.Set(x0, y0, c)
		img.Set(x0+1, y0, c)
		img.Set(x0, y0+1, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
