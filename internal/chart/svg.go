package chart

import (
	"fmt"
	"html"
	"strings"

	"stockbot/internal/domain"
)

// SVG returns a standalone SVG document of the chart, using the same
// geometry as the raster renderer.
func SVG(points []domain.PricePoint, spec domain.ChartSpec) (string, error) {
	l, err := newLayout(points, spec)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif" font-size="12">`,
		l.width, l.height, l.width, l.height)
	fmt.Fprintf(&sb, `<rect width="100%%" height="100%%" fill="#ffffff"/>`)

	for _, t := range l.yTicks() {
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#e1e1e1"/>`, l.plotX0, t.pos, l.plotX1, t.pos)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="end">%s</text>`, l.plotX0-8, t.pos+4, t.label)
	}
	for _, t := range l.xTicks() {
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="#e1e1e1"/>`, t.pos, l.plotY0, t.pos, l.plotY1)
		fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle">%s</text>`, t.pos, l.plotY1+18, t.label)
	}
	fmt.Fprintf(&sb, `<polyline points="%d,%d %d,%d %d,%d" fill="none" stroke="#000000"/>`,
		l.plotX0, l.plotY0, l.plotX0, l.plotY1, l.plotX1, l.plotY1)

	sb.WriteString(`<polyline fill="none" stroke="#1f77b4" stroke-width="2" points="`)
	for i, p := range points {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%d,%d", l.x(i, p.Date), l.y(p.Close))
	}
	sb.WriteString(`"/>`)

	fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" font-size="16">%s</text>`,
		l.width/2, marginTop/2+5, html.EscapeString(spec.Title))
	fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle">%s</text>`,
		(l.plotX0+l.plotX1)/2, l.height-12, html.EscapeString(spec.XLabel))
	cy := (l.plotY0 + l.plotY1) / 2
	fmt.Fprintf(&sb, `<text x="18" y="%d" text-anchor="middle" transform="rotate(-90 18 %d)">%s</text>`,
		cy, cy, html.EscapeString(spec.YLabel))

	sb.WriteString(`</svg>`)
	return sb.String(), nil
}
