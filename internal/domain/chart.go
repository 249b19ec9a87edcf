package domain

import "context"

// ChartSpec describes the labels and size of a rendered line chart.
type ChartSpec struct {
	Title  string
	XLabel string
	YLabel string
	Width  int
	Height int
}

// ChartRenderer turns a price series into PNG bytes.
type ChartRenderer interface {
	RenderLineChart(ctx context.Context, points []PricePoint, spec ChartSpec) ([]byte, error)
}
