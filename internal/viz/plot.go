package viz

import (
	"math"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 12
)

// Plot draws one series. Non-finite values are left as gaps; a series with
// no finite value renders as an empty string.
func Plot(data []float64, caption string, width, height int) string {
	if !hasFinite(data) {
		return ""
	}
	return asciigraph.Plot(gaps(data), chartOptions(caption, width, height)...)
}

// PlotMany overlays several series, e.g. reference and output of a step
// response. Series are drawn in blue, red, green, yellow order.
func PlotMany(series [][]float64, caption string, width, height int) string {
	data := make([][]float64, 0, len(series))
	for _, s := range series {
		if hasFinite(s) {
			data = append(data, gaps(s))
		}
	}
	if len(data) == 0 {
		return ""
	}
	opts := append(chartOptions(caption, width, height),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow))
	return asciigraph.PlotMany(data, opts...)
}

func chartOptions(caption string, width, height int) []asciigraph.Option {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return []asciigraph.Option{
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	}
}

func hasFinite(data []float64) bool {
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

// gaps maps infinities to NaN, which asciigraph skips.
func gaps(data []float64) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		if math.IsInf(v, 0) {
			v = math.NaN()
		}
		out[i] = v
	}
	return out
}
