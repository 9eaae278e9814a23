package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultWeightBins is used by WeightsPage when nbins is not positive.
const DefaultWeightBins = 40

// WeightHistogram bins ws into nbins equal-width bins between the smallest
// and largest weight. It returns the bin centres and counts.
func WeightHistogram(ws []float64, nbins int) (centres, counts []float64) {
	if len(ws) == 0 {
		return nil, nil
	}
	if nbins <= 0 {
		nbins = DefaultWeightBins
	}
	x := append([]float64(nil), ws...)
	sort.Float64s(x)
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		hi = lo + 1
	}
	dividers := floats.Span(make([]float64, nbins+1), lo, hi)
	// stat.Histogram needs the last divider strictly above the maximum.
	dividers[nbins] = math.Nextafter(hi, math.Inf(1))
	counts = stat.Histogram(nil, dividers, x, nil)
	centres = make([]float64, nbins)
	for i := range centres {
		centres[i] = (dividers[i] + dividers[i+1]) / 2
	}
	return centres, counts
}

// WeightsPage writes an HTML page with a histogram of the event weights.
func WeightsPage(ws []float64, nbins int, title string, w io.Writer) error {
	if len(ws) == 0 {
		return ErrNoData
	}
	centres, counts := WeightHistogram(ws, nbins)
	x := make([]string, len(centres))
	y := make([]opts.BarData, len(counts))
	for i := range centres {
		x[i] = fmt.Sprintf("%.4g", centres[i])
		y[i] = opts.BarData{Value: counts[i]}
	}
	mean, std := stat.MeanStdDev(ws, nil)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("events=%d mean=%.4g std=%.4g", len(ws), mean, std)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "weight", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "events"}),
	)
	bar.SetXAxis(x).AddSeries("weights", y)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}
