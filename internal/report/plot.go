package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/calibweights/internal/efficiency"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrNoData is returned when there is nothing to draw.
var ErrNoData = errors.New("no defined bins to plot")

// errPoints carries centres, asymmetric efficiency errors and half bin
// widths for the error bar plotters.
type errPoints struct {
	plotter.XYs
	plotter.YErrors
	plotter.XErrors
}

// EfficiencyPlot draws the defined bins as points with Clopper-Pearson
// error bars; the horizontal bars span the bin.
func EfficiencyPlot(bins []efficiency.BinEstimate, title, xlabel string) (*plot.Plot, error) {
	var pts errPoints
	for _, b := range bins {
		if !b.Defined {
			continue
		}
		mid := (b.XLow + b.XHigh) / 2
		half := (b.XHigh - b.XLow) / 2
		pts.XYs = append(pts.XYs, plotter.XY{X: mid, Y: b.Value})
		pts.YErrors = append(pts.YErrors, struct{ Low, High float64 }{b.ErrLow, b.ErrUp})
		pts.XErrors = append(pts.XErrors, struct{ Low, High float64 }{half, half})
	}
	if len(pts.XYs) == 0 {
		return nil, ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = "Efficiency"
	p.Y.Min = 0
	p.Y.Max = 1.05

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("create scatter: %w", err)
	}
	yerr, err := plotter.NewYErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("create y error bars: %w", err)
	}
	xerr, err := plotter.NewXErrorBars(pts)
	if err != nil {
		return nil, fmt.Errorf("create x error bars: %w", err)
	}
	yerr.LineStyle.Width = vg.Points(1)
	xerr.LineStyle.Width = vg.Points(1)
	p.Add(scatter, yerr, xerr, plotter.NewGrid())
	return p, nil
}

// PlotEfficiency saves the efficiency curve to path. The image format
// follows the file extension.
func PlotEfficiency(bins []efficiency.BinEstimate, title, path string) error {
	p, err := EfficiencyPlot(bins, title, "")
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

// WriteEfficiencyPNG renders the efficiency curve as PNG to w.
func WriteEfficiencyPNG(w io.Writer, bins []efficiency.BinEstimate, title string) error {
	p, err := EfficiencyPlot(bins, title, "")
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
