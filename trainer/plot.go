package trainer

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotRMSE writes a PNG of the training and validation loss curves over
// periods.
func PlotRMSE(path string, res *Result) error {
	p := plot.New()
	p.Title.Text = "Root Mean Squared Error vs. Periods"
	p.X.Label.Text = "Periods"
	p.Y.Label.Text = "RMSE"

	tr, err := plotter.NewLine(curveXYs(res.TrainingRMSE))
	if err != nil {
		return fmt.Errorf("failed to build training curve: %w", err)
	}
	tr.Color = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	p.Add(tr)
	p.Legend.Add("training", tr)

	val, err := plotter.NewLine(curveXYs(res.ValidationRMSE))
	if err != nil {
		return fmt.Errorf("failed to build validation curve: %w", err)
	}
	val.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	p.Add(val)
	p.Legend.Add("validation", val)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot to %s: %w", path, err)
	}
	return nil
}

func curveXYs(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i] = plotter.XY{X: float64(i), Y: v}
	}
	return xys
}
