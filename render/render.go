// Package render draws a trapezoidal approximation: the sampled function and
// one shaded trapezoid per sub-interval.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"trapezoid.dev/integral/worker/calculator"
)

// ErrUnsupportedFormat is returned for image formats other than png, svg and pdf.
var ErrUnsupportedFormat = errors.New("unsupported image format")

var contentTypes = map[string]string{
	"png": "image/png",
	"svg": "image/svg+xml",
	"pdf": "application/pdf",
}

var fillColor = color.NRGBA{R: 255, G: 165, A: 128}

// ContentType returns the MIME type of an image format.
func ContentType(format string) (string, error) {
	ct, ok := contentTypes[format]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return ct, nil
}

// Plot builds the figure for res. Non-finite samples break the curve and
// their trapezoids are left out.
func Plot(res calculator.Result) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Trapezoidal Approximation"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "f(x)"
	p.Add(plotter.NewGrid())

	for _, tr := range calculator.Trapezoids(res) {
		if !calculator.Finite(tr.X0, tr.X1, tr.Y0, tr.Y1) {
			continue
		}
		poly, err := plotter.NewPolygon(plotter.XYs{
			{X: tr.X0, Y: 0},
			{X: tr.X0, Y: tr.Y0},
			{X: tr.X1, Y: tr.Y1},
			{X: tr.X1, Y: 0},
		})
		if err != nil {
			return nil, fmt.Errorf("trapezoid [%g, %g]: %w", tr.X0, tr.X1, err)
		}
		poly.Color = fillColor
		poly.LineStyle.Width = 0
		p.Add(poly)
	}

	labelled := false
	for _, run := range finiteRuns(res.Grid, res.Values) {
		line, points, err := plotter.NewLinePoints(run)
		if err != nil {
			return nil, fmt.Errorf("function curve: %w", err)
		}
		points.Shape = draw.CircleGlyph{}
		p.Add(line, points)
		if !labelled {
			p.Legend.Add("Function", line, points)
			labelled = true
		}
	}
	p.Legend.Top = true
	return p, nil
}

// Write renders res as an image of the given format and size.
func Write(w io.Writer, res calculator.Result, format string, width, height vg.Length) error {
	if _, err := ContentType(format); err != nil {
		return err
	}
	p, err := Plot(res)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(width, height, format)
	if err != nil {
		return fmt.Errorf("render %s: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

// finiteRuns splits the samples into maximal runs of finite points.
func finiteRuns(xs, ys []float64) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for i := range xs {
		if math.IsNaN(ys[i]) || math.IsInf(ys[i], 0) {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		cur = append(cur, plotter.XY{X: xs[i], Y: ys[i]})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}
