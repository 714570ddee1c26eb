package render

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"

	"trapezoid.dev/integral/expr"
	"trapezoid.dev/integral/worker/calculator"
)

func integrate(t *testing.T, text string, a, b float64, n int) calculator.Result {
	t.Helper()
	e, err := expr.Compile(text)
	require.NoError(t, err)
	res, err := calculator.Integrate(e.NumericFunc(), a, b, n)
	require.NoError(t, err)
	return res
}

func TestWritePNG(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, integrate(t, "sin(x)", 2, 14, 24), "png", 12*vg.Centimeter, 8*vg.Centimeter)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, integrate(t, "x^2", 0, 1, 4), "svg", 12*vg.Centimeter, 8*vg.Centimeter)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<svg")
}

func TestWriteUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, integrate(t, "x", 0, 1, 1), "bmp", vg.Centimeter, vg.Centimeter)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Zero(t, buf.Len())
}

func TestPlotWithSingularity(t *testing.T) {
	res := integrate(t, "1/x", -1, 1, 4)
	p, err := Plot(res)
	require.NoError(t, err)
	assert.Equal(t, "Trapezoidal Approximation", p.Title.Text)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, res, "svg", 10*vg.Centimeter, 6*vg.Centimeter))
}

func TestFiniteRuns(t *testing.T) {
	xs := []float64{0, 1, 2, 3, 4, 5}
	ys := []float64{1, math.NaN(), 2, 3, math.Inf(1), 4}

	runs := finiteRuns(xs, ys)
	require.Len(t, runs, 3)
	assert.Len(t, runs[0], 1)
	assert.Len(t, runs[1], 2)
	assert.Len(t, runs[2], 1)
	assert.Equal(t, 5.0, runs[2][0].X)

	assert.Empty(t, finiteRuns(xs[:1], []float64{math.NaN()}))
}

func TestContentType(t *testing.T) {
	ct, err := ContentType("png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", ct)

	ct, err = ContentType("svg")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", ct)

	_, err = ContentType("gif")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
