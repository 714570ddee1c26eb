package calculator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapezoid.dev/integral/expr"
)

func compile(t *testing.T, text string) *expr.Expression {
	t.Helper()
	e, err := expr.Compile(text)
	require.NoError(t, err)
	return e
}

func TestIntegrateLinearIsExact(t *testing.T) {
	res, err := Integrate(compile(t, "x").NumericFunc(), 0, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, 0.5, res.Approx)
	assert.Equal(t, 1.0, res.Step)
	assert.Equal(t, []float64{0, 1}, res.Grid)
	assert.Equal(t, []float64{0, 1}, res.Values)
	assert.Equal(t, 1, res.Intervals())
}

func TestIntegrateAffineAnyN(t *testing.T) {
	f := compile(t, "3*x - 2").NumericFunc()
	for _, n := range []int{1, 2, 7, 24, 100} {
		res, err := Integrate(f, -1, 4, n)
		require.NoError(t, err)
		// [1.5x^2 - 2x] from -1 to 4
		assert.InDelta(t, 12.5, res.Approx, 1e-9, "n=%d", n)
	}
}

func TestIntegrateSine(t *testing.T) {
	res, err := Integrate(compile(t, "sin(x)").NumericFunc(), 0, math.Pi, 100)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, res.Approx, 1e-3)
}

func TestIntegrateGrid(t *testing.T) {
	res, err := Integrate(compile(t, "x^2").NumericFunc(), 2, 14, 24)
	require.NoError(t, err)

	require.Len(t, res.Grid, 25)
	require.Len(t, res.Values, 25)
	assert.Equal(t, 2.0, res.Grid[0])
	assert.Equal(t, 14.0, res.Grid[24])
	assert.InDelta(t, 0.5, res.Step, 1e-15)
	for i, x := range res.Grid {
		assert.InDelta(t, 2+float64(i)*0.5, x, 1e-12)
		assert.InDelta(t, x*x, res.Values[i], 1e-9)
	}
}

func TestIntegrateCallsFunctionOnce(t *testing.T) {
	calls := 0
	f := expr.NumericFunc(func(xs []float64) []float64 {
		calls++
		out := make([]float64, len(xs))
		for i := range out {
			out[i] = 1
		}
		return out
	})
	res, err := Integrate(f, 0, 3, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.InDelta(t, 3.0, res.Approx, 1e-12)
}

func TestIntegrateIsDeterministic(t *testing.T) {
	f := compile(t, "exp(-x^2)*sin(3*x)").NumericFunc()
	first, err := Integrate(f, -2, 5, 37)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Integrate(f, -2, 5, 37)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestIntegrateConvergence(t *testing.T) {
	for _, text := range []string{"x^2", "sin(x)", "exp(x)", "1/(1 + x^2)"} {
		t.Run(text, func(t *testing.T) {
			e := compile(t, text)
			exact, ok := TryExact(e, 0, 2)
			require.True(t, ok)

			prev := math.Inf(1)
			for _, n := range []int{1, 2, 4, 8, 16, 32, 64, 100} {
				res, err := Integrate(e.NumericFunc(), 0, 2, n)
				require.NoError(t, err)
				errN := AbsError(res.Approx, exact)
				assert.LessOrEqual(t, errN, prev+1e-12, "n=%d", n)
				prev = errN
			}
		})
	}
}

func TestIntegrateInvalidBounds(t *testing.T) {
	f := compile(t, "x").NumericFunc()
	tests := []struct {
		name string
		a, b float64
	}{
		{"equal", 1, 1},
		{"reversed", 3, 1},
		{"nan lower", math.NaN(), 1},
		{"infinite upper", 0, math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Integrate(f, tt.a, tt.b, 10)
			require.Error(t, err)

			var boundsErr *InvalidBoundsError
			require.True(t, errors.As(err, &boundsErr))
			assert.NotEmpty(t, boundsErr.Error())
		})
	}
}

func TestIntegrateInvalidIntervals(t *testing.T) {
	f := compile(t, "x").NumericFunc()
	for _, n := range []int{0, -3, MaxGridIntervals + 1, math.MaxInt} {
		_, err := Integrate(f, 0, 1, n)
		assert.ErrorIs(t, err, ErrInvalidIntervals, "n=%d", n)
	}
}

func TestIntegrateNoCapOnIntervals(t *testing.T) {
	res, err := Integrate(compile(t, "x^2").NumericFunc(), 0, 1, 5000)
	require.NoError(t, err)
	assert.Len(t, res.Grid, 5001)
	assert.InDelta(t, 1.0/3, res.Approx, 1e-6)
}

func TestIntegrateSingularityPropagates(t *testing.T) {
	f := compile(t, "1/x").NumericFunc()
	var res Result
	var err error
	require.NotPanics(t, func() {
		res, err = Integrate(f, -1, 1, 2)
	})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Approx) || math.IsInf(res.Approx, 0), "got %v", res.Approx)
	assert.False(t, Finite(res.Values...))
}

func TestTrapezoids(t *testing.T) {
	res, err := Integrate(compile(t, "x^2").NumericFunc(), 0, 2, 4)
	require.NoError(t, err)

	ts := Trapezoids(res)
	require.Len(t, ts, 4)

	var total float64
	for i, tr := range ts {
		assert.Equal(t, res.Grid[i], tr.X0)
		assert.Equal(t, res.Grid[i+1], tr.X1)
		assert.Equal(t, res.Values[i], tr.Y0)
		assert.Equal(t, res.Values[i+1], tr.Y1)
		total += tr.Area
	}
	assert.InDelta(t, res.Approx, total, 1e-12)
	assert.Empty(t, Trapezoids(Result{}))
}

func TestTryExact(t *testing.T) {
	v, ok := TryExact(compile(t, "sin(x)"), 0, math.Pi)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)

	_, ok = TryExact(compile(t, "exp(x) / (1 + x^2)"), 2, 14)
	assert.False(t, ok)

	_, ok = TryExact(compile(t, "1/x"), -1, 1)
	assert.False(t, ok)

	_, ok = TryExact(nil, 0, 1)
	assert.False(t, ok)
}

func TestAbsError(t *testing.T) {
	assert.Equal(t, 0.25, AbsError(1.75, 2))
	assert.Equal(t, 0.25, AbsError(2.25, 2))
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(1.0, -2.5, 0))
	assert.True(t, Finite[float32](1, 2))
	assert.False(t, Finite(1, math.NaN()))
	assert.False(t, Finite(math.Inf(-1)))
}
