// Package calculator implements the composite trapezoidal rule over compiled
// expressions and the comparison against their closed-form integrals.
package calculator

import (
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"

	"trapezoid.dev/integral/expr"
)

// ErrInvalidIntervals is returned when the number of sub-intervals is below
// one or too large for the sample grid to be allocated.
var ErrInvalidIntervals = errors.New("invalid number of sub-intervals")

// MaxGridIntervals is the largest n whose grid of n+1 points Integrate will
// allocate.
const MaxGridIntervals = math.MaxInt32 - 1

// InvalidBoundsError reports an integration interval that is empty, reversed
// or not finite.
type InvalidBoundsError struct {
	A, B float64
}

func (e *InvalidBoundsError) Error() string {
	if !finite(e.A) || !finite(e.B) {
		return fmt.Sprintf("integration limits must be finite, got [%g, %g]", e.A, e.B)
	}
	return fmt.Sprintf("lower limit (%g) must be less than upper limit (%g)", e.A, e.B)
}

// Result is one trapezoidal approximation: the value, the sub-interval width
// and the sampled points it was computed from.
type Result struct {
	Approx float64
	Step   float64
	Grid   []float64
	Values []float64
}

// Intervals returns the number of sub-intervals of r.
func (r Result) Intervals() int {
	if len(r.Grid) == 0 {
		return 0
	}
	return len(r.Grid) - 1
}

// Trapezoid is the region under one sub-interval [X0, X1].
type Trapezoid struct {
	X0, X1 float64
	Y0, Y1 float64
	Area   float64
}

// Integrate approximates the integral of f over [a, b] using n sub-intervals.
// f is called exactly once, on the whole grid. Non-finite samples are not an
// error; they propagate into Approx.
func Integrate(f expr.NumericFunc, a, b float64, n int) (Result, error) {
	if !finite(a) || !finite(b) || !(a < b) {
		return Result{}, &InvalidBoundsError{A: a, B: b}
	}
	if n < 1 {
		return Result{}, fmt.Errorf("%w: must be at least 1, got %d", ErrInvalidIntervals, n)
	}
	if n > MaxGridIntervals {
		return Result{}, fmt.Errorf("%w: %d exceeds the grid limit of %d", ErrInvalidIntervals, n, MaxGridIntervals)
	}

	grid := floats.Span(make([]float64, n+1), a, b)
	values := f(grid)
	if len(values) != len(grid) {
		return Result{}, fmt.Errorf("evaluating %d grid points: got %d values", len(grid), len(values))
	}

	h := (b - a) / float64(n)
	approx := h * (0.5*values[0] + 0.5*values[n] + floats.Sum(values[1:n]))

	return Result{
		Approx: approx,
		Step:   h,
		Grid:   grid,
		Values: values,
	}, nil
}

// Trapezoids splits r into its per-interval regions.
func Trapezoids(r Result) []Trapezoid {
	ts := make([]Trapezoid, 0, r.Intervals())
	for i := 0; i+1 < len(r.Grid); i++ {
		y0, y1 := r.Values[i], r.Values[i+1]
		ts = append(ts, Trapezoid{
			X0:   r.Grid[i],
			X1:   r.Grid[i+1],
			Y0:   y0,
			Y1:   y1,
			Area: (r.Grid[i+1] - r.Grid[i]) * (y0 + y1) / 2,
		})
	}
	return ts
}

// TryExact returns the closed-form integral of e over [a, b]. Any failure,
// including a panic inside the symbolic engine, is reported as absent.
func TryExact(e *expr.Expression, a, b float64) (exact float64, ok bool) {
	if e == nil {
		return 0, false
	}
	defer func() {
		if r := recover(); r != nil {
			exact, ok = 0, false
		}
	}()
	return e.SymbolicIntegral(a, b)
}

// AbsError is the distance between the approximation and the exact value.
func AbsError(approx, exact float64) float64 {
	return math.Abs(approx - exact)
}

// Finite reports whether every value is a finite number.
func Finite[T constraints.Float](vs ...T) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}

func finite[T constraints.Float](v T) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
