// Package expr compiles function text in the variable x into an immutable
// Expression. An Expression evaluates over whole sample grids at once and,
// for a fixed set of function families, knows its closed-form antiderivative.
package expr

import (
	"math"
	"strings"
)

// NumericFunc maps sample points to function values. It is pure: the input is
// never modified and every call returns a new slice of the same length.
type NumericFunc func(xs []float64) []float64

// At evaluates f at a single point.
func (f NumericFunc) At(x float64) float64 {
	return f([]float64{x})[0]
}

// Expression is a compiled function of x.
type Expression struct {
	text string
	root Node
}

// Compile parses text. It returns a *ParseError when the text is not a valid
// expression over x.
func Compile(text string) (*Expression, error) {
	root, err := parse(text)
	if err != nil {
		return nil, err
	}
	return &Expression{text: strings.TrimSpace(text), root: root}, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// package-level tables of known-good functions.
func MustCompile(text string) *Expression {
	e, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return e
}

// Text returns the text the expression was compiled from.
func (e *Expression) Text() string { return e.text }

// String returns the canonical form of the expression.
func (e *Expression) String() string { return e.root.String() }

// Root returns the syntax tree.
func (e *Expression) Root() Node { return e.root }

// NumericFunc returns the vectorized evaluator of the expression.
func (e *Expression) NumericFunc() NumericFunc {
	root := e.root
	return func(xs []float64) []float64 {
		return root.Eval(xs)
	}
}

// Antiderivative returns a closed-form antiderivative when one of the
// supported rules applies.
func (e *Expression) Antiderivative() (*Expression, bool) {
	ad, ok := integrate(e.root, 0)
	if !ok {
		return nil, false
	}
	return &Expression{text: ad.F.String(), root: ad.F}, true
}

// SymbolicIntegral returns F(b) - F(a) for the closed-form antiderivative F.
// It reports false when no closed form is known, when F is not valid on the
// whole of [a, b] (poles, logarithms of non-positive values, non-real
// powers) or when the result is not a finite real number.
func (e *Expression) SymbolicIntegral(a, b float64) (float64, bool) {
	ad, ok := integrate(e.root, 0)
	if !ok || !ad.conds.hold(a, b) {
		return 0, false
	}
	fs := ad.F.Eval([]float64{a, b})
	v := fs[1] - fs[0]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
