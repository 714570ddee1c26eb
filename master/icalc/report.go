package icalc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trapezoid.dev/integral/expr"
	"trapezoid.dev/integral/worker/calculator"
)

// Error kinds reported to clients.
const (
	KindOK        = "ok"
	KindParse     = "parse"
	KindBounds    = "bounds"
	KindIntervals = "intervals"
	KindRequest   = "request"
)

// Kind classifies an evaluation error.
func Kind(err error) string {
	var parseErr *expr.ParseError
	var boundsErr *calculator.InvalidBoundsError
	switch {
	case err == nil:
		return KindOK
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &boundsErr):
		return KindBounds
	case errors.Is(err, calculator.ErrInvalidIntervals), errors.Is(err, ErrTooManyIntervals):
		return KindIntervals
	}
	return KindRequest
}

// FormatLines renders a report the way it is shown to users, one result per
// line, with the given number of decimals.
func FormatLines(r Report, digits int) []string {
	lines := []string{
		fmt.Sprintf("Numerical Integral (Trapezoidal Rule): %.*f", digits, r.Approx),
	}
	if r.Exact == nil {
		return append(lines, "Exact integral could not be computed.")
	}
	return append(lines,
		fmt.Sprintf("Exact Integral: %.*f", digits, *r.Exact),
		fmt.Sprintf("Error: %.*f", digits, *r.AbsError),
	)
}

// FormatReport joins FormatLines with newlines.
func FormatReport(r Report, digits int) string {
	return strings.Join(FormatLines(r, digits), "\n")
}

type ctxKey int

const (
	requestIDKey ctxKey = iota
	sourceKey
)

// WithRequestID attaches a request id that Evaluate uses as the report id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the id attached by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSource records which front-end issued the request.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey, source)
}

// Source returns the front-end recorded by WithSource, or "direct".
func Source(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey).(string); ok {
		return s
	}
	return "direct"
}
