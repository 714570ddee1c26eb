// Package icalc runs integral evaluations: compile the function, approximate
// it with the trapezoidal rule and compare with the exact value when one is
// known.
package icalc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"trapezoid.dev/integral/expr"
	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/shared"
	"trapezoid.dev/integral/worker/calculator"
)

// ErrTooManyIntervals is returned when a request asks for more sub-intervals
// than the configured cap.
var ErrTooManyIntervals = errors.New("too many sub-intervals")

// Request is one integration to perform.
type Request struct {
	Function  string
	Lower     float64
	Upper     float64
	Intervals int
}

// Report is the outcome of one evaluation. Exact and AbsError are nil when no
// closed form is available.
type Report struct {
	ID             string
	Function       string
	Canonical      string
	Antiderivative string
	Lower          float64
	Upper          float64
	Intervals      int
	Approx         float64
	Exact          *float64
	AbsError       *float64
	Result         calculator.Result
	Duration       time.Duration
}

// Trapezoids returns the per-interval regions of the approximation.
func (r Report) Trapezoids() []calculator.Trapezoid {
	return calculator.Trapezoids(r.Result)
}

// CompileExpression parses function text.
func CompileExpression(text string) (*expr.Expression, error) {
	return expr.Compile(text)
}

// ComputeTrapezoidal approximates the integral of e over [a, b].
func ComputeTrapezoidal(e *expr.Expression, a, b float64, n int) (calculator.Result, error) {
	return calculator.Integrate(e.NumericFunc(), a, b, n)
}

// ComputeExact returns the closed-form integral of e over [a, b], if any.
func ComputeExact(e *expr.Expression, a, b float64) (float64, bool) {
	return calculator.TryExact(e, a, b)
}

// Calc evaluates requests. It holds no per-request state and is safe for
// concurrent use.
type Calc struct {
	defaults     Request
	maxIntervals int
	digits       int

	logger  *slog.Logger
	metrics *metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewCalc creates a Calc from the master configuration. Instruments come from
// the global OpenTelemetry providers.
func NewCalc(cfg *config.Config, logger *slog.Logger) *Calc {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := newMetrics(otel.Meter(instrumentationName))
	if err != nil {
		logger.Warn("metrics initialization failed, using no-op instruments",
			slog.String("error", err.Error()))
		m, _ = newMetrics(noop.NewMeterProvider().Meter(instrumentationName))
	}
	return &Calc{
		defaults: Request{
			Function:  cfg.Defaults.Function,
			Lower:     cfg.Defaults.Lower,
			Upper:     cfg.Defaults.Upper,
			Intervals: cfg.Defaults.Intervals,
		},
		maxIntervals: cfg.MaxIntervals,
		digits:       cfg.Digits,
		logger:       logger,
		metrics:      m,
		tracer:       otel.Tracer(instrumentationName),
		now:          time.Now,
	}
}

// Defaults returns the request used when a caller leaves fields out.
func (c *Calc) Defaults() Request { return c.defaults }

// MaxIntervals is the largest n a request may ask for.
func (c *Calc) MaxIntervals() int { return c.maxIntervals }

// Digits is the number of decimals used in text reports.
func (c *Calc) Digits() int { return c.digits }

// Evaluate runs one compile, integrate and compare pass.
func (c *Calc) Evaluate(ctx context.Context, req Request) (Report, error) {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	source := Source(ctx)
	logger := c.logger.With(
		slog.String("request_id", id),
		slog.String("source", source),
	)

	ctx, span := c.tracer.Start(ctx, "icalc.evaluate",
		trace.WithAttributes(
			attribute.String("request.id", id),
			attribute.String("integral.function", req.Function),
			attribute.Float64("integral.lower", req.Lower),
			attribute.Float64("integral.upper", req.Upper),
			attribute.Int("integral.intervals", req.Intervals),
		),
	)
	defer span.End()

	start := c.now()
	report, err := c.evaluate(req)
	duration := c.now().Sub(start)
	c.metrics.recordEvaluation(ctx, source, err, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Info("integral rejected",
			slog.String("function", req.Function),
			slog.String("kind", Kind(err)),
			slog.String("error", err.Error()),
		)
		return Report{}, err
	}

	report.ID = id
	report.Duration = duration
	c.metrics.recordReport(ctx, report)
	span.SetAttributes(attribute.Bool("integral.exact_available", report.Exact != nil))
	span.SetStatus(codes.Ok, "")

	attrs := []any{
		slog.String("function", report.Canonical),
		slog.Float64("lower", report.Lower),
		slog.Float64("upper", report.Upper),
		slog.Int("intervals", report.Intervals),
		slog.Float64("approx", report.Approx),
		slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
	}
	if report.Exact != nil {
		attrs = append(attrs, slog.Float64("exact", *report.Exact), slog.Float64("abs_error", *report.AbsError))
	}
	logger.Info("integral evaluated", attrs...)
	return report, nil
}

func (c *Calc) evaluate(req Request) (Report, error) {
	if req.Intervals > c.maxIntervals {
		return Report{}, fmt.Errorf("%w: %d exceeds the maximum of %d", ErrTooManyIntervals, req.Intervals, c.maxIntervals)
	}

	e, err := CompileExpression(req.Function)
	if err != nil {
		return Report{}, err
	}
	res, err := ComputeTrapezoidal(e, req.Lower, req.Upper, req.Intervals)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Function:  e.Text(),
		Canonical: e.String(),
		Lower:     req.Lower,
		Upper:     req.Upper,
		Intervals: req.Intervals,
		Approx:    res.Approx,
		Result:    res,
	}
	if exact, ok := ComputeExact(e, req.Lower, req.Upper); ok {
		absErr := calculator.AbsError(res.Approx, exact)
		report.Exact = &exact
		report.AbsError = &absErr
		if ad, ok := e.Antiderivative(); ok {
			report.Antiderivative = ad.String()
		}
	}
	return report, nil
}

// Integrate serves CalcRPC.Integrate.
func (c *Calc) Integrate(ctx context.Context, args shared.IntegrateArgs) (shared.IntegrateReply, error) {
	ctx = WithSource(ctx, "rpc")
	report, err := c.Evaluate(ctx, Request{
		Function:  args.Function,
		Lower:     args.Lower,
		Upper:     args.Upper,
		Intervals: args.Intervals,
	})
	if err != nil {
		return shared.IntegrateReply{}, err
	}
	reply := shared.IntegrateReply{
		ID:             report.ID,
		Function:       report.Function,
		Canonical:      report.Canonical,
		Antiderivative: report.Antiderivative,
		Lower:          report.Lower,
		Upper:          report.Upper,
		Intervals:      report.Intervals,
		Approx:         report.Approx,
		Grid:           report.Result.Grid,
		Values:         report.Result.Values,
		Text:           FormatReport(report, c.digits),
	}
	if report.Exact != nil {
		reply.HasExact = true
		reply.Exact = *report.Exact
		reply.AbsError = *report.AbsError
	}
	return reply, nil
}

// Functions lists the preset functions.
func (c *Calc) Functions() []shared.FunctionInfo {
	ps := calculator.Presets()
	out := make([]shared.FunctionInfo, 0, len(ps))
	for _, p := range ps {
		out = append(out, shared.FunctionInfo{Group: p.Group, Text: p.Text()})
	}
	return out
}
