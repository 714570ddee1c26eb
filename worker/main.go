package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
	"trapezoid.dev/integral/master/shared"
	"trapezoid.dev/integral/render"
	"trapezoid.dev/integral/worker/calculator"
)

type options struct {
	function     string
	lower        float64
	upper        float64
	intervals    int
	maxIntervals int
	master       string
	plot         string
	timeout      time.Duration
	list         bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := config.Default()
	var o options

	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.function, "function", def.Defaults.Function, "function of x to integrate")
	fs.Float64Var(&o.lower, "lower", def.Defaults.Lower, "lower limit of integration")
	fs.Float64Var(&o.upper, "upper", def.Defaults.Upper, "upper limit of integration")
	fs.IntVar(&o.intervals, "n", def.Defaults.Intervals, "number of sub-intervals")
	fs.IntVar(&o.maxIntervals, "max-intervals", def.MaxIntervals, "largest number of sub-intervals accepted locally")
	fs.StringVar(&o.master, "master", "", "master RPC address (host:port); evaluate locally when empty")
	fs.StringVar(&o.plot, "plot", "", "write the trapezoid plot to this file (.png, .svg or .pdf)")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Second, "timeout for remote calls")
	fs.BoolVar(&o.list, "list", false, "list the preset functions and exit")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return o, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	o, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if err := run(context.Background(), o, os.Stdout, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	if o.master != "" {
		return runRemote(ctx, o, stdout, logger)
	}
	return runLocal(ctx, o, stdout, logger)
}

func runLocal(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	cfg := config.Default()
	cfg.MaxIntervals = o.maxIntervals
	calc := icalc.NewCalc(cfg, logger)

	if o.list {
		printFunctions(stdout, calc.Functions())
		return nil
	}

	report, err := calc.Evaluate(icalc.WithSource(ctx, "cli"), icalc.Request{
		Function:  o.function,
		Lower:     o.lower,
		Upper:     o.upper,
		Intervals: o.intervals,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, icalc.FormatReport(report, calc.Digits()))
	if report.Antiderivative != "" {
		fmt.Fprintln(stdout, "Antiderivative: "+report.Antiderivative)
	}
	return writePlot(o.plot, report.Result, cfg)
}

func runRemote(ctx context.Context, o options, stdout io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	client, err := calculator.Dial(ctx, o.master)
	if err != nil {
		return fmt.Errorf("connect to master: %w", err)
	}
	defer client.Close()
	logger.Info("connected to master", slog.String("addr", o.master))

	if o.list {
		fns, err := client.Functions(ctx)
		if err != nil {
			return err
		}
		printFunctions(stdout, fns)
		return nil
	}

	reply, err := client.Integrate(ctx, shared.IntegrateArgs{
		Function:  o.function,
		Lower:     o.lower,
		Upper:     o.upper,
		Intervals: o.intervals,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, reply.Text)
	if reply.Antiderivative != "" {
		fmt.Fprintln(stdout, "Antiderivative: "+reply.Antiderivative)
	}
	return writePlot(o.plot, calculator.ResultFromReply(reply), config.Default())
}

func writePlot(path string, res calculator.Result, cfg *config.Config) error {
	if path == "" {
		return nil
	}
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if _, err := render.ContentType(format); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = render.Write(f, res, format,
		vg.Length(cfg.Plot.Width)*vg.Centimeter,
		vg.Length(cfg.Plot.Height)*vg.Centimeter)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func printFunctions(w io.Writer, fns []shared.FunctionInfo) {
	group := ""
	for _, f := range fns {
		if f.Group != group {
			group = f.Group
			fmt.Fprintf(w, "%s:\n", group)
		}
		fmt.Fprintf(w, "  %s\n", f.Text)
	}
}
