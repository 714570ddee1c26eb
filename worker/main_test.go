package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
	"trapezoid.dev/integral/master/shared"
	"trapezoid.dev/integral/render"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startMaster(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	server, err := shared.NewServer(icalc.NewCalc(cfg, discard()), discard())
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	go shared.Serve(l, server, discard())
	return l.Addr().String()
}

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "sin(x)", o.function)
	assert.Equal(t, 2.0, o.lower)
	assert.Equal(t, 14.0, o.upper)
	assert.Equal(t, 24, o.intervals)
	assert.Equal(t, 100, o.maxIntervals)
	assert.Empty(t, o.master)

	_, err = parseFlags([]string{"-n", "ten"}, io.Discard)
	assert.Error(t, err)
}

func TestRunLocal(t *testing.T) {
	o, err := parseFlags([]string{"-function", "x", "-lower", "0", "-upper", "1", "-n", "1"}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out, discard()))
	assert.Equal(t, "Numerical Integral (Trapezoidal Rule): 0.500000\n"+
		"Exact Integral: 0.500000\n"+
		"Error: 0.000000\n"+
		"Antiderivative: x^2/2\n", out.String())
}

func TestRunLocalMaxIntervals(t *testing.T) {
	o, err := parseFlags([]string{"-n", "500"}, io.Discard)
	require.NoError(t, err)
	assert.ErrorIs(t, run(context.Background(), o, io.Discard, discard()), icalc.ErrTooManyIntervals)

	o.maxIntervals = 1000
	assert.NoError(t, run(context.Background(), o, io.Discard, discard()))
}

func TestRunLocalErrors(t *testing.T) {
	o, err := parseFlags([]string{"-lower", "3", "-upper", "1"}, io.Discard)
	require.NoError(t, err)
	err = run(context.Background(), o, io.Discard, discard())
	assert.Equal(t, icalc.KindBounds, icalc.Kind(err))

	o, err = parseFlags([]string{"-plot", filepath.Join(t.TempDir(), "out.gif")}, io.Discard)
	require.NoError(t, err)
	assert.ErrorIs(t, run(context.Background(), o, io.Discard, discard()), render.ErrUnsupportedFormat)
}

func TestRunLocalPlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trapezoids.png")
	o, err := parseFlags([]string{"-plot", path}, io.Discard)
	require.NoError(t, err)
	require.NoError(t, run(context.Background(), o, io.Discard, discard()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRunList(t *testing.T) {
	o, err := parseFlags([]string{"-list"}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out, discard()))
	assert.Contains(t, out.String(), "Trigonometric:\n")
	assert.Contains(t, out.String(), "  sin(x) + cos(x)\n")
}

func TestRunRemote(t *testing.T) {
	addr := startMaster(t)
	path := filepath.Join(t.TempDir(), "trapezoids.svg")
	o, err := parseFlags([]string{"-master", addr, "-function", "x", "-lower", "0", "-upper", "1", "-n", "1", "-plot", path}, io.Discard)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out, discard()))
	assert.Contains(t, out.String(), "Numerical Integral (Trapezoidal Rule): 0.500000\n")
	assert.Contains(t, out.String(), "Antiderivative: x^2/2\n")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<svg")

	o.list = true
	out.Reset()
	require.NoError(t, run(context.Background(), o, &out, discard()))
	assert.Contains(t, out.String(), "Polynomials:\n")
}

func TestRunRemoteErrors(t *testing.T) {
	addr := startMaster(t)
	o, err := parseFlags([]string{"-master", addr, "-function", "sin("}, io.Discard)
	require.NoError(t, err)
	err = run(context.Background(), o, io.Discard, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid function")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := l.Addr().String()
	require.NoError(t, l.Close())

	o, err = parseFlags([]string{"-master", closed, "-timeout", "2s"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, o.timeout)
	err = run(context.Background(), o, io.Discard, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to master")
}
