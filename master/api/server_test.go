package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(icalc.NewCalc(cfg, logger), cfg, logger).Handler()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decoded mirrors IntegralResponse with plain types so nulls are visible.
type decoded struct {
	ID             string     `json:"id"`
	Function       string     `json:"function"`
	Canonical      string     `json:"canonical"`
	Antiderivative string     `json:"antiderivative"`
	LowerBound     float64    `json:"lower_bound"`
	UpperBound     float64    `json:"upper_bound"`
	Intervals      int        `json:"intervals"`
	Step           float64    `json:"step"`
	Approx         *float64   `json:"approx"`
	Exact          *float64   `json:"exact"`
	AbsError       *float64   `json:"abs_error"`
	Lines          []string   `json:"lines"`
	Grid           []float64  `json:"grid"`
	Values         []*float64 `json:"values"`
	Trapezoids     []struct {
		X0   float64  `json:"x0"`
		X1   float64  `json:"x1"`
		Area *float64 `json:"area"`
	} `json:"trapezoids"`
}

func TestPostIntegral(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/integrals", `{"function":"x","lower_bound":0,"upper_bound":1,"intervals":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.ID)
	assert.Equal(t, "x", resp.Canonical)
	assert.Equal(t, "x^2/2", resp.Antiderivative)
	require.NotNil(t, resp.Approx)
	assert.Equal(t, 0.5, *resp.Approx)
	require.NotNil(t, resp.Exact)
	assert.InDelta(t, 0.5, *resp.Exact, 1e-15)
	assert.Equal(t, []string{
		"Numerical Integral (Trapezoidal Rule): 0.500000",
		"Exact Integral: 0.500000",
		"Error: 0.000000",
	}, resp.Lines)
	assert.Equal(t, []float64{0, 1}, resp.Grid)
	require.Len(t, resp.Trapezoids, 1)
	assert.Equal(t, 0.5, *resp.Trapezoids[0].Area)
}

func TestPostIntegralDefaults(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/integrals", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sin(x)", resp.Function)
	assert.Equal(t, 2.0, resp.LowerBound)
	assert.Equal(t, 14.0, resp.UpperBound)
	assert.Equal(t, 24, resp.Intervals)
	assert.InDelta(t, 0.5, resp.Step, 1e-15)
	require.NotNil(t, resp.Exact)
	assert.InDelta(t, math.Cos(2)-math.Cos(14), *resp.Exact, 1e-12)
}

func TestPostIntegralNonFinite(t *testing.T) {
	h := newTestServer(t)
	rec := postJSON(t, h, "/integrals", `{"function":"1/x","lower_bound":-1,"upper_bound":1,"intervals":2}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp decoded
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Approx)
	assert.Nil(t, resp.Exact)
	require.Len(t, resp.Values, 3)
	assert.Nil(t, resp.Values[1])
	assert.Contains(t, resp.Lines, "Exact integral could not be computed.")
}

func TestPostIntegralErrors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name string
		body string
		kind string
	}{
		{"parse", `{"function":"x +* "}`, icalc.KindParse},
		{"unknown function", `{"function":"foo(x)"}`, icalc.KindParse},
		{"bounds", `{"function":"x","lower_bound":3,"upper_bound":1}`, icalc.KindBounds},
		{"zero intervals", `{"intervals":0}`, icalc.KindIntervals},
		{"above cap", `{"intervals":1000}`, icalc.KindIntervals},
		{"bad json", `{"function":`, icalc.KindRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/integrals", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestIntegralsMethodNotAllowed(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/integrals", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPlot(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/integrals/plot?function=x%5E2&lower_bound=0&upper_bound=2&intervals=8", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/integrals/plot?format=svg", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "<svg")
}

func TestPlotErrors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		query string
		kind  string
	}{
		{"format=gif", icalc.KindRequest},
		{"lower_bound=abc", icalc.KindRequest},
		{"intervals=many", icalc.KindRequest},
		{"function=sin(", icalc.KindParse},
		{"lower_bound=5&upper_bound=5", icalc.KindBounds},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/integrals/plot?"+tt.query, nil))
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.kind, resp.Kind)
		})
	}
}

func TestFunctions(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/functions", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count     int                `json:"count"`
		Functions []FunctionResponse `json:"functions"`
		Defaults  struct {
			Function     string `json:"function"`
			MaxIntervals int    `json:"max_intervals"`
		} `json:"defaults"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 16, resp.Count)
	assert.Len(t, resp.Functions, 16)
	assert.Equal(t, "sin(x)", resp.Defaults.Function)
	assert.Equal(t, 100, resp.Defaults.MaxIntervals)
}

func TestHealthAndDashboard(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trapezoidal Rule")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", id)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "not-a-uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/integrals", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(icalc.NewCalc(cfg, logger), cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx, "127.0.0.1:0") }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
