package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/plot/vg"

	"trapezoid.dev/integral/master/config"
	"trapezoid.dev/integral/master/icalc"
	"trapezoid.dev/integral/render"
)

//go:embed index.html
var static embed.FS

const maxBodyBytes = 1 << 20

type Server struct {
	calc       *icalc.Calc
	logger     *slog.Logger
	plotWidth  vg.Length
	plotHeight vg.Length
}

func NewServer(calc *icalc.Calc, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		calc:       calc,
		logger:     logger,
		plotWidth:  vg.Length(cfg.Plot.Width) * vg.Centimeter,
		plotHeight: vg.Length(cfg.Plot.Height) * vg.Centimeter,
	}
}

// IntegralRequest is the body of POST /integrals. Missing fields take the
// configured defaults.
type IntegralRequest struct {
	Function   *string  `json:"function"`
	LowerBound *float64 `json:"lower_bound"`
	UpperBound *float64 `json:"upper_bound"`
	Intervals  *int     `json:"intervals"`
}

// IntegralResponse is a full evaluation report.
type IntegralResponse struct {
	ID             string              `json:"id"`
	Function       string              `json:"function"`
	Canonical      string              `json:"canonical"`
	Antiderivative string              `json:"antiderivative,omitempty"`
	LowerBound     float64             `json:"lower_bound"`
	UpperBound     float64             `json:"upper_bound"`
	Intervals      int                 `json:"intervals"`
	Step           float64             `json:"step"`
	Approx         number              `json:"approx"`
	Exact          *number             `json:"exact"`
	AbsError       *number             `json:"abs_error"`
	Lines          []string            `json:"lines"`
	Grid           []float64           `json:"grid"`
	Values         []number            `json:"values"`
	Trapezoids     []TrapezoidResponse `json:"trapezoids"`
	DurationMs     float64             `json:"duration_ms"`
}

type TrapezoidResponse struct {
	X0   float64 `json:"x0"`
	X1   float64 `json:"x1"`
	Y0   number  `json:"y0"`
	Y1   number  `json:"y1"`
	Area number  `json:"area"`
}

type FunctionResponse struct {
	Group    string `json:"group"`
	Function string `json:"function"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// number encodes NaN and ±Inf as null, which JSON cannot represent.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func numbers(vs []float64) []number {
	out := make([]number, len(vs))
	for i, v := range vs {
		out[i] = number(v)
	}
	return out
}

// Handler returns the API with its middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/integrals", s.handleIntegrals)
	mux.HandleFunc("/integrals/plot", s.handlePlot)
	mux.HandleFunc("/functions", s.handleFunctions)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleWeb)

	return s.withRequestID(s.logRequests(s.enableCORS(mux)))
}

// Start serves the API on addr until ctx is cancelled, then drains open
// requests for up to five seconds.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.logger.Info("API server listening", slog.String("addr", addr))
	s.logger.Debug("available endpoints",
		slog.Any("endpoints", []string{
			"GET  /                  dashboard",
			"POST /integrals         evaluate an integral",
			"GET  /integrals/plot    plot an approximation (png, svg, pdf)",
			"GET  /functions         list preset functions",
			"GET  /health            health check",
		}),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("API server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// POST /integrals - Evaluate an integral
func (s *Server) handleIntegrals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", icalc.KindRequest, http.StatusMethodNotAllowed)
		return
	}

	var body IntegralRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendError(w, "Invalid JSON: "+err.Error(), icalc.KindRequest, http.StatusBadRequest)
		return
	}

	req := s.calc.Defaults()
	if body.Function != nil {
		req.Function = *body.Function
	}
	if body.LowerBound != nil {
		req.Lower = *body.LowerBound
	}
	if body.UpperBound != nil {
		req.Upper = *body.UpperBound
	}
	if body.Intervals != nil {
		req.Intervals = *body.Intervals
	}

	report, err := s.calc.Evaluate(r.Context(), req)
	if err != nil {
		s.sendError(w, err.Error(), icalc.Kind(err), http.StatusBadRequest)
		return
	}
	s.sendJSON(w, http.StatusOK, s.toResponse(report))
}

// GET /integrals/plot - Render an approximation
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", icalc.KindRequest, http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	req := s.calc.Defaults()
	if v := q.Get("function"); v != "" {
		req.Function = v
	}
	var err error
	if req.Lower, err = floatParam(q.Get("lower_bound"), req.Lower); err != nil {
		s.sendError(w, "lower_bound: "+err.Error(), icalc.KindRequest, http.StatusBadRequest)
		return
	}
	if req.Upper, err = floatParam(q.Get("upper_bound"), req.Upper); err != nil {
		s.sendError(w, "upper_bound: "+err.Error(), icalc.KindRequest, http.StatusBadRequest)
		return
	}
	if v := q.Get("intervals"); v != "" {
		if req.Intervals, err = strconv.Atoi(v); err != nil {
			s.sendError(w, "intervals: "+err.Error(), icalc.KindRequest, http.StatusBadRequest)
			return
		}
	}

	format := q.Get("format")
	if format == "" {
		format = "png"
	}
	contentType, err := render.ContentType(format)
	if err != nil {
		s.sendError(w, err.Error(), icalc.KindRequest, http.StatusBadRequest)
		return
	}

	report, err := s.calc.Evaluate(r.Context(), req)
	if err != nil {
		s.sendError(w, err.Error(), icalc.Kind(err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", contentType)
	if err := render.Write(w, report.Result, format, s.plotWidth, s.plotHeight); err != nil {
		s.logger.Error("plot rendering failed",
			slog.String("request_id", report.ID),
			slog.String("error", err.Error()),
		)
	}
}

// GET /functions - List preset functions
func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", icalc.KindRequest, http.StatusMethodNotAllowed)
		return
	}

	fns := s.calc.Functions()
	response := make([]FunctionResponse, 0, len(fns))
	for _, f := range fns {
		response = append(response, FunctionResponse{Group: f.Group, Function: f.Text})
	}

	s.sendJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(response),
		"functions": response,
		"defaults": map[string]interface{}{
			"function":      s.calc.Defaults().Function,
			"lower_bound":   s.calc.Defaults().Lower,
			"upper_bound":   s.calc.Defaults().Upper,
			"intervals":     s.calc.Defaults().Intervals,
			"max_intervals": s.calc.MaxIntervals(),
		},
	})
}

// GET /health - Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// GET / - Web dashboard
func (s *Server) handleWeb(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.sendError(w, "Not found", icalc.KindRequest, http.StatusNotFound)
		return
	}
	http.FileServer(http.FS(static)).ServeHTTP(w, r)
}

func (s *Server) toResponse(report icalc.Report) IntegralResponse {
	res := report.Result
	trapezoids := report.Trapezoids()
	resp := IntegralResponse{
		ID:             report.ID,
		Function:       report.Function,
		Canonical:      report.Canonical,
		Antiderivative: report.Antiderivative,
		LowerBound:     report.Lower,
		UpperBound:     report.Upper,
		Intervals:      report.Intervals,
		Step:           res.Step,
		Approx:         number(report.Approx),
		Lines:          icalc.FormatLines(report, s.calc.Digits()),
		Grid:           res.Grid,
		Values:         numbers(res.Values),
		Trapezoids:     make([]TrapezoidResponse, 0, len(trapezoids)),
		DurationMs:     float64(report.Duration.Microseconds()) / 1000,
	}
	if report.Exact != nil {
		exact, absErr := number(*report.Exact), number(*report.AbsError)
		resp.Exact = &exact
		resp.AbsError = &absErr
	}
	for _, t := range trapezoids {
		resp.Trapezoids = append(resp.Trapezoids, TrapezoidResponse{
			X0: t.X0, X1: t.X1, Y0: number(t.Y0), Y1: number(t.Y1), Area: number(t.Area),
		})
	}
	return resp
}

func floatParam(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) {
			return 0, numErr.Err
		}
		return 0, err
	}
	return f, nil
}

func (s *Server) sendJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func (s *Server) sendError(w http.ResponseWriter, message, kind string, code int) {
	s.sendJSON(w, code, ErrorResponse{Error: message, Kind: kind})
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRequestID tags every request with an id, taken from the X-Request-ID
// header when the client sends a valid UUID.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := icalc.WithSource(icalc.WithRequestID(r.Context(), id), "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			slog.String("request_id", icalc.RequestID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		)
	})
}
