package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/invoke"
	"github.com/JakeFAU/program-catalog/internal/metrics"
	"github.com/JakeFAU/program-catalog/internal/pipeline"
)

const (
	probeTimeout = 5 * time.Second
	maxEventSize = 1 << 20
)

// Invoker runs the pipeline entry points and remembers the latest report.
type Invoker interface {
	Pipeline(ctx context.Context, event json.RawMessage) invoke.Response
	Load(ctx context.Context, event json.RawMessage) invoke.Response
	LastReport() (pipeline.Report, bool)
}

// Server wires HTTP handlers to the invocation handler.
type Server struct {
	router  chi.Router
	invoker Invoker
	logger  *zap.Logger
	// running serializes invocations; overlapping runs would race on the published catalog.
	running sync.Mutex
}

// NewServer constructs a Server with middleware and routes.
func NewServer(invoker Invoker, logger *zap.Logger) (*Server, error) {
	if invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{invoker: invoker, logger: logger.Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(probeTimeout))
		r.Get("/healthz", s.healthz)
		r.Get("/readyz", s.readyz)
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/invoke", s.invoke(invoker.Pipeline))
		r.Post("/load", s.invoke(invoker.Load))
		r.Get("/runs/last", s.lastRun)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) invoke(entry func(context.Context, json.RawMessage) invoke.Response) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := readEvent(r)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !s.running.TryLock() {
			s.writeError(w, http.StatusConflict, "a pipeline invocation is already running")
			return
		}
		defer s.running.Unlock()

		resp := entry(r.Context(), event)
		writeResponse(w, resp, s.logger)
	}
}

func (s *Server) lastRun(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.invoker.LastReport()
	if !ok {
		s.writeError(w, http.StatusNotFound, "no pipeline run recorded")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": report})
}

// readEvent returns the request body as the invocation event. An empty body is an empty object.
func readEvent(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	if len(body) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("event must be valid JSON")
	}
	return json.RawMessage(body), nil
}

func writeResponse(w http.ResponseWriter, resp invoke.Response, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		logger.Warn("write invocation response failed", zap.Error(err))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered",
					zap.String("request_id", requestID(r.Context())),
					zap.Any("error", rec),
				)
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
