package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/invoke"
	"github.com/JakeFAU/program-catalog/internal/pipeline"
)

type stubRunner struct {
	mu      sync.Mutex
	report  pipeline.Report
	runErr  error
	load    catalog.LoadResult
	loadErr error
	runs    int
	// block, when set, holds Run until the channel is closed; started is closed once Run begins.
	block   chan struct{}
	started chan struct{}
}

func (s *stubRunner) Run(ctx context.Context) (pipeline.Report, error) {
	s.mu.Lock()
	s.runs++
	block, started := s.block, s.started
	s.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return pipeline.Report{}, fmt.Errorf("pipeline canceled: %w", ctx.Err())
		}
	}
	return s.report, s.runErr
}

func (s *stubRunner) Load(context.Context) (catalog.LoadResult, error) {
	return s.load, s.loadErr
}

func newTestServer(t *testing.T, runner *stubRunner) *Server {
	t.Helper()
	handler, err := invoke.NewHandler(runner, zap.NewNop())
	require.NoError(t, err)
	server, err := NewServer(handler, zap.NewNop())
	require.NoError(t, err)
	return server
}

func serve(server *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubRunner{})

	health := serve(server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, health.Code)
	require.JSONEq(t, `{"status":"ok"}`, health.Body.String())

	ready := serve(server, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, ready.Code)
	require.JSONEq(t, `{"status":"ready"}`, ready.Body.String())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubRunner{})
	serve(server, http.MethodGet, "/healthz", nil)

	rec := serve(server, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestServer_InvokeSuccess(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{report: pipeline.Report{
		RunID:    "run-1",
		Programs: 2,
		Load:     catalog.LoadResult{Succeeded: 2},
	}}
	server := newTestServer(t, runner)

	rec := serve(server, http.MethodPost, "/v1/invoke", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"message":"`+invoke.PipelineSucceeded+`","succeeded":2,"failed":0}`, rec.Body.String())
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	require.Equal(t, 1, runner.runs)
}

func TestServer_InvokePublishFailure(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		report: pipeline.Report{RunID: "run-9"},
		runErr: fmt.Errorf("%w: denied", pipeline.ErrPublishFailed),
	}
	server := newTestServer(t, runner)

	rec := serve(server, http.MethodPost, "/v1/invoke", []byte(`{"source":"scheduler"}`))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"message":"`+invoke.PublishFailed+`","succeeded":0,"failed":0}`, rec.Body.String())
}

func TestServer_InvokeRejectsMalformedEvent(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	server := newTestServer(t, runner)

	rec := serve(server, http.MethodPost, "/v1/invoke", []byte(`{broken`))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "valid JSON")
	require.Zero(t, runner.runs)
}

func TestServer_InvokeRejectsOverlappingRuns(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{
		report:  pipeline.Report{RunID: "run-1"},
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	server := newTestServer(t, runner)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- serve(server, http.MethodPost, "/v1/invoke", nil)
	}()
	<-runner.started

	conflict := serve(server, http.MethodPost, "/v1/load", nil)
	require.Equal(t, http.StatusConflict, conflict.Code)

	close(runner.block)
	first := <-done
	require.Equal(t, http.StatusOK, first.Code)
}

func TestServer_Load(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{load: catalog.LoadResult{
		Succeeded:   3,
		Failed:      1,
		FailedItems: []catalog.ProgramRecord{{ProgramTitle: "Broken", ProgramURL: "https://example.edu/broken"}},
	}}
	server := newTestServer(t, runner)

	rec := serve(server, http.MethodPost, "/v1/load", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Message       string                  `json:"message"`
		FailedRecords []catalog.ProgramRecord `json:"failed_records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Successfully processed 3 records. Failed 1 records.", body.Message)
	require.Len(t, body.FailedRecords, 1)
}

func TestServer_LoadUnavailable(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubRunner{loadErr: errors.New("no such key")})

	rec := serve(server, http.MethodPost, "/v1/load", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"message":"`+invoke.CatalogUnavailable+`"}`, rec.Body.String())
}

func TestServer_LastRun(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{report: pipeline.Report{RunID: "run-7", Programs: 4}}
	server := newTestServer(t, runner)

	missing := serve(server, http.MethodGet, "/v1/runs/last", nil)
	require.Equal(t, http.StatusNotFound, missing.Code)

	serve(server, http.MethodPost, "/v1/invoke", nil)

	rec := serve(server, http.MethodGet, "/v1/runs/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Run pipeline.Report `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "run-7", body.Run.RunID)
	require.Equal(t, 4, body.Run.Programs)
}

func TestRequestIDMiddlewareKeepsCallerID(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubRunner{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddlewareReturns500(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &stubRunner{})
	handler := server.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestNewServerRequiresInvoker(t *testing.T) {
	t.Parallel()

	_, err := NewServer(nil, nil)
	require.Error(t, err)
}
