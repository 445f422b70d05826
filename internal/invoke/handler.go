// Package invoke exposes the pipeline as a stateless {statusCode, body} entry point.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/program-catalog/internal/catalog"
	"github.com/JakeFAU/program-catalog/internal/pipeline"
)

// Response messages.
const (
	PipelineSucceeded   = "Catalog processed and pushed to the item store successfully."
	PublishFailed       = "Failed to publish the program catalog."
	CatalogUnavailable  = "Failed to fetch data from blob store."
	PipelineFailed      = "Catalog pipeline failed."
	loadSummaryTemplate = "Successfully processed %d records. Failed %d records."
)

// Response is the invocation result.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

// Runner is the subset of the pipeline the handler drives.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Load(ctx context.Context) (catalog.LoadResult, error)
}

// Handler maps pipeline outcomes onto responses. The event payload is ignored.
type Handler struct {
	runner Runner
	logger *zap.Logger

	mu   sync.Mutex
	last *pipeline.Report
}

// NewHandler wires a Handler.
func NewHandler(runner Runner, logger *zap.Logger) (*Handler, error) {
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, logger: logger.Named("invoke")}, nil
}

// Pipeline runs the full pipeline. Every body carries the load counts of the run.
func (h *Handler) Pipeline(ctx context.Context, _ json.RawMessage) Response {
	report, err := h.runner.Run(ctx)
	if report.RunID != "" {
		h.remember(report)
	}
	if err != nil {
		h.logger.Error("pipeline invocation failed", zap.String("run_id", report.RunID), zap.Error(err))
		switch {
		case errors.Is(err, pipeline.ErrPublishFailed):
			return pipelineResponse(http.StatusInternalServerError, PublishFailed, report)
		case errors.Is(err, pipeline.ErrCatalogUnavailable):
			return pipelineResponse(http.StatusInternalServerError, CatalogUnavailable, report)
		default:
			return pipelineResponse(http.StatusInternalServerError, PipelineFailed, report)
		}
	}
	return pipelineResponse(http.StatusOK, PipelineSucceeded, report)
}

// Load runs only the store loader and reports per-record results.
func (h *Handler) Load(ctx context.Context, _ json.RawMessage) Response {
	result, err := h.runner.Load(ctx)
	if err != nil {
		h.logger.Error("load invocation failed", zap.Error(err))
		return messageResponse(http.StatusInternalServerError, CatalogUnavailable)
	}
	failed := result.FailedItems
	if failed == nil {
		failed = []catalog.ProgramRecord{}
	}
	return jsonResponse(http.StatusOK, loadBody{
		Message:       fmt.Sprintf(loadSummaryTemplate, result.Succeeded, result.Failed),
		FailedRecords: failed,
	})
}

// LastReport returns the report of the most recent pipeline invocation that got a run ID.
func (h *Handler) LastReport() (pipeline.Report, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return pipeline.Report{}, false
	}
	return *h.last, true
}

func (h *Handler) remember(report pipeline.Report) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &report
}

// PipelineBody is the JSON body of a pipeline invocation.
type PipelineBody struct {
	Message   string `json:"message"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

type loadBody struct {
	Message       string                  `json:"message"`
	FailedRecords []catalog.ProgramRecord `json:"failed_records"`
}

func pipelineResponse(status int, message string, report pipeline.Report) Response {
	return jsonResponse(status, PipelineBody{
		Message:   message,
		Succeeded: report.Load.Succeeded,
		Failed:    report.Load.Failed,
	})
}

func messageResponse(status int, message string) Response {
	return jsonResponse(status, map[string]string{"message": message})
}

func jsonResponse(status int, body any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		return Response{StatusCode: http.StatusInternalServerError, Body: `{"message":"` + PipelineFailed + `"}`}
	}
	return Response{StatusCode: status, Body: string(data)}
}
