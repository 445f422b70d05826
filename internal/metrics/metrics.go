// Package metrics exposes Prometheus collectors for the catalog pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	listingProgramsTotal       *prometheus.CounterVec
	enrichmentsTotal           *prometheus.CounterVec
	pdfDownloadsTotal          *prometheus.CounterVec
	loadRecordsTotal           *prometheus.CounterVec
	stageDurationSeconds       *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingProgramsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_listing_programs_total",
				Help: "Program stubs parsed from listing pages, labeled by site and filter.",
			},
			[]string{"site", "filter"},
		)

		enrichmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_enrichments_total",
				Help: "Detail page enrichments, labeled by tab mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		pdfDownloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_pdf_downloads_total",
				Help: "Brochure download attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		loadRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_load_records_total",
				Help: "Records processed by the store loader, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		stageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_stage_duration_seconds",
				Help:    "Histogram of pipeline stage durations.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"stage"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_rate_limit_delay_seconds",
				Help:    "Time outbound fetches spent waiting on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListing counts the stubs parsed from one listing page.
func ObserveListing(listingURL, filter string, programs int) {
	Init()
	listingProgramsTotal.WithLabelValues(SanitizeSite(listingURL), filter).Add(float64(programs))
}

// ObserveEnrichment records one detail page outcome.
func ObserveEnrichment(mode, outcome string) {
	Init()
	enrichmentsTotal.WithLabelValues(mode, outcome).Inc()
}

// ObservePDF records one brochure download outcome.
func ObservePDF(outcome string) {
	Init()
	pdfDownloadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveLoad adds n records to the loader counter for outcome.
func ObserveLoad(outcome string, n int) {
	Init()
	if n > 0 {
		loadRecordsTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

// ObserveStage records how long a pipeline stage took.
func ObserveStage(stage string, duration time.Duration) {
	Init()
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records a wait imposed by the fetch rate limiter.
func ObserveRateLimitDelay(site string, duration time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
