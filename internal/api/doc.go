// Package api hosts the HTTP invocation surface for the catalog pipeline.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/invoke to run the full pipeline, POST /v1/load to reload the
//     published catalog into the item store.
//   - GET /v1/runs/last for the report of the most recent run.
//
// Invocation responses carry the {statusCode, body} pair produced by the
// invoke package: the HTTP status mirrors statusCode and the body is written
// as-is.
package api
