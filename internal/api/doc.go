// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/scrape to start an ingestion run in the background.
//   - POST /v1/chat to ask a question about an ingested site.
//   - GET /v1/sessions and /v1/sessions/{session_id} for session listings.
package api
