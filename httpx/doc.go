// Package httpx is the HTTP transport used by the API clients:
// - reusable transports with sane defaults and caller overrides on top
// - request building with base URL + default headers
// - a single attempt per call; failures are surfaced once, never retried
// - whole-buffer (Execute) and incremental (Stream) body modes
// - error type for connection-level failures, distinct from HTTP status
// - hook points for logging/metrics/tracing without hard dependencies
package httpx
