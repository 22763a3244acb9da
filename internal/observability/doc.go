// Package observability provides the structured logger used across the API.
//
// Request-scoped loggers carry the trace and request ids assigned by the trace
// middleware, so every log line of a request can be correlated with the
// X-Trace-Id header returned to the client and with its audit entries.
package observability
