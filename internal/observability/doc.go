// Package observability provides logging, metrics, and tracing for the
// trust and admission layer.
package observability
