// Package admin exposes the loopback operational API: rate-limit status
// and history, quota and pin updates, Prometheus metrics, and health.
package admin
