// Package ratelimit implements the hierarchical admission controller that
// gates every outbound AI provider call. Three token-bucket levels are
// checked in order (global, per-provider, per-user); a denial at any level
// refunds the tokens consumed at the levels above it, so partial failure is
// transactionally invisible.
package ratelimit
