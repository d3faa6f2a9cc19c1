// Package signer implements the request signing protocol used on every
// outbound AI provider call. It produces signature headers over a canonical
// request form (HMAC-SHA256) and validates signed requests on the receiving
// side, enforcing an anti-replay window and constant-time signature
// comparison.
package signer
