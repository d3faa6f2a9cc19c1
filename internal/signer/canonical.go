package signer

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Canonical string layout, newline-joined in fixed field order:
//
//	METHOD\nNORMALIZED_URL\nCONTENT_TYPE\nCONTENT_HASH\nTIMESTAMP\nNONCE\nVERSION
//
// Both signer and verifier rebuild this form independently, so it must be
// deterministic regardless of header ordering elsewhere in the transport.
func canonicalString(method, normalizedURL, contentType, contentHash, timestamp, nonce, version string) string {
	return strings.Join([]string{
		strings.ToUpper(method),
		normalizedURL,
		contentType,
		contentHash,
		timestamp,
		nonce,
		version,
	}, "\n")
}

// NormalizeURL produces the canonical form of a request URL: lowercase
// scheme and host, default ports stripped, path preserved, query preserved
// in its original order.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())

	port := u.Port()
	if port != "" && !isDefaultPort(scheme, port) {
		host = host + ":" + port
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	normalized := scheme + "://" + host + path
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}

	return normalized, nil
}

// isDefaultPort reports whether port is the default for the scheme.
func isDefaultPort(scheme, port string) bool {
	switch scheme {
	case "https":
		return port == "443"
	case "http":
		return port == "80"
	}
	return false
}

// hashContent returns the base64-encoded SHA-256 of the body, or the empty
// string when there is no body.
func hashContent(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// sensitiveParams are query parameter name fragments that suggest the value
// carries a credential.
var sensitiveParams = []string{"key", "token", "secret", "password"}

// RedactURL returns a copy of rawURL safe for logging: values of query
// parameters whose names suggest credentials are replaced. The canonical
// signing string is never built from the redacted form.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.RawQuery == "" {
		return rawURL
	}

	pairs := strings.Split(u.RawQuery, "&")
	redacted := false
	for i, pair := range pairs {
		name, _, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		if isSensitiveParam(name) {
			pairs[i] = name + "=REDACTED"
			redacted = true
		}
	}

	if !redacted {
		return rawURL
	}

	u.RawQuery = strings.Join(pairs, "&")
	return u.String()
}

// isSensitiveParam reports whether a query parameter name suggests a credential.
func isSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveParams {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}
