package signer

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/edgeguard/edgeguard/internal/audit"
	"github.com/edgeguard/edgeguard/internal/observability"
)

// Protocol constants.
const (
	// ProtocolVersion is the current signing protocol version.
	ProtocolVersion = "1"

	// HeaderSignature carries the base64 HMAC over the canonical string.
	HeaderSignature = "X-Signature"

	// HeaderTimestamp carries the signing time, ISO-8601 UTC with
	// millisecond precision.
	HeaderTimestamp = "X-Signature-Timestamp"

	// HeaderNonce carries the per-request random nonce.
	HeaderNonce = "X-Signature-Nonce"

	// HeaderVersion carries the protocol version.
	HeaderVersion = "X-Signature-Version"

	// HeaderContentHash carries the base64 SHA-256 of the body, empty when
	// the request has no body.
	HeaderContentHash = "X-Content-Hash"

	// HeaderContentType is the transport content type header consulted
	// during validation.
	HeaderContentType = "Content-Type"
)

// DefaultReplayWindow is the default tolerated clock skew in either
// direction for the timestamp of a signed request.
const DefaultReplayWindow = 5 * time.Minute

// nonceSize is the nonce length in bytes (128 bits).
const nonceSize = 16

// timestampLayout formats timestamps with millisecond precision and an
// explicit UTC marker.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// protocolHeaders are the headers required to be non-empty on every signed
// request. The content hash header is legitimately empty for bodyless
// requests and is checked separately.
var protocolHeaders = []string{
	HeaderSignature,
	HeaderTimestamp,
	HeaderNonce,
	HeaderVersion,
}

// SignedRequest is the immutable output of signing.
type SignedRequest struct {
	// Signature is the base64-encoded MAC over the canonical string.
	Signature string

	// Timestamp is the signing time, ISO-8601 UTC with millisecond precision.
	Timestamp string

	// Nonce is the base64-encoded 128-bit random nonce.
	Nonce string

	// ContentHash is the base64 SHA-256 of the body, empty without a body.
	ContentHash string

	// Headers holds the protocol header name/value pairs to attach to the
	// transport request.
	Headers map[string]string
}

// ValidationResult is the immutable output of validation.
type ValidationResult struct {
	// Valid indicates whether the signature checks passed.
	Valid bool

	// Err is the typed validation failure, nil when Valid.
	Err error

	// Reason is a human-readable failure reason, empty when Valid.
	Reason string

	// Timestamp echoes the request timestamp for caller-side replay-set
	// bookkeeping.
	Timestamp string

	// Nonce echoes the request nonce for caller-side replay-set bookkeeping.
	Nonce string
}

// Signer signs outgoing requests and validates signature headers. It holds
// no per-request mutable state and is safe for concurrent use.
type Signer struct {
	replayWindow time.Duration
	now          func() time.Time
	logger       observability.Logger
	metrics      *Metrics
	audit        audit.Logger
}

// Option is a functional option for configuring the signer.
type Option func(*Signer)

// WithReplayWindow sets the tolerated clock skew for validation.
func WithReplayWindow(window time.Duration) Option {
	return func(s *Signer) {
		if window > 0 {
			s.replayWindow = window
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(s *Signer) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(s *Signer) {
		s.metrics = metrics
	}
}

// WithAuditLogger sets the audit sink for security-relevant denials.
func WithAuditLogger(auditLogger audit.Logger) Option {
	return func(s *Signer) {
		s.audit = auditLogger
	}
}

// WithClock sets the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		s.now = now
	}
}

// New creates a new Signer.
func New(opts ...Option) *Signer {
	s := &Signer{
		replayWindow: DefaultReplayWindow,
		now:          time.Now,
		logger:       observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sign builds the canonical form of the request and returns the protocol
// headers carrying an HMAC-SHA256 signature over it. The secret may be
// empty, which degrades to a keyless integrity-only signature that the
// verifier must check with the same empty key. A fresh cryptographically
// secure nonce is generated on every call.
func (s *Signer) Sign(method, rawURL, contentType string, body []byte, secret string) (*SignedRequest, error) {
	normalizedURL, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	timestamp := s.now().UTC().Format(timestampLayout)
	contentHash := hashContent(body)

	canonical := canonicalString(method, normalizedURL, contentType, contentHash, timestamp, nonce, ProtocolVersion)
	signature := computeMAC(canonical, secret)

	if s.metrics != nil {
		s.metrics.RecordSign()
	}

	s.logger.Debug("signed request",
		observability.String("method", method),
		observability.String("url", RedactURL(rawURL)),
	)

	return &SignedRequest{
		Signature:   signature,
		Timestamp:   timestamp,
		Nonce:       nonce,
		ContentHash: contentHash,
		Headers: map[string]string{
			HeaderSignature:   signature,
			HeaderTimestamp:   timestamp,
			HeaderNonce:       nonce,
			HeaderVersion:     ProtocolVersion,
			HeaderContentHash: contentHash,
		},
	}, nil
}

// Validate checks the protocol headers of a signed request. All failures
// are reported through the result, never by panicking or retrying. The
// content hash is verified against the body before the signature is
// checked, and signatures are compared in constant time.
func (s *Signer) Validate(method, rawURL string, headers map[string]string, body []byte, secret string) *ValidationResult {
	for _, name := range protocolHeaders {
		if headers[name] == "" {
			return s.failure(&MissingHeaderError{Header: name}, "", "")
		}
	}

	timestamp := headers[HeaderTimestamp]
	nonce := headers[HeaderNonce]

	if version := headers[HeaderVersion]; version != ProtocolVersion {
		return s.failure(&UnsupportedVersionError{Version: version}, timestamp, nonce)
	}

	signedAt, err := time.Parse(timestampLayout, timestamp)
	if err != nil {
		return s.failure(fmt.Errorf("malformed timestamp %q: %w", timestamp, err), timestamp, nonce)
	}

	// The window covers clock skew in both directions, not just staleness.
	skew := signedAt.Sub(s.now())
	if skew > s.replayWindow || skew < -s.replayWindow {
		return s.failure(&ReplayWindowError{Skew: skew, Window: s.replayWindow}, timestamp, nonce)
	}

	// hashContent returns "" for an empty body, so this also rejects a
	// non-empty hash header on a bodyless request.
	contentHash := headers[HeaderContentHash]
	if hashContent(body) != contentHash {
		return s.failure(ErrContentHashMismatch, timestamp, nonce)
	}

	normalizedURL, err := NormalizeURL(rawURL)
	if err != nil {
		return s.failure(err, timestamp, nonce)
	}

	canonical := canonicalString(method, normalizedURL, headers[HeaderContentType], contentHash, timestamp, nonce, ProtocolVersion)
	expected := computeMAC(canonical, secret)

	if !macEqual(headers[HeaderSignature], expected) {
		return s.failure(ErrSignatureMismatch, timestamp, nonce)
	}

	if s.metrics != nil {
		s.metrics.RecordValidation("valid")
	}

	return &ValidationResult{
		Valid:     true,
		Timestamp: timestamp,
		Nonce:     nonce,
	}
}

// failure builds a failed validation result and surfaces the denial to the
// audit sink and metrics.
func (s *Signer) failure(err error, timestamp, nonce string) *ValidationResult {
	if s.metrics != nil {
		s.metrics.RecordValidation(failureLabel(err))
	}

	s.logger.Warn("signature validation failed", observability.Error(err))

	if s.audit != nil {
		s.audit.LogSecurity(audit.ActionSignatureInvalid, audit.OutcomeDenied, map[string]interface{}{
			"reason": err.Error(),
		})
	}

	return &ValidationResult{
		Valid:     false,
		Err:       err,
		Reason:    err.Error(),
		Timestamp: timestamp,
		Nonce:     nonce,
	}
}

// newNonce returns a fresh base64-encoded 128-bit random nonce.
func newNonce() (string, error) {
	buf := make([]byte, nonceSize)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// computeMAC returns the base64-encoded HMAC-SHA256 of the canonical string.
func computeMAC(canonical, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(canonical))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// macEqual compares two base64-encoded MACs in constant time.
func macEqual(received, expected string) bool {
	receivedRaw, err := base64.StdEncoding.DecodeString(received)
	if err != nil {
		return false
	}
	expectedRaw, err := base64.StdEncoding.DecodeString(expected)
	if err != nil {
		return false
	}
	return hmac.Equal(receivedRaw, expectedRaw)
}
