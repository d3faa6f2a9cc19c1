package signer

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors for signature validation.
var (
	// ErrSignatureMismatch indicates that the received signature does not
	// match the expected MAC over the canonical string.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrContentHashMismatch indicates that the request body does not match
	// the content hash header.
	ErrContentHashMismatch = errors.New("content hash mismatch")

	// ErrUnsupportedVersion indicates an unsupported protocol version.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrMissingHeader indicates a required protocol header is absent.
	ErrMissingHeader = errors.New("missing protocol header")

	// ErrReplayWindowExceeded indicates the request timestamp is outside
	// the accepted clock-skew window.
	ErrReplayWindowExceeded = errors.New("replay window exceeded")
)

// MissingHeaderError reports an absent protocol header by name.
type MissingHeaderError struct {
	Header string
}

// Error implements the error interface.
func (e *MissingHeaderError) Error() string {
	return fmt.Sprintf("missing protocol header %s", e.Header)
}

// Is checks if the error matches the target.
func (e *MissingHeaderError) Is(target error) bool {
	if errors.Is(target, ErrMissingHeader) {
		return true
	}
	_, ok := target.(*MissingHeaderError)
	return ok
}

// UnsupportedVersionError reports an unrecognized protocol version.
type UnsupportedVersionError struct {
	Version string
}

// Error implements the error interface.
func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported protocol version %q (supported: %s)", e.Version, ProtocolVersion)
}

// Is checks if the error matches the target.
func (e *UnsupportedVersionError) Is(target error) bool {
	if errors.Is(target, ErrUnsupportedVersion) {
		return true
	}
	_, ok := target.(*UnsupportedVersionError)
	return ok
}

// ReplayWindowError reports a timestamp outside the replay window.
type ReplayWindowError struct {
	// Skew is the observed distance between the request timestamp and the
	// local clock. Positive means the timestamp is in the future.
	Skew time.Duration

	// Window is the configured tolerance in either direction.
	Window time.Duration
}

// Error implements the error interface.
func (e *ReplayWindowError) Error() string {
	return fmt.Sprintf("timestamp outside replay window: skew %dms exceeds tolerance %dms",
		e.Skew.Milliseconds(), e.Window.Milliseconds())
}

// Is checks if the error matches the target.
func (e *ReplayWindowError) Is(target error) bool {
	if errors.Is(target, ErrReplayWindowExceeded) {
		return true
	}
	_, ok := target.(*ReplayWindowError)
	return ok
}
