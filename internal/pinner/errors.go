package pinner

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for pin validation.
var (
	// ErrNoPinsConfigured indicates no pin entry matches the host in
	// strict mode.
	ErrNoPinsConfigured = errors.New("no pins configured for host")

	// ErrPinMismatch indicates no certificate in the chain carries a
	// pinned public key.
	ErrPinMismatch = errors.New("certificate pin mismatch")

	// ErrEmptyChain indicates an empty certificate chain was supplied.
	ErrEmptyChain = errors.New("empty certificate chain")
)

// NoPinsError reports a host with no configured pin entry.
type NoPinsError struct {
	Host string
}

// Error implements the error interface.
func (e *NoPinsError) Error() string {
	return fmt.Sprintf("no pins configured for host %s", e.Host)
}

// Is checks if the error matches the target.
func (e *NoPinsError) Is(target error) bool {
	if errors.Is(target, ErrNoPinsConfigured) {
		return true
	}
	_, ok := target.(*NoPinsError)
	return ok
}

// PinMismatchError reports the expected and observed pin sets for
// diagnostics.
type PinMismatchError struct {
	Host     string
	Expected []string
	Actual   []string
}

// Error implements the error interface.
func (e *PinMismatchError) Error() string {
	return fmt.Sprintf("pin mismatch for host %s: expected [%s], got [%s]",
		e.Host, strings.Join(e.Expected, " "), strings.Join(e.Actual, " "))
}

// Is checks if the error matches the target.
func (e *PinMismatchError) Is(target error) bool {
	if errors.Is(target, ErrPinMismatch) {
		return true
	}
	_, ok := target.(*PinMismatchError)
	return ok
}
