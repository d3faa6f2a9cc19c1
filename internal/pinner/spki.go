package pinner

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"
)

// pinPrefix identifies the hash algorithm in a pin string.
const pinPrefix = "sha256/"

// SPKIPin returns the pin string for a certificate: "sha256/" followed by
// the base64 SHA-256 of the DER-encoded subject-public-key-info. The hash
// covers the public key, not the whole certificate, so a certificate can
// be reissued without rotating the pin.
func SPKIPin(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.RawSubjectPublicKeyInfo)
	return pinPrefix + base64.StdEncoding.EncodeToString(sum[:])
}

// chainPins returns the pin of every certificate in the chain, leaf first,
// so pinning an intermediate CA is supported.
func chainPins(chain []*x509.Certificate) []string {
	pins := make([]string, 0, len(chain))
	for _, cert := range chain {
		pins = append(pins, SPKIPin(cert))
	}
	return pins
}

// validatePinFormat checks that a configured pin is well-formed.
func validatePinFormat(pin string) error {
	raw, ok := strings.CutPrefix(pin, pinPrefix)
	if !ok {
		return fmt.Errorf("pin %q must start with %q", pin, pinPrefix)
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("pin %q is not valid base64: %w", pin, err)
	}
	if len(decoded) != sha256.Size {
		return fmt.Errorf("pin %q must encode a %d-byte SHA-256 hash", pin, sha256.Size)
	}

	return nil
}

// hostnameFromLeaf identifies the target hostname of a chain, preferring
// Subject-Alternative-Name DNS entries over the Subject Common Name.
func hostnameFromLeaf(leaf *x509.Certificate) string {
	if len(leaf.DNSNames) > 0 {
		return strings.ToLower(leaf.DNSNames[0])
	}
	return strings.ToLower(leaf.Subject.CommonName)
}
