package pinner

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
)

// VerifyPeerCertificate is a tls.Config callback that applies pin
// validation. crypto/tls invokes it only after standard chain-of-trust
// and hostname verification have succeeded (InsecureSkipVerify must stay
// false), which gives the required ordering: a standard validation
// failure aborts the handshake before pinning is consulted and is never
// masked by a pin match, and a hostname failure short-circuits before
// pin checking.
func (p *Pinner) VerifyPeerCertificate(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error {
	chain := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return fmt.Errorf("malformed peer certificate: %w", err)
		}
		chain = append(chain, cert)
	}

	result := p.ValidateChain(chain)
	if !result.Valid {
		return result.Err
	}

	return nil
}

// PinnedTLSConfig returns a clone of base decorated with pin validation.
// A nil base starts from an empty config using the platform's default
// trust anchors. The clone always has InsecureSkipVerify forced off so
// standard validation runs first.
func (p *Pinner) PinnedTLSConfig(base *tls.Config) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cfg.InsecureSkipVerify = false
	cfg.VerifyPeerCertificate = p.VerifyPeerCertificate

	return cfg
}

// ApplyPinning attaches the pinned trust context to an already-constructed
// HTTP transport.
func (p *Pinner) ApplyPinning(transport *http.Transport) {
	if transport == nil {
		return
	}
	transport.TLSClientConfig = p.PinnedTLSConfig(transport.TLSClientConfig)
}
