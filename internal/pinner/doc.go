// Package pinner implements SPKI certificate pinning for outbound TLS
// connections. A host-suffix table maps hosts to expected SHA-256 hashes
// of subject-public-key-info; chain validation succeeds when any
// certificate in the presented chain carries a pinned key. Pinning runs
// strictly after standard chain-of-trust and hostname verification, so a
// standard validation failure is never masked by a pin match.
package pinner
