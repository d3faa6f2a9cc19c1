// Package audit provides the security audit sink for the trust and
// admission layer. Security-relevant denials (signature failures, pin
// mismatches, rate-limit trips) are surfaced here independently of the
// result values returned to calling code, so operational visibility does
// not depend on caller diligence.
package audit
