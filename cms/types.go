package cms

import (
	"crypto/x509"
	"time"

	"github.com/digitorus/pdfvalidate/revocation"
)

// ValidationContext carries the trust material a CertValidator needs to
// judge a certificate path: a root pool, the moment to validate against
// (embedded timestamp time, or signature time, or "now"), and any
// revocation evidence already available (embedded OCSP/CRL, e.g. from the
// Adobe revocation-info-archival attribute or the DSS).
type ValidationContext struct {
	Roots      *x509.CertPool
	Time       time.Time
	Revocation revocation.InfoArchival

	// RequiredKeyUsage and RequiredEKUs, when set, override Verify's
	// default (Non-Repudiation key usage, validator-chosen EKUs) with the
	// caller's policy, e.g. a config.Policy's RequiredKeyUsage()/
	// RequiredExtKeyUsages(). Zero/nil keeps the previous defaults.
	RequiredKeyUsage x509.KeyUsage
	RequiredEKUs     []x509.ExtKeyUsage
}

// ValidationResult is what a CertValidator reports back about a signer
// certificate, per spec.md §4.2 point 8.
type ValidationResult struct {
	Trusted bool
	Revoked bool
	UsageOK bool
	Path    []*x509.Certificate
}

// CertValidator is the injectable certificate-path-building / revocation
// collaborator spec.md calls "out of scope" for this module (§1). A caller
// may supply any implementation (e.g. one doing full RFC 5280 path
// building); this module ships a minimal default in package certvalidator.
type CertValidator interface {
	Validate(signer *x509.Certificate, intermediates []*x509.Certificate, requiredKeyUsage x509.KeyUsage, requiredEKUs []x509.ExtKeyUsage, valCtx *ValidationContext) (*ValidationResult, error)
}

// Result is the outcome of verifying a single CMS SignedData, assembled
// per spec.md §4.2. It never carries a cryptographic failure as a Go
// error — failures are reported via its fields — matching the teacher's
// own "collect ValidationErrors, keep going" posture in
// verify.VerifySignature.
type Result struct {
	SignerCertificate  *x509.Certificate
	CAChain            []*x509.Certificate
	DigestAlgorithm    string
	Mechanism          Mechanism

	// Intact is true when the computed/accepted raw digest of the
	// encapsulated content matches the message_digest signed attribute.
	Intact bool
	// Valid is true when the signature value verifies against the
	// re-encoded signed-attributes blob. Only meaningful when Intact.
	Valid bool

	Trusted bool
	Revoked bool
	UsageOK bool
	Path    []*x509.Certificate

	Warnings []string
}
