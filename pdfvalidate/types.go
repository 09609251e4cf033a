// Package pdfvalidate implements the SignatureOrchestrator of spec.md
// §4.7: it ties CMSVerifier, SignatureCoverage, RevisionDiff, and
// SeedValueEnforcer together into the two external entry points spec.md
// §6 names — validating a single signature field, and (for long-term
// validation) validating it against a fixed archival revocation source
// instead of whatever happens to be reachable at verification time.
//
// Grounded in original_source/pdfstamp/sign/validation.py's
// validate_pdf_signature/validate_pdf_ltv_signature and
// EmbeddedPdfSignature, and in the teacher's own verify.VerifySignature
// (verify/signature.go), which plays the same "wire everything together
// for one signature" role around a different set of collaborators.
package pdfvalidate

import (
	"crypto/x509"
	"log"
	"time"

	"github.com/digitorus/pdfvalidate/cms"
	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/config"
)

// Status is the aggregate outbound signature status record spec.md §6
// names: every field a caller needs in order to decide whether to trust a
// signature, and why not, if not.
type Status struct {
	// Intact is true when the embedded content digest matches what was
	// actually signed over.
	Intact bool
	// Valid is true when the signature value itself verifies. Only
	// meaningful when Intact.
	Valid bool
	Trusted bool
	Revoked bool
	UsageOK bool

	SigningCert    *x509.Certificate
	CAChain        []*x509.Certificate
	ValidationPath []*x509.Certificate

	Mechanism       cms.Mechanism
	DigestAlgorithm string

	Coverage          common.SignatureCoverageLevel
	ModificationLevel common.ModificationLevel

	SeedValueOK bool
	DocMDPOK    bool

	// SignedAt is the signature's self-reported signing time (the
	// signature dictionary's /M, or an embedded timestamp token's
	// generation time for a DocTimeStamp or LTV signature), nil if none
	// was available.
	SignedAt *time.Time

	// TimestampValidity is set when the signature carries an embedded
	// RFC 3161 timestamp token (as an unsigned attribute, or, for
	// ValidateFieldLTV, as the signature itself), nil otherwise.
	TimestampValidity *TimestampValidity

	Warnings []string
}

// TimestampValidity is the validated status of an RFC 3161 timestamp
// token, whether found as an embedded unsigned CMS attribute (a regular
// signature's signature-time-stamp token) or as the whole of a DocTimeStamp
// field's /Contents.
type TimestampValidity struct {
	Valid              bool
	Trusted            bool
	GenTime            time.Time
	SigningCertificate *x509.Certificate
}

// Options configures a call to ValidateField, ValidateAll or
// ValidateFieldLTV. A nil *Options, or any zero-valued field within one,
// falls back to config.DefaultPolicy() and certvalidator.New(), mirroring
// the teacher's own DefaultVerifyOptions() fallback.
type Options struct {
	Policy    *config.Policy
	Validator cms.CertValidator
	Logger    *log.Logger
}
