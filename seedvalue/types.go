// Package seedvalue implements the SeedValueEnforcer of spec.md §4.5: it
// parses a signature field's /SV (seed value) and /Cert (certificate seed
// value) dictionaries and checks a just-verified signature against the
// constraints they mandate.
//
// Grounded in original_source/pdfstamp/sign/fields.go's SigSeedValueSpec,
// SigCertConstraints and _validate_sv_constraints (validation.py), adapted
// from asn1crypto/oskeys onto crypto/x509 and github.com/digitorus/pdf.
package seedvalue

import "crypto/x509"

// Flags mirrors SigSeedValFlags: which /SV constraints are mandatory
// (bit set) as opposed to advisory.
type Flags uint32

const (
	FlagFilter            Flags = 1 << 0
	FlagSubFilter         Flags = 1 << 1
	FlagV                 Flags = 1 << 2
	FlagReasons           Flags = 1 << 3
	FlagLegalAttestation  Flags = 1 << 4
	FlagAddRevInfo        Flags = 1 << 5
	FlagDigestMethod      Flags = 1 << 6
	FlagLockDocument      Flags = 1 << 7
	FlagAppearanceFilter  Flags = 1 << 8
	FlagsUnsupported            = FlagLegalAttestation | FlagLockDocument | FlagAppearanceFilter
)

func (f Flags) has(bit Flags) bool { return f&bit != 0 }

// CertFlags mirrors SigCertConstraintFlags: which /Cert constraints are
// mandatory.
type CertFlags uint32

const (
	CertFlagSubject   CertFlags = 1 << 0
	CertFlagIssuer    CertFlags = 1 << 1
	CertFlagOID       CertFlags = 1 << 2
	CertFlagSubjectDN CertFlags = 1 << 3
	CertFlagReserved  CertFlags = 1 << 4
	CertFlagKeyUsage  CertFlags = 1 << 5
	CertFlagURL       CertFlags = 1 << 6
)

func (f CertFlags) has(bit CertFlags) bool { return f&bit != 0 }

// DNAttribute is one required (OID, value) pair from /Cert's /SubjectDN
// entry, e.g. {OID: "2.5.4.3", Value: "John Doe"} for /CN.
type DNAttribute struct {
	OID   string
	Value string
}

// CertConstraints is SigCertConstraints: enforcement flags plus a signer
// whitelist, an issuer whitelist (matched against the validation path), a
// set of required subject DN attributes, and an informational URL.
type CertConstraints struct {
	Flags     CertFlags
	Subjects  []*x509.Certificate
	SubjectDN []DNAttribute
	Issuers   []*x509.Certificate
	InfoURL   string
	URLType   string
}

const (
	// SubFilterAdobePKCS7Detached is "/adbe.pkcs7.detached".
	SubFilterAdobePKCS7Detached = "adbe.pkcs7.detached"
	// SubFilterPAdES is "/ETSI.CAdES.detached".
	SubFilterPAdES = "ETSI.CAdES.detached"
	// SubFilterETSIRFC3161 is "/ETSI.RFC3161" (document timestamps).
	SubFilterETSIRFC3161 = "ETSI.RFC3161"
)

// knownSubFilters is the set SigSeedSubFilter recognizes; any /SubFilter
// entry outside of it is silently dropped when parsing a seed value's
// mandated list (matching from_pdf_object's "except ValueError: pass").
var knownSubFilters = map[string]bool{
	SubFilterAdobePKCS7Detached: true,
	SubFilterPAdES:              true,
	SubFilterETSIRFC3161:        true,
}

// Spec is SigSeedValueSpec.
type Spec struct {
	Flags             Flags
	Reasons           []string
	TimestampURL      string
	TimestampRequired bool
	Cert              *CertConstraints
	// Subfilters is the ordered list of acceptable subfilters. nil means
	// the /SubFilter key was absent; a non-nil empty slice means every
	// entry present was unrecognized (from_pdf_object's _subfilters()
	// generator yielding nothing).
	Subfilters []string
	// DigestMethods holds each allowed digest algorithm, lowercased.
	DigestMethods []string
	// AddRevInfo is nil when /AddRevInfo was absent, matching the Python
	// Optional[bool] default.
	AddRevInfo *bool
}

// Context is the already-verified signature information the enforcer
// checks a Spec against: spec.md §4.7's "run the seed-value enforcer"
// step feeds this in from the orchestrator's CMS/coverage results.
type Context struct {
	SignerCertificate *x509.Certificate
	// ValidationPath is the certificate chain the CertValidator built for
	// the signer, signer-first (matching cms.Result.Path).
	ValidationPath []*x509.Certificate
	TimestampFound bool
	// DigestAlgorithm is the signature's digest algorithm, lowercased
	// (matching emb_sig.md_algorithm.lower()).
	DigestAlgorithm string
	// SubFilter is the signature dictionary's /SubFilter value (no
	// leading slash), e.g. "adbe.pkcs7.detached".
	SubFilter string
	// Reason is the signature dictionary's /Reason value, or "" if
	// absent. ReasonPresent distinguishes an absent /Reason from one
	// whose text happens to be empty.
	Reason        string
	ReasonPresent bool
	// RevocationInfoFound is true when the signer info carries a
	// (non-empty) Adobe revocation-info-archival unsigned attribute.
	RevocationInfoFound bool
}
