package pdfvalidate

import (
	"fmt"
	"io"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/cms"
	"github.com/digitorus/pdfvalidate/dss"
	"github.com/digitorus/pdfvalidate/revocation"
	"github.com/digitorus/pdfvalidate/xrefcache"
	"github.com/digitorus/pkcs7"
)

// RevocationInfoValidationType selects where ValidateFieldLTV sources its
// revocation evidence from, mirroring
// original_source/pdfstamp/sign/validation.py's
// RevocationInfoValidationType.
type RevocationInfoValidationType int

const (
	// AdobeStyle sources revocation evidence from the signature's own
	// Adobe revocation-info-archival signed attribute.
	AdobeStyle RevocationInfoValidationType = iota
	// PAdESLT sources revocation evidence from the document's /DSS.
	PAdESLT
)

// ValidateFieldLTV implements validate_pdf_ltv_signature: a long-term-
// validation variant of ValidateField. It requires an embedded RFC 3161
// timestamp token and validates the signature as of that token's
// generation time, against either the Adobe-style revocation-info-archival
// attribute or the document's /DSS (per validationType) instead of
// whatever happens to be reachable when this function runs.
// policy.ForceRevInfo plays the role of the reference implementation's
// force_revinfo: when set, an empty revocation source is a hard failure
// rather than a silently-unverifiable path.
func ValidateFieldLTV(cache *xrefcache.Cache, root pdf.Value, field SignatureField, file io.ReaderAt, size int64, validationType RevocationInfoValidationType, opts *Options) (*Status, error) {
	if !field.HasValue {
		return nil, &EmptySignatureError{Field: field.Name}
	}
	policy, validator, logger := resolveOptions(opts)

	sigDict := field.Value
	subFilter := sigDict.Key("SubFilter").Name()
	if !supportedSubFilters[subFilter] {
		return nil, &UnsupportedSubFilterError{SubFilter: subFilter}
	}

	rawContents := []byte(sigDict.Key("Contents").RawString())
	p7, err := pkcs7.Parse(rawContents)
	if err != nil {
		return nil, &cms.StructuralError{Msg: fmt.Sprintf("parsing CMS SignedData: %v", err)}
	}
	if len(p7.Signers) != 1 {
		return nil, &cms.StructuralError{Msg: "CMS SignedData must carry exactly one signer-info"}
	}

	tst, ok := embeddedTimestampToken(p7)
	if !ok {
		return nil, fmt.Errorf("pdfvalidate: LTV signatures require a trusted timestamp")
	}
	genTime := tst.Time

	roots, err := policy.TrustPool()
	if err != nil {
		return nil, fmt.Errorf("pdfvalidate: %w", err)
	}

	var revInfo revocation.InfoArchival
	if validationType == AdobeStyle {
		_ = p7.UnmarshalSignedAttribute(oidRevocationInfoArchival, &revInfo)
	} else {
		_, dssCerts, dssRevInfo, err := dss.Read(root, nil)
		if err != nil && err != dss.ErrNoDSS {
			return nil, fmt.Errorf("pdfvalidate: reading /DSS: %w", err)
		}
		revInfo = dssRevInfo
		// The DSS's embedded certificates seed the path-building pool the
		// same way the reference implementation's DocumentSecurityStore
		// adds them to the validation context's "other certs": they are
		// not roots of trust in themselves, but they let a path be built
		// without needing every intermediate to also sit in the CMS's own
		// certificate set. See DESIGN.md for why this module keeps that
		// distinction blurred rather than adding a second pool parameter
		// to CertValidator.
		for _, c := range dssCerts {
			roots.AddCert(c)
		}
	}

	if policy.ForceRevInfo && !revInfoNonEmpty(revInfo) {
		return nil, fmt.Errorf("pdfvalidate: policy requires revocation info, but none was found")
	}

	br, err := parseByteRange(sigDict)
	if err != nil {
		return nil, err
	}
	byteRangeContent, err := readByteRange(br, file)
	if err != nil {
		return nil, fmt.Errorf("pdfvalidate: %w", err)
	}

	signedRevision := signedRevisionFor(cache, field.ValueRef)

	tsValidity, err := validateTimestampToken(tst, roots, validator, logger)
	if err != nil {
		return nil, fmt.Errorf("pdfvalidate: %w", err)
	}
	tsValidity.Valid = tsValidity.Valid && timestampHashMatches(tst, p7.Signers[0].EncryptedDigest)

	valCtx := &cms.ValidationContext{
		Roots:            roots,
		Time:             genTime,
		Revocation:       revInfo,
		RequiredKeyUsage: policy.RequiredKeyUsage(),
		RequiredEKUs:     policy.RequiredExtKeyUsages(),
	}
	p7.Content = byteRangeContent
	result, err := cms.Verify(p7, nil, valCtx, validator, logger)
	if err != nil {
		return nil, err
	}

	status := &Status{
		Intact:            result.Intact,
		Valid:             result.Valid,
		Trusted:           result.Trusted,
		Revoked:           result.Revoked,
		UsageOK:           result.UsageOK,
		SigningCert:       result.SignerCertificate,
		CAChain:           result.CAChain,
		ValidationPath:    result.Path,
		Mechanism:         result.Mechanism,
		DigestAlgorithm:   result.DigestAlgorithm,
		Warnings:          result.Warnings,
		SignedAt:          &genTime,
		TimestampValidity: tsValidity,
	}

	timestampFound := tsValidity.Valid && tsValidity.Trusted
	finishStatus(cache, field, file, size, signedRevision, br, len(rawContents), timestampFound, revInfoNonEmpty(revInfo), logger, status)

	return status, nil
}
