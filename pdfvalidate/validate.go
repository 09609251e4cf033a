package pdfvalidate

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/certvalidator"
	"github.com/digitorus/pdfvalidate/cms"
	"github.com/digitorus/pdfvalidate/config"
	"github.com/digitorus/pdfvalidate/coverage"
	"github.com/digitorus/pdfvalidate/revocation"
	"github.com/digitorus/pdfvalidate/revisiondiff"
	"github.com/digitorus/pdfvalidate/seedvalue"
	"github.com/digitorus/pdfvalidate/xrefcache"
	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
)

// oidRevocationInfoArchival is the Adobe revocation-info-archival signed
// attribute OID (1.2.840.113583.1.1.8), the same one the teacher's
// verify.VerifySignature unmarshals into a revocation.InfoArchival.
var oidRevocationInfoArchival = asn1.ObjectIdentifier{1, 2, 840, 113583, 1, 1, 8}

// oidTimestampToken is the RFC 3161 id-aa-timeStampToken unsigned
// attribute OID (1.2.840.113549.1.9.16.2.14).
var oidTimestampToken = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14}

// supportedSubFilters is the closed set of signature encodings spec.md §6
// recognizes.
var supportedSubFilters = map[string]bool{
	seedvalue.SubFilterAdobePKCS7Detached: true,
	seedvalue.SubFilterPAdES:              true,
	seedvalue.SubFilterETSIRFC3161:        true,
}

func resolveOptions(opts *Options) (*config.Policy, cms.CertValidator, *log.Logger) {
	if opts == nil {
		opts = &Options{}
	}
	policy := opts.Policy
	if policy == nil {
		policy = config.DefaultPolicy()
	}
	validator := opts.Validator
	if validator == nil {
		validator = certvalidator.New()
	}
	return policy, validator, opts.Logger
}

// readByteRange reads the two (offset, length) spans a PDF signature's
// /ByteRange names as one contiguous buffer, mirroring the teacher's
// readByteRange (verify/signature.go), adapted to take an already-parsed
// coverage.ByteRange instead of re-reading the raw pdf.Value.
func readByteRange(br coverage.ByteRange, file io.ReaderAt) ([]byte, error) {
	content := make([]byte, br[1]+br[3])
	r := io.MultiReader(io.NewSectionReader(file, br[0], br[1]), io.NewSectionReader(file, br[2], br[3]))
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, fmt.Errorf("reading signed content: %w", err)
	}
	return content, nil
}

// parsePDFDate parses a PDF date string (D:YYYYMMDDHHmmSSOHH'mm'),
// mirroring the teacher's parseDate (verify/document.go).
func parsePDFDate(v string) (time.Time, error) {
	return time.Parse("D:20060102150405Z07'00'", v)
}

// embeddedTimestampToken looks for a signature-time-stamp token among a
// CMS signer's unauthenticated attributes, mirroring the teacher's
// processTimestamp (verify/signature.go).
func embeddedTimestampToken(p7 *pkcs7.PKCS7) (*timestamp.Timestamp, bool) {
	if len(p7.Signers) != 1 {
		return nil, false
	}
	for _, attr := range p7.Signers[0].UnauthenticatedAttributes {
		if !attr.Type.Equal(oidTimestampToken) {
			continue
		}
		ts, err := timestamp.Parse(attr.Value.Bytes)
		if err == nil {
			return ts, true
		}
	}
	return nil, false
}

// timestampHashMatches reports whether a timestamp token's MessageImprint
// matches the hash of signed, mirroring processTimestamp/VerifySignature's
// DocTimeStamp branch (verify/signature.go) hashing either the outer
// signature's encrypted digest or, for a DocTimeStamp field, the PDF bytes
// the timestamp itself covers.
func timestampHashMatches(ts *timestamp.Timestamp, signed []byte) bool {
	h := ts.HashAlgorithm.New()
	h.Write(signed)
	return bytes.Equal(h.Sum(nil), ts.HashedMessage)
}

// validateTimestampToken verifies an RFC 3161 token's own CMS signature
// via the same cms.Verify/CertValidator pipeline used for the PDF
// signature itself, requiring the TSA certificate's Digital Signature key
// usage and id-kp-timeStamping EKU, generalizing the teacher's
// validateTimestampCertificate (verify/certificate.go) from a bespoke
// crypto/x509.Verify call onto this module's own CertValidator.
func validateTimestampToken(ts *timestamp.Timestamp, roots *x509.CertPool, validator cms.CertValidator, logger *log.Logger) (*TimestampValidity, error) {
	p7, err := pkcs7.Parse(ts.RawToken)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp token: %w", err)
	}
	valCtx := &cms.ValidationContext{
		Roots:            roots,
		Time:             ts.Time,
		RequiredKeyUsage: x509.KeyUsageDigitalSignature,
		RequiredEKUs:     []x509.ExtKeyUsage{x509.ExtKeyUsageTimeStamping},
	}
	result, err := cms.Verify(p7, nil, valCtx, validator, logger)
	if err != nil {
		return nil, err
	}
	return &TimestampValidity{
		Valid:              result.Valid,
		Trusted:            result.Trusted,
		GenTime:            ts.Time,
		SigningCertificate: result.SignerCertificate,
	}, nil
}

func revInfoNonEmpty(r revocation.InfoArchival) bool {
	return len(r.CRL) > 0 || len(r.OCSP) > 0
}

// seedvalueSpecFor parses a form field's /SV seed value dictionary, if
// any.
func seedvalueSpecFor(fieldDict pdf.Value) (*seedvalue.Spec, error) {
	sv := fieldDict.Key("SV")
	if sv.IsNull() {
		return nil, nil
	}
	return seedvalue.ParseSpec(sv)
}

// finishStatus fills in the parts of Status common to ValidateField and
// ValidateFieldLTV once the signature's own cryptographic/trust outcome
// is already recorded on status: the coverage classification, the
// revision-diff modification level, the docmdp_ok rule (spec.md §8
// invariant 3), and the seed value enforcer (spec.md §4.5).
func finishStatus(cache *xrefcache.Cache, field SignatureField, file io.ReaderAt, size int64, signedRevision int, br coverage.ByteRange, contentsLen int, timestampFound, revocationInfoFound bool, logger *log.Logger, status *Status) {
	status.Coverage = coverage.Classify(file, size, br, contentsLen, signedRevision, cache)
	status.ModificationLevel = revisiondiff.Evaluate(cache, signedRevision, logger)
	status.DocMDPOK = docMDPOK(status.ModificationLevel, docMDPPerm(field.Value))

	svSpec, err := seedvalueSpecFor(field.Dict)
	switch {
	case err != nil:
		status.Warnings = append(status.Warnings, "parsing seed value: "+err.Error())
		status.SeedValueOK = true
	case svSpec == nil:
		status.SeedValueOK = true
	default:
		reason := field.Value.Key("Reason")
		svCtx := seedvalue.Context{
			SignerCertificate:   status.SigningCert,
			ValidationPath:      status.ValidationPath,
			TimestampFound:      timestampFound,
			DigestAlgorithm:     status.DigestAlgorithm,
			SubFilter:           field.Value.Key("SubFilter").Name(),
			Reason:              reason.Text(),
			ReasonPresent:       !reason.IsNull(),
			RevocationInfoFound: revocationInfoFound,
		}
		if err := seedvalue.Enforce(svSpec, svCtx); err != nil {
			status.SeedValueOK = false
			status.Warnings = append(status.Warnings, "seed value: "+err.Error())
		} else {
			status.SeedValueOK = true
		}
	}
}

func parseByteRange(sigDict pdf.Value) (coverage.ByteRange, error) {
	var br coverage.ByteRange
	brVal := sigDict.Key("ByteRange")
	if brVal.Len() != 4 {
		return br, &cms.StructuralError{Msg: "/ByteRange must have exactly 4 entries"}
	}
	for i := 0; i < 4; i++ {
		br[i] = brVal.Index(i).Int64()
	}
	return br, nil
}

// ValidateField implements validate_pdf_signature: it validates the
// single signature held by field's /V entry against cache (the
// xrefcache.Cache for the whole underlying file) and returns the
// aggregate Status spec.md §6 names. Revocation evidence comes only from
// the signature's own Adobe revocation-info-archival attribute; for
// long-term validation against the document's /DSS, use
// ValidateFieldLTV instead.
func ValidateField(cache *xrefcache.Cache, field SignatureField, file io.ReaderAt, size int64, opts *Options) (*Status, error) {
	if !field.HasValue {
		return nil, &EmptySignatureError{Field: field.Name}
	}
	policy, validator, logger := resolveOptions(opts)

	roots, err := policy.TrustPool()
	if err != nil {
		return nil, fmt.Errorf("pdfvalidate: %w", err)
	}

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

	br, err := parseByteRange(sigDict)
	if err != nil {
		return nil, err
	}
	byteRangeContent, err := readByteRange(br, file)
	if err != nil {
		return nil, fmt.Errorf("pdfvalidate: %w", err)
	}

	signedRevision := signedRevisionFor(cache, field.ValueRef)

	var revInfo revocation.InfoArchival
	_ = p7.UnmarshalSignedAttribute(oidRevocationInfoArchival, &revInfo)

	valCtx := &cms.ValidationContext{
		Roots:            roots,
		Revocation:       revInfo,
		RequiredKeyUsage: policy.RequiredKeyUsage(),
		RequiredEKUs:     policy.RequiredExtKeyUsages(),
	}

	status := &Status{}
	var tsValidity *TimestampValidity
	var signedAt *time.Time

	if subFilter == seedvalue.SubFilterETSIRFC3161 {
		// DocTimeStamp: p7.Content already holds the encapsulated TSTInfo.
		// "Intact" means the timestamp's MessageImprint matches the PDF
		// bytes it covers, not the usual message_digest signed attribute
		// (mirroring the teacher's isDocTimeStamp branch).
		ts, err := timestamp.Parse(rawContents)
		if err != nil {
			return nil, fmt.Errorf("pdfvalidate: parsing TSTInfo: %w", err)
		}
		intact := timestampHashMatches(ts, byteRangeContent)

		result, err := cms.Verify(p7, nil, valCtx, validator, logger)
		if err != nil {
			return nil, err
		}
		status.Intact = intact
		status.Valid = intact && result.Valid
		status.Trusted = result.Trusted
		status.Revoked = result.Revoked
		status.UsageOK = result.UsageOK
		status.SigningCert = result.SignerCertificate
		status.CAChain = result.CAChain
		status.ValidationPath = result.Path
		status.Mechanism = result.Mechanism
		status.DigestAlgorithm = result.DigestAlgorithm
		status.Warnings = result.Warnings
		gen := ts.Time
		signedAt = &gen
	} else {
		// Detached signature: the CMS SignedData carries no content of its
		// own, so p7.Content is populated from the PDF's /ByteRange before
		// verifying, matching the teacher's processByteRange.
		p7.Content = byteRangeContent
		result, err := cms.Verify(p7, nil, valCtx, validator, logger)
		if err != nil {
			return nil, err
		}
		status.Intact = result.Intact
		status.Valid = result.Valid
		status.Trusted = result.Trusted
		status.Revoked = result.Revoked
		status.UsageOK = result.UsageOK
		status.SigningCert = result.SignerCertificate
		status.CAChain = result.CAChain
		status.ValidationPath = result.Path
		status.Mechanism = result.Mechanism
		status.DigestAlgorithm = result.DigestAlgorithm
		status.Warnings = result.Warnings

		if m := sigDict.Key("M"); !m.IsNull() {
			if t, err := parsePDFDate(m.Text()); err == nil {
				signedAt = &t
			}
		}

		if tst, ok := embeddedTimestampToken(p7); ok {
			tsv, err := validateTimestampToken(tst, roots, validator, logger)
			if err == nil {
				tsv.Valid = tsv.Valid && timestampHashMatches(tst, p7.Signers[0].EncryptedDigest)
				tsValidity = tsv
			} else if logger != nil {
				logger.Printf("pdfvalidate: embedded timestamp token: %v", err)
			}
		}
	}
	status.SignedAt = signedAt
	status.TimestampValidity = tsValidity

	timestampFound := tsValidity != nil && tsValidity.Valid && tsValidity.Trusted
	finishStatus(cache, field, file, size, signedRevision, br, len(rawContents), timestampFound, revInfoNonEmpty(revInfo), logger, status)

	return status, nil
}

// ValidateAll enumerates every signature field reachable from the
// document's /AcroForm field tree and validates each with ValidateField,
// in field-tree order.
func ValidateAll(r io.ReaderAt, size int64, opts *Options) ([]*Status, error) {
	cache, err := xrefcache.Scan(r, size)
	if err != nil {
		return nil, err
	}
	reader, err := cache.Reader(cache.Count() - 1)
	if err != nil {
		return nil, err
	}
	root := reader.Trailer().Key("Root")

	fields, err := FindSignatureFields(root)
	if err != nil {
		return nil, err
	}

	statuses := make([]*Status, 0, len(fields))
	for _, f := range fields {
		st, err := ValidateField(cache, f, r, size, opts)
		if err != nil {
			return nil, fmt.Errorf("pdfvalidate: field %q: %w", f.Name, err)
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
