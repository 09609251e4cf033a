// Package cms implements the CMSVerifier component of spec.md §4.2: it
// decodes a CMS SignedData (as already parsed by github.com/digitorus/pkcs7),
// locates the single signer, computes or accepts a message digest, verifies
// the signature over the signed-attributes blob, and asks an injected
// CertValidator for the signer's usage/trust status.
package cms

import (
	"bytes"
	"crypto/x509"
	"encoding/asn1"
	"log"
	"math/big"

	"github.com/digitorus/pkcs7"
)

// oidMessageDigest is the id-messageDigest signed attribute OID
// (1.2.840.113549.1.9.4), the required signed attribute this system reads
// the embedded content digest from (spec.md §3: "a digest algorithm, signed
// attributes (must contain message_digest)").
var oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}

// Verify runs the CMSVerifier algorithm against an already-parsed CMS
// SignedData. p7.Content must already hold the encapsulated content bytes
// (the PDF's ByteRange content, for a detached signature) before calling
// this, exactly as the teacher's verify.processByteRange populates it
// before calling p7.Verify()/p7.VerifyWithChain().
//
// rawDigest may be supplied by the caller when it has already been
// computed (e.g. SignatureOrchestrator computing it once to share between
// coverage and CMS verification); pass nil to have it computed here from
// p7.Content under the signer's digest algorithm.
//
// Structural and unsupported-mechanism failures are returned as errors, per
// spec.md §4.2 points 1 and 6. Cryptographic and trust failures are never
// returned as errors — they are recorded on the returned Result, matching
// "never throws on cryptographic failure (reports via fields)".
func Verify(p7 *pkcs7.PKCS7, rawDigest []byte, valCtx *ValidationContext, validator CertValidator, logger *log.Logger) (*Result, error) {
	if len(p7.Signers) != 1 {
		return nil, &StructuralError{Msg: "CMS SignedData must carry exactly one signer-info"}
	}
	si := p7.Signers[0]

	signerCert, caChain, err := partitionCerts(p7.Certificates, si.IssuerAndSerialNumber.IssuerName.FullBytes, si.IssuerAndSerialNumber.SerialNumber)
	if err != nil {
		return nil, err
	}

	digestAlgName, digestHash, ok := digestName(si.DigestAlgorithm.Algorithm)
	if !ok {
		return nil, &UnsupportedMechanismError{Mechanism: si.DigestAlgorithm.Algorithm.String()}
	}

	mechanism, _, ok := mechanismFor(si.DigestEncryptionAlgorithm.Algorithm, si.DigestAlgorithm.Algorithm)
	if !ok {
		return nil, &UnsupportedMechanismError{Mechanism: si.DigestEncryptionAlgorithm.Algorithm.String()}
	}

	result := &Result{
		SignerCertificate: signerCert,
		CAChain:           caChain,
		DigestAlgorithm:   digestAlgName,
		Mechanism:         mechanism,
	}

	if rawDigest == nil {
		h := digestHash.New()
		h.Write(p7.Content)
		rawDigest = h.Sum(nil)
	}

	var embeddedDigest []byte
	if err := p7.UnmarshalSignedAttribute(oidMessageDigest, &embeddedDigest); err != nil {
		result.Warnings = append(result.Warnings, "message_digest signed attribute missing or malformed")
	}
	result.Intact = embeddedDigest != nil && bytes.Equal(rawDigest, embeddedDigest)

	if result.Intact {
		// The signature value is verified over the DER re-encoding of
		// the signed attributes; github.com/digitorus/pkcs7 (like the
		// teacher's own verify.verifySignature) performs that
		// re-encoding and digest/signature check together.
		if err := p7.Verify(); err == nil {
			result.Valid = true
		} else {
			result.Warnings = append(result.Warnings, "signature verification failed: "+err.Error())
		}
	}

	if result.Valid {
		requiredKeyUsage := valCtx.RequiredKeyUsage
		if requiredKeyUsage == 0 {
			requiredKeyUsage = x509.KeyUsageContentCommitment
		}
		vr, err := validator.Validate(signerCert, caChain, requiredKeyUsage, valCtx.RequiredEKUs, valCtx)
		if err != nil {
			if logger != nil {
				logger.Printf("cms: certificate validation failed: %v", err)
			}
			result.Warnings = append(result.Warnings, "certificate validation failed: "+err.Error())
		} else {
			result.Trusted = vr.Trusted
			result.Revoked = vr.Revoked
			result.UsageOK = vr.UsageOK
			result.Path = vr.Path
		}
	}

	return result, nil
}

// partitionCerts locates the signer's certificate by issuer+serial against
// the single signer-info (spec.md §4.2 point 1), and returns the remainder
// of the certificate set as the CA chain (point 2).
func partitionCerts(certs []*x509.Certificate, issuerRaw []byte, serial *big.Int) (*x509.Certificate, []*x509.Certificate, error) {
	var signerCert *x509.Certificate
	var caChain []*x509.Certificate

	for _, c := range certs {
		if serial != nil && c.SerialNumber.Cmp(serial) == 0 && bytes.Equal(c.RawIssuer, issuerRaw) {
			signerCert = c
			continue
		}
		caChain = append(caChain, c)
	}

	if signerCert == nil {
		return nil, nil, &StructuralError{Msg: "signer certificate not included in CMS certificate set"}
	}
	return signerCert, caChain, nil
}
