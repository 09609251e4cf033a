package cms

import (
	"crypto"
	"encoding/asn1"
)

// Well-known digest and signature-algorithm OIDs this system recognizes.
// Kept local rather than imported from github.com/digitorus/pkcs7 because
// the signature mechanism allowlist in spec.md §4.2/§6 is a closed set this
// system owns and enforces itself, independent of whatever algorithms the
// CMS parser happens to also understand.
var (
	oidDigestSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidDigestSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidDigestSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidDigestSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}

	oidSignatureRSA        = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSignatureSHA1RSA    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	oidSignatureSHA256RSA  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSignatureSHA384RSA  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	oidSignatureSHA512RSA  = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
)

// Mechanism is one of the five RSA-based CMS signature mechanisms this
// system implements (spec.md §4.2 point 6, §6 "Supported signature
// mechanisms").
type Mechanism string

const (
	MechRSASSAPKCS1v15 Mechanism = "rsassa_pkcs1v15"
	MechSHA1RSA        Mechanism = "sha1_rsa"
	MechSHA256RSA      Mechanism = "sha256_rsa"
	MechSHA384RSA      Mechanism = "sha384_rsa"
	MechSHA512RSA      Mechanism = "sha512_rsa"
)

func digestName(oid asn1.ObjectIdentifier) (string, crypto.Hash, bool) {
	switch {
	case oid.Equal(oidDigestSHA1):
		return "sha1", crypto.SHA1, true
	case oid.Equal(oidDigestSHA256):
		return "sha256", crypto.SHA256, true
	case oid.Equal(oidDigestSHA384):
		return "sha384", crypto.SHA384, true
	case oid.Equal(oidDigestSHA512):
		return "sha512", crypto.SHA512, true
	default:
		return "", 0, false
	}
}

// mechanismFor derives the Mechanism and the hash algorithm to verify the
// signature value under, from the CMS signature-encryption-algorithm OID
// and (for the bare rsaEncryption OID, which carries no hash of its own)
// the digest-algorithm OID.
//
// spec.md: "verify RSA-PKCS1v1.5 over the re-encoded signed-attrs blob ...
// under the algorithm's hash (fall back to the digest algorithm if the
// signature algorithm does not declare its own)".
func mechanismFor(sigAlgOID, digestAlgOID asn1.ObjectIdentifier) (Mechanism, crypto.Hash, bool) {
	switch {
	case sigAlgOID.Equal(oidSignatureSHA1RSA):
		return MechSHA1RSA, crypto.SHA1, true
	case sigAlgOID.Equal(oidSignatureSHA256RSA):
		return MechSHA256RSA, crypto.SHA256, true
	case sigAlgOID.Equal(oidSignatureSHA384RSA):
		return MechSHA384RSA, crypto.SHA384, true
	case sigAlgOID.Equal(oidSignatureSHA512RSA):
		return MechSHA512RSA, crypto.SHA512, true
	case sigAlgOID.Equal(oidSignatureRSA):
		_, h, ok := digestName(digestAlgOID)
		if !ok {
			return "", 0, false
		}
		return MechRSASSAPKCS1v15, h, true
	default:
		return "", 0, false
	}
}
