package common

import (
	"crypto/x509/pkix"
	"math/big"
)

// SignatureCoverageLevel classifies how much of the file a signature's
// byte range cryptographically covers.
type SignatureCoverageLevel int

const (
	// CoverageUnclear means the byte range is disconnected or nonstandard.
	CoverageUnclear SignatureCoverageLevel = iota
	// CoverageContiguousBlockFromStart means the signature covers a single
	// block from byte zero up to the signature contents.
	CoverageContiguousBlockFromStart
	// CoverageEntireRevision means the signature covers its own revision,
	// but later incremental updates may exist.
	CoverageEntireRevision
	// CoverageEntireFile means the signature covers the whole file.
	CoverageEntireFile
)

func (l SignatureCoverageLevel) String() string {
	switch l {
	case CoverageUnclear:
		return "UNCLEAR"
	case CoverageContiguousBlockFromStart:
		return "CONTIGUOUS_BLOCK_FROM_START"
	case CoverageEntireRevision:
		return "ENTIRE_REVISION"
	case CoverageEntireFile:
		return "ENTIRE_FILE"
	default:
		return "UNKNOWN"
	}
}

// ModificationLevel classifies the severity of post-signature modifications
// found by the revision diff auditor. OTHER is a poison value: once a
// revision reaches it, the signature is considered invalid regardless of
// cryptographic integrity.
type ModificationLevel int

const (
	ModNone ModificationLevel = iota
	ModLTAUpdates
	ModFormFilling
	ModAnnotations
	ModOther
)

func (m ModificationLevel) String() string {
	switch m {
	case ModNone:
		return "NONE"
	case ModLTAUpdates:
		return "LTA_UPDATES"
	case ModFormFilling:
		return "FORM_FILLING"
	case ModAnnotations:
		return "ANNOTATIONS"
	case ModOther:
		return "OTHER"
	default:
		return "UNKNOWN"
	}
}

// DocMDPPerm is the signer-declared permission level extracted from a
// signature's /DocMDP transform parameters.
type DocMDPPerm int

const (
	_ DocMDPPerm = iota
	DocMDPNoChanges
	DocMDPFillForms
	DocMDPAnnotate
)

// MaxModificationLevel returns the highest ModificationLevel a given DocMDP
// permission tolerates before a signature is considered illegally modified.
func (p DocMDPPerm) MaxModificationLevel() ModificationLevel {
	switch p {
	case DocMDPNoChanges:
		return ModLTAUpdates
	case DocMDPFillForms:
		return ModFormFilling
	case DocMDPAnnotate:
		return ModAnnotations
	default:
		return ModAnnotations
	}
}

// IssuerSerial is the (issuer distinguished name, serial number) pair used
// throughout this module as the unique key for a certificate, matching how
// CMS SignerInfo identifies its signer (spec: "signer certificate in the
// CMS must be identified by issuer name + serial number").
type IssuerSerial struct {
	Issuer string // pkix.Name.String() of the raw issuer RDN sequence
	Serial string // big.Int decimal string
}

// NewIssuerSerial builds an IssuerSerial key from a raw issuer RDN sequence
// (as found in an X.509 certificate or a CMS IssuerAndSerialNumber) and a
// serial number.
func NewIssuerSerial(issuer pkix.Name, serial *big.Int) IssuerSerial {
	s := "0"
	if serial != nil {
		s = serial.String()
	}
	return IssuerSerial{Issuer: issuer.String(), Serial: s}
}
