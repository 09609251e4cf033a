package seedvalue

import (
	"crypto/x509"
	"fmt"

	"github.com/digitorus/pdfvalidate/common"
)

// Satisfies implements SigCertConstraints.satisfied_by: it assumes key
// usage and trust have already been checked by the CMS verifier, and only
// evaluates the SUBJECT/ISSUER/SUBJECT_DN constraints this module
// supports (OID and KEY_USAGE constraints are not implemented: spec.md
// §3's seed-value data model lists them among the enforcement flags, but
// §4.5's enforcement algorithm never mentions validating them).
func (c *CertConstraints) Satisfies(signer *x509.Certificate, validationPath []*x509.Certificate) error {
	if c.Flags.has(CertFlagSubject) && c.Subjects != nil {
		want := common.NewIssuerSerial(signer.Issuer, signer.SerialNumber)
		ok := false
		for _, s := range c.Subjects {
			if common.NewIssuerSerial(s.Issuer, s.SerialNumber) == want {
				ok = true
				break
			}
		}
		if !ok {
			return unacceptableSigner("signer certificate not on SVCert whitelist")
		}
	}

	if c.Flags.has(CertFlagIssuer) && c.Issuers != nil {
		if len(validationPath) == 0 {
			return unacceptableSigner("validation path not provided")
		}
		// Every certificate in the path except the signer itself (the
		// first entry) is eligible, matching
		// "validation_path.copy().pop()" excluding the leaf.
		pathIssuerSerials := map[common.IssuerSerial]bool{}
		for _, entry := range validationPath[1:] {
			pathIssuerSerials[common.NewIssuerSerial(entry.Issuer, entry.SerialNumber)] = true
		}
		ok := false
		for _, issuer := range c.Issuers {
			if pathIssuerSerials[common.NewIssuerSerial(issuer.Issuer, issuer.SerialNumber)] {
				ok = true
				break
			}
		}
		if !ok {
			return unacceptableSigner("signer certificate cannot be traced back to approved issuer")
		}
	}

	if c.Flags.has(CertFlagSubjectDN) && len(c.SubjectDN) > 0 {
		signerAttrs := map[string]string{}
		for _, atv := range signer.Subject.Names {
			signerAttrs[atv.Type.String()] = fmt.Sprintf("%v", atv.Value)
		}
		for _, want := range c.SubjectDN {
			got, ok := signerAttrs[want.OID]
			if !ok || got != want.Value {
				return unacceptableSigner(fmt.Sprintf("subject does not have required attribute %s=%s", want.OID, want.Value))
			}
		}
	}

	return nil
}
