// Package certvalidator provides the default cms.CertValidator shipped with
// this module: it chains the signer certificate via crypto/x509.Certificate.Verify
// against a caller-supplied root pool plus the CMS's own certificate set
// (deduplicated through a certstore.Store) as intermediates, checks the
// requested key usage and extended key usage, and consults any embedded
// revocation evidence for the path.
//
// Grounded in the teacher's verify/certificate.go (chain building, trusted-vs-
// embedded-roots fallback) and verify/keyusage.go (Key Usage / Extended Key
// Usage enforcement for PDF signing certificates).
package certvalidator

import (
	"crypto/x509"

	"github.com/digitorus/pdfvalidate/certstore"
	"github.com/digitorus/pdfvalidate/cms"
	"github.com/digitorus/pdfvalidate/common"
)

// Default is the built-in CertValidator. AllowUntrustedRoots mirrors the
// teacher's VerifyOptions field of the same name: when the signer cannot be
// chained to valCtx.Roots, retry once against a pool built purely from the
// CMS's own certificate set (self-signed or private-CA deployments).
type Default struct {
	AllowUntrustedRoots bool
}

// New returns a Default validator with AllowUntrustedRoots disabled.
func New() *Default {
	return &Default{}
}

func (d *Default) Validate(signer *x509.Certificate, intermediates []*x509.Certificate, requiredKeyUsage x509.KeyUsage, requiredEKUs []x509.ExtKeyUsage, valCtx *cms.ValidationContext) (*cms.ValidationResult, error) {
	result := &cms.ValidationResult{}

	result.UsageOK = keyUsageOK(signer, requiredKeyUsage) && extKeyUsageOK(signer, requiredEKUs)

	// A CMS's certificate set routinely repeats the same intermediate
	// across signer infos (e.g. every signature field in the document
	// chaining to the same issuing CA); dedup through a certstore before
	// handing the set to x509.Verify as intermediates.
	embedded := certstore.New()
	embedded.Register(signer)
	embedded.RegisterMultiple(intermediates)

	embeddedPool := x509.NewCertPool()
	embedded.Iterate(func(_ common.IssuerSerial, c *x509.Certificate) {
		embeddedPool.AddCert(c)
	})

	ekus := requiredEKUs
	if len(ekus) == 0 {
		ekus = defaultVerificationEKUs()
	}

	opts := x509.VerifyOptions{
		Roots:         valCtx.Roots,
		Intermediates: embeddedPool,
		KeyUsages:     ekus,
	}
	if !valCtx.Time.IsZero() {
		opts.CurrentTime = valCtx.Time
	}

	chains, err := signer.Verify(opts)
	trusted := err == nil
	if err != nil && d.AllowUntrustedRoots {
		altOpts := opts
		altOpts.Roots = embeddedPool
		if altChains, altErr := signer.Verify(altOpts); altErr == nil {
			chains = altChains
			err = nil
			// trusted stays false: this only verified against
			// certificates the CMS itself supplied, not a real root.
		}
	}
	if err != nil {
		return result, nil
	}

	path := chains[0]
	result.Trusted = trusted
	result.Path = path

	for i, c := range path {
		var issuer *x509.Certificate
		if i+1 < len(path) {
			issuer = path[i+1]
		}
		if valCtx.Revocation.IsRevoked(c, issuer) {
			result.Revoked = true
			break
		}
	}

	return result, nil
}

func keyUsageOK(cert *x509.Certificate, required x509.KeyUsage) bool {
	if required == 0 {
		return true
	}
	return cert.KeyUsage&required != 0
}

func extKeyUsageOK(cert *x509.Certificate, required []x509.ExtKeyUsage) bool {
	if len(required) == 0 {
		required = defaultVerificationEKUs()
	}
	for _, want := range required {
		for _, have := range cert.ExtKeyUsage {
			if have == want {
				return true
			}
		}
	}
	return false
}

// defaultVerificationEKUs mirrors the teacher's getVerificationEKUs(): the
// Document Signing EKU per RFC 9336 plus two common alternatives seen in the
// wild. ExtKeyUsageAny is deliberately excluded, matching the teacher's
// comment that it would make the others redundant.
func defaultVerificationEKUs() []x509.ExtKeyUsage {
	return []x509.ExtKeyUsage{
		x509.ExtKeyUsage(36),
		x509.ExtKeyUsageEmailProtection,
		x509.ExtKeyUsageClientAuth,
	}
}
