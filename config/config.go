// Package config reads the TOML validation policy file a caller of
// pdfvalidate can supply: trusted roots, required/allowed extended key
// usages, key-usage requirements, and the external-revocation-check
// settings spec.md's ambient stack calls for.
//
// Grounded in the teacher's own config package (config.go: Read(configfile)
// decoding a TOML file with github.com/BurntSushi/toml) and in
// verify/types.go's VerifyOptions / verify/keyusage.go's
// getVerificationEKUs, which supply the policy defaults below.
package config

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultLocation is the conventional path a CLI built on this module
// would look for a policy file, mirroring the teacher's
// config.DefaultLocation.
const DefaultLocation = "./pdfvalidate.conf"

// Policy is the root of the validation policy file.
type Policy struct {
	// TrustRoots lists filesystem paths to PEM-encoded root certificates.
	// Empty means the caller must supply a *x509.CertPool directly.
	TrustRoots []string `toml:"trust_roots"`

	// RequiredEKUs and AllowedEKUs name extended key usages by the short
	// strings recognized by ParseEKU ("document_signing", "email_protection",
	// "client_auth", "any"). Empty RequiredEKUs falls back to
	// DefaultPolicy's list at validation time.
	RequiredEKUs []string `toml:"required_ekus"`
	AllowedEKUs  []string `toml:"allowed_ekus"`

	RequireDigitalSignatureKU bool `toml:"require_digital_signature_ku"`
	RequireNonRepudiation     bool `toml:"require_non_repudiation"`

	// AllowUntrustedRoots mirrors the teacher's VerifyOptions field of the
	// same name: retry chain building against the CMS's own certificates
	// when TrustRoots does not yield a trusted path.
	AllowUntrustedRoots bool `toml:"allow_untrusted_roots"`

	// EnableExternalRevocationCheck turns on live OCSP/CRL fetches against
	// the URLs named in a certificate's AIA/CRL distribution point
	// extensions, instead of relying solely on embedded/DSS revocation
	// evidence.
	EnableExternalRevocationCheck bool `toml:"enable_external_revocation_check"`

	// HTTPTimeoutSeconds bounds external revocation fetches. Zero means the
	// 10 second default the teacher's VerifyOptions.HTTPTimeout documents.
	HTTPTimeoutSeconds int `toml:"http_timeout_seconds"`

	// MinRSAKeyBits rejects signatures made with weaker RSA keys than this
	// (spec.md §4.2's digest/mechanism enumeration never names a floor, so
	// zero disables the check).
	MinRSAKeyBits int `toml:"min_rsa_key_bits"`

	// ForceRevInfo requires every signature to carry usable revocation
	// evidence (embedded or DSS), the policy-level counterpart to the
	// "Adobe revinfo style LTV" scenario's force_revinfo flag (spec.md §8
	// scenario 5).
	ForceRevInfo bool `toml:"force_revinfo"`
}

// DefaultPolicy returns the policy a zero-value *Policy is equivalent to at
// validation time, mirroring the teacher's DefaultVerifyOptions(): Document
// Signing EKU required, Email Protection / Client Auth accepted as
// alternates, Digital Signature key usage required, Non-Repudiation not
// required.
func DefaultPolicy() *Policy {
	return &Policy{
		RequiredEKUs:              []string{EKUDocumentSigning},
		AllowedEKUs:               []string{EKUEmailProtection, EKUClientAuth},
		RequireDigitalSignatureKU: true,
		HTTPTimeoutSeconds:        10,
	}
}

// Load reads and decodes a TOML policy file. Unlike the teacher's
// config.Read, it returns an error instead of calling log.Fatal: this is a
// library, and the caller (e.g. a CLI built on top of it) decides how fatal
// a missing or malformed policy file is.
func Load(path string) (*Policy, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: policy file missing: %w", err)
	}

	p := DefaultPolicy()
	if _, err := toml.DecodeFile(path, p); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return p, nil
}

// HTTPTimeout returns the effective external-revocation-check timeout.
func (p *Policy) HTTPTimeout() time.Duration {
	if p == nil || p.HTTPTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.HTTPTimeoutSeconds) * time.Second
}

// TrustPool reads every PEM file named in TrustRoots and returns the
// resulting certificate pool, the value an orchestrator would pass as
// cms.ValidationContext.Roots.
func (p *Policy) TrustPool() (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if p == nil {
		return pool, nil
	}
	for _, path := range p.TrustRoots {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading trust root %s: %w", path, err)
		}
		rest := data
		added := false
		for {
			var block *pem.Block
			block, rest = pem.Decode(rest)
			if block == nil {
				break
			}
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("config: parsing trust root %s: %w", path, err)
			}
			pool.AddCert(cert)
			added = true
		}
		if !added {
			return nil, fmt.Errorf("config: %s contains no PEM certificates", path)
		}
	}
	return pool, nil
}

// RequiredKeyUsage folds the policy's key-usage flags into the
// crypto/x509.KeyUsage bitmask a CertValidator expects, mirroring
// verify/keyusage.go's validateKeyUsage checks.
func (p *Policy) RequiredKeyUsage() x509.KeyUsage {
	if p == nil {
		return x509.KeyUsageDigitalSignature
	}
	var ku x509.KeyUsage
	if p.RequireDigitalSignatureKU {
		ku |= x509.KeyUsageDigitalSignature
	}
	if p.RequireNonRepudiation {
		ku |= x509.KeyUsageContentCommitment
	}
	return ku
}

// RequiredExtKeyUsages returns RequiredEKUs parsed into x509.ExtKeyUsage
// values, falling back to DefaultPolicy's list when empty.
func (p *Policy) RequiredExtKeyUsages() []x509.ExtKeyUsage {
	if p == nil || len(p.RequiredEKUs) == 0 {
		return ParseEKUs(DefaultPolicy().RequiredEKUs)
	}
	return ParseEKUs(p.RequiredEKUs)
}

// AllowedExtKeyUsages returns AllowedEKUs parsed into x509.ExtKeyUsage
// values.
func (p *Policy) AllowedExtKeyUsages() []x509.ExtKeyUsage {
	if p == nil {
		return nil
	}
	return ParseEKUs(p.AllowedEKUs)
}
