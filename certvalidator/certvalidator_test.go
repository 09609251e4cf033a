package certvalidator

import (
	"crypto/x509"
	"testing"
	"time"

	"github.com/digitorus/pdfvalidate/cms"
	"github.com/digitorus/pdfvalidate/internal/testpki"
	"github.com/digitorus/pdfvalidate/revocation"
)

func TestValidateTrustedChain(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()

	_, leaf := pki.IssueLeaf("leaf.example")

	roots := x509.NewCertPool()
	roots.AddCert(pki.RootCert)

	valCtx := &cms.ValidationContext{
		Roots: roots,
		Time:  time.Now(),
	}

	v := New()
	result, err := v.Validate(leaf, pki.Chain(), 0, nil, valCtx)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Trusted {
		t.Fatalf("expected chain to be trusted against its own root pool")
	}
	if result.Revoked {
		t.Fatalf("expected fresh leaf to not be revoked")
	}
	if len(result.Path) == 0 {
		t.Fatalf("expected a non-empty verified path")
	}
}

func TestValidateUntrustedRootsRejectedByDefault(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()

	_, leaf := pki.IssueLeaf("leaf.example")

	valCtx := &cms.ValidationContext{
		Roots: x509.NewCertPool(), // empty: leaf's real root is not trusted
		Time:  time.Now(),
	}

	v := New()
	result, err := v.Validate(leaf, pki.Chain(), 0, nil, valCtx)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Trusted {
		t.Fatalf("expected chain verification to fail against an empty root pool")
	}
}

func TestValidateAllowUntrustedRootsFallsBackToEmbedded(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()

	_, leaf := pki.IssueLeaf("leaf.example")

	valCtx := &cms.ValidationContext{
		Roots: x509.NewCertPool(),
		Time:  time.Now(),
	}

	v := &Default{AllowUntrustedRoots: true}
	result, err := v.Validate(leaf, pki.Chain(), 0, nil, valCtx)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if result.Trusted {
		t.Fatalf("embedded-certificate fallback must never report Trusted")
	}
	if len(result.Path) == 0 {
		t.Fatalf("expected embedded-certificate fallback to still produce a path")
	}
}

func TestValidateRevokedByEmbeddedCRL(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()

	_, leaf := pki.IssueLeaf("leaf.example")
	leaf.SerialNumber.SetInt64(9999) // matches testpki's revoked serial

	roots := x509.NewCertPool()
	roots.AddCert(pki.RootCert)

	var revInfo revocation.InfoArchival
	if err := revInfo.AddCRL(pki.CRLBytes); err != nil {
		t.Fatalf("AddCRL: %v", err)
	}

	valCtx := &cms.ValidationContext{
		Roots:      roots,
		Time:       time.Now(),
		Revocation: revInfo,
	}

	v := New()
	result, err := v.Validate(leaf, pki.Chain(), 0, nil, valCtx)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if !result.Revoked {
		t.Fatalf("expected certificate with a serial number in the embedded CRL to be revoked")
	}
}

func TestKeyUsageOK(t *testing.T) {
	cert := &x509.Certificate{KeyUsage: x509.KeyUsageDigitalSignature}

	if !keyUsageOK(cert, 0) {
		t.Fatalf("no required key usage should always pass")
	}
	if !keyUsageOK(cert, x509.KeyUsageDigitalSignature) {
		t.Fatalf("expected digital signature key usage to be present")
	}
	if keyUsageOK(cert, x509.KeyUsageContentCommitment) {
		t.Fatalf("expected missing non-repudiation key usage to fail")
	}
}

func TestExtKeyUsageOK(t *testing.T) {
	documentSigning := &x509.Certificate{ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsage(36)}}
	if !extKeyUsageOK(documentSigning, nil) {
		t.Fatalf("expected Document Signing EKU to satisfy the default required set")
	}

	serverAuth := &x509.Certificate{ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}}
	if extKeyUsageOK(serverAuth, nil) {
		t.Fatalf("expected server-auth-only certificate to fail the default required set")
	}
	if !extKeyUsageOK(serverAuth, []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}) {
		t.Fatalf("expected an explicitly required EKU present on the cert to pass")
	}
}
