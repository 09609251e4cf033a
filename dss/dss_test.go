package dss

import (
	"bytes"
	"crypto/x509"
	"fmt"
	"testing"
	"time"

	"golang.org/x/crypto/ocsp"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/internal/testpki"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// fakeAllocator records every allocation so tests can assert on ref
// freshness/dedup without needing a real incremental PDF writer.
type fakeAllocator struct {
	nextID uint32
	vris   map[xrefcache.ObjectRef]VRI
}

func newFakeAllocator() *fakeAllocator {
	return &fakeAllocator{nextID: 100, vris: map[xrefcache.ObjectRef]VRI{}}
}

func (a *fakeAllocator) AllocateStream(data []byte) xrefcache.ObjectRef {
	a.nextID++
	return xrefcache.ObjectRef{ID: a.nextID, Gen: 0}
}

func (a *fakeAllocator) AllocateVRI(v VRI) xrefcache.ObjectRef {
	a.nextID++
	ref := xrefcache.ObjectRef{ID: a.nextID, Gen: 0}
	a.vris[ref] = v
	return ref
}

func TestIdentifierIsUppercaseHexSHA1(t *testing.T) {
	id := Identifier([]byte("hello"))
	if len(id) != 40 {
		t.Fatalf("Identifier() length = %d, want 40", len(id))
	}
	for _, c := range id {
		if c >= 'a' && c <= 'z' {
			t.Fatalf("Identifier() = %q, want uppercase", id)
		}
	}
}

func TestRegisterVRIDedupsCertsAndOCSP(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()

	_, leaf := pki.IssueLeaf("leaf.example")
	path := append([]*x509.Certificate{leaf}, pki.Chain()...)

	issuerCert := pki.IntermediateCerts[len(pki.IntermediateCerts)-1]
	issuerKey := pki.IntermediateKeys[len(pki.IntermediateKeys)-1]
	template := ocsp.Response{
		Status:       ocsp.Good,
		SerialNumber: leaf.SerialNumber,
		ThisUpdate:   time.Now(),
		NextUpdate:   time.Now().Add(time.Hour),
	}
	ocspBytes, err := ocsp.CreateResponse(issuerCert, issuerCert, template, issuerKey)
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}

	alloc := newFakeAllocator()
	s := New(alloc)

	material := RevocationMaterial{OCSPs: [][]byte{ocspBytes}, CRLs: [][]byte{pki.CRLBytes}}

	id := Identifier([]byte("signature contents 1"))
	ref1, err := s.RegisterVRI(id, [][]*x509.Certificate{path}, material)
	if err != nil {
		t.Fatalf("RegisterVRI: %v", err)
	}
	if s.VRIEntries[id] != ref1 {
		t.Fatalf("VRIEntries[%s] = %v, want %v", id, s.VRIEntries[id], ref1)
	}
	if len(s.Certs) != len(path) {
		t.Fatalf("Certs = %d entries, want %d", len(s.Certs), len(path))
	}
	if len(s.OCSPs) != 1 || len(s.CRLs) != 1 {
		t.Fatalf("OCSPs/CRLs = %d/%d, want 1/1", len(s.OCSPs), len(s.CRLs))
	}

	// Registering a second VRI for the same signer and the same
	// OCSP/CRL bytes must not grow the dedup tables.
	id2 := Identifier([]byte("signature contents 2"))
	if _, err := s.RegisterVRI(id2, [][]*x509.Certificate{path}, material); err != nil {
		t.Fatalf("RegisterVRI: %v", err)
	}
	if len(s.Certs) != len(path) {
		t.Fatalf("Certs after second registration = %d, want %d (no new certs)", len(s.Certs), len(path))
	}
	if len(s.OCSPs) != 1 || len(s.CRLs) != 1 {
		t.Fatalf("OCSPs/CRLs after second registration = %d/%d, want 1/1 (deduped)", len(s.OCSPs), len(s.CRLs))
	}
	if len(s.VRIEntries) != 2 {
		t.Fatalf("VRIEntries = %d, want 2", len(s.VRIEntries))
	}
}

func TestRegisterVRINoAllocatorFails(t *testing.T) {
	s := New(nil)
	_, err := s.RegisterVRI("ID", nil, RevocationMaterial{})
	if err != ErrNoAllocator {
		t.Fatalf("RegisterVRI() = %v, want ErrNoAllocator", err)
	}
}

func TestWriteBackOmitsEmptyOCSPsAndCRLs(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()
	_, leaf := pki.IssueLeaf("leaf.example")

	alloc := newFakeAllocator()
	s := New(alloc)
	if _, err := s.RegisterVRI(Identifier([]byte("x")), [][]*x509.Certificate{{leaf}}, RevocationMaterial{}); err != nil {
		t.Fatalf("RegisterVRI: %v", err)
	}

	snap := s.WriteBack()
	if snap.OCSPs != nil {
		t.Fatalf("WriteBack().OCSPs = %v, want nil when no OCSPs were embedded", snap.OCSPs)
	}
	if snap.CRLs != nil {
		t.Fatalf("WriteBack().CRLs = %v, want nil when no CRLs were embedded", snap.CRLs)
	}
	if len(snap.Certs) != 1 {
		t.Fatalf("WriteBack().Certs = %d, want 1", len(snap.Certs))
	}
	if len(snap.VRI) != 1 {
		t.Fatalf("WriteBack().VRI = %d, want 1", len(snap.VRI))
	}
}

// buildDSSDocument writes a minimal single-revision PDF whose Root has a
// /DSS entry carrying one certificate stream, exercising Read against the
// real pdf.Value API the same way seedvalue_test.go's buildSVDocument
// does.
func buildDSSDocument(t *testing.T, certDER []byte) pdf.Value {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")

	offsets := map[int]int{}

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /DSS 2 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Certs [3 0 R] >>\nendobj\n")

	offsets[3] = buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<< /Length %d >>\nstream\n", len(certDER))
	buf.Write(certDER)
	buf.WriteString("\nendstream\nendobj\n")

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 4\n")
	buf.WriteString("0000000000 65535 f\r\n")
	for i := 1; i <= 3; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n\r\n", offsets[i])
	}
	buf.WriteString("trailer\n<< /Size 4 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	cache, err := xrefcache.Scan(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	rdr, err := cache.Reader(0)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	return rdr.Trailer().Key("Root")
}

func TestReadParsesEmbeddedCerts(t *testing.T) {
	pki := testpki.NewTestPKI(t)
	pki.StartCRLServer()
	defer pki.Close()
	_, leaf := pki.IssueLeaf("leaf.example")

	root := buildDSSDocument(t, leaf.Raw)
	store, certs, _, err := Read(root, nil)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(certs) != 1 {
		t.Fatalf("Read() certs = %d, want 1", len(certs))
	}
	if len(store.Certs) != 1 {
		t.Fatalf("store.Certs = %d, want 1", len(store.Certs))
	}
}

func TestReadNoDSSReturnsErrNoDSS(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	buf.WriteString("1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	xrefOff := buf.Len()
	buf.WriteString("xref\n0 2\n0000000000 65535 f\r\n0000000009 00000 n\r\n")
	buf.WriteString("trailer\n<< /Size 2 /Root 1 0 R >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	cache, err := xrefcache.Scan(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	rdr, err := cache.Reader(0)
	if err != nil {
		t.Fatalf("Reader failed: %v", err)
	}
	_, _, _, err = Read(rdr.Trailer().Key("Root"), nil)
	if err != ErrNoDSS {
		t.Fatalf("Read() err = %v, want ErrNoDSS", err)
	}
}
