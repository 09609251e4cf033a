// Package dss implements the DSSManager of spec.md §4.6: it reads a PDF's
// Document Security Store (the /DSS catalog entry holding embedded
// certificates, OCSP responses and CRLs used for long-term validation),
// and can register fresh validation-related information (VRI) for a
// signature once it has been verified.
//
// Grounded in original_source/pdfstamp/sign/validation.py's VRI and
// DocumentSecurityStore classes (read_dss, register_vri, as_pdf_object,
// sig_content_identifier), adapted from asn1crypto/oscrypto onto
// crypto/x509 and golang.org/x/crypto/ocsp, and from pdf_utils'
// IncrementalPdfFileWriter onto an injected Allocator: this module does
// not itself implement an incremental PDF writer (signature and PDF
// *creation* are explicitly out of scope per spec.md §1), so RegisterVRI
// takes an Allocator the caller supplies to actually place new indirect
// objects in the file.
package dss

import (
	"crypto/x509"
	"errors"
	"io"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/revocation"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// ErrNoDSS is returned by Read when the catalog has no /DSS entry.
var ErrNoDSS = errors.New("dss: no DSS found")

// Allocator lets RegisterVRI place new indirect objects in a PDF being
// incrementally updated. A nil Allocator mirrors the reference
// implementation's writer=None: RegisterVRI fails rather than silently
// doing nothing.
type Allocator interface {
	// AllocateStream writes data as a fresh indirect stream object and
	// returns its reference.
	AllocateStream(data []byte) xrefcache.ObjectRef
	// AllocateVRI writes a fresh indirect VRI dictionary object
	// (generic.DictionaryObject in the reference implementation's
	// VRI.as_pdf_object) and returns its reference.
	AllocateVRI(v VRI) xrefcache.ObjectRef
}

// VRI is one entry of the /DSS's /VRI map: the certificate, OCSP and CRL
// object references relevant to validating a single signature.
type VRI struct {
	Certs []xrefcache.ObjectRef
	OCSPs []xrefcache.ObjectRef
	CRLs  []xrefcache.ObjectRef
}

// Store is the in-memory state of a document's DSS: DocumentSecurityStore.
type Store struct {
	// Certs maps each embedded certificate's issuer-serial to its
	// indirect object reference, the stable dedup key
	// _embed_cert uses.
	Certs map[common.IssuerSerial]xrefcache.ObjectRef
	OCSPs []xrefcache.ObjectRef
	CRLs  []xrefcache.ObjectRef
	// VRIEntries maps a signature-contents identifier (see Identifier)
	// to the VRI object's reference.
	VRIEntries map[string]xrefcache.ObjectRef

	ocspSeen map[string]xrefcache.ObjectRef
	crlSeen  map[string]xrefcache.ObjectRef

	alloc Allocator
}

// New returns an empty Store, ready to have VRIs registered into it
// (DocumentSecurityStore(writer) with no pre-existing /DSS).
func New(alloc Allocator) *Store {
	return &Store{
		Certs:      map[common.IssuerSerial]xrefcache.ObjectRef{},
		VRIEntries: map[string]xrefcache.ObjectRef{},
		ocspSeen:   map[string]xrefcache.ObjectRef{},
		crlSeen:    map[string]xrefcache.ObjectRef{},
		alloc:      alloc,
	}
}

func refOf(v pdf.Value, parentID uint32) (xrefcache.ObjectRef, bool) {
	ptr := v.GetPtr()
	if ptr.GetID() != 0 && ptr.GetID() != parentID {
		return xrefcache.ObjectRef{ID: ptr.GetID(), Gen: uint16(ptr.GetGen())}, true
	}
	return xrefcache.ObjectRef{}, false
}

func streamBytes(v pdf.Value) ([]byte, error) {
	r := v.Reader()
	if r == nil {
		return nil, errors.New("dss: value is not a stream")
	}
	return io.ReadAll(r)
}

// Read implements DocumentSecurityStore.read_dss: it decodes root's /DSS
// entry and returns the resulting Store, the certificates it carries (for
// the caller to feed into a cms.ValidationContext's intermediate pool),
// and a revocation.InfoArchival pre-populated with every embedded OCSP
// response and CRL so the caller can consult IsRevoked the same way it
// would for the Adobe revocation-info-archival signed attribute.
func Read(root pdf.Value, alloc Allocator) (*Store, []*x509.Certificate, revocation.InfoArchival, error) {
	dssVal := root.Key("DSS")
	if dssVal.IsNull() {
		return nil, nil, revocation.InfoArchival{}, ErrNoDSS
	}
	dssParentID := dssVal.GetPtr().GetID()

	s := New(alloc)
	var certs []*x509.Certificate
	var revInfo revocation.InfoArchival

	certsArr := dssVal.Key("Certs")
	for i := 0; i < certsArr.Len(); i++ {
		certVal := certsArr.Index(i)
		data, err := streamBytes(certVal)
		if err != nil {
			return nil, nil, revocation.InfoArchival{}, err
		}
		cert, err := x509.ParseCertificate(data)
		if err != nil {
			return nil, nil, revocation.InfoArchival{}, err
		}
		certs = append(certs, cert)
		if ref, ok := refOf(certVal, dssParentID); ok {
			s.Certs[common.NewIssuerSerial(cert.Issuer, cert.SerialNumber)] = ref
		}
	}

	ocspArr := dssVal.Key("OCSPs")
	for i := 0; i < ocspArr.Len(); i++ {
		ocspVal := ocspArr.Index(i)
		data, err := streamBytes(ocspVal)
		if err != nil {
			return nil, nil, revocation.InfoArchival{}, err
		}
		if ref, ok := refOf(ocspVal, dssParentID); ok {
			s.OCSPs = append(s.OCSPs, ref)
			s.ocspSeen[string(data)] = ref
		}
		_ = revInfo.AddOCSP(data)
	}

	crlArr := dssVal.Key("CRLs")
	for i := 0; i < crlArr.Len(); i++ {
		crlVal := crlArr.Index(i)
		data, err := streamBytes(crlVal)
		if err != nil {
			return nil, nil, revocation.InfoArchival{}, err
		}
		if ref, ok := refOf(crlVal, dssParentID); ok {
			s.CRLs = append(s.CRLs, ref)
			s.crlSeen[string(data)] = ref
		}
		_ = revInfo.AddCRL(data)
	}

	vriVal := dssVal.Key("VRI")
	for _, name := range vriVal.Keys() {
		if ref, ok := refOf(vriVal.Key(name), vriVal.GetPtr().GetID()); ok {
			s.VRIEntries[name] = ref
		}
	}

	return s, certs, revInfo, nil
}
