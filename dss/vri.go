package dss

import (
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/ocsp"

	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// ErrNoAllocator is returned by RegisterVRI when the Store was built
// without one, mirroring "raise TypeError('This DSS does not support
// updates.')".
var ErrNoAllocator = errors.New("dss: this store does not support updates")

// Identifier implements DocumentSecurityStore.sig_content_identifier: the
// uppercase hex SHA-1 digest of a signature's raw /Contents bytes. The
// caller is responsible for prefixing it with "/" when writing the actual
// PDF name key (spec.md §3: "prefixed with /").
func Identifier(contents []byte) string {
	sum := sha1.Sum(contents)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// RevocationMaterial is the raw DER bytes of OCSP responses and CRLs a
// validation context collected while validating a signature, analogous to
// the reference implementation's validation_context.ocsps/crls.
type RevocationMaterial struct {
	OCSPs [][]byte
	CRLs  [][]byte
}

func (s *Store) embedStreamDedup(data []byte, seen map[string]xrefcache.ObjectRef, dest *[]xrefcache.ObjectRef) xrefcache.ObjectRef {
	if ref, ok := seen[string(data)]; ok {
		return ref
	}
	ref := s.alloc.AllocateStream(data)
	seen[string(data)] = ref
	*dest = append(*dest, ref)
	return ref
}

func (s *Store) embedCert(cert *x509.Certificate) xrefcache.ObjectRef {
	key := common.NewIssuerSerial(cert.Issuer, cert.SerialNumber)
	if ref, ok := s.Certs[key]; ok {
		return ref
	}
	ref := s.alloc.AllocateStream(cert.Raw)
	s.Certs[key] = ref
	return ref
}

// RegisterVRI implements DocumentSecurityStore.register_vri: it embeds
// (with dedup) every certificate on every given validation path, the OCSP
// responses and CRLs the caller collected, and any certificate embedded
// inside one of those OCSP responses (enumerate_ocsp_certs), then writes a
// VRI object tying them together under identifier (see Identifier) and
// records it in VRIEntries.
func (s *Store) RegisterVRI(identifier string, paths [][]*x509.Certificate, material RevocationMaterial) (xrefcache.ObjectRef, error) {
	if s.alloc == nil {
		return xrefcache.ObjectRef{}, ErrNoAllocator
	}

	var vri VRI
	seenOCSPRef := map[xrefcache.ObjectRef]bool{}
	for _, raw := range material.OCSPs {
		ref := s.embedStreamDedup(raw, s.ocspSeen, &s.OCSPs)
		if !seenOCSPRef[ref] {
			seenOCSPRef[ref] = true
			vri.OCSPs = append(vri.OCSPs, ref)
		}
		if resp, err := ocsp.ParseResponse(raw, nil); err == nil && resp.Certificate != nil {
			vri.Certs = appendUnique(vri.Certs, s.embedCert(resp.Certificate))
		}
	}

	seenCRLRef := map[xrefcache.ObjectRef]bool{}
	for _, raw := range material.CRLs {
		ref := s.embedStreamDedup(raw, s.crlSeen, &s.CRLs)
		if !seenCRLRef[ref] {
			seenCRLRef[ref] = true
			vri.CRLs = append(vri.CRLs, ref)
		}
	}

	for _, path := range paths {
		for _, cert := range path {
			vri.Certs = appendUnique(vri.Certs, s.embedCert(cert))
		}
	}

	ref := s.alloc.AllocateVRI(vri)
	s.VRIEntries[identifier] = ref
	return ref, nil
}

func appendUnique(refs []xrefcache.ObjectRef, ref xrefcache.ObjectRef) []xrefcache.ObjectRef {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}

// Snapshot is the write-back shape of as_pdf_object: {/VRI: {name ->
// vri_ref}, /Certs: [...], /OCSPs?: [...], /CRLs?: [...]}. OCSPs/CRLs are
// nil when empty, mirroring the reference implementation only setting
// those keys "if self.ocsps"/"if self.crls".
type Snapshot struct {
	VRI   map[string]xrefcache.ObjectRef
	Certs []xrefcache.ObjectRef
	OCSPs []xrefcache.ObjectRef
	CRLs  []xrefcache.ObjectRef
}

// WriteBack implements DocumentSecurityStore.as_pdf_object: a plain
// snapshot of the store's current state, for a caller's incremental
// writer to serialize into the actual /DSS dictionary object.
func (s *Store) WriteBack() Snapshot {
	snap := Snapshot{
		VRI:   s.VRIEntries,
		Certs: make([]xrefcache.ObjectRef, 0, len(s.Certs)),
	}
	for _, ref := range s.Certs {
		snap.Certs = append(snap.Certs, ref)
	}
	if len(s.OCSPs) > 0 {
		snap.OCSPs = s.OCSPs
	}
	if len(s.CRLs) > 0 {
		snap.CRLs = s.CRLs
	}
	return snap
}
