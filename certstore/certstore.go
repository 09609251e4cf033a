// Package certstore provides the accumulator abstraction used throughout
// pdfvalidate for mapping certificates keyed by issuer and serial number.
//
// Three variants are offered, mirroring the behaviors described for the
// Document Security Store's certificate collection: a plain local store, a
// write-through store that forwards writes to a backend while keeping reads
// local, and a fork that reads through to a backend on miss but keeps its
// own writes private.
package certstore

import (
	"crypto/x509"

	"github.com/digitorus/pdfvalidate/common"
)

// Ref is an opaque reference to a registered certificate, as produced by a
// Store's Register method. For the in-memory stores used during
// validation, it is simply the certificate pointer itself; a PDF-backed
// store (see package dss) uses a PDF indirect reference instead.
type Ref = *x509.Certificate

// Store is the narrow capability interface every CertStore variant
// implements: register, look up by issuer-serial, and iterate. There are no
// error conditions on any of these operations; overwriting an existing
// entry is silent, and the later registration always wins.
type Store interface {
	// Register adds a single certificate, keyed by its issuer and serial
	// number. Registering a certificate under a key that already exists
	// silently replaces the previous entry.
	Register(cert *x509.Certificate)

	// RegisterMultiple registers every certificate in certs.
	RegisterMultiple(certs []*x509.Certificate)

	// Lookup returns the certificate registered under key, if any.
	Lookup(key common.IssuerSerial) (*x509.Certificate, bool)

	// Iterate calls fn for every registered certificate. Implementations
	// that wrap a backend yield the backend's entries first, followed by
	// their own local entries, so that local registrations shadow (but do
	// not remove) backend ones with the same key.
	Iterate(fn func(key common.IssuerSerial, cert *x509.Certificate))
}

func keyOf(cert *x509.Certificate) common.IssuerSerial {
	return common.NewIssuerSerial(cert.Issuer, cert.SerialNumber)
}

// Simple is a local-only certificate store.
type Simple struct {
	byKey map[common.IssuerSerial]*x509.Certificate
	order []common.IssuerSerial
}

// New creates an empty local certificate store.
func New() *Simple {
	return &Simple{byKey: make(map[common.IssuerSerial]*x509.Certificate)}
}

func (s *Simple) Register(cert *x509.Certificate) {
	key := keyOf(cert)
	if _, exists := s.byKey[key]; !exists {
		s.order = append(s.order, key)
	}
	s.byKey[key] = cert
}

func (s *Simple) RegisterMultiple(certs []*x509.Certificate) {
	for _, c := range certs {
		s.Register(c)
	}
}

func (s *Simple) Lookup(key common.IssuerSerial) (*x509.Certificate, bool) {
	cert, ok := s.byKey[key]
	return cert, ok
}

func (s *Simple) Iterate(fn func(key common.IssuerSerial, cert *x509.Certificate)) {
	for _, key := range s.order {
		fn(key, s.byKey[key])
	}
}

// WriteThrough forwards every write to both the local store and a backend
// store, while reads are served from the local store only. This is used
// when a caller wants new registrations to be visible to a shared backend
// (e.g. a DSS being built up across several signatures) without having the
// local store's reads polluted by entries the backend already knew about
// under a different revision.
type WriteThrough struct {
	local   *Simple
	backend Store
}

// NewWriteThrough wraps backend so that writes propagate to it as well as
// to a fresh local store.
func NewWriteThrough(backend Store) *WriteThrough {
	return &WriteThrough{local: New(), backend: backend}
}

func (w *WriteThrough) Register(cert *x509.Certificate) {
	w.local.Register(cert)
	w.backend.Register(cert)
}

func (w *WriteThrough) RegisterMultiple(certs []*x509.Certificate) {
	for _, c := range certs {
		w.Register(c)
	}
}

func (w *WriteThrough) Lookup(key common.IssuerSerial) (*x509.Certificate, bool) {
	return w.local.Lookup(key)
}

func (w *WriteThrough) Iterate(fn func(key common.IssuerSerial, cert *x509.Certificate)) {
	w.local.Iterate(fn)
}

// Fork reads through to a backend store on a local miss, but keeps all of
// its own writes private to the fork. This is used to validate a
// hypothetical change (e.g. a candidate DSS update) against the current
// trust store without mutating it.
type Fork struct {
	local   *Simple
	backend Store
}

// NewFork creates a fork of backend: writes stay local, reads fall back to
// backend.
func NewFork(backend Store) *Fork {
	return &Fork{local: New(), backend: backend}
}

func (f *Fork) Register(cert *x509.Certificate) {
	f.local.Register(cert)
}

func (f *Fork) RegisterMultiple(certs []*x509.Certificate) {
	for _, c := range certs {
		f.Register(c)
	}
}

func (f *Fork) Lookup(key common.IssuerSerial) (*x509.Certificate, bool) {
	if cert, ok := f.local.Lookup(key); ok {
		return cert, true
	}
	return f.backend.Lookup(key)
}

// Iterate yields the backend's entries first, then the fork's own local
// entries, so that local writes effectively shadow same-keyed backend
// entries for callers that take the last value seen for a given key.
func (f *Fork) Iterate(fn func(key common.IssuerSerial, cert *x509.Certificate)) {
	f.backend.Iterate(fn)
	f.local.Iterate(fn)
}
