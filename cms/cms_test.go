package cms

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
)

func rawIssuer(t *testing.T, cn string) []byte {
	t.Helper()
	// A raw DER RDNSequence encoding is what c.RawIssuer actually holds;
	// for this unit test we only need two distinguishable byte strings,
	// so a stable textual stand-in is sufficient to exercise the
	// byte-equality comparison partitionCerts performs.
	return []byte("CN=" + cn)
}

func TestPartitionCertsFindsSignerByIssuerAndSerial(t *testing.T) {
	signer := &x509.Certificate{
		Subject:      pkix.Name{CommonName: "leaf"},
		RawIssuer:    rawIssuer(t, "intermediate-ca"),
		SerialNumber: big.NewInt(42),
	}
	ca := &x509.Certificate{
		Subject:      pkix.Name{CommonName: "intermediate-ca"},
		RawIssuer:    rawIssuer(t, "root-ca"),
		SerialNumber: big.NewInt(1),
	}

	got, chain, err := partitionCerts([]*x509.Certificate{ca, signer}, rawIssuer(t, "intermediate-ca"), big.NewInt(42))
	if err != nil {
		t.Fatalf("partitionCerts failed: %v", err)
	}
	if got != signer {
		t.Fatalf("expected signer certificate to be identified")
	}
	if len(chain) != 1 || chain[0] != ca {
		t.Fatalf("expected CA chain to contain exactly the remaining certificate, got %v", chain)
	}
}

func TestPartitionCertsMissingSigner(t *testing.T) {
	ca := &x509.Certificate{
		Subject:      pkix.Name{CommonName: "root-ca"},
		SerialNumber: big.NewInt(1),
	}

	_, _, err := partitionCerts([]*x509.Certificate{ca}, rawIssuer(t, "someone-else"), big.NewInt(99))
	if err == nil {
		t.Fatalf("expected StructuralError when signer certificate is absent")
	}
	if _, ok := err.(*StructuralError); !ok {
		t.Fatalf("expected *StructuralError, got %T", err)
	}
}
