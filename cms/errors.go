package cms

import "fmt"

// StructuralError indicates the CMS SignedData itself is malformed or
// violates a structural invariant this system enforces (e.g. more than one
// signer-info, or the signer certificate missing from the certificate set).
type StructuralError struct {
	Msg string
}

func (e *StructuralError) Error() string { return e.Msg }

// UnsupportedMechanismError is raised when the signature's digest/encryption
// algorithm pair is not one of the five RSA-based mechanisms this system
// implements (spec: "fails with a NotImplementedError-class error").
type UnsupportedMechanismError struct {
	Mechanism string
}

func (e *UnsupportedMechanismError) Error() string {
	return fmt.Sprintf("unsupported signature mechanism: %s", e.Mechanism)
}

// CryptographicError indicates the signature value failed to verify against
// the signed-attributes blob.
type CryptographicError struct {
	Msg string
	Err error
}

func (e *CryptographicError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *CryptographicError) Unwrap() error { return e.Err }
