package seedvalue

// UnacceptableSignerError is returned when the signer (or its validation
// path) fails a certificate constraint from the seed value's /Cert entry.
type UnacceptableSignerError struct {
	msg string
}

func (e *UnacceptableSignerError) Error() string { return e.msg }

func unacceptableSigner(msg string) error {
	return &UnacceptableSignerError{msg: msg}
}

// ValidationError is returned for every other seed value constraint
// violation (subfilter, digest method, reasons, revocation info, missing
// timestamp).
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErr(msg string) error {
	return &ValidationError{msg: msg}
}

// NotSupportedError is returned when the seed value dictionary mandates a
// constraint this module does not implement: any of the UNSUPPORTED flags
// (LEGAL_ATTESTATION, LOCK_DOCUMENT, APPEARANCE_FILTER), or a /SubFilter
// list containing none of the subfilters this module recognizes.
type NotSupportedError struct {
	msg string
}

func (e *NotSupportedError) Error() string { return e.msg }

func notSupported(msg string) error {
	return &NotSupportedError{msg: msg}
}
