package pdfvalidate

import "fmt"

// EmptySignatureError is returned when a signature field's /V entry is
// missing or null: there is nothing to validate (spec.md §7: "Empty
// signature: fatal").
type EmptySignatureError struct {
	Field string
}

func (e *EmptySignatureError) Error() string {
	return fmt.Sprintf("pdfvalidate: signature field %q has no /V entry", e.Field)
}

// UnsupportedSubFilterError is returned when a signature dictionary's
// /SubFilter names an encoding this module does not implement (spec.md
// §7: "Unsupported: fatal, reported distinctly from a bug").
type UnsupportedSubFilterError struct {
	SubFilter string
}

func (e *UnsupportedSubFilterError) Error() string {
	return fmt.Sprintf("pdfvalidate: unsupported /SubFilter %q", e.SubFilter)
}
