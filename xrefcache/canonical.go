package xrefcache

import (
	"fmt"
	"io"

	"github.com/digitorus/pdf"
)

// CanonicalBytes serializes value to w as a deterministic byte
// representation, suitable for fingerprinting whether two copies of the
// "same" object (by id) are in fact byte-identical across two revisions.
//
// selfID is the object id of the indirect object whose content is being
// serialized; a nested value that itself carries an indirect reference to
// a different object id is written as a bare "<id> <gen> R" reference
// rather than recursed into, exactly as the teacher's
// sign/pdfcatalog.go:serializeCatalogEntry does when copying over
// untouched catalog entries. This bounds recursion to the direct
// (non-indirect) sub-structure of a single object: a dict or array that
// nests other indirect objects never walks into them, so cyclic object
// graphs (e.g. a page's /Parent pointing back through its own /Kids)
// cannot cause unbounded recursion.
func CanonicalBytes(w io.Writer, selfID uint32, value pdf.Value) {
	if ptr := value.GetPtr(); ptr.GetID() != 0 && ptr.GetID() != selfID {
		fmt.Fprintf(w, "%d %d R", ptr.GetID(), ptr.GetGen())
		return
	}

	switch value.Kind() {
	case pdf.Null:
		fmt.Fprint(w, "null")
	case pdf.Bool:
		if value.Bool() {
			fmt.Fprint(w, "true")
		} else {
			fmt.Fprint(w, "false")
		}
	case pdf.Integer:
		fmt.Fprintf(w, "%d", value.Int64())
	case pdf.Real:
		fmt.Fprintf(w, "%f", value.Float64())
	case pdf.String:
		fmt.Fprintf(w, "(%s)", value.RawString())
	case pdf.Name:
		fmt.Fprintf(w, "/%s", value.Name())
	case pdf.Dict:
		fmt.Fprint(w, "<<")
		for i, key := range value.Keys() {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "/%s ", key)
			CanonicalBytes(w, selfID, value.Key(key))
		}
		fmt.Fprint(w, ">>")
	case pdf.Array:
		fmt.Fprint(w, "[")
		for i := 0; i < value.Len(); i++ {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			CanonicalBytes(w, selfID, value.Index(i))
		}
		fmt.Fprint(w, "]")
	case pdf.Stream:
		// The stream dictionary is part of the object's identity; its
		// raw encoded bytes are not re-read here (github.com/digitorus/pdf
		// does not expose them on pdf.Value the way the teacher's own
		// writer side constructs stream bytes from scratch). In
		// practice every stream object this module cares about (xref
        // streams, object streams pulled apart by the parser itself,
		// form XObjects referenced only by pointer) changes its
		// dictionary (at minimum /Length, /Prev, /Size) whenever its
		// content changes across an incremental update, so comparing
		// the dictionary is sufficient to detect "this object
		// changed" without false negatives in the cases this module
		// acts on.
		fmt.Fprint(w, "stream<<")
		for i, key := range value.Keys() {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprintf(w, "/%s ", key)
			CanonicalBytes(w, selfID, value.Key(key))
		}
		fmt.Fprint(w, ">>")
	default:
		fmt.Fprint(w, "?")
	}
}
