package pdfvalidate

import (
	"fmt"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

const maxParentChainDepth = 64

// SignatureField is one /FT /Sig form field found by walking a document's
// /AcroForm field tree, together with the indirect reference identifying
// it and its resolved /V signature dictionary, if any.
type SignatureField struct {
	// Name is the field's fully-qualified /T, dot-joined from the root
	// (e.g. "Signatures.Sig1").
	Name string
	Ref  xrefcache.ObjectRef
	Dict pdf.Value

	HasValue bool
	Value    pdf.Value
	ValueRef xrefcache.ObjectRef
}

// findFT walks a field's /Parent chain until it finds an inherited /FT,
// mirroring revisiondiff's unexported findFT (which this package cannot
// import).
func findFT(field pdf.Value) string {
	cur := field
	for i := 0; i < maxParentChainDepth; i++ {
		if ft := cur.Key("FT"); !ft.IsNull() {
			return ft.Name()
		}
		parent := cur.Key("Parent")
		if parent.IsNull() {
			return ""
		}
		cur = parent
	}
	return ""
}

func refOf(v pdf.Value, parentID uint32) (xrefcache.ObjectRef, bool) {
	ptr := v.GetPtr()
	if ptr.GetID() != 0 && ptr.GetID() != parentID {
		return xrefcache.ObjectRef{ID: ptr.GetID(), Gen: uint16(ptr.GetGen())}, true
	}
	return xrefcache.ObjectRef{}, false
}

func joinFQName(parent, name string) string {
	if parent == "" {
		return name
	}
	if name == "" {
		return parent
	}
	return parent + "." + name
}

// FindSignatureFields walks root's /AcroForm /Fields tree (following
// /Kids on every non-signature field, matching revisiondiff's
// diffFieldTree, which only ever recurses into a field's Kids once it
// knows the field is not itself a signature field) and returns every
// field whose inherited /FT is /Sig.
func FindSignatureFields(root pdf.Value) ([]SignatureField, error) {
	acroForm := root.Key("AcroForm")
	if acroForm.IsNull() {
		return nil, nil
	}
	var out []SignatureField
	if err := walkFieldList(acroForm.Key("Fields"), "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkFieldList(fieldList pdf.Value, parentName string, out *[]SignatureField) error {
	if fieldList.IsNull() {
		return nil
	}
	parentID := fieldList.GetPtr().GetID()
	for i := 0; i < fieldList.Len(); i++ {
		fieldVal := fieldList.Index(i)
		ref, ok := refOf(fieldVal, parentID)
		if !ok {
			return fmt.Errorf("pdfvalidate: form field %d is not an indirect object", i)
		}
		fqName := joinFQName(parentName, fieldVal.Key("T").RawString())

		if findFT(fieldVal) == "Sig" {
			sf := SignatureField{Name: fqName, Ref: ref, Dict: fieldVal}
			if v := fieldVal.Key("V"); !v.IsNull() {
				sf.HasValue = true
				sf.Value = v
				if vref, ok := refOf(v, fieldVal.GetPtr().GetID()); ok {
					sf.ValueRef = vref
				}
			}
			*out = append(*out, sf)
			continue
		}

		if kids := fieldVal.Key("Kids"); !kids.IsNull() {
			if err := walkFieldList(kids, fqName, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// signedRevisionFor returns the smallest revision index at which ref (a
// signature field's /V object) already has an xref entry: the revision in
// which that signature was made, mirroring XRefCache.get_last_change as
// used by EmbeddedPdfSignature.__init__.
func signedRevisionFor(cache *xrefcache.Cache, ref xrefcache.ObjectRef) int {
	for rev := 0; rev < cache.Count(); rev++ {
		if cache.HasRefAtOrBefore(ref, rev) {
			return rev
		}
	}
	return cache.Count() - 1
}
