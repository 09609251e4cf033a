package revisiondiff

import (
	"fmt"
	"math"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

const maxParentChainDepth = 64

// namedField pairs a form field's /T name with its own object reference and
// resolved dictionary, the unit splitSigFields and diffFieldTree operate on.
type namedField struct {
	ref xrefcache.ObjectRef
	val pdf.Value
}

func joinFQName(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// findFT walks a field's /Parent chain until it finds an inherited /FT,
// mirroring _split_sig_fields' lookup.
func findFT(field pdf.Value) (string, error) {
	cur := field
	for i := 0; i < maxParentChainDepth; i++ {
		if ft := cur.Key("FT"); !ft.IsNull() {
			return ft.Name(), nil
		}
		parent := cur.Key("Parent")
		if parent.IsNull() {
			return "", fmt.Errorf("revisiondiff: could not resolve /FT for field %q", field.Key("T").RawString())
		}
		cur = parent
	}
	return "", fmt.Errorf("revisiondiff: /Parent chain too deep resolving /FT")
}

// splitSigFields implements _split_sig_fields: it partitions a field array
// into signature fields and everything else, keyed by /T name.
//
// TODO confirm the rules on name uniqueness (in particular for things like
// choice fields, where there are potentially multiple widgets) -- carried
// over from the reference implementation's own open question.
func splitSigFields(fieldList pdf.Value) (sig map[string]namedField, other map[string]namedField, err error) {
	sig = map[string]namedField{}
	other = map[string]namedField{}
	if fieldList.IsNull() {
		return sig, other, nil
	}

	parentID := fieldList.GetPtr().GetID()
	for i := 0; i < fieldList.Len(); i++ {
		fieldVal := fieldList.Index(i)
		ref, ok := refOf(fieldVal, parentID)
		if !ok {
			return nil, nil, fmt.Errorf("revisiondiff: form field %d is not an indirect object", i)
		}
		name := fieldVal.Key("T").RawString()
		ft, err := findFT(fieldVal)
		if err != nil {
			return nil, nil, err
		}
		nf := namedField{ref: ref, val: fieldVal}
		if ft == "Sig" {
			sig[name] = nf
		} else {
			other[name] = nf
		}
	}
	return sig, other, nil
}

func numberValue(v pdf.Value) float64 {
	if v.Kind() == pdf.Integer {
		return float64(v.Int64())
	}
	return v.Float64()
}

func rectArea(rect pdf.Value) float64 {
	if rect.IsNull() || rect.Len() != 4 {
		return 0
	}
	x1 := numberValue(rect.Index(0))
	y1 := numberValue(rect.Index(1))
	x2 := numberValue(rect.Index(2))
	y2 := numberValue(rect.Index(3))
	return math.Abs(x1-x2) * math.Abs(y1-y2)
}

// valueRef returns the reference a signature field's /V entry points to, per
// the invariant that a signature dictionary is always an indirect object
// (ISO 32000-2); if /V is absent, or is somehow a direct value, it reports
// no value (the latter is malformed input that the cryptographic checks
// elsewhere will reject).
func valueRef(field pdf.Value) (xrefcache.ObjectRef, bool) {
	v := field.Key("V")
	if v.IsNull() {
		return xrefcache.ObjectRef{}, false
	}
	return refOf(v, field.GetPtr().GetID())
}

// diffField implements _diff_field: the field's own object id must be
// unchanged, its dictionary must agree on every key except /V, /AP and /AS,
// and /AP and /AS may be freely replaced (including removed) so long as the
// new values don't clobber pre-existing objects.
func diffField(signedRef, currentRef xrefcache.ObjectRef, signedVal, currentVal pdf.Value, cache *xrefcache.Cache, signedRevision int, explained refSet, fqName string) error {
	if signedRef != currentRef {
		return suspicious(fmt.Sprintf(
			"unexpected modification to form field structure: object id of field %s changed from %d %d R to %d %d R",
			fqName, signedRef.ID, signedRef.Gen, currentRef.ID, currentRef.Gen,
		))
	}
	explained.add(currentRef)

	if err := compareDicts(signedVal, currentVal, stringSet("V", "AP", "AS")); err != nil {
		return err
	}
	for _, key := range []string{"AP", "AS"} {
		if err := allowDictKeyUpdate(signedVal, currentVal, key, cache, signedRevision, explained, true); err != nil {
			return err
		}
	}
	return nil
}

// diffFieldValue implements _diff_field_value for a non-signature field: a
// value present before signing can never change, but a value newly filled
// in after signing is reported (its indirect references whitelisted) for
// the caller to judge.
func diffFieldValue(signedField, currentField pdf.Value, cache *xrefcache.Cache, signedRevision int, explained refSet) error {
	currentValue := currentField.Key("V")
	hasCurrentValue := !currentValue.IsNull()

	signedValue := signedField.Key("V")
	if !signedValue.IsNull() {
		if !rawEqual(signedValue, currentValue) {
			return suspicious("form fields that were filled in prior to signing cannot be modified")
		}
		return nil
	}
	if !hasCurrentValue {
		return nil
	}
	for _, ref := range collectIndirectRefs(currentValue) {
		if err := whitelistIfFresh(explained, cache, signedRevision, ref); err != nil {
			return err
		}
	}
	return nil
}

// diffFieldTree implements _diff_field_tree: it walks a (possibly nested,
// via /Kids) form field array, matching non-signature fields one-to-one and
// diffing their content and value, and returns the object refs of any
// signature field newly added in this revision so the caller can clear
// their page /Annots entries.
func diffFieldTree(signedSlot, currentSlot pdf.Value, signedParentID, currentParentID uint32, cache *xrefcache.Cache, signedRevision int, explainedLTA, explainedFormfill refSet, parentName string) ([]xrefcache.ObjectRef, error) {
	if err := compareValues(signedSlot, currentSlot, signedParentID, currentParentID, cache, signedRevision, explainedLTA); err != nil {
		return nil, err
	}

	signedSig, signedOther, err := splitSigFields(signedSlot)
	if err != nil {
		return nil, err
	}
	currentSig, currentOther, err := splitSigFields(currentSlot)
	if err != nil {
		return nil, err
	}

	if len(signedOther) != len(currentOther) {
		return nil, suspicious(fmt.Sprintf("unexpected change in form hierarchy at %s", treeLabel(parentName)))
	}
	for name := range signedOther {
		if _, ok := currentOther[name]; !ok {
			return nil, suspicious(fmt.Sprintf("unexpected change in form hierarchy at %s", treeLabel(parentName)))
		}
	}

	var newSigRefs []xrefcache.ObjectRef

	for name, signedNF := range signedOther {
		currentNF := currentOther[name]
		fqName := joinFQName(parentName, name)

		if err := diffField(signedNF.ref, currentNF.ref, signedNF.val, currentNF.val, cache, signedRevision, explainedFormfill, fqName); err != nil {
			return nil, err
		}
		if err := diffFieldValue(signedNF.val, currentNF.val, cache, signedRevision, explainedFormfill); err != nil {
			return nil, err
		}

		signedKids := signedNF.val.Key("Kids")
		if signedKids.IsNull() {
			continue
		}
		if ref, ok := refOf(signedKids, signedNF.val.GetPtr().GetID()); ok {
			explainedLTA.add(ref)
		}
		currentKids := currentNF.val.Key("Kids")
		sub, err := diffFieldTree(signedKids, currentKids, signedNF.val.GetPtr().GetID(), currentNF.val.GetPtr().GetID(), cache, signedRevision, explainedLTA, explainedFormfill, fqName)
		if err != nil {
			return nil, err
		}
		newSigRefs = append(newSigRefs, sub...)
	}

	// updates can only add signature fields, never remove them.
	for name := range signedSig {
		if _, ok := currentSig[name]; !ok {
			return nil, suspicious("some signature fields were removed")
		}
	}

	for name, cur := range currentSig {
		fqName := joinFQName(parentName, name)
		explainedLTA.add(cur.ref)

		currentValRef, hasCurrentVal := valueRef(cur.val)

		signedNF, existed := signedSig[name]
		if !existed {
			newSigRefs = append(newSigRefs, cur.ref)
			if ap := cur.val.Key("AP"); !ap.IsNull() {
				for _, ref := range collectIndirectRefs(ap) {
					if err := whitelistIfFresh(explainedFormfill, cache, signedRevision, ref); err != nil {
						return nil, err
					}
				}
			}
		} else {
			if signedNF.ref != cur.ref {
				return nil, suspicious("object id of signature field changed between revisions")
			}
			if err := diffField(signedNF.ref, cur.ref, signedNF.val, cur.val, cache, signedRevision, explainedLTA, fqName); err != nil {
				return nil, err
			}

			signedValRef, hadSignedVal := valueRef(signedNF.val)
			if hadSignedVal {
				if !hasCurrentVal {
					return nil, suspicious(fmt.Sprintf("a filled-in signature in %s was deleted between revisions", fqName))
				}
				if signedValRef != currentValRef {
					return nil, suspicious(fmt.Sprintf("a filled-in signature in %s was replaced between revisions", fqName))
				}
			} else if !hasCurrentVal {
				continue
			}
		}

		if !hasCurrentVal {
			continue
		}

		sigObj := cur.val.Key("V")
		area := rectArea(cur.val.Key("Rect"))
		if sigObj.Key("Type").Name() == "DocTimeStamp" && area == 0 {
			explainedLTA.add(currentValRef)
		} else {
			explainedFormfill.add(currentValRef)
		}
	}

	return newSigRefs, nil
}

func treeLabel(parentName string) string {
	if parentName == "" {
		return "form tree root"
	}
	return fmt.Sprintf("node %q", parentName)
}
