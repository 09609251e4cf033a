package revisiondiff

import (
	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// refSetFromIndirectElems returns the object refs of an array's own
// elements (e.g. a page's /Annots array, whose entries are always indirect
// references to annotation dictionaries per ISO 32000).
func refSetFromIndirectElems(v pdf.Value) map[xrefcache.ObjectRef]bool {
	out := map[xrefcache.ObjectRef]bool{}
	if v.IsNull() {
		return out
	}
	parentID := v.GetPtr().GetID()
	for i := 0; i < v.Len(); i++ {
		if ref, ok := refOf(v.Index(i), parentID); ok {
			out[ref] = true
		}
	}
	return out
}

func isSubset(a, b map[xrefcache.ObjectRef]bool) bool {
	for ref := range a {
		if !b[ref] {
			return false
		}
	}
	return true
}

func setDifference(a, b map[xrefcache.ObjectRef]bool) map[xrefcache.ObjectRef]bool {
	out := map[xrefcache.ObjectRef]bool{}
	for ref := range a {
		if !b[ref] {
			out[ref] = true
		}
	}
	return out
}

// walkPageTreeAnnots implements _walk_page_tree_annots: it descends the
// /Pages tree looking for pages whose /Annots array gained entries, clearing
// the addition only when every new entry is one of the signature fields
// newSigfieldRefs just discovered, and only if the rest of the page
// dictionary is otherwise untouched.
func walkPageTreeAnnots(signedNode, currentNode pdf.Value, newSigfieldRefs map[xrefcache.ObjectRef]bool, cache *xrefcache.Cache, signedRevision int, explained refSet) error {
	signedKids := signedNode.Key("Kids")
	currentKids := currentNode.Key("Kids")
	// /Kids should only ever contain indirect refs, so raw equality is the
	// appropriate comparison (the reference implementation's equivalent
	// check compares a value to itself, which can never fire; we implement
	// the evidently-intended signed-vs-current comparison instead).
	if !rawEqual(signedKids, currentKids) {
		return suspicious("unexpected change to page tree structure")
	}

	for i := 0; i < signedKids.Len(); i++ {
		signedKid := signedKids.Index(i)
		currentKid := currentKids.Index(i)

		switch signedKid.Key("Type").Name() {
		case "Pages":
			if err := walkPageTreeAnnots(signedKid, currentKid, newSigfieldRefs, cache, signedRevision, explained); err != nil {
				return err
			}
		case "Page":
			if err := diffPageAnnots(signedKid, currentKid, newSigfieldRefs, cache, signedRevision, explained); err != nil {
				return err
			}
		}
	}
	return nil
}

func diffPageAnnots(signedKid, currentKid pdf.Value, newSigfieldRefs map[xrefcache.ObjectRef]bool, cache *xrefcache.Cache, signedRevision int, explained refSet) error {
	currentAnnotsVal := currentKid.Key("Annots")
	if currentAnnotsVal.IsNull() {
		return nil
	}
	currentAnnotsRef, currentAnnotsIsRef := refOf(currentAnnotsVal, currentKid.GetPtr().GetID())
	currentAnnots := refSetFromIndirectElems(currentAnnotsVal)

	signedAnnotsVal := signedKid.Key("Annots")
	signedAnnotsRef, signedAnnotsIsRef := refOf(signedAnnotsVal, signedKid.GetPtr().GetID())
	signedAnnots := refSetFromIndirectElems(signedAnnotsVal)

	if !isSubset(signedAnnots, currentAnnots) {
		// entries were removed or reordered away; not this function's
		// concern, the xref crawler will flag it as unexplained.
		return nil
	}
	added := setDifference(currentAnnots, signedAnnots)
	if len(added) == 0 || !isSubset(added, newSigfieldRefs) {
		return nil
	}

	// the new annotations are exactly the new signature fields: safe to
	// clear, provided the rest of the page dictionary didn't also change.
	if err := compareDicts(signedKid, currentKid, stringSet("Annots")); err != nil {
		return err
	}
	explained.add(objRef(signedKid))

	if currentAnnotsIsRef {
		if signedAnnotsIsRef && signedAnnotsRef == currentAnnotsRef {
			explained.add(currentAnnotsRef)
		} else if err := whitelistIfFresh(explained, cache, signedRevision, currentAnnotsRef); err != nil {
			return err
		}
	}
	return nil
}
