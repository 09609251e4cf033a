package revisiondiff

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// refSet is the accumulating "this object override is accounted for" table
// the auditor threads through a revision's diff: explainedRefsLTA and
// explainedRefsFormfill in spec.md §4.4.1.
type refSet map[xrefcache.ObjectRef]bool

func (s refSet) add(ref xrefcache.ObjectRef) { s[ref] = true }

func (s refSet) has(ref xrefcache.ObjectRef) bool { return s[ref] }

// objRef returns the id+gen of the indirect object a resolved pdf.Value
// originates from.
func objRef(v pdf.Value) xrefcache.ObjectRef {
	ptr := v.GetPtr()
	return xrefcache.ObjectRef{ID: ptr.GetID(), Gen: uint16(ptr.GetGen())}
}

// refOf reports whether v's content actually lives in a different indirect
// object than parentID (i.e. fetching it crossed a genuine "N G R"
// reference), as opposed to v being direct content embedded inline in the
// object identified by parentID. This is the same distinction
// xrefcache.CanonicalBytes' selfID parameter draws, generalized to a pair
// of arbitrary values rather than one object's own top-level content.
func refOf(v pdf.Value, parentID uint32) (xrefcache.ObjectRef, bool) {
	ptr := v.GetPtr()
	if ptr.GetID() != 0 && ptr.GetID() != parentID {
		return xrefcache.ObjectRef{ID: ptr.GetID(), Gen: uint16(ptr.GetGen())}, true
	}
	return xrefcache.ObjectRef{}, false
}

// whitelistIfFresh implements _whitelist_callback: a reference may only be
// whitelisted automatically if the xref cache has no entry for it at or
// before the signed revision, i.e. the update introduces a genuinely new
// object id rather than clobbering one that existed when the document was
// signed.
func whitelistIfFresh(explained refSet, cache *xrefcache.Cache, signedRevision int, ref xrefcache.ObjectRef) error {
	if cache.HasRefAtOrBefore(ref, signedRevision) {
		return suspicious(fmt.Sprintf("suspicious object override: %d %d R", ref.ID, ref.Gen))
	}
	explained.add(ref)
	return nil
}

// rawEqual compares two values the way a raw (unresolved) PDF dictionary
// slot comparison would: direct content is compared structurally, but any
// indirect reference found along the way is compared by id+gen only, never
// by the content it points to. Each value is canonicalized with its own
// GetPtr().GetID() as the serialization anchor, since that is the object
// whose content it actually is.
func rawEqual(a, b pdf.Value) bool {
	var ba, bb bytes.Buffer
	xrefcache.CanonicalBytes(&ba, a.GetPtr().GetID(), a)
	xrefcache.CanonicalBytes(&bb, b.GetPtr().GetID(), b)
	return ba.String() == bb.String()
}

// compareValues implements _compare_values: it checks whether current's
// slot (relative to currentParentID) agrees with signed's slot (relative to
// signedParentID), applying whitelist-if-fresh bookkeeping when the two
// disagree, and unconditionally explaining the reference when they agree.
// Direct (non-reference) slots require no bookkeeping at all; the caller is
// expected to separately compare their content (e.g. via compareDicts or a
// recursive diff) since compareValues only tracks object-id accounting.
func compareValues(signedVal, currentVal pdf.Value, signedParentID, currentParentID uint32, cache *xrefcache.Cache, signedRevision int, explained refSet) error {
	signedRef, signedIsRef := refOf(signedVal, signedParentID)
	currentRef, currentIsRef := refOf(currentVal, currentParentID)

	if !currentIsRef {
		return nil
	}
	if !signedIsRef || currentRef != signedRef {
		return whitelistIfFresh(explained, cache, signedRevision, currentRef)
	}
	explained.add(currentRef)
	return nil
}

// keySet returns a dict value's key set, skipping any key present in
// ignored. A Null value (key absent, or dict genuinely empty) yields an
// empty set.
func keySet(v pdf.Value, ignored map[string]bool) map[string]bool {
	out := map[string]bool{}
	if v.IsNull() {
		return out
	}
	for _, k := range v.Keys() {
		if !ignored[k] {
			out[k] = true
		}
	}
	return out
}

func stringSet(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// compareDicts implements _compare_dicts: the two dictionaries must have the
// same key set (modulo ignored) and every remaining key's raw slot must be
// byte-identical.
func compareDicts(signedDict, currentDict pdf.Value, ignored map[string]bool) error {
	signedKeys := keySet(signedDict, ignored)
	currentKeys := keySet(currentDict, ignored)

	if len(signedKeys) != len(currentKeys) {
		return suspicious(fmt.Sprintf("dict keys differ: %v vs. %v", sortedKeys(currentKeys), sortedKeys(signedKeys)))
	}
	for k := range currentKeys {
		if !signedKeys[k] {
			return suspicious(fmt.Sprintf("dict keys differ: %v vs. %v", sortedKeys(currentKeys), sortedKeys(signedKeys)))
		}
	}

	for k := range currentKeys {
		if !rawEqual(signedDict.Key(k), currentDict.Key(k)) {
			return suspicious(fmt.Sprintf("values for dict key /%s differ", k))
		}
	}
	return nil
}

// allowDictKeyUpdate implements _allow_dict_key_update: it marks a single
// dictionary key (DSS on the catalog; AP/AS on a signature field) as safely
// updatable, whitelisting every indirect reference the new value pulls in
// that doesn't already clobber an object from the signed revision, while
// letting references shared with the old value through unconditionally.
func allowDictKeyUpdate(signedDict, currentDict pdf.Value, key string, cache *xrefcache.Cache, signedRevision int, explained refSet, allowRemoval bool) error {
	signedVal := signedDict.Key(key)
	currentVal := currentDict.Key(key)
	signedHas := !signedVal.IsNull()
	currentHas := !currentVal.IsNull()

	var oldValRefs map[xrefcache.ObjectRef]bool
	haveCurrentVal := false

	switch {
	case signedHas:
		if !currentHas {
			if !allowRemoval {
				return suspicious(fmt.Sprintf("/%s reference removed from dictionary in update.", key))
			}
			return nil
		}
		if err := compareValues(signedVal, currentVal, signedDict.GetPtr().GetID(), currentDict.GetPtr().GetID(), cache, signedRevision, explained); err != nil {
			return err
		}
		haveCurrentVal = true
		oldValRefs = refSetFromSlice(collectIndirectRefs(signedVal))
	case currentHas:
		if ref, ok := refOf(currentVal, currentDict.GetPtr().GetID()); ok {
			if err := whitelistIfFresh(explained, cache, signedRevision, ref); err != nil {
				return err
			}
		}
		haveCurrentVal = true
	}

	if !haveCurrentVal {
		return nil
	}
	for _, ref := range collectIndirectRefs(currentVal) {
		if oldValRefs[ref] {
			explained.add(ref)
			continue
		}
		if err := whitelistIfFresh(explained, cache, signedRevision, ref); err != nil {
			return err
		}
	}
	return nil
}

func refSetFromSlice(refs []xrefcache.ObjectRef) map[xrefcache.ObjectRef]bool {
	out := make(map[xrefcache.ObjectRef]bool, len(refs))
	for _, r := range refs {
		out[r] = true
	}
	return out
}
