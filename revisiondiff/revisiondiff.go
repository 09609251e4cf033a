// Package revisiondiff implements the RevisionDiff auditor of spec.md
// §4.4 and §4.4.1: given a signed revision and a later revision of the same
// incrementally-updated PDF, it classifies every change between the two as
// an LTA_UPDATES change (DSS growth, document timestamps), a FORM_FILLING
// change (new form field values, newly added signature fields and their
// appearances), or something unexplainable, in which case the signature is
// considered invalidated regardless of cryptographic integrity (OTHER).
//
// This is a line-by-line idiomatic translation of
// original_source/pdfstamp/sign/validation.py's _mod_level_for_revision and
// its helpers onto github.com/digitorus/pdf's pdf.Value API: where the
// Python implementation threads signed_resolver/current_resolver callables
// around to resolve references, this package simply calls .Key()/.Index()
// on values from each revision's own xrefcache.Cache.Reader, since that API
// already resolves indirect references while still exposing the originating
// object's id+gen via Value.GetPtr() -- the same property
// xrefcache.CanonicalBytes relies on.
package revisiondiff

import (
	"log"

	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// Evaluate implements evaluate_modifications: the ModificationLevel of every
// revision after signedRevision is computed independently and the maximum is
// returned, with OTHER acting as a poison value that short-circuits the
// remaining revisions (once a signature is invalidated, auditing further
// revisions cannot un-invalidate it). Errors encountered while auditing a
// revision are logged and treated as OTHER, never propagated: a
// SuspiciousModification is evidence the document's history can't be
// trusted, not a bug in the auditor.
func Evaluate(cache *xrefcache.Cache, signedRevision int, logger *log.Logger) common.ModificationLevel {
	maxLevel := common.ModNone

	for revision := signedRevision + 1; revision < cache.Count(); revision++ {
		level, err := modLevelForRevision(cache, signedRevision, revision)
		if err != nil {
			if logger != nil {
				logger.Printf("revisiondiff: revision %d: %v", revision, err)
			}
			return common.ModOther
		}
		if level > maxLevel {
			maxLevel = level
		}
	}
	return maxLevel
}

// modLevelForRevision implements _mod_level_for_revision.
func modLevelForRevision(cache *xrefcache.Cache, signedRevision, revision int) (common.ModificationLevel, error) {
	signedReader, err := cache.Reader(signedRevision)
	if err != nil {
		return common.ModOther, err
	}
	currentReader, err := cache.Reader(revision)
	if err != nil {
		return common.ModOther, err
	}

	explainedLTA := refSet{}
	explainedFormfill := refSet{}

	signedRoot := signedReader.Trailer().Key("Root")
	currentRoot := currentReader.Trailer().Key("Root")

	// We're about to vet changes to the root, so this object id is
	// whitelisted up front when it changes container.
	currentRootRef := objRef(currentRoot)
	if currentRootRef != objRef(signedRoot) {
		if err := whitelistIfFresh(explainedLTA, cache, signedRevision, currentRootRef); err != nil {
			return common.ModOther, err
		}
	} else {
		explainedLTA.add(currentRootRef)
	}

	if err := compareDicts(signedRoot, currentRoot, stringSet("AcroForm", "DSS")); err != nil {
		return common.ModOther, err
	}

	var newSigfieldRefs []xrefcache.ObjectRef
	signedAcroForm := signedRoot.Key("AcroForm")
	currentAcroForm := currentRoot.Key("AcroForm")
	if !signedAcroForm.IsNull() || !currentAcroForm.IsNull() {
		if err := compareValues(signedAcroForm, currentAcroForm, signedRoot.GetPtr().GetID(), currentRoot.GetPtr().GetID(), cache, signedRevision, explainedLTA); err != nil {
			return common.ModOther, err
		}
		if err := compareDicts(signedAcroForm, currentAcroForm, stringSet("Fields")); err != nil {
			return common.ModOther, err
		}

		refs, err := diffFieldTree(
			signedAcroForm.Key("Fields"), currentAcroForm.Key("Fields"),
			signedAcroForm.GetPtr().GetID(), currentAcroForm.GetPtr().GetID(),
			cache, signedRevision, explainedLTA, explainedFormfill, "",
		)
		if err != nil {
			return common.ModOther, err
		}
		newSigfieldRefs = refs
	}

	// For the DSS, we only have to be careful not to allow non-DSS objects
	// to be overridden.
	if err := allowDictKeyUpdate(signedRoot, currentRoot, "DSS", cache, signedRevision, explainedLTA, false); err != nil {
		return common.ModOther, err
	}

	// Newly added signature fields may be added to a page's /Annots entry.
	// This is processed at LTA_UPDATES, because even invisible signature
	// fields and timestamps are sometimes added to /Annots.
	if len(newSigfieldRefs) > 0 {
		newSet := make(map[xrefcache.ObjectRef]bool, len(newSigfieldRefs))
		for _, ref := range newSigfieldRefs {
			newSet[ref] = true
		}
		signedPages := signedRoot.Key("Pages")
		currentPages := currentRoot.Key("Pages")
		if err := walkPageTreeAnnots(signedPages, currentPages, newSet, cache, signedRevision, explainedLTA); err != nil {
			return common.ModOther, err
		}
	}

	// Finally, verify that there are no xrefs in the revision's xref table
	// other than the ones we can justify.
	newXrefs := cache.ExplicitRefsInRevision(revision)
	hasUnexplainedLTA := false
	var unexplainedFormfill []xrefcache.ObjectRef
	for ref := range newXrefs {
		if explainedLTA.has(ref) {
			continue
		}
		hasUnexplainedLTA = true
		if !explainedFormfill.has(ref) {
			unexplainedFormfill = append(unexplainedFormfill, ref)
		}
	}

	if len(unexplainedFormfill) > 0 {
		return common.ModOther, suspiciousUnexplained(revision, unexplainedFormfill)
	}
	if hasUnexplainedLTA {
		return common.ModFormFilling, nil
	}
	return common.ModLTAUpdates, nil
}
