package pdfvalidate

import (
	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/common"
)

// docMDPPerm extracts the DocMDP permission level from a signature
// dictionary's /Reference array, mirroring the teacher's checkDocMDP
// (verify/signature.go) and the reference implementation's
// _extract_docmdp_for_sig: the /Reference entries are walked for the one
// whose /TransformMethod is /DocMDP, and its /TransformParams/P read (the
// PDF spec's default, FillForms, applies when /P is absent). A signature
// with no DocMDP transform at all declares no permission constraint (nil).
func docMDPPerm(sigDict pdf.Value) *common.DocMDPPerm {
	refs := sigDict.Key("Reference")
	if refs.IsNull() || refs.Kind() != pdf.Array {
		return nil
	}
	for i := 0; i < refs.Len(); i++ {
		ref := refs.Index(i)
		if ref.Key("TransformMethod").Name() != "DocMDP" {
			continue
		}
		perm := common.DocMDPFillForms
		if p := ref.Key("TransformParams").Key("P"); !p.IsNull() {
			perm = common.DocMDPPerm(p.Int64())
		}
		return &perm
	}
	return nil
}

// docMDPOK implements summarise_integrity_info's docmdp_ok computation
// (spec.md §8 invariant 3): OTHER always fails it outright, regardless of
// any declared DocMDP permission; otherwise it holds so long as no
// permission was declared, or the modification level actually found does
// not exceed what that permission tolerates.
func docMDPOK(modLevel common.ModificationLevel, perm *common.DocMDPPerm) bool {
	if modLevel == common.ModOther {
		return false
	}
	if perm == nil {
		return true
	}
	return modLevel <= perm.MaxModificationLevel()
}
