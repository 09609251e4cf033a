package revisiondiff

import (
	"fmt"

	"github.com/digitorus/pdfvalidate/xrefcache"
)

// SuspiciousModification is returned whenever a revision contains a change
// that the auditor cannot explain as a routine LTA/DSS update or form fill:
// an object override, a removed signature field, a tampered catalog entry,
// and so on. Its presence forces the overall ModificationLevel to OTHER.
type SuspiciousModification struct {
	msg string
}

func (e *SuspiciousModification) Error() string { return e.msg }

func suspicious(msg string) error {
	return &SuspiciousModification{msg: msg}
}

func suspiciousUnexplained(revision int, refs []xrefcache.ObjectRef) error {
	msg := fmt.Sprintf("there are unexplained xrefs in revision %d:", revision)
	for _, ref := range refs {
		msg += fmt.Sprintf(" %d %d R", ref.ID, ref.Gen)
	}
	return &SuspiciousModification{msg: msg}
}
