package xrefcache

import (
	"bytes"
	"fmt"
	"testing"
)

// buildTwoRevisionPDF constructs a minimal, syntactically valid PDF with
// one incremental update: revision 0 has a Catalog (obj 1) pointing to an
// empty Pages tree (obj 2); revision 1 rewrites obj 2's content and adds a
// new obj 3, referenced from the rewritten obj 2.
func buildTwoRevisionPDF(t *testing.T) (data []byte, rev0End, rev1End int64) {
	t.Helper()
	var buf bytes.Buffer

	buf.WriteString("%PDF-1.4\n")

	obj1Off := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	obj2OffA := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	xref1Off := buf.Len()
	buf.WriteString("xref\n0 3\n")
	buf.WriteString(fmt.Sprintf("%010d 65535 f\r\n", 0))
	buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", obj1Off))
	buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", obj2OffA))
	buf.WriteString("trailer\n<< /Size 3 /Root 1 0 R >>\n")
	buf.WriteString(fmt.Sprintf("startxref\n%d\n", xref1Off))
	buf.WriteString("%%EOF\n")

	rev0End = int64(buf.Len())

	// Revision 1: obj 2 is rewritten to reference a new obj 3, and obj 3
	// is added.
	obj3Off := buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n")

	obj2OffB := buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	xref2Off := buf.Len()
	buf.WriteString("xref\n0 4\n")
	buf.WriteString(fmt.Sprintf("%010d 65535 f\r\n", 0))
	buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", obj1Off))
	buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", obj2OffB))
	buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", obj3Off))
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size 4 /Root 1 0 R /Prev %d >>\n", xref1Off))
	buf.WriteString(fmt.Sprintf("startxref\n%d\n", xref2Off))
	buf.WriteString("%%EOF\n")

	rev1End = int64(buf.Len())

	return buf.Bytes(), rev0End, rev1End
}

func TestScanFindsBothRevisions(t *testing.T) {
	data, rev0End, rev1End := buildTwoRevisionPDF(t)

	cache, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if cache.Count() != 2 {
		t.Fatalf("expected 2 revisions, got %d", cache.Count())
	}
	if cache.EndOffset(0) != rev0End {
		t.Errorf("revision 0 end offset = %d, want %d", cache.EndOffset(0), rev0End)
	}
	if cache.EndOffset(1) != rev1End {
		t.Errorf("revision 1 end offset = %d, want %d", cache.EndOffset(1), rev1End)
	}
}

func TestExplicitRefsInRevisionZero(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	refs := cache.ExplicitRefsInRevision(0)
	if len(refs) != 2 {
		t.Fatalf("expected 2 explicit refs in revision 0, got %d: %v", len(refs), refs)
	}
	for _, id := range []uint32{1, 2} {
		if !refs[ObjectRef{ID: id, Gen: 0}] {
			t.Errorf("expected object %d to be explicit in revision 0", id)
		}
	}
}

func TestExplicitRefsInRevisionOneExcludesUnchangedCatalog(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	refs := cache.ExplicitRefsInRevision(1)

	if refs[ObjectRef{ID: 1, Gen: 0}] {
		t.Errorf("catalog (object 1) is byte-identical across revisions and must not be explicit in revision 1")
	}
	if !refs[ObjectRef{ID: 2, Gen: 0}] {
		t.Errorf("expected object 2 (rewritten Pages dict) to be explicit in revision 1")
	}
	if !refs[ObjectRef{ID: 3, Gen: 0}] {
		t.Errorf("expected object 3 (newly added) to be explicit in revision 1")
	}
}

func TestHasRefAtOrBefore(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	obj3 := ObjectRef{ID: 3, Gen: 0}
	if cache.HasRefAtOrBefore(obj3, 0) {
		t.Errorf("object 3 does not exist as of revision 0")
	}
	if !cache.HasRefAtOrBefore(obj3, 1) {
		t.Errorf("object 3 exists as of revision 1")
	}
}

func TestReaderOutOfRange(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if _, err := cache.Reader(2); err == nil {
		t.Errorf("expected error for out-of-range revision")
	}
	if _, err := cache.Reader(-1); err == nil {
		t.Errorf("expected error for negative revision")
	}
}
