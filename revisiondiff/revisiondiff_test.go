package revisiondiff

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// baseRevision builds a minimal signed revision: a Catalog (1), Pages (2),
// a single Page (3), an AcroForm (4) with one text field (5), named
// "Name1" and not yet filled in. Every object lives at a fixed, returned
// offset so later incremental updates can rewrite individual objects while
// leaving the others byte-identical.
func baseRevision(t *testing.T) (data []byte, offsets map[int]int, xrefOff int) {
	t.Helper()
	var buf bytes.Buffer
	offsets = map[int]int{}

	buf.WriteString("%PDF-1.7\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /AcroForm 4 0 R >>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")

	offsets[3] = buf.Len()
	buf.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R >>\nendobj\n")

	offsets[4] = buf.Len()
	buf.WriteString("4 0 obj\n<< /Fields [5 0 R] >>\nendobj\n")

	offsets[5] = buf.Len()
	buf.WriteString("5 0 obj\n<< /FT /Tx /T (Name1) >>\nendobj\n")

	xrefOff = buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString(fmt.Sprintf("%010d 65535 f\r\n", 0))
	for i := 1; i <= 5; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", offsets[i]))
	}
	buf.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\n")
	buf.WriteString(fmt.Sprintf("startxref\n%d\n", xrefOff))
	buf.WriteString("%%EOF\n")

	return buf.Bytes(), offsets, xrefOff
}

// writeUpdatedXref appends a fresh xref table to buf that reuses every
// offset in offsets except those overridden in changed, and links back to
// prevXref via /Prev.
func writeUpdatedXref(buf *bytes.Buffer, offsets map[int]int, changed map[int]int, size, prevXref int) {
	merged := map[int]int{}
	for k, v := range offsets {
		merged[k] = v
	}
	for k, v := range changed {
		merged[k] = v
	}

	xrefOff := buf.Len()
	buf.WriteString(fmt.Sprintf("xref\n0 %d\n", size))
	buf.WriteString(fmt.Sprintf("%010d 65535 f\r\n", 0))
	for i := 1; i < size; i++ {
		buf.WriteString(fmt.Sprintf("%010d 00000 n\r\n", merged[i]))
	}
	buf.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R /Prev %d >>\n", size, prevXref))
	buf.WriteString(fmt.Sprintf("startxref\n%d\n", xrefOff))
	buf.WriteString("%%EOF\n")
}

func scan(t *testing.T, data []byte) *xrefcache.Cache {
	t.Helper()
	cache, err := xrefcache.Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	return cache
}

func TestEvaluateFormFillingFillsInTextField(t *testing.T) {
	base, offsets, xrefOff := baseRevision(t)

	var buf bytes.Buffer
	buf.Write(base)

	newField5 := buf.Len()
	buf.WriteString("5 0 obj\n<< /FT /Tx /T (Name1) /V (Hello) >>\nendobj\n")

	writeUpdatedXref(&buf, offsets, map[int]int{5: newField5}, 6, xrefOff)

	cache := scan(t, buf.Bytes())
	if cache.Count() != 2 {
		t.Fatalf("expected 2 revisions, got %d", cache.Count())
	}

	got := Evaluate(cache, 0, nil)
	if got != common.ModFormFilling {
		t.Fatalf("Evaluate() = %v, want FORM_FILLING", got)
	}
}

func TestEvaluateLTAUpdateAddsDSS(t *testing.T) {
	base, offsets, xrefOff := baseRevision(t)

	var buf bytes.Buffer
	buf.Write(base)

	newDSSObj := buf.Len()
	buf.WriteString("6 0 obj\n<< /Certs [] >>\nendobj\n")

	newCatalog := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /AcroForm 4 0 R /DSS 6 0 R >>\nendobj\n")

	writeUpdatedXref(&buf, offsets, map[int]int{1: newCatalog, 6: newDSSObj}, 7, xrefOff)

	cache := scan(t, buf.Bytes())
	if cache.Count() != 2 {
		t.Fatalf("expected 2 revisions, got %d", cache.Count())
	}

	got := Evaluate(cache, 0, nil)
	if got != common.ModLTAUpdates {
		t.Fatalf("Evaluate() = %v, want LTA_UPDATES", got)
	}
}

func TestEvaluateOtherOnTamperedCatalogKey(t *testing.T) {
	base, offsets, xrefOff := baseRevision(t)

	var buf bytes.Buffer
	buf.Write(base)

	newCatalog := buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R /AcroForm 4 0 R /Lang (en-US) >>\nendobj\n")

	writeUpdatedXref(&buf, offsets, map[int]int{1: newCatalog}, 6, xrefOff)

	cache := scan(t, buf.Bytes())
	if cache.Count() != 2 {
		t.Fatalf("expected 2 revisions, got %d", cache.Count())
	}

	got := Evaluate(cache, 0, nil)
	if got != common.ModOther {
		t.Fatalf("Evaluate() = %v, want OTHER", got)
	}
}

func TestEvaluateNoLaterRevisionsIsNone(t *testing.T) {
	base, _, _ := baseRevision(t)
	cache := scan(t, base)
	if cache.Count() != 1 {
		t.Fatalf("expected 1 revision, got %d", cache.Count())
	}

	got := Evaluate(cache, 0, nil)
	if got != common.ModNone {
		t.Fatalf("Evaluate() = %v, want NONE", got)
	}
}

func TestRectArea(t *testing.T) {
	data, _, _ := baseRevision(t)
	cache := scan(t, data)
	rdr, err := cache.Reader(0)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	// A field with no /Rect at all should be treated as zero area, not panic.
	field := rdr.Trailer().Key("Root").Key("AcroForm").Key("Fields").Index(0)
	if area := rectArea(field.Key("Rect")); area != 0 {
		t.Fatalf("rectArea() = %v, want 0 for an absent /Rect", area)
	}
}
