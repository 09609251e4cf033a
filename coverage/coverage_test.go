package coverage

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// buildTwoRevisionPDF constructs a minimal PDF with one incremental update,
// mirroring xrefcache's own test helper so coverage can be exercised against
// a real xrefcache.Cache without reaching into that package's internals.
func buildTwoRevisionPDF(t *testing.T) (data []byte, rev0End, rev0Xref int64) {
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

	return buf.Bytes(), rev0End, xref1Off
}

func TestClassifyEntireFile(t *testing.T) {
	// A single-revision file where the signed zone reaches exactly to the
	// end of the file: no incremental update follows.
	data, rev0End, _ := buildTwoRevisionPDF(t)
	trimmed := data[:rev0End]

	cache, err := xrefcache.Scan(bytes.NewReader(trimmed), int64(len(trimmed)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	contentsLen := 16
	embeddedLen := int64(2*contentsLen + 2)
	l1 := int64(10)
	l2 := int64(len(trimmed)) - l1 - embeddedLen
	br := ByteRange{0, l1, l1 + embeddedLen, l2}

	got := Classify(bytes.NewReader(trimmed), int64(len(trimmed)), br, contentsLen, 0, cache)
	if got != common.CoverageEntireFile {
		t.Fatalf("Classify() = %v, want ENTIRE_FILE", got)
	}
}

func TestClassifyEntireRevisionWithLaterIncrementalUpdate(t *testing.T) {
	data, rev0End, _ := buildTwoRevisionPDF(t)

	cache, err := xrefcache.Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if cache.Count() != 2 {
		t.Fatalf("expected 2 revisions, got %d", cache.Count())
	}

	// Pretend the signature's second ByteRange span reaches exactly to
	// rev0End (the byte right after revision 0's own "%%EOF\n"), and a
	// later incremental update (revision 1) was appended afterwards.
	contentsLen := 16
	embeddedLen := int64(2*contentsLen + 2)
	l1 := int64(10)
	l2 := rev0End - l1 - embeddedLen
	br := ByteRange{0, l1, l1 + embeddedLen, l2}

	got := Classify(bytes.NewReader(data), int64(len(data)), br, contentsLen, 0, cache)
	if got != common.CoverageEntireRevision {
		t.Fatalf("Classify() = %v, want ENTIRE_REVISION", got)
	}
}

func TestClassifyUnclearBadOffset(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := xrefcache.Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	br := ByteRange{5, 10, 30, 40} // first element must be 0
	got := Classify(bytes.NewReader(data), int64(len(data)), br, 16, 0, cache)
	if got != common.CoverageUnclear {
		t.Fatalf("Classify() = %v, want UNCLEAR", got)
	}
}

func TestClassifyUnclearGapNotFullyOccupied(t *testing.T) {
	data, _, _ := buildTwoRevisionPDF(t)
	cache, err := xrefcache.Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	contentsLen := 16
	embeddedLen := int64(2*contentsLen + 2)
	l1 := int64(10)
	// s2 deliberately wrong: leaves an unaccounted-for gap.
	br := ByteRange{0, l1, l1 + embeddedLen + 5, int64(len(data)) - l1 - embeddedLen - 5}

	got := Classify(bytes.NewReader(data), int64(len(data)), br, contentsLen, 0, cache)
	if got != common.CoverageUnclear {
		t.Fatalf("Classify() = %v, want UNCLEAR", got)
	}
}

func TestClassifyContiguousBlockWhenStartxrefMismatches(t *testing.T) {
	data, _, rev0Xref := buildTwoRevisionPDF(t)
	cache, err := xrefcache.Scan(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	// signedZone lands inside revision 0's own xref subsection listing,
	// nowhere near a "startxref" keyword, so the trailer window finds no
	// match at all.
	contentsLen := 16
	embeddedLen := int64(2*contentsLen + 2)
	l1 := int64(10)
	signedZone := rev0Xref + 20
	l2 := signedZone - l1 - embeddedLen

	br := ByteRange{0, l1, l1 + embeddedLen, l2}
	got := Classify(bytes.NewReader(data), int64(len(data)), br, contentsLen, 0, cache)
	if got != common.CoverageContiguousBlockFromStart {
		t.Fatalf("Classify() = %v, want CONTIGUOUS_BLOCK_FROM_START", got)
	}
}
