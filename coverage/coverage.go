// Package coverage implements the SignatureCoverage component of spec.md
// §4.3: it classifies how much of the underlying file a signature's
// /ByteRange actually covers, from UNCLEAR up through ENTIRE_FILE.
package coverage

import (
	"io"
	"regexp"
	"strconv"

	"github.com/digitorus/pdfvalidate/common"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// ByteRange is a PDF signature dictionary's /ByteRange array: two
// (offset, length) pairs describing the signed portion of the file around
// the signature's /Contents blob (the teacher reads this same 4-element
// array in verify/verify.go via v.Key("ByteRange").Index(i)).
type ByteRange [4]int64

// startxrefPattern looks for a "startxref\n<number>" trailer, tolerating
// either LF or CRLF line endings (PDF spec 7.5.5 permits both).
var startxrefPattern = regexp.MustCompile(`startxref\r?\n(\d+)\r?\n`)

// Classify implements spec.md §4.3. contentsLen is the length, in raw
// (non-hex) bytes, of the signature's /Contents value; the hex-wrapped form
// on disk occupies 2*contentsLen+2 bytes ("<" + hex + ">").
func Classify(r io.ReaderAt, fileSize int64, br ByteRange, contentsLen int, signedRevision int, cache *xrefcache.Cache) common.SignatureCoverageLevel {
	if br[0] != 0 {
		return common.CoverageUnclear
	}

	l1 := br[1]
	s2 := br[2]
	l2 := br[3]
	embeddedLen := int64(2*contentsLen + 2)
	signedZone := l1 + l2 + embeddedLen

	if fileSize == signedZone {
		return common.CoverageEntireFile
	}

	if s2 != l1+embeddedLen {
		return common.CoverageUnclear
	}

	if !startxrefMatchesEndingAt(r, signedZone, cache.StartXref(signedRevision)) {
		return common.CoverageContiguousBlockFromStart
	}

	for rev := 0; rev <= signedRevision; rev++ {
		if cache.EndOffset(rev) > signedZone {
			return common.CoverageContiguousBlockFromStart
		}
	}

	return common.CoverageEntireRevision
}

// startxrefMatchesEndingAt reports whether the signed revision's own trailer
// — "startxref\n<n>\n%%EOF" — occupies the bytes immediately preceding
// offset, and that its recorded startxref value equals wantStartxref.
//
// A fully-signed revision's second ByteRange span always reaches exactly to
// the end of that revision as it stood at signing time, i.e. to the byte
// right after its own "%%EOF" marker; offset is therefore the position of
// that revision boundary, and the trailer to check lies just before it, not
// after (ambiguity resolved against original_source/pdfstamp/sign/validation.py's
// evaluate_coverage, which seeks to signed_zone_len and parses the trailer
// ending there before comparing it against the xref cache's recorded value).
func startxrefMatchesEndingAt(r io.ReaderAt, offset, wantStartxref int64) bool {
	// A startxref trailer ("startxref\n<digits>\n%%EOF\n") is always short;
	// a generous fixed window avoids a second pass if the digits run long.
	const maxWindow = 64
	start := offset - maxWindow
	if start < 0 {
		start = 0
	}
	window := offset - start
	if window <= 0 {
		return false
	}

	buf := make([]byte, window)
	n, err := r.ReadAt(buf, start)
	if err != nil && err != io.EOF {
		return false
	}
	buf = buf[:n]

	matches := startxrefPattern.FindAllSubmatch(buf, -1)
	if len(matches) == 0 {
		return false
	}
	// The relevant trailer is the one closest to offset.
	last := matches[len(matches)-1]
	got, err := strconv.ParseInt(string(last[1]), 10, 64)
	if err != nil {
		return false
	}
	return got == wantStartxref
}

// ContentsLen returns the length of raw (non-hex) bytes a hex-string
// /Contents value of the given on-disk hex length decodes to. Provided for
// callers that only have the hex string's length handy.
func ContentsLen(hexLen int) int {
	return hexLen / 2
}
