// Package xrefcache materializes the per-revision object graph of an
// incrementally-updated PDF.
//
// github.com/digitorus/pdf, like the teacher's own reading path
// (verify/verify.go's pdf.NewReader, sign/pdfxref.go's Prev-chain
// discovery), only ever exposes the merged, flattened object table built by
// following the /Prev chain all the way back to the first revision. Nothing
// in the corpus exposes "what did the object table look like as of
// revision N" directly. This package supplies that missing view by
// re-parsing the file truncated to the byte offset just past each
// revision's own %%EOF marker: every well-formed revision of an
// incrementally-updated PDF is, by construction, itself a complete and
// independently parseable PDF (its own trailer's /Prev points further
// back), so truncation plus a second pdf.NewReader call reconstructs the
// revision's object graph faithfully without reimplementing the xref table
// / xref stream parser that already lives inside github.com/digitorus/pdf.
package xrefcache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/digitorus/pdf"
)

// eofMarker is the incremental-update revision boundary token (PDF spec
// 7.5.1: "the last line of the file shall contain only the end-of-file
// marker, %%EOF").
var eofMarker = []byte("%%EOF")

// ObjectRef identifies a single indirect object by id and generation, the
// same pair github.com/digitorus/pdf's pdf.Ptr exposes via GetID/GetGen.
type ObjectRef struct {
	ID  uint32
	Gen uint16
}

// Revision describes one incremental-update revision of the file, in
// chronological order (revision 0 is the original, pre-signature document;
// the last revision is the file as it currently stands).
type Revision struct {
	// EndOffset is the byte offset of the first byte after this
	// revision's own %%EOF marker (and any trailing end-of-line bytes),
	// i.e. the length of the file truncated to include exactly this
	// revision and none of its successors.
	EndOffset int64

	// StartXref is this revision's own recorded startxref value, as
	// parsed from the bounded pdf.Reader's XrefInformation.
	StartXref int64
}

// Cache is a materialized view of every revision of a PDF file.
type Cache struct {
	r    io.ReaderAt
	size int64

	revisions []Revision
	readers   []*pdf.Reader

	// fingerprints[i] maps an object id+gen present in revision i to a
	// canonical byte-serialization of its value, computed lazily.
	fingerprints []map[ObjectRef]string
	// explicit[i] is the subset of objects in revision i whose
	// fingerprint is new or has changed relative to revision i-1 (for
	// revision 0, every object is explicit).
	explicit []map[ObjectRef]bool
}

// boundedReaderAt truncates an underlying io.ReaderAt to a maximum length,
// so that a single revision can be handed to pdf.NewReader as if it were
// the entire file.
type boundedReaderAt struct {
	r   io.ReaderAt
	max int64
}

func (b boundedReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= b.max {
		return 0, io.EOF
	}
	want := len(p)
	if off+int64(want) > b.max {
		want = int(b.max - off)
	}
	n, err := b.r.ReadAt(p[:want], off)
	if err == nil && n < len(p) {
		// io.ReaderAt requires a non-nil error whenever fewer bytes
		// than requested are returned; the boundary truncation is
		// exactly such a case.
		err = io.EOF
	}
	return n, err
}

// Scan walks r (size bytes long) and records one Revision per incremental
// update, in chronological order. Candidate boundaries are found by
// locating every occurrence of the %%EOF marker; a candidate is accepted
// as a real revision boundary only if the file truncated to that point is
// itself a parseable PDF (pdf.NewReader succeeds and exposes a trailer).
// This tolerates %%EOF-like byte sequences that happen to appear inside
// compressed stream data, which a naive purely-textual scan would
// misinterpret as a revision boundary.
func Scan(r io.ReaderAt, size int64) (*Cache, error) {
	if size <= 0 {
		return nil, fmt.Errorf("xrefcache: empty input")
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), buf); err != nil {
		return nil, fmt.Errorf("xrefcache: reading file: %w", err)
	}

	c := &Cache{r: r, size: size}

	searchFrom := 0
	for {
		idx := bytes.Index(buf[searchFrom:], eofMarker)
		if idx < 0 {
			break
		}
		markerEnd := searchFrom + idx + len(eofMarker)
		end := consumeTrailingEOL(buf, markerEnd)
		searchFrom = markerEnd

		if end <= 0 || end > size {
			continue
		}

		rdr, err := pdf.NewReader(boundedReaderAt{r: r, max: end}, end)
		if err != nil {
			continue
		}
		if rdr.Trailer().IsNull() {
			continue
		}

		c.revisions = append(c.revisions, Revision{
			EndOffset: end,
			StartXref: rdr.XrefInformation.StartPos,
		})
		c.readers = append(c.readers, rdr)
	}

	if len(c.revisions) == 0 {
		return nil, fmt.Errorf("xrefcache: no parseable revision found")
	}

	c.fingerprints = make([]map[ObjectRef]string, len(c.revisions))
	c.explicit = make([]map[ObjectRef]bool, len(c.revisions))
	return c, nil
}

func consumeTrailingEOL(buf []byte, from int) int {
	end := from
	for end < len(buf) && (buf[end] == '\r' || buf[end] == '\n') {
		end++
		// A single CRLF or LF is conventional; don't swallow blank
		// lines beyond that.
		if end-from >= 2 {
			break
		}
	}
	return end
}

// Count returns the number of revisions found.
func (c *Cache) Count() int {
	return len(c.revisions)
}

// Revision returns metadata about the revision at the given index.
func (c *Cache) Revision(revision int) Revision {
	return c.revisions[revision]
}

// StartXref returns the recorded startxref value of the given revision.
func (c *Cache) StartXref(revision int) int64 {
	return c.revisions[revision].StartXref
}

// EndOffset returns the byte offset immediately following the given
// revision's %%EOF.
func (c *Cache) EndOffset(revision int) int64 {
	return c.revisions[revision].EndOffset
}

// Reader returns the pdf.Reader bounded to the given revision: the object
// graph visible is exactly as it existed once that revision was written,
// with no knowledge of any later incremental update.
func (c *Cache) Reader(revision int) (*pdf.Reader, error) {
	if revision < 0 || revision >= len(c.readers) {
		return nil, fmt.Errorf("xrefcache: revision %d out of range (have %d)", revision, len(c.readers))
	}
	return c.readers[revision], nil
}

// fingerprintsFor lazily computes the id+gen -> canonical-bytes map for a
// revision by walking that revision's own Xref() table.
func (c *Cache) fingerprintsFor(revision int) map[ObjectRef]string {
	if c.fingerprints[revision] != nil {
		return c.fingerprints[revision]
	}
	rdr := c.readers[revision]
	out := make(map[ObjectRef]string)
	for _, x := range rdr.Xref() {
		ptr := x.Ptr()
		ref := ObjectRef{ID: ptr.GetID(), Gen: uint16(ptr.GetGen())}
		value := rdr.Resolve(ptr, ptr)
		var b bytes.Buffer
		CanonicalBytes(&b, ref.ID, value)
		out[ref] = b.String()
	}
	c.fingerprints[revision] = out
	return out
}

// ExplicitRefsInRevision returns the set of objects whose xref entry was
// newly written (new object, or an existing object whose content changed)
// in the given revision. For revision 0 this is every object the document
// starts with. This is the "new_xrefs" input spec.md's RevisionDiff
// algorithm consumes.
func (c *Cache) ExplicitRefsInRevision(revision int) map[ObjectRef]bool {
	if c.explicit[revision] != nil {
		return c.explicit[revision]
	}

	current := c.fingerprintsFor(revision)
	out := make(map[ObjectRef]bool, len(current))

	if revision == 0 {
		for ref := range current {
			out[ref] = true
		}
		c.explicit[revision] = out
		return out
	}

	previous := c.fingerprintsFor(revision - 1)
	for ref, fp := range current {
		if prevFp, ok := previous[ref]; !ok || prevFp != fp {
			out[ref] = true
		}
	}
	c.explicit[revision] = out
	return out
}

// HasRefAtOrBefore reports whether ref already had an xref entry at or
// before the given revision (i.e. it is not first introduced by a later
// revision). RevisionDiff's whitelist_if_fresh rule uses this: a reference
// found in a new revision is only safe to whitelist automatically when the
// xref cache has no entry for that object id at the signed revision.
func (c *Cache) HasRefAtOrBefore(ref ObjectRef, revision int) bool {
	if revision < 0 {
		return false
	}
	fp := c.fingerprintsFor(revision)
	_, ok := fp[ref]
	return ok
}
