package revisiondiff

import (
	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfvalidate/xrefcache"
)

// collectIndirectRefs walks v's structure and returns every distinct
// indirect object id+gen reachable from it, following references
// transitively (an appearance stream may itself reference fonts or other
// resources that also need whitelisting). This is the same structural walk
// xrefcache.CanonicalBytes and the teacher's sign/pdfcatalog.go
// serializeCatalogEntry perform, inverted: instead of stopping at a
// reference boundary and emitting a token, it records the boundary and
// keeps going, guarding against cycles via visited.
func collectIndirectRefs(v pdf.Value) []xrefcache.ObjectRef {
	var out []xrefcache.ObjectRef
	visited := map[xrefcache.ObjectRef]bool{}
	walkIndirectRefs(v, v.GetPtr().GetID(), visited, &out)
	return out
}

func walkIndirectRefs(v pdf.Value, currentID uint32, visited map[xrefcache.ObjectRef]bool, out *[]xrefcache.ObjectRef) {
	if ref, ok := refOf(v, currentID); ok {
		if visited[ref] {
			return
		}
		visited[ref] = true
		*out = append(*out, ref)
		currentID = ref.ID
	}

	switch v.Kind() {
	case pdf.Dict, pdf.Stream:
		for _, k := range v.Keys() {
			walkIndirectRefs(v.Key(k), currentID, visited, out)
		}
	case pdf.Array:
		for i := 0; i < v.Len(); i++ {
			walkIndirectRefs(v.Index(i), currentID, visited, out)
		}
	}
}
