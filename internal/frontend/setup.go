package frontend

import (
	ferrors "github.com/conneroisu/frontpage/internal/errors"
	"github.com/conneroisu/frontpage/internal/tstree"
)

// pageObject is the object type of a page entry point in the setup tree.
const pageObject = "PAGE"

// ResolvePageSetup returns the PAGE object for typeNum: the first top-level
// key whose value is PAGE and whose typeNum (default 0) matches. A matching
// PAGE without configuration is malformed.
func ResolvePageSetup(setup *tstree.Node, typeNum int) (*tstree.Node, error) {
	for _, key := range setup.Keys() {
		n := setup.Child(key)
		if n.Value() != pageObject || n.Int("typeNum", 0) != typeNum {
			continue
		}
		if !n.IsTree() {
			return nil, ferrors.ErrMalformedPageSetup.
				WithContext("object", key).
				WithContext("typeNum", typeNum)
		}
		return n, nil
	}
	return nil, ferrors.ErrPageNotConfigured.WithContext("typeNum", typeNum)
}

// RecordSource supplies the page record that content objects read through
// "field:" lookups.
type RecordSource interface {
	Record(setup *tstree.Node, path string) map[string]string
}

// SetupRecords reads page records from the "pages" container of the setup
// tree. Each child describes one page; its "path" selects it and its other
// scalar children become record fields.
type SetupRecords struct{}

// Record returns the fields of the page at path, or an empty record.
func (SetupRecords) Record(setup *tstree.Node, path string) map[string]string {
	record := map[string]string{"path": path}
	pages := setup.Child("pages")
	for _, key := range pages.Keys() {
		p := pages.Child(key)
		if p.String("path") != path {
			continue
		}
		for _, field := range p.Keys() {
			if f := p.Child(field); f.HasValue() {
				record[field] = f.Value()
			}
		}
		break
	}
	return record
}
