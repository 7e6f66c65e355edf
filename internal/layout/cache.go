package layout

import "kiln/internal/hier"

type typeEntry struct {
	Layout TypeLayout
	Err    *Error
}

type recordEntry struct {
	Layout *RecordLayout
	Err    *Error
}

// cache memoizes per-type results. A populated entry is never recomputed
// within one compilation; errors are cached alongside results so repeated
// queries on a broken type stay cheap and consistent.
type cache struct {
	types   map[hier.TypeID]typeEntry
	records map[hier.TypeID]recordEntry
}

func newCache() *cache {
	return &cache{
		types:   make(map[hier.TypeID]typeEntry, 128),
		records: make(map[hier.TypeID]recordEntry, 64),
	}
}

func (c *cache) getType(id hier.TypeID) (typeEntry, bool) {
	e, ok := c.types[id]
	return e, ok
}

func (c *cache) putType(id hier.TypeID, e typeEntry) {
	c.types[id] = e
}

func (c *cache) getRecord(id hier.TypeID) (recordEntry, bool) {
	e, ok := c.records[id]
	return e, ok
}

func (c *cache) putRecord(id hier.TypeID, e recordEntry) {
	c.records[id] = e
}
