package directory

import "sort"

// Index wraps the session's cached device name-to-id mapping. It is built
// once per session, outside any fetch batch, and is read-only afterwards.
type Index struct {
	byName map[string]string
	names  []string
}

// NewIndex builds an index over a name-to-id mapping. The candidate order is
// made deterministic so repeated resolutions behave identically.
func NewIndex(byName map[string]string) *Index {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Index{byName: byName, names: names}
}

// Resolve maps a requested device label to its identifier, exact match first,
// then single-best fuzzy match at the package threshold.
func (ix *Index) Resolve(name string) (string, bool) {
	if id, ok := ix.byName[name]; ok {
		return id, true
	}

	match, ok := BestMatch(name, ix.names)
	if !ok {
		return "", false
	}
	return ix.byName[match.Candidate], true
}

// Len reports the number of known devices.
func (ix *Index) Len() int {
	return len(ix.names)
}
