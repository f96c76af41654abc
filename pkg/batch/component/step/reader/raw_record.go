package reader

// RawRecord is one parsed input record: ordered field names and values.
// Values always has the same length as Names.
type RawRecord struct {
	Number int // record number within the input, 1-based, header lines excluded
	Line   int // physical line where the record starts, 1-based
	Names  []string
	Values []string
}

// Get returns the value of the named field.
func (r RawRecord) Get(name string) (string, bool) {
	for i, n := range r.Names {
		if n == name {
			return r.Values[i], true
		}
	}
	return "", false
}

// Map returns the record as a name to value map.
func (r RawRecord) Map() map[string]string {
	m := make(map[string]string, len(r.Names))
	for i, n := range r.Names {
		m[n] = r.Values[i]
	}
	return m
}
