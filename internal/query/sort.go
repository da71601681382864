package query

// RelevancePath is the backend path of the relevance score sort key.
const RelevancePath = "_score"

// SortKey orders results by one backend path.
type SortKey struct {
	// Name is the field name as written by the caller, canonicalized.
	Name string
	Path string
	Desc bool
}

// Order returns "asc" or "desc".
func (k SortKey) Order() string {
	if k.Desc {
		return "desc"
	}
	return "asc"
}

// WithTieBreak appends an ascending sort on idPath unless it is already the
// final key, so that equal primary keys still produce a total order.
func WithTieBreak(keys []SortKey, idPath string) []SortKey {
	out := make([]SortKey, 0, len(keys)+1)
	for _, k := range keys {
		if k.Path == idPath {
			// The id is unique; anything after it is redundant.
			out = append(out, k)
			return out
		}
		out = append(out, k)
	}
	return append(out, SortKey{Name: idPath, Path: idPath})
}
