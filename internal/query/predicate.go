// Package query holds the backend-neutral, validated predicate tree produced
// by the flat filter parser and by the query object compiler.
package query

// Predicate is a compiled condition on documents. Predicates are immutable
// after construction.
type Predicate interface {
	predicate()
}

// And matches documents matching every clause.
type And struct {
	Clauses []Predicate
}

// Or matches documents matching at least one clause.
type Or struct {
	Clauses []Predicate
}

// Not matches documents not matching the clause.
type Not struct {
	Clause Predicate
}

// Term is an exact value match.
type Term struct {
	Path            string
	Value           any
	CaseInsensitive bool
	// Nested is the repeated sub-object path containing Path, if any.
	Nested string
}

// Range is a bounded comparison. Unset bounds are nil.
type Range struct {
	Path   string
	GT     any
	GTE    any
	LT     any
	LTE    any
	Nested string
}

// Exists matches documents with a non-null value at Path.
type Exists struct {
	Path   string
	Nested string
}

// Phrase matches documents whose Path contains Text as a phrase.
type Phrase struct {
	Path string
	Text string
}

// FullText is a case-insensitive token match over one or more paths.
type FullText struct {
	Paths []string
	Text  string
}

// MatchAll matches every document.
type MatchAll struct{}

func (And) predicate()      {}
func (Or) predicate()       {}
func (Not) predicate()      {}
func (Term) predicate()     {}
func (Range) predicate()    {}
func (Exists) predicate()   {}
func (Phrase) predicate()   {}
func (FullText) predicate() {}
func (MatchAll) predicate() {}

// AllOf combines predicates with AND, flattening trivial cases.
func AllOf(preds ...Predicate) Predicate {
	var clauses []Predicate
	for _, p := range preds {
		if p == nil {
			continue
		}
		if _, all := p.(MatchAll); all {
			continue
		}
		clauses = append(clauses, p)
	}
	switch len(clauses) {
	case 0:
		return MatchAll{}
	case 1:
		return clauses[0]
	default:
		return And{Clauses: clauses}
	}
}

// AnyOf combines predicates with OR. A single clause is returned as is.
func AnyOf(preds ...Predicate) Predicate {
	switch len(preds) {
	case 0:
		return MatchAll{}
	case 1:
		return preds[0]
	default:
		return Or{Clauses: preds}
	}
}

// Negate wraps p in Not.
func Negate(p Predicate) Predicate {
	return Not{Clause: p}
}
