// Package filter compiles the flat URL filter grammar
// (field:value[,field:value...], OR via '|', group negation via a leading
// '!', ranges, comparators and null literals) into typed filter groups and
// backend-neutral predicates.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/fluxbase-eu/facetql/internal/fields"
)

// Op is the comparison a single filter value applies.
type Op string

const (
	OpEq      Op = "="
	OpGT      Op = ">"
	OpGTE     Op = ">="
	OpLT      Op = "<"
	OpLTE     Op = "<="
	OpRange   Op = "range"
	OpNull    Op = "null"
	OpNotNull Op = "!null"
)

// Value is one coerced entry of an OR-list. For OpRange, Value is the lower
// bound and Upper the upper bound; either may be nil for an open end.
type Value struct {
	Op    Op
	Value any
	Upper any
}

// Term is the OR-list of values supplied for one field, with a single
// negation flag covering the whole list.
type Term struct {
	Field   *fields.Spec
	Negated bool
	Values  []Value
}

// Group is the ordered AND-list of terms compiled from one filter string.
// Groups are immutable once returned by the parser.
type Group struct {
	Entity string
	Terms  []Term
}

// Empty reports whether the group filters nothing.
func (g *Group) Empty() bool {
	return g == nil || len(g.Terms) == 0
}

// HasSearch reports whether any term is a full-text search term.
func (g *Group) HasSearch() bool {
	if g == nil {
		return false
	}
	for _, t := range g.Terms {
		if t.Field.Type == fields.TypeSearch {
			return true
		}
	}
	return false
}

// String renders the group in canonical filter syntax: canonical field
// names and normalized values. Parsing the result yields an equal group.
func (g *Group) String() string {
	if g == nil {
		return ""
	}
	parts := make([]string, 0, len(g.Terms))
	for _, t := range g.Terms {
		parts = append(parts, t.String())
	}
	return strings.Join(parts, ",")
}

func (t Term) String() string {
	var sb strings.Builder
	sb.WriteString(t.Field.Name)
	sb.WriteByte(':')
	if t.Negated {
		sb.WriteByte('!')
	}
	for i, v := range t.Values {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(v.format(t.Field.Type))
	}
	return sb.String()
}

func (v Value) format(typ fields.Type) string {
	switch v.Op {
	case OpNull:
		return "null"
	case OpNotNull:
		return "!null"
	case OpRange:
		return formatScalar(v.Value, typ) + "-" + formatScalar(v.Upper, typ)
	case OpEq:
		return quote(formatScalar(v.Value, typ))
	default:
		return string(v.Op) + formatScalar(v.Value, typ)
	}
}

func formatScalar(v any, typ fields.Type) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if typ == fields.TypeDate {
			return x.Format(dateLayout)
		}
		return x.Format(time.RFC3339Nano)
	case string:
		return x
	default:
		return ""
	}
}

// quote wraps values that would otherwise re-parse differently: values
// containing separators, and values starting with a negation or a quote.
func quote(s string) string {
	if strings.ContainsAny(s, ",|") || strings.HasPrefix(s, "!") || strings.HasPrefix(s, `"`) {
		return `"` + s + `"`
	}
	return s
}
