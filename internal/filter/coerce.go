package filter

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const dateLayout = "2006-01-02"

var datetimeLayouts = []string{
	dateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339,
}

var numericRange = regexp.MustCompile(`^(\d+(?:\.\d+)?)?-(\d+(?:\.\d+)?)?$`)

type coercer func(spec *fields.Spec, tok string) (Value, error)

var coercers = map[fields.Type]coercer{
	fields.TypeBoolean:    coerceBoolean,
	fields.TypeNumeric:    rangeCoercer(parseNumber, splitNumericRange),
	fields.TypeDate:       rangeCoercer(parseDate, splitTimeRange(parseDate)),
	fields.TypeDateTime:   rangeCoercer(parseDateTime, splitTimeRange(parseDateTime)),
	fields.TypeTerm:       coerceTerm,
	fields.TypePhrase:     coerceText,
	fields.TypeSearch:     coerceText,
	fields.TypeOpenAlexID: coerceOpenAlexID,
	fields.TypeExternalID: coerceExternalID,
}

// CoerceValue converts one raw token to a typed value for spec. The null
// and !null literals are recognized for every type that accepts them.
func CoerceValue(spec *fields.Spec, tok string) (Value, error) {
	if spec.Type.AcceptsNull() {
		switch strings.ToLower(tok) {
		case "null":
			return Value{Op: OpNull}, nil
		case "!null":
			return Value{Op: OpNotNull}, nil
		}
	}
	c, ok := coercers[spec.Type]
	if !ok {
		return Value{}, queryerr.TypeCoercion("Field %s has unsupported type %s.", spec.Name, spec.Type)
	}
	return c(spec, tok)
}

func coerceBoolean(spec *fields.Spec, tok string) (Value, error) {
	switch strings.ToLower(tok) {
	case "true":
		return Value{Op: OpEq, Value: true}, nil
	case "false":
		return Value{Op: OpEq, Value: false}, nil
	}
	return Value{}, queryerr.TypeCoercion("Value for %s must be true, false null, or !null: not %s.", spec.Name, tok)
}

func coerceTerm(_ *fields.Spec, tok string) (Value, error) {
	return Value{Op: OpEq, Value: strings.ToLower(tok)}, nil
}

func coerceText(_ *fields.Spec, tok string) (Value, error) {
	return Value{Op: OpEq, Value: tok}, nil
}

func coerceOpenAlexID(spec *fields.Spec, tok string) (Value, error) {
	id, err := fields.NormalizeOpenAlexID(tok, spec.IDPrefix)
	if err != nil {
		return Value{}, err
	}
	return Value{Op: OpEq, Value: id}, nil
}

func coerceExternalID(spec *fields.Spec, tok string) (Value, error) {
	id, err := fields.NormalizeExternalID(tok, spec.Scheme)
	if err != nil {
		return Value{}, err
	}
	return Value{Op: OpEq, Value: id}, nil
}

type scalarParser func(spec *fields.Spec, s string) (any, error)

// rangeSplitter reports the bounds of an a-b range token, with nil for an
// open end, or ok=false when tok is not a range.
type rangeSplitter func(spec *fields.Spec, tok string) (lo, hi any, ok bool)

var comparators = []Op{OpGTE, OpLTE, OpGT, OpLT}

func rangeCoercer(parse scalarParser, split rangeSplitter) coercer {
	return func(spec *fields.Spec, tok string) (Value, error) {
		for _, op := range comparators {
			if rest, found := strings.CutPrefix(tok, string(op)); found {
				v, err := parse(spec, rest)
				if err != nil {
					return Value{}, err
				}
				return Value{Op: op, Value: v}, nil
			}
		}
		if lo, hi, ok := split(spec, tok); ok {
			return Value{Op: OpRange, Value: lo, Upper: hi}, nil
		}
		v, err := parse(spec, tok)
		if err != nil {
			return Value{}, err
		}
		return Value{Op: OpEq, Value: v}, nil
	}
}

func parseNumber(spec *fields.Spec, s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, queryerr.TypeCoercion("Value for param %s must be a number.", spec.Name)
	}
	return f, nil
}

func splitNumericRange(spec *fields.Spec, tok string) (any, any, bool) {
	m := numericRange.FindStringSubmatch(tok)
	if m == nil || (m[1] == "" && m[2] == "") {
		return nil, nil, false
	}
	var lo, hi any
	if m[1] != "" {
		lo, _ = parseNumber(spec, m[1])
	}
	if m[2] != "" {
		hi, _ = parseNumber(spec, m[2])
	}
	return lo, hi, true
}

func parseDate(spec *fields.Spec, s string) (any, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, queryerr.TypeCoercion("Value for param %s must be a date in format 2020-05-17.", spec.Name)
	}
	return t, nil
}

func parseDateTime(spec *fields.Spec, s string) (any, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return nil, queryerr.TypeCoercion("Value for param %s must be a date in format 2020-05-17 or a datetime in format 2020-05-17T10:30:00.", spec.Name)
}

// splitTimeRange splits at the first '-' where both sides are empty or
// parse, so hyphens inside the dates themselves are skipped.
func splitTimeRange(parse scalarParser) rangeSplitter {
	return func(spec *fields.Spec, tok string) (any, any, bool) {
		for i := 0; i < len(tok); i++ {
			if tok[i] != '-' {
				continue
			}
			left, right := tok[:i], tok[i+1:]
			if left == "" && right == "" {
				return nil, nil, false
			}
			lo, okLo := parseOptional(spec, parse, left)
			hi, okHi := parseOptional(spec, parse, right)
			if okLo && okHi {
				return lo, hi, true
			}
		}
		return nil, nil, false
	}
}

func parseOptional(spec *fields.Spec, parse scalarParser, s string) (any, bool) {
	if s == "" {
		return nil, true
	}
	v, err := parse(spec, s)
	return v, err == nil
}
