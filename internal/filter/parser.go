package filter

import (
	"strings"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const (
	msgDuplicateParam = "Only one filter parameter is allowed. Your URL contains filters like: /works?filter=publication_year:2020&filter=is_oa:true. " +
		"Please combine and separate filters with a comma, like: /works?filter=publication_year:2020,is_oa:true."
	msgMisplacedNot = "The ! operator can only be used at the beginning of an OR query, like /works?filter=concepts.id:!C144133560|C15744967, " +
		"meaning NOT (C144133560 or C15744967). Problem value: %s"
	msgOrAcrossFields = "It looks like you're trying to do an OR query between filters and it's not supported. " +
		"You can do this: institutions.country_code:fr|en, but not this: institutions.country_code:gb|host_venue.issn:0957-1558. Problem value: %s"
	msgMalformed = "Invalid filter %s. Filters must be in the form field:value."
)

// Parser compiles filter strings against a field registry. A Parser is
// stateless and safe for concurrent use.
type Parser struct {
	registry *fields.Registry
}

// NewParser returns a parser resolving fields through registry.
func NewParser(registry *fields.Registry) *Parser {
	return &Parser{registry: registry}
}

// Registry returns the registry the parser resolves fields with.
func (p *Parser) Registry() *fields.Registry {
	return p.registry
}

// ParseParams parses the values of a repeated filter query parameter.
// Supplying the parameter more than once is rejected rather than unioned.
func (p *Parser) ParseParams(entity string, values []string) (*Group, error) {
	switch len(values) {
	case 0:
		return &Group{Entity: entity}, nil
	case 1:
		return p.Parse(entity, values[0])
	default:
		return nil, queryerr.Grammar(msgDuplicateParam)
	}
}

// ParseSections parses several AND-only filter sections for the same
// entity and unions them. A term in a later section replaces the terms of
// earlier sections on the same field.
func (p *Parser) ParseSections(entity string, sections ...string) (*Group, error) {
	out := &Group{Entity: entity}
	for _, section := range sections {
		g, err := p.Parse(entity, section)
		if err != nil {
			return nil, err
		}
		if len(g.Terms) == 0 {
			continue
		}
		override := make(map[*fields.Spec]bool, len(g.Terms))
		for _, t := range g.Terms {
			override[t.Field] = true
		}
		kept := out.Terms[:0:0]
		for _, t := range out.Terms {
			if !override[t.Field] {
				kept = append(kept, t)
			}
		}
		out.Terms = append(kept, g.Terms...)
	}
	return out, nil
}

// Parse compiles one filter string. An empty string yields an empty group.
func (p *Parser) Parse(entity, s string) (*Group, error) {
	if _, ok := p.registry.Entity(entity); !ok {
		return nil, queryerr.FieldResolution("%s is not a valid entity", entity)
	}

	g := &Group{Entity: entity}
	for _, entry := range splitTopLevel(s, ',') {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		name, region, found := strings.Cut(entry, ":")
		if !found {
			return nil, queryerr.Grammar(msgMalformed, entry)
		}
		spec, err := p.registry.Resolve(entity, strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		term, err := p.parseTerm(entity, spec, region)
		if err != nil {
			return nil, err
		}
		g.Terms = append(g.Terms, term)
	}
	return g, nil
}

func (p *Parser) parseTerm(entity string, spec *fields.Spec, region string) (Term, error) {
	term := Term{Field: spec}
	body := region
	if rest, found := strings.CutPrefix(body, "!"); found {
		term.Negated = true
		body = rest
	}

	var tokens []string
	if spec.Type == fields.TypeSearch {
		tokens = []string{body}
	} else {
		tokens = splitTopLevel(body, '|')
	}

	if err := p.checkOrList(entity, spec, region, tokens); err != nil {
		return Term{}, err
	}

	for _, tok := range tokens {
		v, err := CoerceValue(spec, unquote(tok))
		if err != nil {
			return Term{}, err
		}
		term.Values = append(term.Values, v)
	}

	// "!null" and a negated "null" mean the same thing; keep one form.
	if term.Negated && len(term.Values) == 1 && term.Values[0].Op == OpNull {
		term.Negated = false
		term.Values[0].Op = OpNotNull
	}
	return term, nil
}

func (p *Parser) checkOrList(entity string, spec *fields.Spec, region string, tokens []string) error {
	if len(tokens) < 2 {
		return nil
	}
	for i, tok := range tokens {
		if i > 0 && strings.HasPrefix(tok, "!") {
			return queryerr.Grammar(msgMisplacedNot, region)
		}
	}
	for i, tok := range tokens {
		if !spec.Type.IsRange() && !spec.IsList && hasComparator(tok) {
			return queryerr.Grammar(msgOrAcrossFields, region)
		}
		if i == 0 {
			continue
		}
		prefix, _, found := strings.Cut(tok, ":")
		if !found || fields.HasIDPrefix(tok) {
			continue
		}
		if _, ok := p.registry.Lookup(entity, prefix); ok {
			return queryerr.Grammar(msgOrAcrossFields, region)
		}
	}
	return nil
}

func hasComparator(tok string) bool {
	return strings.HasPrefix(tok, ">") || strings.HasPrefix(tok, "<")
}

// splitTopLevel splits s on sep outside double-quoted spans.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuote = !inQuote
		case sep:
			if !inQuote {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
