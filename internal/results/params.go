// Package results turns list request parameters into a backend search and
// shapes the backend response into the public envelope.
package results

import (
	"net/url"
	"strings"
)

// Params are the list parameters taken from a request URL.
type Params struct {
	// Filter holds every value of the filter parameter, blank ones
	// included. More than one is rejected by the parser.
	Filter      []string
	GroupBy     string
	GroupBySize string
	// Search is nil when neither search nor q was supplied.
	Search  *string
	Sort    string
	Page    string
	PerPage string
	// Cursor is nil outside cursor pagination.
	Cursor *string
	Select string
}

var paramAliases = map[string][]string{
	"group_by":      {"group_by", "group-by"},
	"group_by_size": {"group_by_size", "group-by-size"},
	"search":        {"search", "q"},
	"per_page":      {"per-page", "per_page"},
}

// ParseParams reads list parameters, accepting the hyphenated and short
// aliases of each.
func ParseParams(values url.Values) Params {
	p := Params{
		Filter:      values["filter"],
		GroupBy:     first(values, paramAliases["group_by"]...),
		GroupBySize: first(values, paramAliases["group_by_size"]...),
		Sort:        values.Get("sort"),
		Page:        values.Get("page"),
		PerPage:     first(values, paramAliases["per_page"]...),
		Select:      values.Get("select"),
	}
	for _, name := range paramAliases["search"] {
		if vs, ok := values[name]; ok && len(vs) > 0 {
			q := strings.TrimSpace(vs[0])
			p.Search = &q
			break
		}
	}
	if vs, ok := values["cursor"]; ok && len(vs) > 0 {
		c := vs[0]
		p.Cursor = &c
	}
	return p
}

func first(values url.Values, names ...string) string {
	for _, n := range names {
		if v := values.Get(n); v != "" {
			return v
		}
	}
	return ""
}
