package results

import (
	"maps"

	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/schema"
	"github.com/fluxbase-eu/facetql/internal/search"
)

// Meta is the meta block of a list response.
type Meta struct {
	pagination.Meta
	Q *string `json:"q,omitempty"`
}

// Envelope is the public list response.
type Envelope struct {
	Meta    Meta             `json:"meta"`
	Results []map[string]any `json:"results"`
	// GroupBy is nil unless the request grouped; an empty grouping renders
	// as an empty list.
	GroupBy *[]groupby.Bucket `json:"group_by,omitempty"`
}

func (a *Assembler) envelope(req *search.Request, resp *search.Response, q *string, withScore bool) *Envelope {
	env := &Envelope{
		Meta: Meta{
			Meta: req.Window.Meta(resp.Total, resp.NextCursor),
			Q:    q,
		},
		Results: make([]map[string]any, 0, len(resp.Hits)),
	}

	for _, hit := range resp.Hits {
		doc := hit.Source
		if withScore {
			doc = maps.Clone(doc)
			if doc == nil {
				doc = make(map[string]any, 1)
			}
			doc[RelevanceScore] = hit.Score
		}
		env.Results = append(env.Results, doc)
	}

	if req.GroupBy != nil {
		var snap *schema.Snapshot
		if a.schema != nil {
			snap = a.schema.Snapshot()
		}
		buckets := req.GroupBy.Resolve(resp.Buckets, resp.Missing, snap)
		env.GroupBy = &buckets
	}
	return env
}
