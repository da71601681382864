package groupby

import (
	"sort"

	"github.com/fluxbase-eu/facetql/internal/schema"
)

// RawBucket is one bucket as returned by the backend.
type RawBucket struct {
	Key   string
	Count int64
}

// Bucket is one entry of the group_by response.
type Bucket struct {
	Key            string `json:"key"`
	KeyDisplayName string `json:"key_display_name"`
	Count          int64  `json:"count"`
}

// Resolve orders raw buckets, caps them to the plan size and attaches
// display names. missing is the count of documents without a value and is
// only reported when the plan includes unknowns.
func (p *Plan) Resolve(raw []RawBucket, missing int64, snap *schema.Snapshot) []Bucket {
	sorted := append([]RawBucket(nil), raw...)
	if p.OrderByKey {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	} else {
		sort.SliceStable(sorted, func(i, j int) bool {
			if sorted[i].Count != sorted[j].Count {
				return sorted[i].Count > sorted[j].Count
			}
			return sorted[i].Key < sorted[j].Key
		})
	}
	if len(sorted) > p.Size {
		sorted = sorted[:p.Size]
	}

	var domain *schema.Entity
	if p.Field != nil && p.Field.ValueDomain != "" {
		domain, _ = snap.Entity(p.Field.ValueDomain)
	}

	out := make([]Bucket, 0, len(sorted)+1)
	for _, b := range sorted {
		display := b.Key
		if domain != nil {
			if name, ok := domain.DisplayName(b.Key); ok {
				display = name
			}
		}
		out = append(out, Bucket{Key: b.Key, KeyDisplayName: display, Count: b.Count})
	}
	if p.IncludeUnknown && missing > 0 {
		out = append(out, Bucket{Key: UnknownKey, KeyDisplayName: UnknownKey, Count: missing})
	}
	return out
}
