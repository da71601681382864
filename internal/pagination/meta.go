package pagination

// Meta is the pagination part of the response meta block.
type Meta struct {
	Count      int64   `json:"count"`
	Page       *int    `json:"page,omitempty"`
	PerPage    *int    `json:"per_page,omitempty"`
	NextCursor *string `json:"next_cursor,omitempty"`
}

// Meta describes the window for a response with count total hits. next is
// the backend token for the following page, empty when no results remain.
func (w Window) Meta(count int64, next string) Meta {
	m := Meta{Count: count}
	if w.PerPage > 0 {
		perPage := w.PerPage
		m.PerPage = &perPage
	}
	switch w.Mode {
	case ModePage:
		page := w.Page
		m.Page = &page
	case ModeCursor:
		if next != "" {
			m.NextCursor = &next
		}
	}
	return m
}
