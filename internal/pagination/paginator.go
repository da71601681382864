// Package pagination validates page and cursor parameters and builds the
// deterministic sort a cursor traversal depends on.
package pagination

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const (
	DefaultPerPage  = 25
	MaxPerPage      = 50
	MaxResultWindow = 10000

	// CursorStart bootstraps a cursor traversal.
	CursorStart = "*"
)

// Mode selects page or cursor pagination.
type Mode string

const (
	ModePage   Mode = "page"
	ModeCursor Mode = "cursor"
)

const (
	msgPageWithCursor = "Cannot use page parameter with cursor pagination."
	msgPage           = "Page parameter must be a number greater than 0."
	msgPerPage        = "per-page parameter must be a number between 1 and %d."
	msgWindow         = "Maximum results size of %s records is supported through page pagination. Use cursor pagination (cursor=*) to access more records."
)

// Config bounds page pagination. Zero fields take the package defaults.
type Config struct {
	DefaultPerPage  int `mapstructure:"default_per_page"`
	MaxPerPage      int `mapstructure:"max_per_page"`
	MaxResultWindow int `mapstructure:"max_result_window"`
}

func (c Config) withDefaults() Config {
	if c.DefaultPerPage <= 0 {
		c.DefaultPerPage = DefaultPerPage
	}
	if c.MaxPerPage <= 0 {
		c.MaxPerPage = MaxPerPage
	}
	if c.MaxResultWindow <= 0 {
		c.MaxResultWindow = MaxResultWindow
	}
	if c.DefaultPerPage > c.MaxPerPage {
		c.DefaultPerPage = c.MaxPerPage
	}
	return c
}

// Params are the raw pagination parameters of a request.
type Params struct {
	Page    string
	PerPage string
	// Cursor is nil when the request does not use cursor pagination.
	Cursor *string
}

// Window is a validated slice of the result set.
type Window struct {
	Mode    Mode
	Page    int
	PerPage int
	// From is the record offset in page mode.
	From int
	// Cursor is the opaque backend token; empty starts a traversal.
	Cursor string
}

// Paginator turns request parameters into windows.
type Paginator struct {
	cfg Config
}

// New returns a paginator for cfg.
func New(cfg Config) *Paginator {
	return &Paginator{cfg: cfg.withDefaults()}
}

// Config returns the effective bounds.
func (p *Paginator) Config() Config {
	return p.cfg
}

// Window validates params. Page and cursor are mutually exclusive.
func (p *Paginator) Window(params Params) (Window, error) {
	page := strings.TrimSpace(params.Page)
	if page != "" && params.Cursor != nil {
		return Window{}, queryerr.Pagination(msgPageWithCursor)
	}

	perPage, err := p.perPage(params.PerPage)
	if err != nil {
		return Window{}, err
	}

	if params.Cursor != nil {
		cursor := strings.TrimSpace(*params.Cursor)
		if cursor == CursorStart {
			cursor = ""
		}
		return Window{Mode: ModeCursor, PerPage: perPage, Cursor: cursor}, nil
	}

	n := 1
	if page != "" {
		n, err = strconv.Atoi(page)
		if err != nil || n < 1 {
			return Window{}, queryerr.Pagination(msgPage)
		}
	}
	// n*perPage can overflow for huge pages.
	if n > p.cfg.MaxResultWindow/perPage {
		return Window{}, queryerr.Pagination(msgWindow, message.NewPrinter(language.English).Sprintf("%d", p.cfg.MaxResultWindow))
	}
	return Window{Mode: ModePage, Page: n, PerPage: perPage, From: (n - 1) * perPage}, nil
}

func (p *Paginator) perPage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return p.cfg.DefaultPerPage, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > p.cfg.MaxPerPage {
		return 0, queryerr.Pagination(msgPerPage, p.cfg.MaxPerPage)
	}
	return n, nil
}

// Sort appends the stable identifier tie-break to keys.
func (p *Paginator) Sort(keys []query.SortKey, idPath string) []query.SortKey {
	return query.WithTieBreak(keys, idPath)
}
