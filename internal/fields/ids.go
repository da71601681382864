package fields

import (
	"regexp"
	"strings"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

// OpenAlexBase is the canonical prefix of every OpenAlex id.
const OpenAlexBase = "https://openalex.org/"

var (
	openAlexPrefixes = []string{"https://openalex.org/", "http://openalex.org/", "openalex.org/", "openalex:"}
	openAlexShortID  = regexp.MustCompile(`^[a-z]\d+$`)
	digitsOnly       = regexp.MustCompile(`^\d+$`)
)

// NormalizeOpenAlexID accepts a bare short id (W123), a canonical URL or
// the openalex: shorthand, case-insensitively, and returns the canonical URL.
// When prefix is non-empty the id must carry that entity letter; a bare
// number is completed with it.
func NormalizeOpenAlexID(raw, prefix string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range openAlexPrefixes {
		if strings.HasPrefix(id, p) {
			id = id[len(p):]
			break
		}
	}

	prefix = strings.ToLower(prefix)
	if prefix != "" && digitsOnly.MatchString(id) {
		id = prefix + id
	}
	if !openAlexShortID.MatchString(id) || (prefix != "" && !strings.HasPrefix(id, prefix)) {
		return "", queryerr.TypeCoercion("'%s' is not a valid OpenAlex ID.", raw)
	}
	return OpenAlexBase + strings.ToUpper(id), nil
}

type externalScheme struct {
	label     string
	canonical string
	strip     []string
	valid     *regexp.Regexp
}

var externalSchemes = map[string]externalScheme{
	"doi": {
		label:     "DOI",
		canonical: "https://doi.org/",
		strip:     []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi.org/", "doi:"},
		valid:     regexp.MustCompile(`^10\.\d{4,9}/\S+$`),
	},
	"orcid": {
		label:     "ORCID",
		canonical: "https://orcid.org/",
		strip:     []string{"https://orcid.org/", "http://orcid.org/", "orcid.org/", "orcid:"},
		valid:     regexp.MustCompile(`^\d{4}-\d{4}-\d{4}-\d{3}[\dx]$`),
	},
	"ror": {
		label:     "ROR ID",
		canonical: "https://ror.org/",
		strip:     []string{"https://ror.org/", "http://ror.org/", "ror.org/", "ror:"},
		valid:     regexp.MustCompile(`^0[a-z0-9]{6}\d{2}$`),
	},
	"issn": {
		label: "ISSN",
		strip: []string{"issn:"},
		valid: regexp.MustCompile(`^\d{4}-\d{3}[\dx]$`),
	},
	"pmid": {
		label:     "PMID",
		canonical: "https://pubmed.ncbi.nlm.nih.gov/",
		strip:     []string{"https://pubmed.ncbi.nlm.nih.gov/", "http://pubmed.ncbi.nlm.nih.gov/", "pmid:"},
		valid:     regexp.MustCompile(`^\d+$`),
	},
	"pmcid": {
		label:     "PMCID",
		canonical: "https://www.ncbi.nlm.nih.gov/pmc/articles/",
		strip:     []string{"https://www.ncbi.nlm.nih.gov/pmc/articles/", "pmcid:"},
		valid:     regexp.MustCompile(`^pmc\d+$`),
	},
	"wikidata": {
		label:     "Wikidata ID",
		canonical: "https://www.wikidata.org/wiki/",
		strip:     []string{"https://www.wikidata.org/wiki/", "http://www.wikidata.org/wiki/", "wikidata:"},
		valid:     regexp.MustCompile(`^q\d+$`),
	},
}

// NormalizeExternalID strips any accepted prefix of the scheme, validates the
// bare id and returns the lower-cased canonical form.
func NormalizeExternalID(raw, scheme string) (string, error) {
	s, ok := externalSchemes[scheme]
	if !ok {
		return "", queryerr.TypeCoercion("'%s' is not a valid external ID.", raw)
	}
	id := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range s.strip {
		if strings.HasPrefix(id, p) {
			id = id[len(p):]
			break
		}
	}
	if !s.valid.MatchString(id) {
		return "", queryerr.TypeCoercion("'%s' is not a valid %s.", raw, s.label)
	}
	return s.canonical + id, nil
}

// detectScheme reports the external scheme a raw id is written in, by
// shorthand ("doi:...") or canonical URL.
func detectScheme(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for name, s := range externalSchemes {
		for _, p := range s.strip {
			if strings.HasPrefix(lower, p) {
				return name, true
			}
		}
	}
	return "", false
}

// NormalizeID resolves a single-record lookup id for an entity. OpenAlex ids
// resolve against the entity's id field; external ids in shorthand or URL
// form resolve against the entity field declaring that scheme.
func (r *Registry) NormalizeID(entity, raw string) (path, value string, err error) {
	ent, ok := r.Entity(entity)
	if !ok {
		return "", "", queryerr.NotFound("%s is not a valid entity", entity)
	}
	if scheme, ok := detectScheme(raw); ok {
		for _, spec := range ent.Fields {
			if spec.Type == TypeExternalID && spec.Scheme == scheme {
				v, err := NormalizeExternalID(raw, scheme)
				if err != nil {
					return "", "", queryerr.NotFound("%s not found", raw)
				}
				return spec.BackendPath, v, nil
			}
		}
		return "", "", queryerr.NotFound("%s not found", raw)
	}
	v, err := NormalizeOpenAlexID(raw, ent.IDPrefix)
	if err != nil {
		return "", "", queryerr.NotFound("%s not found", raw)
	}
	return ent.IDField, v, nil
}

// HasIDPrefix reports whether raw starts with an OpenAlex or external id
// prefix such as "openalex:", "doi:" or a canonical id URL.
func HasIDPrefix(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, p := range openAlexPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	_, ok := detectScheme(raw)
	return ok
}
