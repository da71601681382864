package fields

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeOpenAlexID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		prefix   string
		expected string
		wantErr  bool
	}{
		{"bare short id", "W2741809807", "W", "https://openalex.org/W2741809807", false},
		{"lower case", "w2741809807", "W", "https://openalex.org/W2741809807", false},
		{"canonical url", "https://openalex.org/W2741809807", "W", "https://openalex.org/W2741809807", false},
		{"http url", "http://openalex.org/w1", "W", "https://openalex.org/W1", false},
		{"shorthand", "openalex:I27837315", "I", "https://openalex.org/I27837315", false},
		{"bare number completed with prefix", "27837315", "I", "https://openalex.org/I27837315", false},
		{"no prefix constraint", "P4310320990", "", "https://openalex.org/P4310320990", false},
		{"wrong entity letter", "A123", "W", "", true},
		{"garbage", "not-an-id", "W", "", true},
		{"bare number without prefix", "123", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeOpenAlexID(tt.raw, tt.prefix)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "'"+tt.raw+"' is not a valid OpenAlex ID.", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeExternalID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		scheme   string
		expected string
		errMsg   string
	}{
		{"doi bare", "10.1371/journal.pone.0266781", "doi", "https://doi.org/10.1371/journal.pone.0266781", ""},
		{"doi url upper case", "https://doi.org/10.1371/JOURNAL.PONE.0266781", "doi", "https://doi.org/10.1371/journal.pone.0266781", ""},
		{"doi shorthand", "doi:10.1371/journal.pone.0266781", "doi", "https://doi.org/10.1371/journal.pone.0266781", ""},
		{"doi dx url", "http://dx.doi.org/10.1000/182", "doi", "https://doi.org/10.1000/182", ""},
		{"orcid bare", "0000-0002-1825-009X", "orcid", "https://orcid.org/0000-0002-1825-009x", ""},
		{"orcid url", "https://orcid.org/0000-0002-1825-0097", "orcid", "https://orcid.org/0000-0002-1825-0097", ""},
		{"ror bare", "03vek6s52", "ror", "https://ror.org/03vek6s52", ""},
		{"ror shorthand", "ror:03vek6s52", "ror", "https://ror.org/03vek6s52", ""},
		{"issn", "1234-567X", "issn", "1234-567x", ""},
		{"pmid", "pmid:29456894", "pmid", "https://pubmed.ncbi.nlm.nih.gov/29456894", ""},
		{"invalid doi", "11.1/x", "doi", "", "'11.1/x' is not a valid DOI."},
		{"invalid orcid", "0000-0002", "orcid", "", "'0000-0002' is not a valid ORCID."},
		{"invalid issn", "12345678", "issn", "", "'12345678' is not a valid ISSN."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeExternalID(tt.raw, tt.scheme)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRegistry_NormalizeID(t *testing.T) {
	r := MustDefault()

	t.Run("openalex id", func(t *testing.T) {
		path, value, err := r.NormalizeID("works", "w42")
		require.NoError(t, err)
		assert.Equal(t, "id", path)
		assert.Equal(t, "https://openalex.org/W42", value)
	})

	t.Run("doi shorthand", func(t *testing.T) {
		path, value, err := r.NormalizeID("works", "doi:10.1000/XYZ")
		require.NoError(t, err)
		assert.Equal(t, "doi", path)
		assert.Equal(t, "https://doi.org/10.1000/xyz", value)
	})

	t.Run("orcid url for authors", func(t *testing.T) {
		path, value, err := r.NormalizeID("authors", "https://orcid.org/0000-0002-1825-0097")
		require.NoError(t, err)
		assert.Equal(t, "orcid", path)
		assert.Equal(t, "https://orcid.org/0000-0002-1825-0097", value)
	})

	t.Run("scheme not declared by entity", func(t *testing.T) {
		_, _, err := r.NormalizeID("topics", "doi:10.1000/xyz")
		require.Error(t, err)
		assert.Equal(t, "doi:10.1000/xyz not found", err.Error())
	})

	t.Run("wrong id letter", func(t *testing.T) {
		_, _, err := r.NormalizeID("authors", "W42")
		require.Error(t, err)
		assert.Equal(t, 404, err.(interface{ Status() int }).Status())
	})
}
