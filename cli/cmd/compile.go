package cmd

import (
	"net/url"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/search"
)

var (
	compileFilter      string
	compileSearch      string
	compileSort        string
	compileGroupBy     string
	compileGroupBySize string
	compilePage        string
	compilePerPage     string
	compileCursor      string
	compileSelect      string
)

var compileCmd = &cobra.Command{
	Use:   "compile <entity>",
	Short: "Print the search index query for list parameters",
	Long: `Validate list parameters and print the Elasticsearch request body they
compile to. No backend is contacted; validation errors are printed with the
same wording the API returns.

Examples:
  facetql compile works --filter publication_year:2020,type:article
  facetql compile works --search "climate" --group-by authorships.institutions.country_code
  facetql compile authors --filter last_known_institutions.country_code:fr --cursor '*'`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringVar(&compileFilter, "filter", "", "Filter expression")
	compileCmd.Flags().StringVar(&compileSearch, "search", "", "Full-text search")
	compileCmd.Flags().StringVar(&compileSort, "sort", "", "Sort keys, e.g. cited_by_count:desc")
	compileCmd.Flags().StringVar(&compileGroupBy, "group-by", "", "Group-by field")
	compileCmd.Flags().StringVar(&compileGroupBySize, "group-by-size", "", "Group-by bucket count")
	compileCmd.Flags().StringVar(&compilePage, "page", "", "Page number")
	compileCmd.Flags().StringVar(&compilePerPage, "per-page", "", "Results per page")
	compileCmd.Flags().StringVar(&compileCursor, "cursor", "", "Cursor (* to start)")
	compileCmd.Flags().StringVar(&compileSelect, "select", "", "Comma-separated fields to return")
}

func compileValues(cmd *cobra.Command) url.Values {
	values := url.Values{}
	flags := map[string]string{
		"filter":        compileFilter,
		"search":        compileSearch,
		"sort":          compileSort,
		"group_by":      compileGroupBy,
		"group_by_size": compileGroupBySize,
		"page":          compilePage,
		"per-page":      compilePerPage,
		"cursor":        compileCursor,
		"select":        compileSelect,
	}
	flagNames := map[string]string{"group_by": "group-by", "group_by_size": "group-by-size"}
	for param, v := range flags {
		name := param
		if alias, ok := flagNames[param]; ok {
			name = alias
		}
		if cmd.Flags().Changed(name) {
			values.Set(param, v)
		}
	}
	return values
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	assembler, err := offlineAssembler(cfg)
	if err != nil {
		return err
	}

	compiled, err := assembler.Compile(args[0], results.ParseParams(compileValues(cmd)))
	if err != nil {
		return err
	}
	body, err := search.BuildBody(compiled.Request)
	if err != nil {
		return err
	}
	return GetFormatter(cmd).Print(body)
}
