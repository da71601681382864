package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/cli/output"
	"github.com/fluxbase-eu/facetql/internal/fields"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [entity]",
	Short: "List entities or the fields of one entity",
	Long: `List the registered entities, or the filter, sort and group-by fields of
one entity with their aliases.

Examples:
  facetql fields
  facetql fields works
  facetql fields authors -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFields,
}

func runFields(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	formatter := GetFormatter(cmd)

	if len(args) == 0 {
		if formatter.Format != output.FormatTable {
			return formatter.Print(registry.Entities())
		}
		data := output.TableData{Headers: []string{"ENTITY", "ID PREFIX", "FIELDS"}}
		for _, name := range registry.Entities() {
			ent, _ := registry.Entity(name)
			data.Rows = append(data.Rows, []string{name, ent.IDPrefix, fmt.Sprint(len(ent.Fields))})
		}
		return formatter.PrintTable(data)
	}

	ent, ok := registry.Entity(args[0])
	if !ok {
		return fmt.Errorf("%s is not a valid entity", args[0])
	}
	if formatter.Format != output.FormatTable {
		return formatter.Print(ent.Fields)
	}

	data := output.TableData{
		Headers: []string{"NAME", "TYPE", "PATH", "ACTIONS", "ALIASES"},
		Rows:    make([][]string, 0, len(ent.Fields)),
	}
	for _, f := range ent.Fields {
		data.Rows = append(data.Rows, []string{
			f.Name,
			string(f.Type),
			f.BackendPath,
			formatActions(f.Actions),
			strings.Join(f.Aliases, ", "),
		})
	}
	return formatter.PrintTable(data)
}

func formatActions(actions []fields.Action) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}
