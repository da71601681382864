package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/internal/oqo"
	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/schema"
	"github.com/fluxbase-eu/facetql/internal/search"
)

var oqoCmd = &cobra.Command{
	Use:   "oqo",
	Short: "Validate and compile query objects",
	Long: `Validate and compile query objects against the configured entity
schema. Pass - to read the query object from stdin.`,
}

var oqoValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a query object",
	Long: `Validate a query object and print ok or the first error.

Examples:
  facetql oqo validate query.json
  echo '{"get_rows":"works"}' | facetql oqo validate -`,
	Args: cobra.ExactArgs(1),
	RunE: runOQOValidate,
}

var oqoCompileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Print the search index query for a query object",
	Long: `Validate a query object and print the Elasticsearch request body it
compiles to.

Examples:
  facetql oqo compile query.json`,
	Args: cobra.ExactArgs(1),
	RunE: runOQOCompile,
}

func init() {
	oqoCmd.AddCommand(oqoValidateCmd)
	oqoCmd.AddCommand(oqoCompileCmd)
}

func readQueryObject(cmd *cobra.Command, path string) (*oqo.Request, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read query object: %w", err)
	}
	return oqo.Decode(data)
}

// loadSnapshot fetches the entity schema from the configured source.
func loadSnapshot(ctx context.Context, source schema.Source) (*schema.Snapshot, error) {
	return schema.NewCache(source).Reload(ctx)
}

func runOQOValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := readQueryObject(cmd, args[0])
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	source, _ := newSchemaSource(cfg, registry)
	snap, err := loadSnapshot(cmd.Context(), source)
	if err != nil {
		return err
	}

	ok, msg := oqo.NewValidator(snap, oqo.WithRecover()).Check(req)
	if !ok {
		return fmt.Errorf("%s", msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ok")
	return nil
}

func runOQOCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	req, err := readQueryObject(cmd, args[0])
	if err != nil {
		return err
	}
	assembler, err := offlineAssembler(cfg)
	if err != nil {
		return err
	}
	source, _ := newSchemaSource(cfg, assembler.Registry())
	snap, err := loadSnapshot(cmd.Context(), source)
	if err != nil {
		return err
	}

	compiled, err := oqo.NewCompiler(assembler.Registry(), snap).Compile(req)
	if err != nil {
		return err
	}
	sreq, err := assembler.QueryRequest(compiled, results.Params{})
	if err != nil {
		return err
	}
	body, err := search.BuildBody(sreq)
	if err != nil {
		return err
	}
	return GetFormatter(cmd).Print(body)
}
