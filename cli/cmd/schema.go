package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxbase-eu/facetql/cli/output"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect and publish the entity schema",
}

var schemaShowCmd = &cobra.Command{
	Use:   "show [entity]",
	Short: "Show the entity schema from the configured source",
	Long: `Show the entities of the configured schema source, or the columns of one
entity.

Examples:
  facetql schema show
  facetql schema show works`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSchemaShow,
}

var schemaPushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Publish a schema document to Redis",
	Long: `Validate a YAML or JSON schema document and store it under
schema.redis.key. Running servers watching schema.redis.channel reload it.

Examples:
  facetql schema push schema.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSchemaPush,
}

func init() {
	schemaCmd.AddCommand(schemaShowCmd)
	schemaCmd.AddCommand(schemaPushCmd)
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
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
	formatter := GetFormatter(cmd)

	if len(args) == 0 {
		if formatter.Format != output.FormatTable {
			return formatter.Print(snap.Entities())
		}
		data := output.TableData{Headers: []string{"ENTITY", "COLUMNS", "VALUES"}}
		for _, name := range snap.Entities() {
			ent, _ := snap.Entity(name)
			data.Rows = append(data.Rows, []string{name, fmt.Sprint(len(ent.Columns)), fmt.Sprint(len(ent.Values))})
		}
		return formatter.PrintTable(data)
	}

	ent, ok := snap.Entity(args[0])
	if !ok {
		return fmt.Errorf("%s is not a valid entity", args[0])
	}
	if formatter.Format != output.FormatTable {
		return formatter.Print(ent)
	}
	data := output.TableData{Headers: []string{"COLUMN", "TYPE", "OBJECT ENTITY", "ACTIONS"}}
	for _, col := range ent.Columns {
		data.Rows = append(data.Rows, []string{col.ID, col.Type, col.ObjectEntity, strings.Join(col.Actions, ", ")})
	}
	return formatter.PrintTable(data)
}

func runSchemaPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	decode := schema.DecodeYAML
	if strings.HasSuffix(args[0], ".json") {
		decode = schema.DecodeJSON
	}
	doc, err := decode(data)
	if err != nil {
		return err
	}
	if _, err := schema.NewSnapshot(doc, args[0]); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	client := newRedisClient(cfg.Schema.Redis)
	defer client.Close()
	rs := schema.NewRedisSource(client, cfg.Schema.Redis.Key, cfg.Schema.Redis.Channel)
	if err := rs.Store(cmd.Context(), doc); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored schema with %d entities in %s\n", len(doc.Entities), cfg.Schema.Redis.Key)
	return nil
}
