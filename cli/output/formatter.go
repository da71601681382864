// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use table, json or yaml)", s)
	}
}

// TableData holds headers and rows for table output.
type TableData struct {
	Headers []string
	Rows    [][]string
}

// Formatter writes results in one format.
type Formatter struct {
	Format Format
	Out    io.Writer
}

// NewFormatter returns a formatter writing to out.
func NewFormatter(format Format, out io.Writer) *Formatter {
	return &Formatter{Format: format, Out: out}
}

// Print writes v as JSON or YAML. Table format falls back to JSON since
// arbitrary values have no columns.
func (f *Formatter) Print(v any) error {
	if f.Format == FormatYAML {
		enc := yaml.NewEncoder(f.Out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	return nil
}

// PrintTable renders data with tablewriter.
func (f *Formatter) PrintTable(data TableData) error {
	table := tablewriter.NewWriter(f.Out)
	headers := make([]any, len(data.Headers))
	for i, h := range data.Headers {
		headers[i] = h
	}
	table.Header(headers...)
	for _, row := range data.Rows {
		if err := table.Append(row); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}
	return table.Render()
}
