package schema

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fluxbase-eu/facetql/internal/fields"
)

//go:embed domains.yaml
var defaultDomains []byte

// Source fetches a complete schema document.
type Source interface {
	Fetch(ctx context.Context) (*Document, error)
	Name() string
}

// decodeDocument accepts either {"entities": {...}} or the bare entity map.
func decodeDocument(data []byte, unmarshal func([]byte, any) error) (*Document, error) {
	var doc Document
	if err := unmarshal(data, &doc); err == nil && len(doc.Entities) > 0 {
		return &doc, nil
	}
	var bare map[string]*Entity
	if err := unmarshal(data, &bare); err != nil {
		return nil, fmt.Errorf("failed to decode schema document: %w", err)
	}
	if len(bare) == 0 {
		return nil, fmt.Errorf("schema document defines no entities")
	}
	return &Document{Entities: bare}, nil
}

// DecodeJSON decodes a JSON schema document.
func DecodeJSON(data []byte) (*Document, error) {
	return decodeDocument(data, json.Unmarshal)
}

// DecodeYAML decodes a YAML (or JSON) schema document.
func DecodeYAML(data []byte) (*Document, error) {
	return decodeDocument(data, yaml.Unmarshal)
}

// FileSource reads a YAML or JSON schema file.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

func (s *FileSource) Fetch(_ context.Context) (*Document, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	if strings.HasSuffix(s.Path, ".json") {
		return DecodeJSON(data)
	}
	return DecodeYAML(data)
}

// RegistrySource derives a schema from the field registry: one column per
// filterable field, plus the value domains compiled into the binary.
type RegistrySource struct {
	Registry *fields.Registry
}

func (s *RegistrySource) Name() string {
	return "registry"
}

func (s *RegistrySource) Fetch(_ context.Context) (*Document, error) {
	doc, err := DecodeYAML(defaultDomains)
	if err != nil {
		return nil, err
	}
	for _, name := range s.Registry.Entities() {
		ent, _ := s.Registry.Entity(name)
		schemaEnt := &Entity{}
		for _, spec := range ent.Fields {
			if !spec.Allows(fields.ActionFilter) {
				continue
			}
			actions := make([]string, 0, len(spec.Actions))
			for _, a := range spec.Actions {
				actions = append(actions, string(a))
			}
			schemaEnt.Columns = append(schemaEnt.Columns, Column{
				ID:             spec.Name,
				DisplayName:    displayName(spec.Name),
				AlternateNames: spec.Aliases,
				Actions:        actions,
				ObjectEntity:   spec.ValueDomain,
				Type:           string(spec.Type),
			})
		}
		if existing, ok := doc.Entities[name]; ok {
			schemaEnt.Values = existing.Values
		}
		doc.Entities[name] = schemaEnt
	}
	return doc, nil
}

// displayName turns "open_access.is_oa" into "open access is oa".
func displayName(field string) string {
	r := strings.NewReplacer("_", " ", ".", " ")
	return r.Replace(field)
}

// StaticSource serves a fixed document, for tests and embedding.
type StaticSource struct {
	Doc *Document
}

func (s *StaticSource) Name() string {
	return "static"
}

func (s *StaticSource) Fetch(_ context.Context) (*Document, error) {
	if s.Doc == nil {
		return nil, fmt.Errorf("static schema source has no document")
	}
	// Snapshots index the entities in place, so hand out a copy.
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(s.Doc); err != nil {
		return nil, err
	}
	return DecodeJSON(buf.Bytes())
}
