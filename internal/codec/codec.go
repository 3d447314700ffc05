// Package codec serializes classifications for configuration management
// clients and parses seed documents for bulk import.
//
// Every exporter is deterministic: the same classification always yields
// the same bytes, so downstream agents can diff and cache documents.
// Documents name classes and parameters only; group structure and internal
// identifiers never appear in a classification document.
package codec

import (
	"io"

	"nodeclass/internal/domain"
)

// Exporter writes one node's classification document
type Exporter interface {
	Export(c *domain.Classification, w io.Writer) error
	Format() string
}

// Importer parses a seed document into a fragment
type Importer interface {
	Parse(r io.Reader) (*domain.SeedFragment, error)
	Format() string
}

// Supported classification formats
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// ExporterFor returns the classification exporter for a format name
func ExporterFor(format string) (Exporter, error) {
	switch format {
	case FormatYAML, "yml", "":
		return NewYAMLCodec(), nil
	case FormatJSON:
		return NewJSONCodec(), nil
	}
	return nil, domain.Invalidf("unsupported classification format %q", format)
}

// ImporterFor returns the seed importer for a format name
func ImporterFor(format string) (Importer, error) {
	switch format {
	case FormatSeed, FormatYAML, "yml", "":
		return NewSeedCodec(), nil
	case FormatAnsible:
		return NewAnsibleCodec(), nil
	}
	return nil, domain.Invalidf("unsupported import format %q", format)
}

// document is the wire shape shared by the YAML and JSON exporters
type document struct {
	Classes    []string          `json:"classes" yaml:"classes"`
	Parameters map[string]string `json:"parameters" yaml:"parameters"`
}

func newDocument(c *domain.Classification) document {
	doc := document{
		Classes:    make([]string, 0, len(c.Classes)),
		Parameters: make(map[string]string, len(c.Parameters)),
	}
	// Re-normalize so hand-built classifications serialize identically
	normalized := domain.NewClassification(c.Node)
	normalized.SetClasses(c.Classes)
	doc.Classes = append(doc.Classes, normalized.Classes...)
	for k, v := range c.Parameters {
		doc.Parameters[k] = v
	}
	return doc
}
