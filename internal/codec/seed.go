package codec

import (
	"errors"
	"fmt"
	"io"

	"nodeclass/internal/domain"

	"gopkg.in/yaml.v3"
)

// FormatSeed identifies the native seed document
const FormatSeed = "seed"

// SeedCodec handles the native YAML seed document
type SeedCodec struct{}

// NewSeedCodec creates a new seed codec
func NewSeedCodec() *SeedCodec {
	return &SeedCodec{}
}

// Format returns the codec format identifier
func (c *SeedCodec) Format() string {
	return FormatSeed
}

// Parse reads a seed document. Unknown fields are rejected so typos in
// hand-edited seed files surface instead of being silently ignored.
func (c *SeedCodec) Parse(r io.Reader) (*domain.SeedFragment, error) {
	fragment := domain.NewSeedFragment()

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(fragment); err != nil {
		if errors.Is(err, io.EOF) {
			return fragment, nil
		}
		return nil, domain.Invalidf("failed to parse seed YAML: %v", err)
	}

	for i, g := range fragment.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("seed group #%d: %w", i+1, domain.Invalidf("name can't be blank"))
		}
	}
	for i, n := range fragment.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("seed node #%d: %w", i+1, domain.Invalidf("name can't be blank"))
		}
	}

	return fragment, nil
}

// Export writes a fragment back out as a seed document
func (c *SeedCodec) Export(fragment *domain.SeedFragment, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(fragment); err != nil {
		return fmt.Errorf("failed to encode seed YAML: %w", err)
	}

	return nil
}
