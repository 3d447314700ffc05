package codec

import (
	"fmt"
	"io"

	"nodeclass/internal/domain"

	"gopkg.in/yaml.v3"
)

// YAMLCodec writes the external node classifier document
type YAMLCodec struct{}

// NewYAMLCodec creates a new YAML codec
func NewYAMLCodec() *YAMLCodec {
	return &YAMLCodec{}
}

// Format returns the codec format identifier
func (c *YAMLCodec) Format() string {
	return FormatYAML
}

// Export writes the classification as a YAML document with a classes list
// followed by a parameters map. yaml.v3 emits map keys in sorted order.
func (c *YAMLCodec) Export(cl *domain.Classification, w io.Writer) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	if err := encoder.Encode(newDocument(cl)); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return nil
}
