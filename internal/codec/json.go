package codec

import (
	"encoding/json"
	"fmt"
	"io"

	"nodeclass/internal/domain"
)

// JSONCodec handles JSON classification export
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return FormatJSON
}

// Export writes the classification as JSON. encoding/json sorts map keys,
// which keeps parameter order stable.
func (c *JSONCodec) Export(cl *domain.Classification, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(newDocument(cl)); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
