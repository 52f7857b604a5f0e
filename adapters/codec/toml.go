package codec

import (
	"fmt"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// TOMLCodec is the human-readable text format.
type TOMLCodec struct{}

var _ ports.Codec = TOMLCodec{}

func (TOMLCodec) Extension() string {
	return TOMLExtension
}

func (TOMLCodec) Encode(data domain.Data) ([]byte, error) {
	wire, err := toWire(data)
	if err != nil {
		return nil, err
	}
	encoded, err := toml.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode data file: %w", err)
	}
	return encoded, nil
}

func (TOMLCodec) Decode(raw []byte) (domain.Data, error) {
	var wire map[string]any
	if err := toml.Unmarshal(raw, &wire); err != nil {
		return domain.Data{}, fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
	}
	return fromWire(wire)
}
