package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// MsgpackCodec is the binary object format, the default for new sessions.
type MsgpackCodec struct{}

var _ ports.Codec = MsgpackCodec{}

func (MsgpackCodec) Extension() string {
	return MsgpackExtension
}

func (MsgpackCodec) Encode(data domain.Data) ([]byte, error) {
	wire, err := toWire(data)
	if err != nil {
		return nil, err
	}
	encoded, err := msgpack.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode data file: %w", err)
	}
	return encoded, nil
}

func (MsgpackCodec) Decode(raw []byte) (domain.Data, error) {
	var wire map[string]any
	if err := msgpack.Unmarshal(raw, &wire); err != nil {
		return domain.Data{}, fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
	}
	return fromWire(wire)
}
