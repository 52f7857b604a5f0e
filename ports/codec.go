package ports

import "github.com/gitter-badger/bbopt/domain"

// Codec converts the aggregate to and from one on-disk representation.
// Both directions normalize, so decode(encode(d)) == domain.NormalizeData(d).
type Codec interface {
	Encode(data domain.Data) ([]byte, error)
	Decode(raw []byte) (domain.Data, error)

	// Extension is the data file suffix for this format, e.g. ".toml".
	Extension() string
}
