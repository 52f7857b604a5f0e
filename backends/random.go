package backends

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cast"
	exprand "golang.org/x/exp/rand"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// randomBackend draws i.i.d. values from the declared distribution,
// ignoring history. With a fixed opts["seed"] the draw sequence is
// reproducible.
type randomBackend struct {
	rng *exprand.Rand
	src exprand.Source
}

func newRandomBackend(_ []domain.Example, _ domain.Params, opts map[string]any) (ports.Backend, error) {
	src, err := SourceFromOptions(opts)
	if err != nil {
		return nil, err
	}
	return &randomBackend{rng: exprand.New(src), src: src}, nil
}

func (b *randomBackend) Param(_ string, def domain.ParamDef) (any, error) {
	return Draw(b.rng, b.src, def)
}

// SourceFromOptions builds the run's random source, in the form the distuv
// samplers consume. A zero or absent seed means a fresh nondeterministic
// source.
func SourceFromOptions(opts map[string]any) (exprand.Source, error) {
	var seed int64
	if raw, ok := opts["seed"]; ok {
		parsed, err := cast.ToInt64E(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid seed option: %w", err)
		}
		seed = parsed
	}
	if seed == 0 {
		seed = rand.Int63()
	}
	return exprand.NewSource(uint64(seed)), nil
}
