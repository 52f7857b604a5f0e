package backends

import (
	"errors"
	"fmt"

	exprand "golang.org/x/exp/rand"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// Component configures one arm of the mixture backend.
type Component struct {
	Backend string
	Weight  float64
	Options map[string]any
}

// mixtureBackend delegates each parameter call to one of its arms, chosen
// at random in proportion to the configured weights. Sub-backends are
// constructed through the registry at run start, so they see the same
// history the mixture does.
type mixtureBackend struct {
	arms    []ports.Backend
	weights []float64
	total   float64
	rng     *exprand.Rand
}

func newMixtureBackend(registry *Registry) ports.BackendConstructor {
	return func(examples []domain.Example, params domain.Params, opts map[string]any) (ports.Backend, error) {
		components, ok := opts["components"].([]Component)
		if !ok || len(components) == 0 {
			return nil, errors.New("mixture backend requires a non-empty components option")
		}

		src, err := SourceFromOptions(opts)
		if err != nil {
			return nil, err
		}
		rng := exprand.New(src)

		b := &mixtureBackend{rng: rng}
		for i, c := range components {
			if c.Weight <= 0 {
				return nil, fmt.Errorf("mixture component %q weight must be positive", c.Backend)
			}
			subOpts := make(map[string]any, len(c.Options)+1)
			for k, v := range c.Options {
				subOpts[k] = v
			}
			if _, ok := subOpts["seed"]; !ok {
				if seed, ok := opts["seed"]; ok {
					// Offset per arm so arms do not mirror each other.
					subOpts["seed"] = addSeedOffset(seed, int64(i+1))
				}
			}
			arm, err := registry.New(c.Backend, examples, params, subOpts)
			if err != nil {
				return nil, err
			}
			b.arms = append(b.arms, arm)
			b.weights = append(b.weights, c.Weight)
			b.total += c.Weight
		}
		return b, nil
	}
}

func (b *mixtureBackend) Param(name string, def domain.ParamDef) (any, error) {
	pick := b.rng.Float64() * b.total
	for i, w := range b.weights {
		pick -= w
		if pick < 0 {
			return b.arms[i].Param(name, def)
		}
	}
	return b.arms[len(b.arms)-1].Param(name, def)
}

func addSeedOffset(seed any, offset int64) any {
	if s, ok := seed.(int64); ok {
		return s + offset
	}
	if s, ok := seed.(int); ok {
		return int64(s) + offset
	}
	return seed
}
