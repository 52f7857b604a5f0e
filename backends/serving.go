package backends

import (
	"errors"
	"fmt"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// servingBackend replays the best recorded configuration. It performs no
// search, and the session never commits while it is active, so serving
// sessions are safe to run in read-only deployment.
type servingBackend struct {
	examples []domain.Example
}

func newServingBackend(examples []domain.Example, _ domain.Params, _ map[string]any) (ports.Backend, error) {
	return &servingBackend{examples: examples}, nil
}

func (b *servingBackend) Param(name string, def domain.ParamDef) (any, error) {
	best, err := domain.BestExample(b.examples)
	switch {
	case err == nil:
		if value, ok := best.Values[name]; ok {
			return value, nil
		}
	case !errors.Is(err, domain.ErrNoRewardedExamples):
		return nil, err
	}
	if guess, ok := def.Kwargs["guess"]; ok {
		return guess, nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrNoRecordedValue, name)
}
