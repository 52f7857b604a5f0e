// Package backends holds the pluggable optimization backends and the
// registry that resolves them by name. Registration is an explicit step:
// an optional backend whose dependencies are unavailable is simply never
// registered, so looking it up reports an absent name instead of crashing
// the session at startup.
package backends

import (
	"fmt"
	"sort"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// Built-in backend names.
const (
	Serving = "serving"
	Random  = "random"
	Mixture = "mixture"
)

// Algorithm is a preset: a backend name plus fixed options, registered
// under a shorthand name.
type Algorithm struct {
	Backend string
	Options map[string]any
}

// Registry maps backend names to constructors and algorithm names to
// presets.
type Registry struct {
	constructors map[string]ports.BackendConstructor
	algorithms   map[string]Algorithm
}

func NewRegistry() *Registry {
	return &Registry{
		constructors: map[string]ports.BackendConstructor{},
		algorithms:   map[string]Algorithm{},
	}
}

// Default returns a registry with the built-in backends and their presets.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Serving, newServingBackend)
	r.Register(Random, newRandomBackend)
	r.Register(Mixture, newMixtureBackend(r))
	r.RegisterAlgorithm(Serving, Algorithm{Backend: Serving})
	r.RegisterAlgorithm(Random, Algorithm{Backend: Random})
	return r
}

func (r *Registry) Register(name string, ctor ports.BackendConstructor) {
	r.constructors[name] = ctor
}

func (r *Registry) RegisterAlgorithm(name string, alg Algorithm) {
	r.algorithms[name] = alg
}

// Available lists the registered backend names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Algorithms lists the registered preset names, sorted.
func (r *Registry) Algorithms() []string {
	names := make([]string, 0, len(r.algorithms))
	for name := range r.algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New constructs the named backend for one run.
func (r *Registry) New(name string, examples []domain.Example, params domain.Params, opts map[string]any) (ports.Backend, error) {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, name)
	}
	return ctor(examples, params, opts)
}

// Algorithm resolves a preset name.
func (r *Registry) Algorithm(name string) (Algorithm, error) {
	alg, ok := r.algorithms[name]
	if !ok {
		return Algorithm{}, fmt.Errorf("%w: %q", domain.ErrUnknownAlgorithm, name)
	}
	return alg, nil
}
