package ports

import "github.com/gitter-badger/bbopt/domain"

// Backend chooses one concrete value per declared parameter. It holds
// borrowed read access to the history it was constructed with and never
// persists anything itself.
type Backend interface {
	Param(name string, def domain.ParamDef) (any, error)
}

// BackendConstructor builds a backend instance for one run from the
// accumulated history. Implementations must be deterministic for a fixed
// opts["seed"] and fixed history.
type BackendConstructor func(examples []domain.Example, params domain.Params, opts map[string]any) (Backend, error)
