// Package bayes provides a Gaussian-process backend that models each
// parameter's effect on the reward and picks the candidate an acquisition
// function rates most promising. It registers through the explicit
// Register step like any external plugin, so sessions that never call
// Register simply do not have the backend name available.
package bayes

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
	exprand "golang.org/x/exp/rand"

	"github.com/gitter-badger/bbopt/backends"
	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// Name is the backend name Register installs.
const Name = "gaussian_process"

const (
	defaultCandidates = 64
	defaultBeta       = 2.0
	defaultXi         = 0.01
)

// Register adds the backend and its algorithm presets to the registry.
func Register(r *backends.Registry) {
	r.Register(Name, newBackend)
	r.RegisterAlgorithm("gaussian_process", backends.Algorithm{
		Backend: Name,
		Options: map[string]any{"acquisition": "ucb", "beta": defaultBeta, "candidates": defaultCandidates},
	})
	r.RegisterAlgorithm("expected_improvement", backends.Algorithm{
		Backend: Name,
		Options: map[string]any{"acquisition": "ei", "xi": defaultXi, "candidates": defaultCandidates},
	})
}

type gpBackend struct {
	examples    []domain.Example
	rng         *exprand.Rand
	src         exprand.Source
	acquisition string
	beta        float64
	xi          float64
	candidates  int
}

func newBackend(examples []domain.Example, _ domain.Params, opts map[string]any) (ports.Backend, error) {
	src, err := backends.SourceFromOptions(opts)
	if err != nil {
		return nil, err
	}
	b := &gpBackend{
		examples:    examples,
		rng:         exprand.New(src),
		src:         src,
		acquisition: "ucb",
		beta:        defaultBeta,
		xi:          defaultXi,
		candidates:  defaultCandidates,
	}
	if raw, ok := opts["acquisition"]; ok {
		name, err := cast.ToStringE(raw)
		if err != nil || (name != "ucb" && name != "ei") {
			return nil, fmt.Errorf("unknown acquisition function %v", raw)
		}
		b.acquisition = name
	}
	if raw, ok := opts["beta"]; ok {
		if b.beta, err = cast.ToFloat64E(raw); err != nil {
			return nil, fmt.Errorf("invalid beta option: %w", err)
		}
	}
	if raw, ok := opts["xi"]; ok {
		if b.xi, err = cast.ToFloat64E(raw); err != nil {
			return nil, fmt.Errorf("invalid xi option: %w", err)
		}
	}
	if raw, ok := opts["candidates"]; ok {
		if b.candidates, err = cast.ToIntE(raw); err != nil || b.candidates < 1 {
			return nil, fmt.Errorf("invalid candidates option: %v", raw)
		}
	}
	return b, nil
}

// Param fits a one-dimensional process over the rewarded history for this
// parameter, then scores candidate draws from the declared distribution.
// With no usable history, or a non-numeric value domain, it falls back to
// a plain random draw.
func (b *gpBackend) Param(name string, def domain.ParamDef) (any, error) {
	gp := &gaussianProcess{sigma: 1}
	best := math.MaxFloat64
	for _, ex := range b.examples {
		raw, ok := ex.Values[name]
		if !ok {
			continue
		}
		x, err := cast.ToFloat64E(raw)
		if err != nil {
			continue
		}
		score, ok := minimizationScore(ex)
		if !ok {
			continue
		}
		gp.observe(x, score)
		if score < best {
			best = score
		}
	}

	first, err := backends.Draw(b.rng, b.src, def)
	if err != nil {
		return nil, err
	}
	if len(gp.x) == 0 {
		return first, nil
	}
	firstX, err := cast.ToFloat64E(first)
	if err != nil {
		// Categorical domain; the process cannot score it.
		return first, nil
	}

	bestValue := first
	bestAcq := b.score(gp, firstX, best)
	for i := 1; i < b.candidates; i++ {
		candidate, err := backends.Draw(b.rng, b.src, def)
		if err != nil {
			return nil, err
		}
		x, err := cast.ToFloat64E(candidate)
		if err != nil {
			continue
		}
		if acq := b.score(gp, x, best); acq < bestAcq {
			bestAcq = acq
			bestValue = candidate
		}
	}
	return bestValue, nil
}

// score rates a candidate; lower is more promising.
func (b *gpBackend) score(gp *gaussianProcess, x, best float64) float64 {
	mean, variance := gp.predict(x)
	if b.acquisition == "ei" {
		return expectedImprovement(mean, variance, best, b.xi)
	}
	return mean - b.beta*math.Sqrt(variance)
}

// minimizationScore folds a reward into the minimized objective: losses as
// they are, gains negated, vectors by their sum.
func minimizationScore(ex domain.Example) (float64, bool) {
	if ex.Loss != nil {
		f, err := rewardValue(ex.Loss)
		return f, err == nil
	}
	if ex.Gain != nil {
		f, err := rewardValue(ex.Gain)
		return -f, err == nil
	}
	return 0, false
}

func rewardValue(raw any) (float64, error) {
	if seq, ok := raw.([]any); ok {
		var sum float64
		for _, v := range seq {
			f, err := cast.ToFloat64E(v)
			if err != nil {
				return 0, err
			}
			sum += f
		}
		return sum, nil
	}
	return cast.ToFloat64E(raw)
}

func expectedImprovement(mean, variance, best, xi float64) float64 {
	sigma := math.Sqrt(variance)
	if sigma == 0 {
		return mean - best - xi
	}
	z := (mean - best - xi) / sigma
	return (mean-best-xi)*normalCDF(z) + sigma*normalPDF(z)
}

func normalCDF(x float64) float64 {
	return 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
}

func normalPDF(x float64) float64 {
	return math.Exp(-x*x/2.0) / math.Sqrt(2.0*math.Pi)
}
