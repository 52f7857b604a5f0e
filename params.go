package bbopt

import (
	"fmt"
	"math"
	"reflect"

	"github.com/spf13/cast"
)

// The helpers below are thin wrappers over Param: each declares a named
// parameter with a fixed distribution kind and coerces the backend's value
// to the natural Go type. All of them accept an optional kwargs map, most
// usefully {"guess": v} to seed serving mode before any history exists.

// RandRange declares an integer parameter over a half-open range, like a
// slice index: RandRange(name, stop), RandRange(name, start, stop) or
// RandRange(name, start, stop, step).
func (b *BlackBoxOptimizer) RandRange(name string, args []int64, kwargs ...map[string]any) (int64, error) {
	if len(args) < 1 || len(args) > 3 {
		return 0, fmt.Errorf("RandRange %q takes 1 to 3 range arguments, got %d", name, len(args))
	}
	raw := make([]any, len(args))
	for i, a := range args {
		raw[i] = a
	}
	v, err := b.Param(name, "randrange", raw, mergeKwargs(kwargs))
	if err != nil {
		return 0, err
	}
	return cast.ToInt64E(v)
}

// RandInt declares an integer parameter over the inclusive range
// [low, high].
func (b *BlackBoxOptimizer) RandInt(name string, low, high int64, kwargs ...map[string]any) (int64, error) {
	return b.RandRange(name, []int64{low, high + 1}, kwargs...)
}

// GetRandBits declares an integer parameter over [0, 2^bits).
func (b *BlackBoxOptimizer) GetRandBits(name string, bits int, kwargs ...map[string]any) (int64, error) {
	if bits < 1 || bits > 62 {
		return 0, fmt.Errorf("GetRandBits %q requires 1 <= bits <= 62, got %d", name, bits)
	}
	return b.RandRange(name, []int64{int64(1) << bits}, kwargs...)
}

// Choice declares a categorical parameter picked from the given options.
func (b *BlackBoxOptimizer) Choice(name string, options []any, kwargs ...map[string]any) (any, error) {
	return b.Param(name, "choice", []any{options}, mergeKwargs(kwargs))
}

// RandBool declares a boolean parameter.
func (b *BlackBoxOptimizer) RandBool(name string, kwargs ...map[string]any) (bool, error) {
	v, err := b.Choice(name, []any{false, true}, kwargs...)
	if err != nil {
		return false, err
	}
	return cast.ToBoolE(v)
}

// Random declares a float parameter uniform over [0, 1).
func (b *BlackBoxOptimizer) Random(name string, kwargs ...map[string]any) (float64, error) {
	return b.Uniform(name, 0, 1, kwargs...)
}

// Uniform declares a float parameter uniform over [low, high).
func (b *BlackBoxOptimizer) Uniform(name string, low, high float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "uniform", []any{low, high}, kwargs)
}

// Triangular declares a float parameter with a triangular distribution
// over [low, high] peaking at mode.
func (b *BlackBoxOptimizer) Triangular(name string, low, high, mode float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "triangular", []any{low, high, mode}, kwargs)
}

// BetaVariate declares a float parameter with a Beta(alpha, beta)
// distribution over (0, 1).
func (b *BlackBoxOptimizer) BetaVariate(name string, alpha, beta float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "betavariate", []any{alpha, beta}, kwargs)
}

// ExpoVariate declares a float parameter with an exponential distribution
// of the given rate.
func (b *BlackBoxOptimizer) ExpoVariate(name string, lambda float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "expovariate", []any{lambda}, kwargs)
}

// GammaVariate declares a float parameter with a Gamma(alpha, beta)
// distribution, beta being the scale.
func (b *BlackBoxOptimizer) GammaVariate(name string, alpha, beta float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "gammavariate", []any{alpha, beta}, kwargs)
}

// NormalVariate declares a normally distributed float parameter.
func (b *BlackBoxOptimizer) NormalVariate(name string, mu, sigma float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "normalvariate", []any{mu, sigma}, kwargs)
}

// Gauss is an alias for NormalVariate.
func (b *BlackBoxOptimizer) Gauss(name string, mu, sigma float64, kwargs ...map[string]any) (float64, error) {
	return b.NormalVariate(name, mu, sigma, kwargs...)
}

// LogNormVariate declares a log-normally distributed float parameter: the
// log of the value is normal with the given mu and sigma. The backend sees
// the underlying normal parameter, so a guess kwarg is given in the
// value's own scale and log-transformed here.
func (b *BlackBoxOptimizer) LogNormVariate(name string, mu, sigma float64, kwargs ...map[string]any) (float64, error) {
	kw, err := logTransformGuess(mergeKwargs(kwargs))
	if err != nil {
		return 0, fmt.Errorf("LogNormVariate %q: %w", name, err)
	}
	v, err := b.Param(name, "normalvariate", []any{mu, sigma}, kw)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	return math.Exp(f), nil
}

// LogUniform declares a float parameter whose log is uniform over
// [log(low), log(high)); both bounds must be positive. As with
// LogNormVariate, a guess kwarg is given in the value's own scale.
func (b *BlackBoxOptimizer) LogUniform(name string, low, high float64, kwargs ...map[string]any) (float64, error) {
	if low <= 0 || high <= 0 {
		return 0, fmt.Errorf("LogUniform %q bounds must be positive, got [%v, %v)", name, low, high)
	}
	kw, err := logTransformGuess(mergeKwargs(kwargs))
	if err != nil {
		return 0, fmt.Errorf("LogUniform %q: %w", name, err)
	}
	v, err := b.Param(name, "uniform", []any{math.Log(low), math.Log(high)}, kw)
	if err != nil {
		return 0, err
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	return math.Exp(f), nil
}

// VonMisesVariate declares a circular float parameter over [0, 2*pi) with
// mean angle mu and concentration kappa.
func (b *BlackBoxOptimizer) VonMisesVariate(name string, mu, kappa float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "vonmisesvariate", []any{mu, kappa}, kwargs)
}

// ParetoVariate declares a float parameter with a Pareto distribution of
// the given shape.
func (b *BlackBoxOptimizer) ParetoVariate(name string, alpha float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "paretovariate", []any{alpha}, kwargs)
}

// WeibullVariate declares a float parameter with a Weibull distribution of
// the given scale alpha and shape beta.
func (b *BlackBoxOptimizer) WeibullVariate(name string, alpha, beta float64, kwargs ...map[string]any) (float64, error) {
	return b.floatParam(name, "weibullvariate", []any{alpha, beta}, kwargs)
}

// Sample declares k draws without replacement from the population. Each
// position is its own declared parameter, name[i], holding an index into
// the elements still unpicked at that position, so backends search and
// serving replays position by position. A guess kwarg gives a guessed
// sample sequence in element form and is translated to indices here.
func (b *BlackBoxOptimizer) Sample(name string, population []any, k int, kwargs ...map[string]any) ([]any, error) {
	if k < 0 || k > len(population) {
		return nil, fmt.Errorf("Sample %q requires 0 <= k <= %d elements, got k=%d", name, len(population), k)
	}
	kw := mergeKwargs(kwargs)
	guess, hasGuess := kw["guess"].([]any)

	remaining := append([]any(nil), population...)
	out := make([]any, 0, k)
	for i := 0; i < k; i++ {
		if len(remaining) == 1 {
			// Forced pick, nothing left to search over.
			out = append(out, remaining[0])
			continue
		}
		posKw := kw
		if hasGuess {
			posKw = make(map[string]any, len(kw))
			for key, v := range kw {
				posKw[key] = v
			}
			posKw["guess"] = guessIndex(guess, i, remaining)
		}
		idx, err := b.RandRange(fmt.Sprintf("%s[%d]", name, i), []int64{int64(len(remaining))}, posKw)
		if err != nil {
			return nil, err
		}
		out = append(out, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return out, nil
}

// Shuffle declares a random permutation of the given sequence.
func (b *BlackBoxOptimizer) Shuffle(name string, xs []any, kwargs ...map[string]any) ([]any, error) {
	return b.Sample(name, xs, len(xs), kwargs...)
}

// guessIndex maps position i of a guessed sample onto an index into the
// still-unpicked elements, falling back to the first element when the
// guess does not cover the position.
func guessIndex(guess []any, i int, remaining []any) int64 {
	if i >= len(guess) {
		return 0
	}
	for j, v := range remaining {
		if reflect.DeepEqual(v, guess[i]) {
			return int64(j)
		}
	}
	return 0
}

func (b *BlackBoxOptimizer) floatParam(name, kind string, args []any, kwargs []map[string]any) (float64, error) {
	v, err := b.Param(name, kind, args, mergeKwargs(kwargs))
	if err != nil {
		return 0, err
	}
	return cast.ToFloat64E(v)
}

func mergeKwargs(kwargs []map[string]any) map[string]any {
	if len(kwargs) == 0 {
		return nil
	}
	merged := map[string]any{}
	for _, kw := range kwargs {
		for k, v := range kw {
			merged[k] = v
		}
	}
	return merged
}

// logTransformGuess rewrites a guess kwarg into the log domain without
// mutating the caller's map.
func logTransformGuess(kwargs map[string]any) (map[string]any, error) {
	raw, ok := kwargs["guess"]
	if !ok {
		return kwargs, nil
	}
	guess, err := cast.ToFloat64E(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid guess kwarg: %w", err)
	}
	if guess <= 0 {
		return nil, fmt.Errorf("guess kwarg must be positive, got %v", guess)
	}
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		out[k] = v
	}
	out["guess"] = math.Log(guess)
	return out, nil
}
