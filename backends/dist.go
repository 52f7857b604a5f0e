package backends

import (
	"fmt"
	"math"

	"github.com/spf13/cast"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gitter-badger/bbopt/domain"
)

// Draw samples one value for the given definition. It is shared by the
// random backend and by candidate generation in model-based backends, so
// every backend supports the same distribution families. Parameter
// constraints are checked here: distuv panics on invalid parameters, and a
// bad declaration must surface as an error instead.
func Draw(rng *exprand.Rand, src exprand.Source, def domain.ParamDef) (any, error) {
	switch def.Kind {
	case "randrange":
		start, stop, step, err := randrangeArgs(def)
		if err != nil {
			return nil, err
		}
		n := (stop - start + step - 1) / step
		return start + step*rng.Int63n(n), nil
	case "choice":
		seq, err := choiceArg(def)
		if err != nil {
			return nil, err
		}
		return seq[rng.Intn(len(seq))], nil
	case "uniform":
		args, err := floatArgs(def, 2)
		if err != nil {
			return nil, err
		}
		return distuv.Uniform{Min: args[0], Max: args[1], Src: src}.Rand(), nil
	case "triangular":
		args, err := floatArgs(def, 3)
		if err != nil {
			return nil, err
		}
		low, high, mode := args[0], args[1], args[2]
		if !(low < high) || mode < low || mode > high {
			return nil, fmt.Errorf("%w: triangular requires low < high and low <= mode <= high, got (%v, %v, %v)",
				domain.ErrUnsupportedDistribution, low, high, mode)
		}
		return distuv.NewTriangle(low, high, mode, src).Rand(), nil
	case "betavariate":
		args, err := floatArgs(def, 2)
		if err != nil {
			return nil, err
		}
		if args[0] <= 0 || args[1] <= 0 {
			return nil, fmt.Errorf("%w: betavariate requires positive alpha and beta, got (%v, %v)",
				domain.ErrUnsupportedDistribution, args[0], args[1])
		}
		return distuv.Beta{Alpha: args[0], Beta: args[1], Src: src}.Rand(), nil
	case "expovariate":
		args, err := floatArgs(def, 1)
		if err != nil {
			return nil, err
		}
		if args[0] <= 0 {
			return nil, fmt.Errorf("%w: expovariate rate must be positive, got %v",
				domain.ErrUnsupportedDistribution, args[0])
		}
		return distuv.Exponential{Rate: args[0], Src: src}.Rand(), nil
	case "gammavariate":
		// Args follow the (shape, scale) convention, so the rate is the
		// inverse of the second argument.
		args, err := floatArgs(def, 2)
		if err != nil {
			return nil, err
		}
		if args[0] <= 0 || args[1] <= 0 {
			return nil, fmt.Errorf("%w: gammavariate requires positive shape and scale, got (%v, %v)",
				domain.ErrUnsupportedDistribution, args[0], args[1])
		}
		return distuv.Gamma{Alpha: args[0], Beta: 1 / args[1], Src: src}.Rand(), nil
	case "normalvariate":
		args, err := floatArgs(def, 2)
		if err != nil {
			return nil, err
		}
		if args[1] <= 0 {
			return nil, fmt.Errorf("%w: normalvariate sigma must be positive, got %v",
				domain.ErrUnsupportedDistribution, args[1])
		}
		return distuv.Normal{Mu: args[0], Sigma: args[1], Src: src}.Rand(), nil
	case "vonmisesvariate":
		mu, kappa, err := vonMisesArgs(def)
		if err != nil {
			return nil, err
		}
		return vonMises(rng, mu, kappa), nil
	case "paretovariate":
		args, err := floatArgs(def, 1)
		if err != nil {
			return nil, err
		}
		if args[0] <= 0 {
			return nil, fmt.Errorf("%w: paretovariate alpha must be positive, got %v",
				domain.ErrUnsupportedDistribution, args[0])
		}
		return distuv.Pareto{Xm: 1, Alpha: args[0], Src: src}.Rand(), nil
	case "weibullvariate":
		// Args follow the (scale, shape) convention.
		args, err := floatArgs(def, 2)
		if err != nil {
			return nil, err
		}
		if args[0] <= 0 || args[1] <= 0 {
			return nil, fmt.Errorf("%w: weibullvariate requires positive scale and shape, got (%v, %v)",
				domain.ErrUnsupportedDistribution, args[0], args[1])
		}
		return distuv.Weibull{K: args[1], Lambda: args[0], Src: src}.Rand(), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedDistribution, def.Kind)
}

func floatArgs(def domain.ParamDef, n int) ([]float64, error) {
	if len(def.Args) != n {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d",
			domain.ErrUnsupportedDistribution, def.Kind, n, len(def.Args))
	}
	out := make([]float64, n)
	for i, raw := range def.Args {
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s argument %d: %v",
				domain.ErrUnsupportedDistribution, def.Kind, i, err)
		}
		out[i] = f
	}
	return out, nil
}

// randrangeArgs accepts (stop), (start, stop) or (start, stop, step), with
// stop exclusive.
func randrangeArgs(def domain.ParamDef) (start, stop, step int64, err error) {
	ints := make([]int64, len(def.Args))
	for i, raw := range def.Args {
		v, castErr := cast.ToInt64E(raw)
		if castErr != nil {
			return 0, 0, 0, fmt.Errorf("%w: randrange argument %d: %v",
				domain.ErrUnsupportedDistribution, i, castErr)
		}
		ints[i] = v
	}
	switch len(ints) {
	case 1:
		start, stop, step = 0, ints[0], 1
	case 2:
		start, stop, step = ints[0], ints[1], 1
	case 3:
		start, stop, step = ints[0], ints[1], ints[2]
	default:
		return 0, 0, 0, fmt.Errorf("%w: randrange takes 1 to 3 arguments, got %d",
			domain.ErrUnsupportedDistribution, len(ints))
	}
	if step <= 0 || stop <= start {
		return 0, 0, 0, fmt.Errorf("%w: empty randrange(%d, %d, %d)",
			domain.ErrUnsupportedDistribution, start, stop, step)
	}
	return start, stop, step, nil
}

func choiceArg(def domain.ParamDef) ([]any, error) {
	if len(def.Args) != 1 {
		return nil, fmt.Errorf("%w: choice takes one sequence argument", domain.ErrUnsupportedDistribution)
	}
	seq, ok := def.Args[0].([]any)
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("%w: choice requires a non-empty sequence", domain.ErrUnsupportedDistribution)
	}
	return seq, nil
}

// vonMisesArgs accepts (kappa) with mu defaulting to zero, or (mu, kappa).
func vonMisesArgs(def domain.ParamDef) (mu, kappa float64, err error) {
	switch len(def.Args) {
	case 1:
		kappa, err = cast.ToFloat64E(def.Args[0])
	case 2:
		if mu, err = cast.ToFloat64E(def.Args[0]); err == nil {
			kappa, err = cast.ToFloat64E(def.Args[1])
		}
	default:
		err = fmt.Errorf("takes 1 or 2 arguments, got %d", len(def.Args))
	}
	if err != nil {
		return 0, 0, fmt.Errorf("%w: vonmisesvariate: %v", domain.ErrUnsupportedDistribution, err)
	}
	if kappa < 0 {
		return 0, 0, fmt.Errorf("%w: vonmisesvariate kappa must be non-negative, got %v",
			domain.ErrUnsupportedDistribution, kappa)
	}
	return mu, kappa, nil
}

// vonMises samples a circular normal via the Best-Fisher rejection method.
// gonum's distuv has no von Mises distribution.
func vonMises(rng *exprand.Rand, mu, kappa float64) float64 {
	if kappa <= 1e-6 {
		return 2 * math.Pi * rng.Float64()
	}

	s := 0.5 / kappa
	r := s + math.Sqrt(1+s*s)

	var z float64
	for {
		z = math.Cos(math.Pi * rng.Float64())
		d := z / (r + z)
		u := rng.Float64()
		if u < 1-d*d || u <= (1-d)*math.Exp(d) {
			break
		}
	}

	q := 1 / r
	f := (q + z) / (1 + q*z)
	theta := math.Mod(mu, 2*math.Pi)
	if rng.Float64() > 0.5 {
		theta += math.Acos(f)
	} else {
		theta -= math.Acos(f)
	}
	return theta
}
