package domain

import (
	"reflect"

	"github.com/spf13/cast"
)

// ParamDef records how a parameter was declared: the distribution family,
// its positional arguments and its keyword options.
type ParamDef struct {
	Kind   string
	Args   []any
	Kwargs map[string]any
}

// Params maps parameter names to the most recently observed definition.
type Params map[string]ParamDef

// Example is the persisted record of one completed trial. Exactly one of
// Loss or Gain is set once the trial is finalized; both are nil while the
// trial is in progress. Timestamp is assigned under the commit lock, so it
// reflects commit order across processes rather than submission order.
type Example struct {
	Values    map[string]any
	Memo      map[string]any
	Loss      any
	Gain      any
	Timestamp float64
}

// HasReward reports whether the trial has been finalized.
func (e Example) HasReward() bool {
	return e.Loss != nil || e.Gain != nil
}

// Equal compares two examples structurally over their normalized form, so
// an example read back from either data file format matches the in-memory
// record it was written from.
func (e Example) Equal(other Example) bool {
	a, err := NormalizeExample(e)
	if err != nil {
		return reflect.DeepEqual(e, other)
	}
	b, err := NormalizeExample(other)
	if err != nil {
		return reflect.DeepEqual(e, other)
	}
	return reflect.DeepEqual(a, b)
}

// Data is the persisted aggregate: the latest definition per parameter name
// and every recorded example, in commit order.
type Data struct {
	Params   Params
	Examples []Example
}

// TellExamples appends the given examples, skipping structural duplicates.
func (d *Data) TellExamples(examples []Example) {
	for _, ex := range examples {
		if !containsExample(d.Examples, ex) {
			d.Examples = append(d.Examples, ex)
		}
	}
}

// Merge folds a freshly read aggregate into d. Examples are deduplicated by
// equality; parameter definitions already present in d win, since they are
// the most current for this process.
func (d *Data) Merge(fresh Data) {
	d.TellExamples(fresh.Examples)
	if d.Params == nil {
		d.Params = Params{}
	}
	for name, def := range fresh.Params {
		if _, ok := d.Params[name]; !ok {
			d.Params[name] = def
		}
	}
}

// Clone returns a copy whose params map and examples slice can be mutated
// without affecting d.
func (d Data) Clone() Data {
	out := Data{Params: make(Params, len(d.Params))}
	for name, def := range d.Params {
		out.Params[name] = def
	}
	out.Examples = append([]Example(nil), d.Examples...)
	return out
}

// MergeParams overlays local definitions onto old ones, local winning on
// collision.
func MergeParams(old, local Params) Params {
	out := make(Params, len(old)+len(local))
	for name, def := range old {
		out[name] = def
	}
	for name, def := range local {
		out[name] = def
	}
	return out
}

func containsExample(examples []Example, ex Example) bool {
	for _, existing := range examples {
		if existing.Equal(ex) {
			return true
		}
	}
	return false
}

// BestExample selects the optimal recorded trial: the minimum loss when any
// example carries a loss, otherwise the maximum gain. Ties go to the
// earliest stored example. Vector rewards compare by their sum.
func BestExample(examples []Example) (Example, error) {
	useLoss := false
	for _, ex := range examples {
		if ex.Loss != nil {
			useLoss = true
			break
		}
	}

	var (
		best      Example
		bestScore float64
		found     bool
	)
	for _, ex := range examples {
		var raw any
		if useLoss {
			raw = ex.Loss
		} else {
			raw = ex.Gain
		}
		if raw == nil {
			continue
		}
		score, err := rewardScore(raw)
		if err != nil {
			return Example{}, err
		}
		if !found || (useLoss && score < bestScore) || (!useLoss && score > bestScore) {
			best = ex
			bestScore = score
			found = true
		}
	}
	if !found {
		return Example{}, ErrNoRewardedExamples
	}
	return best, nil
}

func rewardScore(raw any) (float64, error) {
	norm, err := Normalize(raw)
	if err != nil {
		return 0, err
	}
	if seq, ok := norm.([]any); ok {
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
	return cast.ToFloat64E(norm)
}
