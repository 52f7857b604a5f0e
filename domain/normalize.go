package domain

import (
	"fmt"
	"math"
	"reflect"

	"github.com/spf13/cast"
)

// Normalize reduces v to the canonical value set the data file can hold:
// nil, bool, int64, float64, string, []any and map[string]any. It runs at
// the codec boundary, over declared args and kwargs, and over rewards, so
// structural equality and the on-disk form agree no matter which decoder
// produced a value.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return uintToInt64(uint64(x))
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return uintToInt64(x)
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return Normalize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			norm, err := Normalize(rv.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			out[i] = norm
		}
		return out, nil
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := cast.ToStringE(iter.Key().Interface())
			if err != nil {
				return nil, fmt.Errorf("%w: map key %v", ErrUnrepresentableValue, iter.Key())
			}
			norm, err := Normalize(iter.Value().Interface())
			if err != nil {
				return nil, err
			}
			out[key] = norm
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnrepresentableValue, v)
}

func uintToInt64(x uint64) (any, error) {
	if x > math.MaxInt64 {
		return nil, fmt.Errorf("%w: uint value %d overflows int64", ErrUnrepresentableValue, x)
	}
	return int64(x), nil
}

// NormalizeSlice normalizes positional arguments, materializing an empty
// slice for nil input so definitions compare equal after a round trip.
func NormalizeSlice(args []any) ([]any, error) {
	if args == nil {
		return []any{}, nil
	}
	norm, err := Normalize(args)
	if err != nil {
		return nil, err
	}
	return norm.([]any), nil
}

// NormalizeMap normalizes keyword options, materializing an empty map for
// nil input.
func NormalizeMap(kwargs map[string]any) (map[string]any, error) {
	if kwargs == nil {
		return map[string]any{}, nil
	}
	norm, err := Normalize(kwargs)
	if err != nil {
		return nil, err
	}
	return norm.(map[string]any), nil
}

// NormalizeExample canonicalizes every value held by an example. Memo stays
// nil when absent so in-progress and memo-free trials keep their shape.
func NormalizeExample(e Example) (Example, error) {
	values, err := NormalizeMap(e.Values)
	if err != nil {
		return Example{}, err
	}
	out := Example{Values: values, Timestamp: e.Timestamp}
	if e.Memo != nil {
		memo, err := NormalizeMap(e.Memo)
		if err != nil {
			return Example{}, err
		}
		out.Memo = memo
	}
	if e.Loss != nil {
		if out.Loss, err = Normalize(e.Loss); err != nil {
			return Example{}, err
		}
	}
	if e.Gain != nil {
		if out.Gain, err = Normalize(e.Gain); err != nil {
			return Example{}, err
		}
	}
	return out, nil
}

// NormalizeParamDef canonicalizes a definition's args and kwargs.
func NormalizeParamDef(def ParamDef) (ParamDef, error) {
	args, err := NormalizeSlice(def.Args)
	if err != nil {
		return ParamDef{}, err
	}
	kwargs, err := NormalizeMap(def.Kwargs)
	if err != nil {
		return ParamDef{}, err
	}
	return ParamDef{Kind: def.Kind, Args: args, Kwargs: kwargs}, nil
}

// NormalizeData canonicalizes the whole aggregate. The result is what both
// codecs are required to reproduce: decode(encode(d)) == NormalizeData(d).
func NormalizeData(d Data) (Data, error) {
	out := Data{Params: make(Params, len(d.Params))}
	for name, def := range d.Params {
		norm, err := NormalizeParamDef(def)
		if err != nil {
			return Data{}, err
		}
		out.Params[name] = norm
	}
	out.Examples = make([]Example, len(d.Examples))
	for i, ex := range d.Examples {
		norm, err := NormalizeExample(ex)
		if err != nil {
			return Data{}, err
		}
		out.Examples[i] = norm
	}
	return out, nil
}

// NormalizeReward validates and canonicalizes a loss or gain value: a
// number, or a one-dimensional sequence of numbers. Anything of higher rank
// is rejected.
func NormalizeReward(v any) (any, error) {
	norm, err := Normalize(v)
	if err != nil {
		return nil, err
	}
	switch x := norm.(type) {
	case int64, float64:
		return norm, nil
	case []any:
		for _, elem := range x {
			switch elem.(type) {
			case int64, float64:
			default:
				return nil, fmt.Errorf("%w: element %T", ErrRewardShape, elem)
			}
		}
		return x, nil
	}
	return nil, fmt.Errorf("%w: %T", ErrRewardShape, v)
}
