// Package codec implements the two interchangeable data file formats: TOML
// for sessions that should stay human-inspectable and MessagePack for the
// compact binary default. Both share one wire shape, a single mapping
// holding the keys "params" and "examples" and nothing else.
package codec

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/gitter-badger/bbopt/domain"
)

const (
	// TOMLExtension and MsgpackExtension are the data file suffixes; the
	// session appends them to the derived data file base name.
	TOMLExtension    = ".toml"
	MsgpackExtension = ".msgpack"
)

func toWire(d domain.Data) (map[string]any, error) {
	norm, err := domain.NormalizeData(d)
	if err != nil {
		return nil, err
	}

	params := make(map[string]any, len(norm.Params))
	for name, def := range norm.Params {
		params[name] = map[string]any{
			"kind":   def.Kind,
			"args":   def.Args,
			"kwargs": def.Kwargs,
		}
	}

	examples := make([]map[string]any, 0, len(norm.Examples))
	for _, ex := range norm.Examples {
		entry := map[string]any{
			"values":    ex.Values,
			"timestamp": ex.Timestamp,
		}
		if ex.Memo != nil {
			entry["memo"] = ex.Memo
		}
		if ex.Loss != nil {
			entry["loss"] = ex.Loss
		}
		if ex.Gain != nil {
			entry["gain"] = ex.Gain
		}
		examples = append(examples, entry)
	}

	return map[string]any{"params": params, "examples": examples}, nil
}

func fromWire(raw map[string]any) (domain.Data, error) {
	norm, err := domain.Normalize(raw)
	if err != nil {
		return domain.Data{}, fmt.Errorf("%w: %v", domain.ErrMalformedData, err)
	}
	top, ok := norm.(map[string]any)
	if !ok {
		return domain.Data{}, fmt.Errorf("%w: expected a {params, examples} mapping", domain.ErrMalformedData)
	}
	for key := range top {
		if key != "params" && key != "examples" {
			return domain.Data{}, fmt.Errorf("%w: unexpected key %q", domain.ErrMalformedData, key)
		}
	}

	// Either section may be absent: encoders differ on whether empty
	// containers are written out.
	rawParams := map[string]any{}
	if entry, ok := top["params"]; ok {
		if rawParams, ok = entry.(map[string]any); !ok {
			return domain.Data{}, fmt.Errorf("%w: params is not a mapping", domain.ErrMalformedData)
		}
	}
	rawExamples := []any{}
	if entry, ok := top["examples"]; ok {
		if rawExamples, ok = entry.([]any); !ok {
			return domain.Data{}, fmt.Errorf("%w: examples is not a sequence", domain.ErrMalformedData)
		}
	}

	data := domain.Data{Params: make(domain.Params, len(rawParams))}
	for name, entry := range rawParams {
		def, err := paramFromWire(name, entry)
		if err != nil {
			return domain.Data{}, err
		}
		data.Params[name] = def
	}

	data.Examples = make([]domain.Example, 0, len(rawExamples))
	for i, entry := range rawExamples {
		ex, err := exampleFromWire(i, entry)
		if err != nil {
			return domain.Data{}, err
		}
		data.Examples = append(data.Examples, ex)
	}
	return data, nil
}

func paramFromWire(name string, entry any) (domain.ParamDef, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return domain.ParamDef{}, fmt.Errorf("%w: param %q is not a mapping", domain.ErrMalformedData, name)
	}
	kind, ok := fields["kind"].(string)
	if !ok || kind == "" {
		return domain.ParamDef{}, fmt.Errorf("%w: param %q has no distribution kind", domain.ErrMalformedData, name)
	}
	def := domain.ParamDef{Kind: kind, Args: []any{}, Kwargs: map[string]any{}}
	if args, ok := fields["args"].([]any); ok {
		def.Args = args
	}
	if kwargs, ok := fields["kwargs"].(map[string]any); ok {
		def.Kwargs = kwargs
	}
	return def, nil
}

func exampleFromWire(index int, entry any) (domain.Example, error) {
	fields, ok := entry.(map[string]any)
	if !ok {
		return domain.Example{}, fmt.Errorf("%w: example %d is not a mapping", domain.ErrMalformedData, index)
	}
	ex := domain.Example{Values: map[string]any{}}
	if values, ok := fields["values"].(map[string]any); ok {
		ex.Values = values
	}
	if memo, ok := fields["memo"].(map[string]any); ok {
		ex.Memo = memo
	}
	if loss, ok := fields["loss"]; ok {
		ex.Loss = loss
	}
	if gain, ok := fields["gain"]; ok {
		ex.Gain = gain
	}
	if rawTS, ok := fields["timestamp"]; ok {
		ts, err := cast.ToFloat64E(rawTS)
		if err != nil {
			return domain.Example{}, fmt.Errorf("%w: example %d timestamp: %v", domain.ErrMalformedData, index, err)
		}
		ex.Timestamp = ts
	}
	return ex, nil
}
