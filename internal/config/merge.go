package config

import (
	"dario.cat/mergo"
)

// mergeLayer folds override on top of base using the deep, key-by-key
// discipline described for the ConfigLoader: nested objects recurse,
// non-object leaves in override replace the corresponding base value
// outright. Both maps are JSON/YAML-shaped (string keys, values that are
// themselves maps, slices, or scalars).
//
// This is the one place mergo.WithOverride is used against untyped
// map[string]interface{} trees; the typed, field-by-field database merge
// used by the child-side ConfigMerger lives in childmerge.go and merges
// typed structs instead.
func mergeLayer(base, override map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(base))
	for k, v := range base {
		result[k] = v
	}
	if override == nil {
		return result, nil
	}
	if err := mergo.Merge(&result, override, mergo.WithOverride); err != nil {
		return nil, err
	}
	return result, nil
}

// mergeLayers folds a sequence of layers left to right; later layers
// take precedence, matching the ConfigLoader's defaults -> file -> env
// -> CLI ordering.
func mergeLayers(layers ...map[string]interface{}) (map[string]interface{}, error) {
	acc := map[string]interface{}{}
	var err error
	for _, layer := range layers {
		acc, err = mergeLayer(acc, layer)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
