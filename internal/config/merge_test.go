package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLayerPreservesUniqueKeysFromBothSides(t *testing.T) {
	base := map[string]interface{}{
		"a": 1,
		"nested": map[string]interface{}{
			"x": "base-x",
			"y": "base-y",
		},
	}
	override := map[string]interface{}{
		"b": 2,
		"nested": map[string]interface{}{
			"y": "override-y",
			"z": "override-z",
		},
	}

	result, err := mergeLayer(base, override)
	require.NoError(t, err)

	assert.Equal(t, 1, result["a"])
	assert.Equal(t, 2, result["b"])

	nested := result["nested"].(map[string]interface{})
	assert.Equal(t, "base-x", nested["x"])
	assert.Equal(t, "override-y", nested["y"])
	assert.Equal(t, "override-z", nested["z"])
}

func TestMergeLayerNonObjectLeafReplacesOutright(t *testing.T) {
	base := map[string]interface{}{"value": []interface{}{"a", "b"}}
	override := map[string]interface{}{"value": []interface{}{"c"}}

	result, err := mergeLayer(base, override)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"c"}, result["value"])
}

func TestMergeLayersIdempotentWithEmptyOverride(t *testing.T) {
	base := map[string]interface{}{"a": map[string]interface{}{"b": 1}}

	once, err := mergeLayers(base)
	require.NoError(t, err)
	twice, err := mergeLayers(once, map[string]interface{}{})
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestMergeLayersOrderingLastWins(t *testing.T) {
	layers := []map[string]interface{}{
		{"level": "defaults"},
		{"level": "file"},
		{"level": "env"},
		{"level": "cli"},
	}

	result, err := mergeLayers(layers...)
	require.NoError(t, err)
	assert.Equal(t, "cli", result["level"])
}
