package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitter-badger/bbopt/backends"
	"github.com/gitter-badger/bbopt/domain"
)

func TestRegisterInstallsBackendAndPresets(t *testing.T) {
	t.Parallel()

	r := backends.Default()
	Register(r)

	assert.Contains(t, r.Available(), Name)

	alg, err := r.Algorithm("gaussian_process")
	require.NoError(t, err)
	assert.Equal(t, Name, alg.Backend)
	assert.Equal(t, "ucb", alg.Options["acquisition"])

	alg, err = r.Algorithm("expected_improvement")
	require.NoError(t, err)
	assert.Equal(t, Name, alg.Backend)
	assert.Equal(t, "ei", alg.Options["acquisition"])
}

func TestBackendRejectsBadOptions(t *testing.T) {
	t.Parallel()

	_, err := newBackend(nil, nil, map[string]any{"acquisition": "thompson"})
	assert.Error(t, err)

	_, err = newBackend(nil, nil, map[string]any{"candidates": 0})
	assert.Error(t, err)

	_, err = newBackend(nil, nil, map[string]any{"beta": "wide"})
	assert.Error(t, err)
}

func TestParamFallsBackWithoutHistory(t *testing.T) {
	t.Parallel()

	b, err := newBackend(nil, nil, map[string]any{"seed": 5})
	require.NoError(t, err)

	v, err := b.Param("x", domain.ParamDef{Kind: "uniform", Args: []any{0.0, 1.0}})
	require.NoError(t, err)
	f := v.(float64)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)
}

func TestParamStaysInBoundsWithHistory(t *testing.T) {
	t.Parallel()

	history := []domain.Example{
		{Values: map[string]any{"x": 0.2}, Loss: 4.0, Timestamp: 1},
		{Values: map[string]any{"x": 0.5}, Loss: 1.0, Timestamp: 2},
		{Values: map[string]any{"x": 0.8}, Loss: 3.0, Timestamp: 3},
	}
	for _, acq := range []string{"ucb", "ei"} {
		b, err := newBackend(history, nil, map[string]any{"seed": 5, "acquisition": acq})
		require.NoError(t, err)

		for i := 0; i < 20; i++ {
			v, err := b.Param("x", domain.ParamDef{Kind: "uniform", Args: []any{0.0, 1.0}})
			require.NoError(t, err)
			f := v.(float64)
			assert.GreaterOrEqual(t, f, 0.0)
			assert.Less(t, f, 1.0)
		}
	}
}

func TestParamIsSeedDeterministic(t *testing.T) {
	t.Parallel()

	history := []domain.Example{
		{Values: map[string]any{"x": 0.2}, Loss: 4.0, Timestamp: 1},
		{Values: map[string]any{"x": 0.5}, Loss: 1.0, Timestamp: 2},
	}
	draw := func() any {
		b, err := newBackend(history, nil, map[string]any{"seed": 9})
		require.NoError(t, err)
		v, err := b.Param("x", domain.ParamDef{Kind: "uniform", Args: []any{0.0, 1.0}})
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, draw(), draw())
}

func TestParamIgnoresCategoricalHistory(t *testing.T) {
	t.Parallel()

	history := []domain.Example{
		{Values: map[string]any{"act": "relu"}, Loss: 1.0, Timestamp: 1},
	}
	b, err := newBackend(history, nil, map[string]any{"seed": 3})
	require.NoError(t, err)

	v, err := b.Param("act", domain.ParamDef{Kind: "choice", Args: []any{[]any{"relu", "tanh"}}})
	require.NoError(t, err)
	assert.Contains(t, []any{"relu", "tanh"}, v)
}

func TestGaussianProcessPredict(t *testing.T) {
	t.Parallel()

	gp := &gaussianProcess{sigma: 1}

	mean, variance := gp.predict(0.5)
	assert.Zero(t, mean)
	assert.Equal(t, 1.0, variance)

	gp.observe(0.0, 2.0)
	gp.observe(1.0, 4.0)

	mean, variance = gp.predict(0.0)
	assert.Greater(t, mean, 0.0)
	assert.GreaterOrEqual(t, variance, 0.0)

	_, near := gp.predict(0.0)
	_, far := gp.predict(25.0)
	assert.LessOrEqual(t, near, far)
}
