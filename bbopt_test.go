package bbopt

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitter-badger/bbopt/backends"
	"github.com/gitter-badger/bbopt/domain"
)

func newSession(t *testing.T, dir string, opts ...Option) *BlackBoxOptimizer {
	t.Helper()
	opts = append([]Option{WithDataDir(dir)}, opts...)
	b, err := New(context.Background(), "train.go", opts...)
	require.NoError(t, err)
	return b
}

func TestNewDefaultsToBinaryFormat(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir())
	assert.True(t, strings.HasSuffix(b.DataFile(), ".bbopt.msgpack"))
	assert.True(t, b.IsServing())
	assert.Zero(t, b.NumExamples())
}

func TestNewFollowsExistingTextFormatFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "train.bbopt.toml"), nil, 0o644))

	b := newSession(t, dir)
	assert.True(t, strings.HasSuffix(b.DataFile(), ".bbopt.toml"))
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), "train.go", WithDataDir(t.TempDir()), WithProtocol("yaml"))
	assert.Error(t, err)
}

func TestRunStateMachine(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML), WithSeed(17))
	require.NoError(t, b.RunBackend(backends.Random, nil))

	_, err := b.Param("", "uniform", []any{0.0, 1.0}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidParamName)

	_, err = b.Uniform("x", 0, 1)
	require.NoError(t, err)
	_, err = b.Uniform("x", 0, 1)
	assert.ErrorIs(t, err, domain.ErrDuplicateParam)

	require.NoError(t, b.Minimize(ctx, 1.0))
	assert.ErrorIs(t, b.Minimize(ctx, 2.0), domain.ErrRewardAlreadySet)
	assert.ErrorIs(t, b.Maximize(ctx, 2.0), domain.ErrRewardAlreadySet)
	assert.ErrorIs(t, b.Remember(map[string]any{"k": 1}), domain.ErrRewardAlreadySet)

	_, err = b.Uniform("y", 0, 1)
	assert.ErrorIs(t, err, domain.ErrRewardAlreadySet)

	// A fresh run clears the reward and the declared names.
	require.NoError(t, b.RunBackend(backends.Random, nil))
	_, err = b.Uniform("x", 0, 1)
	assert.NoError(t, err)
}

func TestMinimizeRejectsBadRewards(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML))
	require.NoError(t, b.RunBackend(backends.Random, map[string]any{"seed": 3}))

	err := b.Minimize(context.Background(), "low")
	assert.ErrorIs(t, err, domain.ErrRewardShape)

	err = b.Minimize(context.Background(), [][]float64{{1}})
	assert.ErrorIs(t, err, domain.ErrRewardShape)
}

func TestServingSessionDoesNotCommit(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML))
	require.True(t, b.IsServing())

	_, err := b.Uniform("x", 0, 1, map[string]any{"guess": 0.5})
	require.NoError(t, err)
	require.NoError(t, b.Minimize(context.Background(), 1.0))

	require.NoError(t, b.Reload(context.Background()))
	assert.Zero(t, b.NumExamples())
}

func TestOptimizeThenServe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	for _, protocol := range []Protocol{ProtocolTOML, ProtocolMsgpack} {
		protocol := protocol
		t.Run(string(protocol), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			b := newSession(t, dir, WithProtocol(protocol), WithSeed(23))

			const trials = 10
			bestLoss := math.MaxFloat64
			var bestX float64
			for i := 0; i < trials; i++ {
				require.NoError(t, b.Run(backends.Random))

				x, err := b.Uniform("x", -5, 5)
				require.NoError(t, err)
				scale, err := b.Choice("scale", []any{int64(1), int64(2)})
				require.NoError(t, err)

				loss := x * x * float64(scale.(int64))
				require.NoError(t, b.Minimize(ctx, loss))
				if loss < bestLoss {
					bestLoss = loss
					bestX = x
				}
			}
			assert.Equal(t, trials, b.NumExamples())

			optimal, err := b.GetOptimalRun()
			require.NoError(t, err)
			assert.InDelta(t, bestX, optimal.Values["x"].(float64), 1e-9)

			// A second session over the same file serves the best trial.
			serving := newSession(t, dir, WithProtocol(protocol))
			require.True(t, serving.IsServing())
			assert.Equal(t, trials, serving.NumExamples())

			x, err := serving.Uniform("x", -5, 5)
			require.NoError(t, err)
			assert.InDelta(t, bestX, x, 1e-9)
		})
	}
}

func TestRememberPersistsMemo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	b := newSession(t, dir, WithProtocol(ProtocolTOML), WithSeed(31))
	require.NoError(t, b.RunBackend(backends.Random, nil))
	_, err := b.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, b.Remember(map[string]any{"epochs": 12}))
	require.NoError(t, b.Remember(map[string]any{"host": "worker-3"}))
	require.NoError(t, b.Minimize(ctx, 0.5))

	reloaded := newSession(t, dir, WithProtocol(ProtocolTOML))
	run, err := reloaded.GetOptimalRun()
	require.NoError(t, err)
	assert.Equal(t, int64(12), run.Memo["epochs"])
	assert.Equal(t, "worker-3", run.Memo["host"])
}

func TestGetCurrentRunTracksTrial(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML))
	require.NoError(t, b.RunBackend(backends.Random, map[string]any{"seed": 2}))

	x, err := b.Uniform("x", 0, 1)
	require.NoError(t, err)

	run, err := b.GetCurrentRun()
	require.NoError(t, err)
	assert.Equal(t, x, run.Values["x"])
	assert.False(t, run.HasReward())

	require.NoError(t, b.Minimize(context.Background(), 1.0))
	run, err = b.GetCurrentRun()
	require.NoError(t, err)
	assert.True(t, run.HasReward())
}

func TestSessionsShareHistoryAcrossInstances(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	first := newSession(t, dir, WithProtocol(ProtocolTOML), WithSeed(5))
	second := newSession(t, dir, WithProtocol(ProtocolTOML), WithSeed(6))

	require.NoError(t, first.RunBackend(backends.Random, nil))
	_, err := first.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, first.Minimize(ctx, 1.0))

	require.NoError(t, second.RunBackend(backends.Random, nil))
	_, err = second.Uniform("x", 0, 1)
	require.NoError(t, err)
	require.NoError(t, second.Minimize(ctx, 2.0))

	// The second commit merged the first's example from disk.
	assert.Equal(t, 2, second.NumExamples())

	require.NoError(t, first.Reload(ctx))
	assert.Equal(t, 2, first.NumExamples())
}

func TestAlgorithmPresetsAndRegistryListing(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolMsgpack))

	assert.Subset(t, b.Backends(), []string{"serving", "random", "mixture", "gaussian_process"})
	assert.Subset(t, b.Algs(), []string{"serving", "random", "gaussian_process", "expected_improvement"})

	assert.ErrorIs(t, b.Run("annealing"), domain.ErrUnknownAlgorithm)
	assert.ErrorIs(t, b.RunBackend("annealing", nil), domain.ErrUnknownBackend)
}

func TestGaussianProcessSessionImproves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	b := newSession(t, t.TempDir(), WithProtocol(ProtocolMsgpack), WithSeed(41))

	for i := 0; i < 15; i++ {
		require.NoError(t, b.Run("gaussian_process"))
		x, err := b.Uniform("x", -1, 1)
		require.NoError(t, err)
		require.NoError(t, b.Minimize(ctx, (x-0.3)*(x-0.3)))
	}
	assert.Equal(t, 15, b.NumExamples())

	optimal, err := b.GetOptimalRun()
	require.NoError(t, err)
	assert.Less(t, optimal.Loss.(float64), 0.5)
}

func TestSampleDrawsWithoutReplacement(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML))
	require.NoError(t, b.RunBackend(backends.Random, map[string]any{"seed": 13}))

	population := []any{"a", "b", "c", "d"}
	sample, err := b.Sample("subset", population, 3)
	require.NoError(t, err)
	require.Len(t, sample, 3)

	seen := map[any]bool{}
	for _, v := range sample {
		assert.Contains(t, population, v)
		assert.False(t, seen[v], "element %v drawn twice", v)
		seen[v] = true
	}

	_, err = b.Sample("too-many", population, 5)
	assert.Error(t, err)
}

func TestShuffleIsAPermutation(t *testing.T) {
	t.Parallel()

	b := newSession(t, t.TempDir(), WithProtocol(ProtocolTOML))
	require.NoError(t, b.RunBackend(backends.Random, map[string]any{"seed": 29}))

	xs := []any{int64(1), int64(2), int64(3), int64(4), int64(5)}
	shuffled, err := b.Shuffle("order", xs)
	require.NoError(t, err)
	assert.ElementsMatch(t, xs, shuffled)
}

func TestSampleServesGuessAndReplay(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	// With no history, serving mode follows the guessed sample.
	b := newSession(t, dir, WithProtocol(ProtocolTOML))
	require.True(t, b.IsServing())
	population := []any{"a", "b", "c", "d"}
	sample, err := b.Sample("subset", population, 2, map[string]any{"guess": []any{"c", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"c", "a"}, sample)

	// A rewarded search run replays identically in a later session.
	require.NoError(t, b.RunBackend(backends.Random, map[string]any{"seed": 37}))
	recorded, err := b.Sample("subset", population, 2)
	require.NoError(t, err)
	require.NoError(t, b.Minimize(ctx, 1.0))

	serving := newSession(t, dir, WithProtocol(ProtocolTOML))
	replayed, err := serving.Sample("subset", population, 2)
	require.NoError(t, err)
	assert.Equal(t, recorded, replayed)
}

func TestWithConfigReadsViperSettings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	v := viper.New()
	v.Set("bbopt.protocol", "toml")
	v.Set("bbopt.data_dir", dir)
	v.Set("bbopt.seed", 99)

	b, err := New(context.Background(), "train.go", WithConfig(v))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(b.DataFile(), ".bbopt.toml"))
	assert.Equal(t, filepath.Clean(dir), filepath.Dir(b.DataFile()))
}
