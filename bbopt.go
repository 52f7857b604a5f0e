// Package bbopt lets a program declare black-box tunable parameters inline,
// receive trial values from a pluggable optimization backend, record the
// trial's loss or gain, and persist the growing history to one shared data
// file. Independent processes pointed at the same file cooperate through
// it: every commit re-reads the file under an exclusive OS lock, merges
// what other processes wrote, and rewrites the merged history.
package bbopt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gitter-badger/bbopt/adapters/codec"
	storefile "github.com/gitter-badger/bbopt/adapters/store/file"
	"github.com/gitter-badger/bbopt/backends"
	"github.com/gitter-badger/bbopt/backends/bayes"
	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

// Protocol selects the on-disk data file format.
type Protocol string

const (
	ProtocolTOML    Protocol = "toml"
	ProtocolMsgpack Protocol = "msgpack"
)

// dataFileInfix sits between the session's base name and the format
// extension, e.g. train.bbopt.toml for a session constructed from train.go.
const dataFileInfix = ".bbopt"

// BlackBoxOptimizer is the session controller: it owns the in-memory trial
// history, the active backend and the current in-flight run, and
// orchestrates load, parameter declaration, reward recording and the
// locked commit back to the shared file.
type BlackBoxOptimizer struct {
	dataFile string
	protocol Protocol
	repo     ports.TrialRepository
	registry *backends.Registry
	seed     int64

	backend     ports.Backend
	backendName string
	data        domain.Data
	newParams   domain.Params
	current     *domain.Example
	runs        int64
}

// New constructs a session for the given file, usually the caller's own
// source file path: the data file takes its base name from it. The format
// follows an existing TOML data file when one is present, otherwise new
// sessions default to the binary format; WithProtocol overrides. The
// session loads the shared history and starts in serving mode.
func New(ctx context.Context, file string, opts ...Option) (*BlackBoxOptimizer, error) {
	if strings.TrimSpace(file) == "" {
		return nil, errors.New("file must be a non-empty path")
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	base := strings.TrimSuffix(file, filepath.Ext(file))
	if cfg.dataDir != "" {
		base = filepath.Join(cfg.dataDir, filepath.Base(base))
	}

	protocol := cfg.protocol
	if protocol == "" {
		protocol = ProtocolTOML
		if _, err := os.Stat(base + dataFileInfix + codec.TOMLExtension); errors.Is(err, os.ErrNotExist) {
			protocol = ProtocolMsgpack
		}
	}
	c, err := codecFor(protocol)
	if err != nil {
		return nil, err
	}

	dataFile := base + dataFileInfix + c.Extension()
	repo, err := storefile.NewRepository(dataFile, c, cfg.lockTimeout, cfg.clock)
	if err != nil {
		return nil, err
	}

	registry := cfg.registry
	if registry == nil {
		registry = DefaultRegistry()
	}

	b := &BlackBoxOptimizer{
		dataFile: repo.Path(),
		protocol: protocol,
		repo:     repo,
		registry: registry,
		seed:     cfg.seed,
	}
	if err := b.Reload(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// DefaultRegistry builds the registry New uses when none is injected: the
// built-in backends plus the Gaussian-process backend.
func DefaultRegistry() *backends.Registry {
	r := backends.Default()
	bayes.Register(r)
	return r
}

func codecFor(protocol Protocol) (ports.Codec, error) {
	switch protocol {
	case ProtocolTOML:
		return codec.TOMLCodec{}, nil
	case ProtocolMsgpack:
		return codec.MsgpackCodec{}, nil
	}
	return nil, fmt.Errorf("unknown protocol %q", protocol)
}

// Reload discards the in-memory history, reloads it from the shared file
// and re-enters serving mode with a fresh run.
func (b *BlackBoxOptimizer) Reload(ctx context.Context) error {
	data, err := b.repo.Load(ctx)
	if err != nil {
		return err
	}
	b.data = data
	return b.RunBackend(backends.Serving, nil)
}

// Run starts a fresh run using one of the registered algorithm presets.
func (b *BlackBoxOptimizer) Run(alg string) error {
	preset, err := b.registry.Algorithm(alg)
	if err != nil {
		return err
	}
	opts := make(map[string]any, len(preset.Options))
	for k, v := range preset.Options {
		opts[k] = v
	}
	return b.RunBackend(preset.Backend, opts)
}

// RunBackend starts a fresh run on the named backend. Any parameters
// declared but not rewarded in the previous run are discarded; the loaded
// history is kept.
func (b *BlackBoxOptimizer) RunBackend(name string, opts map[string]any) error {
	merged := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		merged[k] = v
	}
	if _, ok := merged["seed"]; !ok && b.seed != 0 {
		// Offset by the run count: a fixed session seed keeps the whole
		// session reproducible without every run redrawing the same values.
		merged["seed"] = b.seed + b.runs
	}
	b.runs++

	backend, err := b.registry.New(name, b.data.Examples, b.data.Params, merged)
	if err != nil {
		return err
	}
	b.backend = backend
	b.backendName = name
	b.newParams = domain.Params{}
	b.current = &domain.Example{Values: map[string]any{}}
	return nil
}

// Param declares one black-box parameter and returns its value for this
// run. Every distribution helper routes through here; args and kwargs pass
// through the shared normalization step before they reach the backend or
// the recorded definition.
func (b *BlackBoxOptimizer) Param(name, kind string, args []any, kwargs map[string]any) (any, error) {
	if b.current == nil {
		return nil, fmt.Errorf("%w: call Run or RunBackend first", domain.ErrNoActiveRun)
	}
	if b.current.HasReward() {
		return nil, fmt.Errorf("%w: parameter definitions must come before Minimize or Maximize", domain.ErrRewardAlreadySet)
	}
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrInvalidParamName
	}
	if _, ok := b.newParams[name]; ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrDuplicateParam, name)
	}

	def, err := domain.NormalizeParamDef(domain.ParamDef{Kind: kind, Args: args, Kwargs: kwargs})
	if err != nil {
		return nil, err
	}
	value, err := b.backend.Param(name, def)
	if err != nil {
		return nil, err
	}

	b.newParams[name] = def
	b.current.Values[name] = value
	return value, nil
}

// Remember merges information about the current run into its memo, kept
// alongside the values and reward in the persisted example.
func (b *BlackBoxOptimizer) Remember(info map[string]any) error {
	if b.current == nil {
		return fmt.Errorf("%w: call Run or RunBackend first", domain.ErrNoActiveRun)
	}
	if b.current.HasReward() {
		return fmt.Errorf("%w: Remember must come before Minimize or Maximize", domain.ErrRewardAlreadySet)
	}
	memo, err := domain.NormalizeMap(info)
	if err != nil {
		return err
	}
	if b.current.Memo == nil {
		b.current.Memo = map[string]any{}
	}
	for k, v := range memo {
		b.current.Memo[k] = v
	}
	return nil
}

// Minimize records the loss of the current run and, outside serving mode,
// commits the run to the shared file.
func (b *BlackBoxOptimizer) Minimize(ctx context.Context, value any) error {
	return b.setReward(ctx, "loss", value)
}

// Maximize records the gain of the current run and, outside serving mode,
// commits the run to the shared file.
func (b *BlackBoxOptimizer) Maximize(ctx context.Context, value any) error {
	return b.setReward(ctx, "gain", value)
}

func (b *BlackBoxOptimizer) setReward(ctx context.Context, kind string, value any) error {
	if b.current == nil {
		return fmt.Errorf("%w: call Run or RunBackend first", domain.ErrNoActiveRun)
	}
	if b.current.HasReward() {
		return fmt.Errorf("%w: only one call to Minimize or Maximize per run", domain.ErrRewardAlreadySet)
	}
	reward, err := domain.NormalizeReward(value)
	if err != nil {
		return err
	}
	if kind == "loss" {
		b.current.Loss = reward
	} else {
		b.current.Gain = reward
	}

	if b.IsServing() {
		return nil
	}

	local := domain.Data{
		Params:   domain.MergeParams(b.data.Params, b.newParams),
		Examples: b.data.Examples,
	}
	merged, err := b.repo.Commit(ctx, b.current, local)
	if err != nil {
		return err
	}
	b.data = merged
	return nil
}

// IsServing reports whether the active backend is the serving backend.
func (b *BlackBoxOptimizer) IsServing() bool {
	return b.backendName == backends.Serving
}

// GetCurrentRun returns the in-flight (or just-rewarded) example.
func (b *BlackBoxOptimizer) GetCurrentRun() (domain.Example, error) {
	if b.current == nil {
		return domain.Example{}, fmt.Errorf("%w: GetCurrentRun must come after Run", domain.ErrNoActiveRun)
	}
	return *b.current, nil
}

// GetOptimalRun returns the best recorded example: minimum loss, or
// maximum gain when the history holds gains. Ties go to the earliest
// stored example.
func (b *BlackBoxOptimizer) GetOptimalRun() (domain.Example, error) {
	return domain.BestExample(b.data.Examples)
}

// NumExamples reports how many completed trials the session has seen. The
// current example is not counted until Minimize or Maximize commits it.
func (b *BlackBoxOptimizer) NumExamples() int {
	return len(b.data.Examples)
}

// DataFile returns the absolute path of the session's data file.
func (b *BlackBoxOptimizer) DataFile() string {
	return b.dataFile
}

// Protocol returns the data file format the session settled on.
func (b *BlackBoxOptimizer) Protocol() Protocol {
	return b.protocol
}

// Algs lists the algorithm preset names Run accepts.
func (b *BlackBoxOptimizer) Algs() []string {
	return b.registry.Algorithms()
}

// Backends lists the registered backend names RunBackend accepts.
func (b *BlackBoxOptimizer) Backends() []string {
	return b.registry.Available()
}
