package bbopt

import (
	"time"

	"github.com/spf13/viper"

	"github.com/gitter-badger/bbopt/backends"
	"github.com/gitter-badger/bbopt/ports"
)

// settings collects everything New can be configured with.
type settings struct {
	protocol    Protocol
	dataDir     string
	lockTimeout time.Duration
	seed        int64
	registry    *backends.Registry
	clock       ports.Clock
}

func defaultSettings() settings {
	return settings{}
}

// Option configures a session at construction time.
type Option func(*settings)

// WithProtocol forces the data file format instead of auto-detecting it.
func WithProtocol(p Protocol) Option {
	return func(s *settings) { s.protocol = p }
}

// WithDataDir places the data file in dir instead of next to the session's
// source file.
func WithDataDir(dir string) Option {
	return func(s *settings) { s.dataDir = dir }
}

// WithLockTimeout bounds how long load and commit wait for the file lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *settings) { s.lockTimeout = d }
}

// WithSeed fixes the base random seed for the session. Each run the
// session starts offsets it by the run count, so successive runs draw
// distinct values while the session as a whole stays reproducible. A
// per-run seed option overrides it; zero means nondeterministic.
func WithSeed(seed int64) Option {
	return func(s *settings) { s.seed = seed }
}

// WithRegistry replaces the default backend registry.
func WithRegistry(r *backends.Registry) Option {
	return func(s *settings) { s.registry = r }
}

// WithClock replaces the timestamp source used on commit.
func WithClock(c ports.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithConfig reads session settings from a viper instance under the bbopt
// key: bbopt.protocol, bbopt.data_dir, bbopt.lock_timeout and bbopt.seed.
// Unset keys leave the corresponding setting alone, and later options
// still override.
func WithConfig(v *viper.Viper) Option {
	return func(s *settings) {
		if v == nil {
			return
		}
		if v.IsSet("bbopt.protocol") {
			s.protocol = Protocol(v.GetString("bbopt.protocol"))
		}
		if v.IsSet("bbopt.data_dir") {
			s.dataDir = v.GetString("bbopt.data_dir")
		}
		if v.IsSet("bbopt.lock_timeout") {
			s.lockTimeout = v.GetDuration("bbopt.lock_timeout")
		}
		if v.IsSet("bbopt.seed") {
			s.seed = v.GetInt64("bbopt.seed")
		}
	}
}
