// Package file implements the exclusive file store: one data file per
// optimization session, shared by independent processes and mutated only
// inside an OS advisory lock scope.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/gitter-badger/bbopt/domain"
	"github.com/gitter-badger/bbopt/ports"
)

const (
	// DefaultLockTimeout bounds how long a process waits for another
	// writer before failing the operation.
	DefaultLockTimeout = 6 * time.Second

	dataFileMode  = 0o644
	dataDirMode   = 0o755
	lockRetryTick = 25 * time.Millisecond
)

// Repository serializes every access to the session's data file behind a
// file lock keyed on the path, so commits from independent processes never
// interleave and a load always observes a fully written file.
type Repository struct {
	path    string
	codec   ports.Codec
	timeout time.Duration
	clock   ports.Clock
}

var _ ports.TrialRepository = (*Repository)(nil)

func NewRepository(path string, codec ports.Codec, timeout time.Duration, clock ports.Clock) (*Repository, error) {
	if path == "" {
		return nil, errors.New("data file path is empty")
	}
	if codec == nil {
		return nil, errors.New("codec is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve data file path: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Repository{path: filepath.Clean(absPath), codec: codec, timeout: timeout, clock: clock}, nil
}

// Path returns the absolute data file path.
func (r *Repository) Path() string {
	return r.path
}

// Load reads the aggregate under a shared lock, creating an empty data
// file first if none exists. An empty file decodes to an empty aggregate;
// anything else must carry exactly the {params, examples} shape.
func (r *Repository) Load(ctx context.Context) (domain.Data, error) {
	if err := r.ensureFile(); err != nil {
		return domain.Data{}, err
	}

	lock := flock.New(r.path)
	if err := r.acquire(ctx, lock, false); err != nil {
		return domain.Data{}, err
	}
	defer func() { _ = lock.Unlock() }()

	return r.read()
}

// Commit finalizes current into the shared history. The whole
// read-merge-write cycle runs under the exclusive lock: the timestamp is
// assigned first (so timestamps agree with commit order across processes),
// the file is re-read and re-decoded even if this process read it moments
// ago (another process may have appended since), the fresh contents are
// merged into the local aggregate, and the file is truncated, rewritten
// and synced before the lock is released. The merged aggregate is
// returned for the caller to adopt.
func (r *Repository) Commit(ctx context.Context, current *domain.Example, local domain.Data) (domain.Data, error) {
	if current == nil {
		return domain.Data{}, errors.New("nil example")
	}
	if err := r.ensureFile(); err != nil {
		return domain.Data{}, err
	}

	lock := flock.New(r.path)
	if err := r.acquire(ctx, lock, true); err != nil {
		return domain.Data{}, err
	}
	defer func() { _ = lock.Unlock() }()

	current.Timestamp = float64(r.clock.Now().UnixNano()) / float64(time.Second)

	merged := local.Clone()
	merged.TellExamples([]domain.Example{*current})

	fresh, err := r.read()
	if err != nil {
		return domain.Data{}, err
	}
	merged.Merge(fresh)

	encoded, err := r.codec.Encode(merged)
	if err != nil {
		return domain.Data{}, err
	}
	if err := r.rewrite(encoded); err != nil {
		return domain.Data{}, err
	}
	return merged, nil
}

func (r *Repository) acquire(ctx context.Context, lock *flock.Flock, exclusive bool) error {
	lockCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = lock.TryLockContext(lockCtx, lockRetryTick)
	} else {
		locked, err = lock.TryRLockContext(lockCtx, lockRetryTick)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, r.path)
	}
	if err != nil {
		return fmt.Errorf("lock data file: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", domain.ErrLockTimeout, r.path)
	}
	return nil
}

func (r *Repository) read() (domain.Data, error) {
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return domain.Data{}, fmt.Errorf("read data file: %w", err)
	}
	if len(raw) == 0 {
		return domain.Data{Params: domain.Params{}}, nil
	}
	return r.codec.Decode(raw)
}

func (r *Repository) rewrite(encoded []byte) error {
	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_TRUNC, dataFileMode)
	if err != nil {
		return fmt.Errorf("open data file for write: %w", err)
	}
	if _, err := f.Write(encoded); err != nil {
		_ = f.Close()
		return fmt.Errorf("write data file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync data file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close data file: %w", err)
	}
	return nil
}

func (r *Repository) ensureFile() error {
	if err := os.MkdirAll(filepath.Dir(r.path), dataDirMode); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_RDONLY|os.O_CREATE, dataFileMode)
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}
	return f.Close()
}
