package ports

import (
	"context"

	"github.com/gitter-badger/bbopt/domain"
)

// TrialRepository owns one session's data file. Load and Commit are the
// only two operations; there is no unlocked read-modify-write path, so the
// mandatory re-read under the commit lock cannot be skipped by callers.
type TrialRepository interface {
	// Load reads the full aggregate under a shared lock, creating an empty
	// file first if none exists.
	Load(ctx context.Context) (domain.Data, error)

	// Commit finalizes the current example under the exclusive lock: it
	// stamps the example's timestamp, re-reads the file, merges the fresh
	// contents into local (local definitions win, examples dedup by
	// equality) and durably rewrites the file. The merged aggregate is
	// returned so the caller sees its own write.
	Commit(ctx context.Context, current *domain.Example, local domain.Data) (domain.Data, error)
}
