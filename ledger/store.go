// Package ledger persists per-epoch training statistics as a JSON array.
// The whole file is rewritten on every save through a temporary file and a
// rename, so a crash mid-write leaves the previous ledger intact.
package ledger

import "context"

// FileName is the ledger file name inside the log directory.
const FileName = "stats.json"

// Store reads and writes the complete ledger. Implementations hold no
// in-memory state; every call performs I/O.
type Store interface {
	// Load returns all records. Returns ErrNotFound if no ledger exists.
	Load(ctx context.Context) ([]Record, error)
	// Save replaces the ledger with records atomically.
	Save(ctx context.Context, records []Record) error
	// Backup moves the existing ledger aside under the given suffix and
	// returns the backup path.
	Backup(ctx context.Context, suffix string) (string, error)
	// Path returns the ledger location.
	Path() string
}
