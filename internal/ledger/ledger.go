// Package ledger implements the Bundle Ledger: a small embedded SQLite table
// recording which bundle digests this peer has already accepted, so a
// redelivered bundle (§9: transport is not assumed exactly-once) can be
// skipped instead of replayed. Grounded on the teacher's sole-writer SQLite
// store (internal/sync/state.go NewStore, and the migrations.go goose
// Provider wiring) but reduced from a multi-table sync-state schema to the
// single table this system needs.
package ledger

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ledger records accepted bundle digests in a single-writer SQLite database.
// It satisfies bundle.Ledger.
type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if absent) the SQLite database at dbPath, applies
// pending migrations, and returns a ready Ledger. Use ":memory:" for tests.
func Open(dbPath string, logger *slog.Logger) (*Ledger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening %s: %w", dbPath, err)
	}

	// A single writer connection avoids SQLITE_BUSY from the pure-Go driver
	// under concurrent access, mirroring the teacher's sole-writer pattern.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: setting WAL mode: %w", err)
	}

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db, logger: logger}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ledger: creating migration sub-filesystem: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, db, subFS)
	if err != nil {
		return fmt.Errorf("ledger: creating migration provider: %w", err)
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("ledger: running migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error { return l.db.Close() }

// Seen reports whether digest has already been accepted.
func (l *Ledger) Seen(digest string) (bool, error) {
	var exists bool

	err := l.db.QueryRow("SELECT EXISTS(SELECT 1 FROM accepted_bundles WHERE digest = ?)", digest).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger: checking digest %s: %w", digest, err)
	}

	return exists, nil
}

// Record marks digest as accepted. Recording an already-recorded digest is
// a no-op, not an error — Accept's ledger check happens first under the
// same lock, but a concurrent second writer is tolerated defensively.
func (l *Ledger) Record(digest string) error {
	_, err := l.db.Exec(
		"INSERT INTO accepted_bundles (digest, accepted_at) VALUES (?, unixepoch()) ON CONFLICT(digest) DO NOTHING",
		digest,
	)
	if err != nil {
		return fmt.Errorf("ledger: recording digest %s: %w", digest, err)
	}

	return nil
}
