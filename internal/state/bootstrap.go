package state

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Bootstrap initializes the hoofs database and returns a ready-to-use Repo
// plus an io.Closer for the DB handle.
//
// Steps:
//  1. Open/create hoofs.db with recommended pragmas.
//  2. Run pending schema migrations.
//  3. Construct and return the repository.
func Bootstrap(stateDir string) (*Repo, io.Closer, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir %s: %w", stateDir, err)
	}

	db, err := OpenDB(filepath.Join(stateDir, "hoofs.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open hoofs.db: %w", err)
	}

	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate hoofs.db: %w", err)
	}

	return NewRepo(db), db, nil
}
