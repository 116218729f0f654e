package state

import (
	"database/sql"
	"fmt"
)

// OpenDB opens (or creates) a SQLite database at path with recommended pragmas:
// WAL journal mode, synchronous=NORMAL, foreign_keys=ON, busy_timeout=5000.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", path, err)
	}

	// Single-writer: only one connection needed.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q on %s: %w", p, path, err)
		}
	}

	return db, nil
}

// EnsureEventColumns applies lightweight additive migrations for hoofs.db
// files created by older versions: the optional scraped event columns are
// added when missing. Safe to run on every start.
func EnsureEventColumns(db *sql.DB) error {
	if db == nil {
		return nil
	}
	columns := []struct {
		name string
		ddl  string
	}{
		{"name", `name TEXT NOT NULL DEFAULT ''`},
		{"venue", `venue TEXT NOT NULL DEFAULT ''`},
		{"date_debut", `date_debut TEXT NOT NULL DEFAULT ''`},
		{"date_fin", `date_fin TEXT NOT NULL DEFAULT ''`},
		{"discipline", `discipline TEXT NOT NULL DEFAULT ''`},
		{"organisateur", `organisateur TEXT NOT NULL DEFAULT ''`},
	}
	for _, c := range columns {
		if err := ensureTableColumn(db, "events", c.name, c.ddl); err != nil {
			return err
		}
	}
	return nil
}

func ensureTableColumn(db *sql.DB, table, column, columnDDL string) error {
	exists, err := hasTableColumn(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDDL)
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("migrate %s.%s: %w", table, column, err)
	}
	return nil
}

func hasTableColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			defaultV  sql.NullString
			primaryID int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultV, &primaryID); err != nil {
			return false, fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("iterate table_info(%s): %w", table, err)
	}
	return false, nil
}
