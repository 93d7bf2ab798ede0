package dataset

import (
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"path"
	"regexp"
	"slices"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	_ "modernc.org/sqlite"
)

// DefaultTable is the table collection tools write their results to.
const DefaultTable = "results"

// ImportsDir holds, per dataset, the ids of the SQLite rows imported into it.
const ImportsDir = ".imports"

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// StreamSQLite iterates over all records in table, in insertion order,
// calling fn with each row's id and decoded record. The table must have a
// `record` column holding JSON text; a row with a NULL id is identified by
// its rowid.
func StreamSQLite(dbPath, table string, fn func(id string, record any) error) error {
	if !identRe.MatchString(table) {
		return fmt.Errorf("%w: table name %q", api.ErrInvalidArgument, table)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	if _, err := db.Exec("PRAGMA query_only=ON"); err != nil {
		return fmt.Errorf("set query_only: %w", err)
	}

	rows, err := db.Query("SELECT CAST(COALESCE(id, 'rowid:' || rowid) AS TEXT), record FROM " + table + " ORDER BY rowid")
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	n := 0
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row %d: %w", n, err)
		}
		var parsed any
		if err := jsonfile.Decode([]byte(raw), &parsed); err != nil {
			return fmt.Errorf("parse record json (row %d): %w", n, err)
		}
		if err := fn(id, parsed); err != nil {
			return err
		}
		n++
	}
	return rows.Err()
}

// importsFile holds the row ids already imported into a dataset.
func importsFile(name string) string {
	return path.Join(ImportsDir, FileName(name))
}

func (s *Store) importedIDs(name string) (map[string]bool, error) {
	var ids []string
	err := jsonfile.Read(s.fs, importsFile(name), &ids)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, err
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// ImportSQLite appends the records of table in dbPath that were not imported
// into the dataset before, and returns how many were appended and the
// dataset's new length. Rows are recognised by their id, so importing the
// same database again appends nothing.
func (s *Store) ImportSQLite(name, dbPath, table string) (int, int, error) {
	if err := validName(name); err != nil {
		return 0, 0, err
	}
	if table == "" {
		table = DefaultTable
	}
	seen, err := s.importedIDs(name)
	if err != nil {
		return 0, 0, err
	}

	var records []any
	skipped := 0
	if err := StreamSQLite(dbPath, table, func(id string, record any) error {
		if seen[id] {
			skipped++
			return nil
		}
		seen[id] = true
		records = append(records, record)
		return nil
	}); err != nil {
		return 0, 0, err
	}

	if len(records) == 0 {
		total, err := s.Length(name)
		if errors.Is(err, api.ErrNotFound) {
			err = nil
		}
		s.logger.Info("nothing new to import", "dataset", name, "skipped", skipped)
		return 0, total, err
	}
	total, err := s.Append(name, records)
	if err != nil {
		return 0, 0, err
	}
	ids := slices.Sorted(maps.Keys(seen))
	if err := jsonfile.Write(s.fs, importsFile(name), ids); err != nil {
		return 0, 0, fmt.Errorf("record imported ids for %s: %w", name, err)
	}
	s.logger.Info("imported records", "dataset", name, "appended", len(records), "skipped", skipped)
	return len(records), total, nil
}
