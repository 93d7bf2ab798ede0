package snapshot

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE datasets (
	name TEXT PRIMARY KEY,
	index_field TEXT,
	records INTEGER NOT NULL
);
CREATE TABLE records (
	dataset TEXT NOT NULL,
	idx INTEGER NOT NULL,
	record JSON,
	PRIMARY KEY (dataset, idx)
) WITHOUT ROWID;
CREATE TABLE leads (
	lead INTEGER PRIMARY KEY
);
CREATE TABLE lead_indices (
	lead INTEGER NOT NULL,
	index_field TEXT NOT NULL,
	idx INTEGER NOT NULL,
	PRIMARY KEY (index_field, idx)
) WITHOUT ROWID;
CREATE TABLE lead_attrs (
	lead INTEGER NOT NULL,
	field TEXT NOT NULL,
	value JSON,
	PRIMARY KEY (lead, field)
) WITHOUT ROWID;
CREATE TABLE enrichments (
	file TEXT NOT NULL,
	index_field TEXT NOT NULL,
	idx INTEGER NOT NULL,
	field TEXT NOT NULL,
	value JSON,
	PRIMARY KEY (file, idx, field)
) WITHOUT ROWID;
`

var inserts = map[string]string{
	"dataset":    `INSERT INTO datasets (name, index_field, records) VALUES (?, ?, ?)`,
	"record":     `INSERT INTO records (dataset, idx, record) VALUES (?, ?, ?)`,
	"lead":       `INSERT INTO leads (lead) VALUES (?)`,
	"index":      `INSERT INTO lead_indices (lead, index_field, idx) VALUES (?, ?, ?)`,
	"attr":       `INSERT INTO lead_attrs (lead, field, value) VALUES (?, ?, ?)`,
	"enrichment": `INSERT INTO enrichments (file, index_field, idx, field, value) VALUES (?, ?, ?, ?, ?)`,
}

// writer batches inserts into transactions of batchSize rows.
type writer struct {
	db        *sql.DB
	tx        *sql.Tx
	stmts     map[string]*sql.Stmt
	batchSize int
	count     int
}

func newWriter(dbPath string) (*writer, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	for _, pragma := range []string{"PRAGMA synchronous = OFF", "PRAGMA journal_mode = MEMORY"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	w := &writer{db: db, batchSize: 10000}
	if err := w.beginTx(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *writer) beginTx() error {
	var err error
	w.tx, err = w.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	w.stmts = make(map[string]*sql.Stmt, len(inserts))
	for name, q := range inserts {
		stmt, err := w.tx.Prepare(q)
		if err != nil {
			return fmt.Errorf("prepare %s insert: %w", name, err)
		}
		w.stmts[name] = stmt
	}
	return nil
}

func (w *writer) commitTx() error {
	for _, stmt := range w.stmts {
		_ = stmt.Close()
	}
	w.stmts = nil
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (w *writer) insert(kind string, args ...any) error {
	if _, err := w.stmts[kind].Exec(args...); err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	w.count++
	if w.count >= w.batchSize {
		if err := w.commitTx(); err != nil {
			return err
		}
		if err := w.beginTx(); err != nil {
			return err
		}
		w.count = 0
	}
	return nil
}

// abort discards the open transaction and closes the database.
func (w *writer) abort() {
	if w.tx != nil {
		_ = w.tx.Rollback()
	}
	_ = w.db.Close()
}

func (w *writer) close() error {
	if err := w.commitTx(); err != nil {
		_ = w.db.Close()
		return err
	}
	return w.db.Close()
}

func jsonText(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
