// Package snapshot exports the workspace (datasets, leads and enrichment
// output) into a single SQLite file that can be queried with plain SQL.
package snapshot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sort"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mapping"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/registry"
)

// Source is the workspace state a snapshot is taken from.
type Source struct {
	Store    *dataset.Store
	Table    *mapping.Table
	Registry *registry.Registry
}

// Options selects what goes into the snapshot.
type Options struct {
	// Datasets lists extra datasets to export besides those in the mapping.
	Datasets []string
	// Records also copies every dataset record, not just dataset sizes.
	Records bool
}

// Export writes a snapshot to dbPath, replacing any previous file only once
// the new one is complete.
func Export(dbPath string, src Source, opts Options, logger *slog.Logger) (api.ExportResult, error) {
	logger = logging.Default(logger).With("component", "snapshot")
	tmp := dbPath + ".tmp"
	_ = os.Remove(tmp)

	w, err := newWriter(tmp)
	if err != nil {
		return api.ExportResult{}, err
	}
	res := api.ExportResult{Status: api.StatusSuccess, Path: dbPath}
	if err := write(w, src, opts, &res); err != nil {
		w.abort()
		_ = os.Remove(tmp)
		return api.ExportResult{}, err
	}
	if err := w.close(); err != nil {
		_ = os.Remove(tmp)
		return api.ExportResult{}, err
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		_ = os.Remove(tmp)
		return api.ExportResult{}, fmt.Errorf("rename snapshot: %w", err)
	}
	logger.Info("snapshot exported", "path", dbPath, "datasets", res.Datasets,
		"leads", res.Leads, "enrichments", res.Enrichments)
	return res, nil
}

func write(w *writer, src Source, opts Options, res *api.ExportResult) error {
	indexFields := src.Table.Datasets()
	names := make([]string, 0, len(indexFields)+len(opts.Datasets))
	for name := range indexFields {
		names = append(names, name)
	}
	for _, name := range opts.Datasets {
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		records, err := src.Store.Read(name)
		if err != nil {
			return err
		}
		var indexField any
		if f, ok := indexFields[name]; ok {
			indexField = f
		}
		if err := w.insert("dataset", name, indexField, len(records)); err != nil {
			return err
		}
		res.Datasets++
		if !opts.Records {
			continue
		}
		for i, rec := range records {
			text, err := jsonText(rec)
			if err != nil {
				return fmt.Errorf("encode %s record %d: %w", name, i, err)
			}
			if err := w.insert("record", name, i, text); err != nil {
				return err
			}
			res.Records++
		}
	}

	lead := 0
	for l := range src.Table.Leads() {
		if err := w.insert("lead", lead); err != nil {
			return err
		}
		for field, idx := range l.Indices() {
			if err := w.insert("index", lead, field, idx); err != nil {
				return err
			}
		}
		for field, v := range l.Attrs() {
			text, err := jsonText(v)
			if err != nil {
				return fmt.Errorf("encode lead %d %s: %w", lead, field, err)
			}
			if err := w.insert("attr", lead, field, text); err != nil {
				return err
			}
		}
		lead++
	}
	res.Leads = lead

	for _, entry := range src.Registry.Entries() {
		n, err := writeEnrichment(w, src.Store, entry)
		if err != nil {
			return err
		}
		res.Enrichments += n
	}
	return nil
}

func writeEnrichment(w *writer, store *dataset.Store, entry registry.Entry) (int, error) {
	records, err := store.Read(entry.File)
	if errors.Is(err, api.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	rows := 0
	for _, rec := range records {
		row, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		idx, ok := jsonfile.Int(row[api.IndexKey])
		if !ok {
			continue
		}
		for _, field := range entry.Fields {
			text, err := jsonText(row[field])
			if err != nil {
				return rows, fmt.Errorf("encode %s index %d %s: %w", entry.File, idx, field, err)
			}
			if err := w.insert("enrichment", entry.File, entry.IndexField, idx, field, text); err != nil {
				return rows, err
			}
		}
		rows++
	}
	return rows, nil
}
