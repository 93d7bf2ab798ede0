// Package engine is the workspace: it owns the data directory lock, the
// mapping table and the registry for its lifetime, and exposes one method
// per operation. Every mutating call flushes before it returns.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/extract"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mapping"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/registry"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/snapshot"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/survey"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// LockFile is held exclusively by an open engine.
const LockFile = ".lock"

// Options configure Open.
type Options struct {
	// DataDir is used when FS is nil.
	DataDir string
	FS      billy.Filesystem

	MappingFile  string
	RegistryFile string

	Classifier enrich.Classifier
	Enrich     enrich.Options

	Logger *slog.Logger
}

// Engine serialises operations on one workspace.
type Engine struct {
	mu     sync.Mutex
	fs     billy.Filesystem
	lock   *jsonfile.Lock
	opts   Options
	logger *slog.Logger

	store *dataset.Store
	table *mapping.Table
	reg   *registry.Registry
}

// Open locks the workspace and loads its mapping and registry.
func Open(opts Options) (*Engine, error) {
	fs := opts.FS
	if fs == nil {
		if opts.DataDir == "" {
			return nil, fmt.Errorf("%w: no data directory", api.ErrInvalidArgument)
		}
		if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		fs = osfs.New(opts.DataDir)
	}
	logger := logging.Default(opts.Logger)

	lock, err := jsonfile.Acquire(fs, LockFile)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		fs:     fs,
		lock:   lock,
		opts:   opts,
		logger: logger.With("component", "engine"),
		store:  dataset.NewStore(fs, logger),
	}
	if err := e.load(); err != nil {
		_ = lock.Release()
		return nil, err
	}
	e.logger.Debug("workspace opened", "data_dir", opts.DataDir,
		"leads", e.table.Len(), "index_fields", e.table.IndexFields())
	return e, nil
}

func (e *Engine) load() error {
	table, err := mapping.Load(e.fs, e.opts.MappingFile, e.opts.Logger)
	if err != nil {
		return err
	}
	reg, err := registry.Load(e.fs, e.opts.RegistryFile, e.opts.Logger)
	if err != nil {
		return err
	}
	e.table, e.reg = table, reg
	return nil
}

// Close releases the workspace lock.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger.Debug("workspace closed")
	return e.lock.Release()
}

// flush saves the mapping. On failure memory is reloaded from disk so the
// engine never serves state that was not persisted.
func (e *Engine) flush() error {
	if err := e.table.Save(); err != nil {
		if rerr := e.load(); rerr != nil {
			e.logger.Error("reload after failed save", "error", rerr)
		}
		return err
	}
	return nil
}

func (e *Engine) extractor() *extract.Extractor {
	return extract.New(e.store, e.table, e.reg, e.opts.Logger)
}

// Init creates leads for every record of dataset not yet mapped. An empty
// indexField is derived from the dataset name.
func (e *Engine) Init(dataset, indexField string) (api.InitResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, err := e.store.Length(dataset)
	if err != nil {
		return api.InitResult{}, err
	}
	res, err := e.table.Init(dataset, n, e.table.IndexFieldOf(dataset, indexField))
	if err != nil {
		return api.InitResult{}, err
	}
	if err := e.flush(); err != nil {
		return api.InitResult{}, err
	}
	return res, nil
}

// Update sets field=value on the leads whose indexField is in indices.
func (e *Engine) Update(indexField string, indices []int, field string, value any) (api.UpdateResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.table.Update(indexField, indices, field, value)
	if err != nil {
		return api.UpdateResult{}, err
	}
	if err := e.flush(); err != nil {
		return api.UpdateResult{}, err
	}
	return res, nil
}

// Link assigns target indices to the given source indices.
func (e *Engine) Link(sourceField string, sourceIndices []int, targetField string) (api.LinkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.table.Link(sourceField, sourceIndices, targetField)
	if err != nil {
		return api.LinkResult{}, err
	}
	if err := e.flush(); err != nil {
		return api.LinkResult{}, err
	}
	return res, nil
}

// Extract projects (and optionally filters) a dataset.
func (e *Engine) Extract(req extract.Request) (api.ExtractResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extractor().Extract(req)
}

// Enrich runs one enrichment pass with the configured classifier.
func (e *Engine) Enrich(ctx context.Context, req enrich.Request) (api.EnrichResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	runner := enrich.NewRunner(e.store, e.table, e.reg, e.opts.Classifier, e.opts.Enrich, e.opts.Logger)
	res, err := runner.Run(ctx, req)
	if err != nil {
		return api.EnrichResult{}, err
	}
	if res.Promoted > 0 {
		// Promotion is best effort; the registry already resolves the fields.
		if err := e.flush(); err != nil {
			e.logger.Warn("promoted fields not saved", "error", err)
			res.Promoted = 0
		}
	}
	return res, nil
}

// Append adds records to a dataset, creating it on first write.
func (e *Engine) Append(dataset string, records []any) (api.AppendResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	total, err := e.store.Append(dataset, records)
	if err != nil {
		return api.AppendResult{}, err
	}
	return api.AppendResult{Status: api.StatusSuccess, Dataset: dataset, Appended: len(records), Total: total}, nil
}

// Import appends every row of a SQLite results table to a dataset.
func (e *Engine) Import(dataset, dbPath, table string) (api.AppendResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n, total, err := e.store.ImportSQLite(dataset, dbPath, table)
	if err != nil {
		return api.AppendResult{}, err
	}
	return api.AppendResult{Status: api.StatusSuccess, Dataset: dataset, Appended: n, Total: total}, nil
}

// Inspect samples a dataset and reports its paths.
func (e *Engine) Inspect(dataset string, cfg survey.Config) (api.InspectResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	records, err := e.store.Read(dataset)
	if err != nil {
		return api.InspectResult{}, err
	}
	return survey.Survey(dataset, records, cfg), nil
}

// Registry lists the registered enrichment output files.
func (e *Engine) Registry() []registry.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.Entries()
}

// Export writes a SQLite snapshot of the workspace to path.
func (e *Engine) Export(path string, opts snapshot.Options) (api.ExportResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	src := snapshot.Source{Store: e.store, Table: e.table, Registry: e.reg}
	return snapshot.Export(path, src, opts, e.opts.Logger)
}
