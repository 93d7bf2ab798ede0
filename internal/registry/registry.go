// Package registry maps enrichment field names to the output file that owns
// them, so derived fields are looked up in place instead of being copied
// into the mapping.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	billy "github.com/go-git/go-billy/v5"
)

// DefaultFile is the registry's file name inside the data directory.
const DefaultFile = "registry.json"

// Registry is the in-memory registry, flushed to disk on every registration.
type Registry struct {
	fs     billy.Filesystem
	name   string
	doc    api.RegistryDoc
	logger *slog.Logger
}

// Entry is one registered output file.
type Entry struct {
	File       string   `json:"file"`
	IndexField string   `json:"index_field"`
	Fields     []string `json:"fields"`
}

// Load reads the registry from fs. A missing file is an empty registry.
func Load(fs billy.Filesystem, name string, logger *slog.Logger) (*Registry, error) {
	if name == "" {
		name = DefaultFile
	}
	r := &Registry{
		fs:     fs,
		name:   name,
		logger: logging.Default(logger).With("component", "registry"),
	}
	err := jsonfile.Read(fs, name, &r.doc)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	if r.doc.Files == nil {
		r.doc.Files = make(map[string]api.RegistryFile)
	}
	if r.doc.Fields == nil {
		r.doc.Fields = make(map[string]string)
	}
	return r, nil
}

func cleanFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "" || f == api.IndexKey || slices.Contains(out, f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Check reports whether registering fields for outputFile would conflict,
// without changing anything.
func (r *Registry) Check(fields []string, outputFile, indexField string) error {
	if outputFile == "" || indexField == "" {
		return fmt.Errorf("%w: registration needs an output file and an index-field", api.ErrInvalidArgument)
	}
	fields = cleanFields(fields)
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields to register for %s", api.ErrInvalidArgument, outputFile)
	}
	for _, f := range fields {
		if owner, ok := r.doc.Fields[f]; ok && owner != outputFile {
			return &api.ConflictError{Field: f, Owner: owner, Claimant: outputFile}
		}
	}
	if cur, ok := r.doc.Files[outputFile]; ok && cur.IndexField != indexField {
		return fmt.Errorf("%w: %s is registered under index-field %s, not %s",
			api.ErrConflict, outputFile, cur.IndexField, indexField)
	}
	return nil
}

// Register records that outputFile owns fields, keyed by indexField, and
// flushes the registry. Callers register only after outputFile has been
// written, so a resolvable field always has its file on disk.
// Re-registering the same file merges its field set.
func (r *Registry) Register(fields []string, outputFile, indexField string) error {
	if err := r.Check(fields, outputFile, indexField); err != nil {
		return err
	}
	fields = cleanFields(fields)

	entry := r.doc.Files[outputFile]
	entry.IndexField = indexField
	for _, f := range fields {
		if !slices.Contains(entry.Fields, f) {
			entry.Fields = append(entry.Fields, f)
		}
		r.doc.Fields[f] = outputFile
	}
	r.doc.Files[outputFile] = entry

	if err := jsonfile.Write(r.fs, r.name, r.doc); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	r.logger.Info("registered enrichment fields", "file", outputFile, "index_field", indexField, "fields", fields)
	return nil
}

// Resolve returns the output file owning field and that file's index-field.
func (r *Registry) Resolve(field string) (string, string, error) {
	file, ok := r.doc.Fields[field]
	if !ok {
		return "", "", fmt.Errorf("%w: %s is not registered", api.ErrUnknownField, field)
	}
	entry, ok := r.doc.Files[file]
	if !ok {
		return "", "", fmt.Errorf("%w: %s points at unregistered file %s", api.ErrUnknownField, field, file)
	}
	return file, entry.IndexField, nil
}

// Entries lists registered output files sorted by name.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.doc.Files))
	for name, f := range r.doc.Files {
		out = append(out, Entry{File: name, IndexField: f.IndexField, Fields: slices.Clone(f.Fields)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].File < out[j].File })
	return out
}
