// Package dataset implements the append-only dataset store.
//
// A dataset is a JSON array of opaque records kept in <name>.json. A record's
// position in the array is its permanent index: records are only ever
// appended, never reordered, rewritten or removed.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	billy "github.com/go-git/go-billy/v5"
)

// Store persists datasets on a billy.Filesystem rooted at the data directory.
type Store struct {
	fs     billy.Filesystem
	logger *slog.Logger
}

func NewStore(fs billy.Filesystem, logger *slog.Logger) *Store {
	return &Store{
		fs:     fs,
		logger: logging.Default(logger).With("component", "dataset-store"),
	}
}

// FileName returns the file a dataset (or enrichment output) is stored in.
func FileName(name string) string {
	if strings.HasSuffix(name, ".json") {
		return name
	}
	return name + ".json"
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: dataset name %q", api.ErrInvalidArgument, name)
	}
	return nil
}

// Exists reports whether the dataset has ever been written.
func (s *Store) Exists(name string) (bool, error) {
	if err := validName(name); err != nil {
		return false, err
	}
	return jsonfile.Exists(s.fs, FileName(name))
}

// Read returns the dataset's records in index order.
func (s *Store) Read(name string) ([]any, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	var raw any
	if err := jsonfile.Read(s.fs, FileName(name), &raw); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	records, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: dataset %s is not a JSON array", api.ErrInvalidArgument, name)
	}
	return records, nil
}

// Length returns the number of records in the dataset.
func (s *Store) Length(name string) (int, error) {
	records, err := s.Read(name)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Append adds records after the existing ones, creating the dataset on first
// write, and returns the new length. Existing indices are untouched.
// The store does not deduplicate: callers skip already-collected input
// before appending again.
func (s *Store) Append(name string, records []any) (int, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	existing, err := s.Read(name)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrNotFound):
		existing = []any{}
	default:
		return 0, err
	}

	all := make([]any, 0, len(existing)+len(records))
	all = append(all, existing...)
	all = append(all, records...)
	if err := jsonfile.Write(s.fs, FileName(name), all); err != nil {
		return 0, fmt.Errorf("append to %s: %w", name, err)
	}
	s.logger.Info("appended records", "dataset", name, "appended", len(records), "total", len(all))
	return len(all), nil
}

// Create writes a new dataset. It refuses to replace an existing one.
func (s *Store) Create(name string, records []any) error {
	ok, err := s.Exists(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: dataset %s already exists", api.ErrConflict, name)
	}
	if records == nil {
		records = []any{}
	}
	if err := jsonfile.Write(s.fs, FileName(name), records); err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	s.logger.Info("created dataset", "dataset", name, "records", len(records))
	return nil
}
