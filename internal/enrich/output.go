package enrich

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/RoaringBitmap/roaring"
)

// DefaultOutputFile names the output file of an enrichment pass over source
// declaring fields: postData + [isPaidCanva, reasoning] -> postData_isPaidCanva.json.
func DefaultOutputFile(source string, fields []string) string {
	base := strings.TrimSuffix(source, ".json")
	if len(fields) == 0 {
		return dataset.FileName(base + "_enriched")
	}
	return dataset.FileName(base + "_" + fields[0])
}

// processed returns the indices already present in an output file. A
// missing file has none. Duplicates on disk are reported, not tolerated.
func processed(store *dataset.Store, file string) (*roaring.Bitmap, bool, error) {
	records, err := store.Read(file)
	if errors.Is(err, api.ErrNotFound) {
		return roaring.New(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	done, err := indexSet(file, records)
	if err != nil {
		return nil, true, err
	}
	return done, true, nil
}

func indexSet(file string, records []any) (*roaring.Bitmap, error) {
	done := roaring.New()
	var dups []int
	for n, rec := range records {
		row, ok := rec.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s record %d is not an object", api.ErrInvalidArgument, file, n)
		}
		i, ok := jsonfile.Int(row[api.IndexKey])
		if !ok || i < 0 {
			return nil, fmt.Errorf("%w: %s record %d has no valid index", api.ErrInvalidArgument, file, n)
		}
		if !done.CheckedAdd(uint32(i)) {
			dups = append(dups, i)
		}
	}
	if len(dups) > 0 {
		return nil, &api.DuplicateIndexError{File: file, Indices: dups}
	}
	return done, nil
}

// AppendResults appends records to an enrichment output file. If any
// record's index is already in the file, or repeats within records, nothing
// is written and a *api.DuplicateIndexError is returned.
func AppendResults(store *dataset.Store, file string, records []api.EnrichmentRecord) (int, error) {
	existing, err := store.Read(file)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrNotFound):
		existing = nil
	default:
		return 0, err
	}
	done, err := indexSet(file, existing)
	if err != nil {
		return 0, err
	}

	var dups []int
	add := make([]any, 0, len(records))
	for n, rec := range records {
		i, ok := jsonfile.Int(rec[api.IndexKey])
		if !ok || i < 0 {
			return 0, fmt.Errorf("%w: result %d for %s has no valid index", api.ErrInvalidArgument, n, file)
		}
		if !done.CheckedAdd(uint32(i)) {
			dups = append(dups, i)
			continue
		}
		add = append(add, map[string]any(rec))
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		return 0, &api.DuplicateIndexError{File: file, Indices: dups}
	}
	if len(add) == 0 {
		return len(existing), nil
	}
	return store.Append(file, add)
}
