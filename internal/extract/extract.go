// Package extract answers "field F for every lead where P holds" by
// combining a projection over a source dataset with membership sets drawn
// from the mapping table or from registered enrichment output files.
package extract

import (
	"fmt"
	"iter"
	"log/slog"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/filter"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mapping"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/projector"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/registry"
	"github.com/RoaringBitmap/roaring"
)

// Request describes one extraction. Exactly one of Path and Fields is set.
type Request struct {
	Source string
	Path   string
	Fields []projector.Field

	// Where is an optional "field=value" clause.
	Where string

	// IndexField overrides the source's index-field.
	IndexField string

	// Offset and Limit paginate after filtering; Limit 0 means no cap.
	Offset int
	Limit  int

	// SaveAs, when set, stores the extracted values as a new dataset.
	SaveAs string
}

// Extractor reads datasets and resolves filters. It never mutates the
// mapping or the registry.
type Extractor struct {
	store    *dataset.Store
	table    *mapping.Table
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates an Extractor.
func New(store *dataset.Store, table *mapping.Table, reg *registry.Registry, logger *slog.Logger) *Extractor {
	return &Extractor{
		store:    store,
		table:    table,
		registry: reg,
		logger:   logging.Default(logger).With("component", "extract"),
	}
}

// Selection is the ordered, filtered and paginated set of source records a
// request covers.
type Selection struct {
	Source     string
	IndexField string
	records    []any
	proj       *projector.Projection
	indices    []int
}

// Len is the number of selected records.
func (s *Selection) Len() int { return len(s.indices) }

// Indices returns the selected indices in dataset order.
func (s *Selection) Indices() []int { return append([]int(nil), s.indices...) }

// Items lazily projects the selection. Each call starts over.
func (s *Selection) Items() iter.Seq[api.Item] {
	return s.proj.Items(s.records, s.indices)
}

func compile(req Request) (*projector.Projection, error) {
	switch {
	case len(req.Fields) > 0 && req.Path != "":
		return nil, fmt.Errorf("%w: give a path or fields, not both", api.ErrInvalidArgument)
	case len(req.Fields) > 0:
		return projector.CompileFields(req.Fields)
	case req.Path != "":
		return projector.Compile(req.Path)
	default:
		return projector.Compile("[*]")
	}
}

// Select resolves a request to its selection without projecting.
func (x *Extractor) Select(req Request) (*Selection, error) {
	if req.Offset < 0 || req.Limit < 0 {
		return nil, fmt.Errorf("%w: offset and limit must not be negative", api.ErrInvalidArgument)
	}
	proj, err := compile(req)
	if err != nil {
		return nil, err
	}
	records, err := x.store.Read(req.Source)
	if err != nil {
		return nil, err
	}
	sel := &Selection{
		Source:     req.Source,
		IndexField: x.table.IndexFieldOf(req.Source, req.IndexField),
		records:    records,
		proj:       proj,
	}

	indices, err := proj.Select(len(records))
	if err != nil {
		return nil, err
	}
	if req.Where != "" {
		expr, err := filter.Parse(req.Where)
		if err != nil {
			return nil, err
		}
		members, err := x.Members(expr, sel.IndexField)
		if err != nil {
			return nil, err
		}
		candidates := roaring.New()
		for _, i := range indices {
			candidates.AddInt(i)
		}
		candidates.And(members)
		indices = toInts(candidates)
	}
	sel.indices = paginate(indices, req.Offset, req.Limit)
	return sel, nil
}

// Extract runs a request and returns its result, saving the values as a new
// dataset when SaveAs is set.
func (x *Extractor) Extract(req Request) (api.ExtractResult, error) {
	sel, err := x.Select(req)
	if err != nil {
		return api.ExtractResult{}, err
	}
	res := api.ExtractResult{Status: api.StatusSuccess, Data: make([]api.Item, 0, sel.Len())}
	missing := 0
	for item := range sel.Items() {
		if item.Err != nil {
			missing++
		}
		res.Data = append(res.Data, item)
	}
	res.Count = len(res.Data)

	if req.SaveAs != "" {
		values := make([]any, len(res.Data))
		for i, item := range res.Data {
			values[i] = item.Value
		}
		if err := x.store.Create(req.SaveAs, values); err != nil {
			return api.ExtractResult{}, err
		}
		res.SavedTo = dataset.FileName(req.SaveAs)
	}

	x.logger.Debug("extract", "source", req.Source, "where", req.Where,
		"count", res.Count, "missing", missing)
	return res, nil
}

func paginate(indices []int, offset, limit int) []int {
	if offset >= len(indices) {
		return []int{}
	}
	indices = indices[offset:]
	if limit > 0 && limit < len(indices) {
		indices = indices[:limit]
	}
	return indices
}

func toInts(bm *roaring.Bitmap) []int {
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}
