// Package mapping implements the lead mapping table: one row per lead,
// holding integer index references into named datasets plus any scalar
// attributes asserted directly by the caller.
package mapping

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	billy "github.com/go-git/go-billy/v5"
)

// DefaultFile is the mapping's file name inside the data directory.
const DefaultFile = "mapping.json"

// Lead is one row of the mapping table.
type Lead struct {
	indices map[string]int
	attrs   map[string]any
}

func newLead() *Lead {
	return &Lead{indices: make(map[string]int), attrs: make(map[string]any)}
}

// Index returns the lead's index under an index-field.
func (l *Lead) Index(field string) (int, bool) {
	i, ok := l.indices[field]
	return i, ok
}

// Attr returns a directly-asserted attribute.
func (l *Lead) Attr(name string) (any, bool) {
	v, ok := l.attrs[name]
	return v, ok
}

// Indices returns a copy of the lead's index references.
func (l *Lead) Indices() map[string]int { return maps.Clone(l.indices) }

// Attrs returns a copy of the lead's direct attributes.
func (l *Lead) Attrs() map[string]any { return maps.Clone(l.attrs) }

func (l *Lead) flat() map[string]any {
	out := make(map[string]any, len(l.indices)+len(l.attrs))
	for k, v := range l.attrs {
		out[k] = v
	}
	for k, v := range l.indices {
		out[k] = v
	}
	return out
}

// Table is the in-memory mapping. Mutating methods change memory only; the
// owner calls Save after each successful operation.
type Table struct {
	fs     billy.Filesystem
	name   string
	logger *slog.Logger

	leads       []*Lead
	indexFields []string
	datasets    map[string]string
	attrNames   map[string]bool
	// byIndex[field][value] is the unique lead holding value under field.
	byIndex map[string]map[int]*Lead
}

// Load reads the mapping from fs. A missing file is an empty mapping.
func Load(fs billy.Filesystem, name string, logger *slog.Logger) (*Table, error) {
	if name == "" {
		name = DefaultFile
	}
	t := &Table{
		fs:        fs,
		name:      name,
		logger:    logging.Default(logger).With("component", "mapping"),
		datasets:  make(map[string]string),
		attrNames: make(map[string]bool),
		byIndex:   make(map[string]map[int]*Lead),
	}

	var doc api.MappingDoc
	err := jsonfile.Read(fs, name, &doc)
	if err != nil && !errors.Is(err, api.ErrNotFound) {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	if err := t.fromDoc(doc); err != nil {
		return nil, fmt.Errorf("load mapping: %w", err)
	}
	return t, nil
}

func (t *Table) fromDoc(doc api.MappingDoc) error {
	fields := doc.IndexFields
	if len(fields) == 0 {
		fields = inferIndexFields(doc.Leads)
	}
	for _, f := range fields {
		t.addIndexField(f)
	}
	maps.Copy(t.datasets, doc.Datasets)

	for n, row := range doc.Leads {
		lead := newLead()
		for k, v := range row {
			if !t.isIndexField(k) {
				lead.attrs[k] = v
				t.attrNames[k] = true
				continue
			}
			if v == nil {
				continue
			}
			i, ok := jsonfile.Int(v)
			if !ok {
				return fmt.Errorf("%w: lead %d: %s=%v is not an integer", api.ErrInvalidArgument, n, k, v)
			}
			if _, dup := t.byIndex[k][i]; dup {
				return fmt.Errorf("%w: %s=%d held by more than one lead", api.ErrDuplicateIndex, k, i)
			}
			lead.indices[k] = i
			t.byIndex[k][i] = lead
		}
		t.leads = append(t.leads, lead)
	}
	return nil
}

// inferIndexFields handles mapping files written without an index_fields
// list: a key is an index-field when it ends in "Index" and every lead
// holding it holds an integer.
func inferIndexFields(rows []map[string]any) []string {
	candidates := make(map[string]bool)
	for _, row := range rows {
		for k, v := range row {
			if !strings.HasSuffix(k, "Index") {
				continue
			}
			_, isInt := jsonfile.Int(v)
			if prev, seen := candidates[k]; seen {
				candidates[k] = prev && (isInt || v == nil)
			} else {
				candidates[k] = isInt || v == nil
			}
		}
	}
	var out []string
	for k, ok := range candidates {
		if ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (t *Table) addIndexField(f string) {
	if t.isIndexField(f) {
		return
	}
	t.indexFields = append(t.indexFields, f)
	t.byIndex[f] = make(map[int]*Lead)
}

func (t *Table) isIndexField(f string) bool {
	_, ok := t.byIndex[f]
	return ok
}

// Save flushes the mapping to disk.
func (t *Table) Save() error {
	doc := api.MappingDoc{
		Leads:       make([]map[string]any, len(t.leads)),
		IndexFields: slices.Clone(t.indexFields),
	}
	for i, l := range t.leads {
		doc.Leads[i] = l.flat()
	}
	if len(t.datasets) > 0 {
		doc.Datasets = maps.Clone(t.datasets)
	}
	if err := jsonfile.Write(t.fs, t.name, doc); err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

// Len is the number of leads.
func (t *Table) Len() int { return len(t.leads) }

// Leads iterates leads in creation order.
func (t *Table) Leads() iter.Seq[*Lead] {
	return slices.Values(t.leads)
}

// IsIndexField reports whether f names an index-field.
func (t *Table) IsIndexField(f string) bool { return t.isIndexField(f) }

// IndexFields lists the known index-fields in the order they appeared.
func (t *Table) IndexFields() []string { return slices.Clone(t.indexFields) }

// HasAttr reports whether any lead carries the direct attribute name.
func (t *Table) HasAttr(name string) bool { return t.attrNames[name] }

// IndexFieldFor returns the index-field dataset was initialised under.
func (t *Table) IndexFieldFor(dataset string) (string, bool) {
	f, ok := t.datasets[dataset]
	return f, ok
}

// Datasets returns the dataset -> index-field associations.
func (t *Table) Datasets() map[string]string { return maps.Clone(t.datasets) }

// Lookup finds the lead holding index under field.
func (t *Table) Lookup(field string, index int) (*Lead, bool) {
	l, ok := t.byIndex[field][index]
	return l, ok
}

// MaxIndex returns the highest index held under field, or -1.
func (t *Table) MaxIndex(field string) int {
	highest := -1
	for i := range t.byIndex[field] {
		if i > highest {
			highest = i
		}
	}
	return highest
}

// Translate maps indices in the from index space to the to index space
// through the leads that hold both. The result is sorted and unique.
func (t *Table) Translate(from, to string, keep func(int) bool) []int {
	if from == to {
		var out []int
		for i := range t.byIndex[from] {
			if keep(i) {
				out = append(out, i)
			}
		}
		slices.Sort(out)
		return out
	}
	seen := make(map[int]bool)
	var out []int
	for i, lead := range t.byIndex[from] {
		if !keep(i) {
			continue
		}
		j, ok := lead.indices[to]
		if !ok || seen[j] {
			continue
		}
		seen[j] = true
		out = append(out, j)
	}
	slices.Sort(out)
	return out
}

func (t *Table) missing(field string, indices []int) []int {
	var out []int
	for _, i := range indices {
		if _, ok := t.byIndex[field][i]; !ok && !slices.Contains(out, i) {
			out = append(out, i)
		}
	}
	slices.Sort(out)
	return out
}

func checkName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty %s", api.ErrInvalidArgument, kind)
	}
	if name == api.IndexKey {
		return fmt.Errorf("%w: %q is reserved", api.ErrInvalidArgument, name)
	}
	return nil
}
