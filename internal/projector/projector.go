// Package projector resolves paths and multi-field projections over the
// records of a dataset.
//
// A projection never fails because one record is malformed: an absent key
// yields a null value with a *api.MissingFieldError attached to that item,
// and the rest of the dataset is projected normally.
package projector

import (
	"fmt"
	"iter"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
)

// Field is one key=path pair of a multi-field projection.
type Field struct {
	Key  string
	Path string
}

// Projection is a compiled single-path or multi-field projection.
type Projection struct {
	path   *Path
	keys   []string
	fields []relPath
}

// Compile builds a single-path projection.
func Compile(path string) (*Projection, error) {
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	return &Projection{path: p}, nil
}

// CompileFields builds a multi-field projection. Field paths are relative to
// each record; a leading "[*]" is accepted and ignored.
func CompileFields(fields []Field) (*Projection, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no projection fields", api.ErrInvalidArgument)
	}
	proj := &Projection{}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Key == "" {
			return nil, fmt.Errorf("%w: empty projection key", api.ErrInvalidArgument)
		}
		if seen[f.Key] {
			return nil, fmt.Errorf("%w: duplicate projection key %q", api.ErrInvalidArgument, f.Key)
		}
		seen[f.Key] = true

		raw := strings.TrimSpace(f.Path)
		raw = strings.TrimPrefix(raw, "$")
		raw = strings.TrimPrefix(raw, "[*]")
		rel, err := parseRelative(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Key, err)
		}
		proj.keys = append(proj.keys, f.Key)
		proj.fields = append(proj.fields, rel)
	}
	return proj, nil
}

// ParseFields parses "name=author.name,bio=author.info". A pair without "="
// uses the path as its own key.
func ParseFields(spec string) ([]Field, error) {
	var out []Field
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			v = k
		}
		out = append(out, Field{Key: strings.TrimSpace(k), Path: strings.TrimSpace(v)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty field list %q", api.ErrInvalidArgument, spec)
	}
	return out, nil
}

// Select returns the indices of a dataset of length n this projection covers.
func (p *Projection) Select(n int) ([]int, error) {
	if p.path != nil {
		return p.path.Select(n)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out, nil
}

// Selects reports whether record i is covered by the projection.
func (p *Projection) Selects(i int) bool {
	return p.path == nil || p.path.Selects(i)
}

// Apply projects one record.
func (p *Projection) Apply(index int, record any) api.Item {
	if p.path != nil {
		v, ok := p.path.rel.eval(record)
		if !ok {
			return api.Item{Index: index, Err: &api.MissingFieldError{Index: index, Path: p.path.raw}}
		}
		return api.Item{Index: index, Value: v}
	}

	item := api.Item{Index: index}
	value := make(map[string]any, len(p.keys))
	for i, key := range p.keys {
		v, ok := p.fields[i].eval(record)
		if !ok && item.Err == nil {
			item.Err = &api.MissingFieldError{Index: index, Path: p.fields[i].raw}
		}
		value[key] = v
	}
	item.Value = value
	return item
}

// Items lazily projects records at the given indices, in the order given.
// Indices outside the dataset are skipped. The sequence is recomputed on
// every iteration.
func (p *Projection) Items(records []any, indices []int) iter.Seq[api.Item] {
	return func(yield func(api.Item) bool) {
		for _, i := range indices {
			if i < 0 || i >= len(records) {
				continue
			}
			if !yield(p.Apply(i, records[i])) {
				return
			}
		}
	}
}

// Project projects every selected record of the dataset.
func (p *Projection) Project(records []any) ([]api.Item, error) {
	indices, err := p.Select(len(records))
	if err != nil {
		return nil, err
	}
	out := make([]api.Item, 0, len(indices))
	for item := range p.Items(records, indices) {
		out = append(out, item)
	}
	return out, nil
}
