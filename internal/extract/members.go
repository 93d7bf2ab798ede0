package extract

import (
	"fmt"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/filter"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/RoaringBitmap/roaring"
)

// Members returns the indices, in indexField's space, of the records whose
// lead satisfies expr. An index-field compares by linked index. Otherwise a
// lead's own attribute wins, and a lead without one falls back to the
// registered enrichment output, so promotion never hides enriched rows.
func (x *Extractor) Members(expr filter.Expr, indexField string) (*roaring.Bitmap, error) {
	if x.table.IsIndexField(expr.Field) {
		return x.indexMembers(expr, indexField), nil
	}

	file, ownerField, err := x.registry.Resolve(expr.Field)
	if err != nil {
		if x.table.HasAttr(expr.Field) {
			return x.attrMembers(expr, indexField, nil, ""), nil
		}
		return nil, fmt.Errorf("%w: %s is neither a mapping attribute nor a registered field",
			api.ErrUnknownField, expr.Field)
	}
	values, err := x.enrichmentValues(expr.Field, file)
	if err != nil {
		return nil, err
	}
	if x.table.HasAttr(expr.Field) {
		out := x.attrMembers(expr, indexField, values, ownerField)
		x.logger.Debug("resolved filter through attributes and registry", "field", expr.Field,
			"file", file, "members", out.GetCardinality())
		return out, nil
	}

	matched := roaring.New()
	for i, v := range values {
		if expr.Match(v) {
			matched.AddInt(i)
		}
	}
	out := roaring.New()
	for _, i := range x.table.Translate(ownerField, indexField, matched.ContainsInt) {
		out.AddInt(i)
	}
	x.logger.Debug("resolved filter through registry", "field", expr.Field, "file", file,
		"owner_index_field", ownerField, "matched", matched.GetCardinality(), "members", out.GetCardinality())
	return out, nil
}

// attrMembers matches each lead's direct attribute. A lead without one takes
// the enrichment value held under its ownerField index, if any.
func (x *Extractor) attrMembers(expr filter.Expr, indexField string, values map[int]any, ownerField string) *roaring.Bitmap {
	out := roaring.New()
	for lead := range x.table.Leads() {
		i, ok := lead.Index(indexField)
		if !ok {
			continue
		}
		// An absent attribute compares as null.
		v, ok := lead.Attr(expr.Field)
		if !ok && values != nil {
			if j, linked := lead.Index(ownerField); linked {
				v = values[j]
			}
		}
		if expr.Match(v) {
			out.AddInt(i)
		}
	}
	return out
}

func (x *Extractor) indexMembers(expr filter.Expr, indexField string) *roaring.Bitmap {
	out := roaring.New()
	for lead := range x.table.Leads() {
		i, ok := lead.Index(indexField)
		if !ok {
			continue
		}
		var v any
		if j, linked := lead.Index(expr.Field); linked {
			v = j
		}
		if expr.Match(v) {
			out.AddInt(i)
		}
	}
	return out
}

// enrichmentValues reads field from every record of an enrichment output
// file, keyed by the file's own index.
func (x *Extractor) enrichmentValues(field, file string) (map[int]any, error) {
	records, err := x.store.Read(file)
	if err != nil {
		return nil, fmt.Errorf("read enrichment output %s: %w", file, err)
	}
	out := make(map[int]any, len(records))
	for n, rec := range records {
		row, ok := rec.(map[string]any)
		if !ok {
			x.logger.Warn("enrichment record is not an object", "file", file, "position", n)
			continue
		}
		i, ok := jsonfile.Int(row[api.IndexKey])
		if !ok || i < 0 {
			x.logger.Warn("enrichment record has no usable index", "file", file, "position", n)
			continue
		}
		out[i] = row[field]
	}
	return out, nil
}
