package mapping

import (
	"fmt"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
)

// Init creates a lead for every index in [0, n) of dataset that no lead
// holds under indexField yet. Re-running after the dataset grew only
// creates leads for the appended range. New leads are always appended;
// attaching an index to an existing lead is left to Link, the only
// operation that records a correspondence between datasets.
func (t *Table) Init(dataset string, n int, indexField string) (api.InitResult, error) {
	if err := checkName("index-field", indexField); err != nil {
		return api.InitResult{}, err
	}
	if t.attrNames[indexField] {
		return api.InitResult{}, fmt.Errorf("%w: %s is a direct attribute, not an index-field", api.ErrConflict, indexField)
	}
	if cur, ok := t.datasets[dataset]; ok && cur != indexField {
		return api.InitResult{}, fmt.Errorf("%w: dataset %s is already mapped under %s", api.ErrConflict, dataset, cur)
	}

	t.addIndexField(indexField)
	t.datasets[dataset] = indexField

	res := api.InitResult{Status: api.StatusSuccess}
	for i := 0; i < n; i++ {
		if _, ok := t.byIndex[indexField][i]; ok {
			res.Skipped++
			continue
		}
		lead := newLead()
		lead.indices[indexField] = i
		t.byIndex[indexField][i] = lead
		t.leads = append(t.leads, lead)
		res.Created++
	}
	res.Total = len(t.leads)

	t.logger.Info("init", "dataset", dataset, "index_field", indexField,
		"created", res.Created, "skipped", res.Skipped, "total", res.Total)
	return res, nil
}

// Update sets field=value on every lead whose indexField is in indices.
// All indices must already have a lead; otherwise nothing changes and a
// *api.NoMatchError lists the missing ones.
func (t *Table) Update(indexField string, indices []int, field string, value any) (api.UpdateResult, error) {
	if err := checkName("field", field); err != nil {
		return api.UpdateResult{}, err
	}
	if t.isIndexField(field) || field == indexField {
		return api.UpdateResult{}, fmt.Errorf("%w: %s is an index-field; use link", api.ErrInvalidArgument, field)
	}
	switch value.(type) {
	case map[string]any, []any:
		return api.UpdateResult{}, fmt.Errorf("%w: %s must be a scalar", api.ErrInvalidArgument, field)
	}
	if len(indices) == 0 {
		return api.UpdateResult{}, fmt.Errorf("%w: no indices", api.ErrInvalidArgument)
	}
	if missing := t.missing(indexField, indices); len(missing) > 0 {
		return api.UpdateResult{}, &api.NoMatchError{IndexField: indexField, Indices: missing}
	}

	res := api.UpdateResult{Status: api.StatusSuccess}
	done := make(map[int]bool, len(indices))
	for _, i := range indices {
		if done[i] {
			continue
		}
		done[i] = true
		t.byIndex[indexField][i].attrs[field] = value
		res.Updated++
	}
	t.attrNames[field] = true

	t.logger.Info("update", "index_field", indexField, "field", field, "updated", res.Updated)
	return res, nil
}

// Link gives each source index that has no targetField yet the next unused
// target index, in the order given. Target indices continue from
// 1 + the highest existing one, so repeated or overlapping calls never
// reassign, reuse or skip a target index. Source indices already linked
// (including repeats within this call) are reported as skipped.
func (t *Table) Link(sourceField string, sourceIndices []int, targetField string) (api.LinkResult, error) {
	if err := checkName("source index-field", sourceField); err != nil {
		return api.LinkResult{}, err
	}
	if err := checkName("target index-field", targetField); err != nil {
		return api.LinkResult{}, err
	}
	if sourceField == targetField {
		return api.LinkResult{}, fmt.Errorf("%w: cannot link %s to itself", api.ErrInvalidArgument, sourceField)
	}
	if t.attrNames[targetField] {
		return api.LinkResult{}, fmt.Errorf("%w: %s is a direct attribute, not an index-field", api.ErrConflict, targetField)
	}
	if missing := t.missing(sourceField, sourceIndices); len(missing) > 0 {
		return api.LinkResult{}, &api.NoMatchError{IndexField: sourceField, Indices: missing}
	}

	start := t.MaxIndex(targetField) + 1
	next := start

	res := api.LinkResult{Status: api.StatusSuccess, Linked: []int{}, Skipped: []int{}}
	for _, src := range sourceIndices {
		lead := t.byIndex[sourceField][src]
		if _, ok := lead.indices[targetField]; ok {
			res.Skipped = append(res.Skipped, src)
			continue
		}
		if len(res.Linked) == 0 {
			t.addIndexField(targetField)
		}
		lead.indices[targetField] = next
		t.byIndex[targetField][next] = lead
		res.Linked = append(res.Linked, src)
		next++
	}
	if len(res.Linked) > 0 {
		res.TargetStart = &start
	}

	t.logger.Info("link", "source", sourceField, "target", targetField,
		"linked", len(res.Linked), "skipped", len(res.Skipped), "target_start", start)
	return res, nil
}
