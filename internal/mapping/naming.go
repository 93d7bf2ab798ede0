package mapping

import "strings"

// ConventionalIndexField derives an index-field name from a dataset name:
// postData -> postIndex, profiles -> profilesIndex.
func ConventionalIndexField(dataset string) string {
	base := strings.TrimSuffix(dataset, ".json")
	base = strings.TrimSuffix(base, "Data")
	return base + "Index"
}

// IndexFieldOf returns explicit when set, else the index-field dataset was
// initialised under, else the conventional name.
func (t *Table) IndexFieldOf(dataset, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if f, ok := t.IndexFieldFor(dataset); ok {
		return f
	}
	return ConventionalIndexField(dataset)
}
