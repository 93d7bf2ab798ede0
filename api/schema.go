package api

// MappingDoc is the durable form of the mapping table.
// Each lead is a flat object: index-fields map to integers, every other key
// is a directly-asserted scalar attribute.
type MappingDoc struct {
	Leads []map[string]any `json:"leads"`
	// IndexFields names the keys of a lead that are index references.
	// Older mapping files lack it; the loader infers index-fields then.
	IndexFields []string `json:"index_fields,omitempty"`
	// Datasets records the index-field each dataset was initialised under.
	Datasets map[string]string `json:"datasets,omitempty"`
}

// RegistryDoc is the durable form of the enrichment registry.
type RegistryDoc struct {
	// Files maps an enrichment output file to what it contributes.
	Files map[string]RegistryFile `json:"files"`
	// Fields maps an enrichment field name to its owning output file.
	Fields map[string]string `json:"fields"`
}

// RegistryFile describes one enrichment output file.
type RegistryFile struct {
	Fields     []string `json:"fields"`
	IndexField string   `json:"index_field"`
}

// EnrichmentRecord is one row of an enrichment output file:
// {"index": n, field_1: ..., field_k: ...}.
type EnrichmentRecord map[string]any

// IndexKey is the key every enrichment record carries its index under.
const IndexKey = "index"

// Item is a projected value tagged with the index of the record it came from.
type Item struct {
	Index int `json:"index"`
	Value any `json:"value"`
	// Err is set when the value could not be resolved for this record
	// (for example a *MissingFieldError). Value is nil in that case.
	Err error `json:"-"`
}

// Result status discriminators.
const (
	StatusSuccess = "success"
	StatusDryRun  = "dry_run"
	StatusError   = "error"
)

// InitResult reports a mapping initialisation.
type InitResult struct {
	Status  string `json:"status"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Total   int    `json:"total"`
}

// UpdateResult reports a direct mapping update.
type UpdateResult struct {
	Status  string `json:"status"`
	Updated int    `json:"updated"`
}

// LinkResult reports an index link.
type LinkResult struct {
	Status  string `json:"status"`
	Linked  []int  `json:"linked"`
	Skipped []int  `json:"skipped"`
	// TargetStart is the first target index assigned; nil when nothing was linked.
	TargetStart *int `json:"target_start,omitempty"`
}

// ExtractResult reports a (filtered) extraction.
type ExtractResult struct {
	Status  string `json:"status"`
	Data    []Item `json:"data"`
	Count   int    `json:"count"`
	SavedTo string `json:"saved_to,omitempty"`
}

// EnrichResult reports a batch enrichment pass.
type EnrichResult struct {
	Status string `json:"status"`
	RunID  string `json:"run_id,omitempty"`
	// Processed is the number of records appended to the output file.
	Processed int `json:"processed"`
	// Skipped counts items already present in the output file.
	Skipped int `json:"skipped"`
	// Empty counts items whose projected value was null.
	Empty int `json:"empty"`
	// Rejected counts classifier results for indices that were not requested.
	Rejected int `json:"rejected"`
	// Pending is the number of items a dry run would send.
	Pending     int    `json:"pending,omitempty"`
	Batches     int    `json:"batches"`
	ResultsFile string `json:"results_file,omitempty"`
	// Promoted counts leads that received a promoted field via update.
	Promoted int `json:"promoted"`
}

// AppendResult reports records appended to a dataset.
type AppendResult struct {
	Status   string `json:"status"`
	Dataset  string `json:"dataset"`
	Appended int    `json:"appended"`
	Total    int    `json:"total"`
}

// ErrorResult is what every surface emits when an operation fails.
type ErrorResult struct {
	Status string `json:"status"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// NewErrorResult builds the error result for err.
func NewErrorResult(err error) ErrorResult {
	return ErrorResult{Status: StatusError, Kind: Kind(err), Error: err.Error()}
}

// PathStat describes one path observed in a dataset sample.
type PathStat struct {
	Path     string   `json:"path"`
	Count    int      `json:"count"` // sampled records holding the path
	Types    []string `json:"types"`
	Distinct int      `json:"distinct"`
	Examples []string `json:"examples,omitempty"`
}

// InspectResult reports the paths found in a dataset sample.
type InspectResult struct {
	Status  string     `json:"status"`
	Dataset string     `json:"dataset"`
	Records int        `json:"records"`
	Sampled int        `json:"sampled"`
	Paths   []PathStat `json:"paths"`
}

// ExportResult reports a SQLite snapshot export.
type ExportResult struct {
	Status      string `json:"status"`
	Path        string `json:"path"`
	Datasets    int    `json:"datasets"`
	Records     int    `json:"records"`
	Leads       int    `json:"leads"`
	Enrichments int    `json:"enrichments"`
}
