// Package enrich runs batch enrichment passes: it selects the items still
// missing from an output file, hands them to a Classifier in batches, and
// appends the validated results before registering their fields.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/dataset"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/extract"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/logging"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/mapping"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/registry"
	"github.com/RoaringBitmap/roaring"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Options tune how batches are sent to the classifier.
type Options struct {
	BatchSize   int
	Concurrency int

	// RatePerSecond caps classifier calls; 0 means unlimited.
	RatePerSecond float64

	// Timeout bounds each classifier call; 0 means no bound.
	Timeout time.Duration
}

// DefaultOptions returns the defaults used when a field is left zero.
func DefaultOptions() Options {
	return Options{BatchSize: 20, Concurrency: 1, Timeout: 5 * time.Minute}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Request describes one enrichment pass.
type Request struct {
	Select extract.Request

	// Fields are the output fields every result declares.
	Fields []string

	// OutputFile defaults to DefaultOutputFile(source, Fields).
	OutputFile string

	// Promote lists fields to also set as direct mapping attributes.
	Promote []string

	Prompt string
	DryRun bool
}

// Runner executes enrichment passes.
type Runner struct {
	store      *dataset.Store
	table      *mapping.Table
	registry   *registry.Registry
	extractor  *extract.Extractor
	classifier Classifier
	opts       Options
	logger     *slog.Logger

	// mu serialises appends to the output file across concurrent batches.
	mu sync.Mutex
}

// NewRunner creates a Runner. classifier may be nil for dry runs.
func NewRunner(store *dataset.Store, table *mapping.Table, reg *registry.Registry,
	classifier Classifier, opts Options, logger *slog.Logger) *Runner {
	logger = logging.Default(logger)
	return &Runner{
		store:      store,
		table:      table,
		registry:   reg,
		extractor:  extract.New(store, table, reg, logger),
		classifier: classifier,
		opts:       opts.withDefaults(),
		logger:     logger.With("component", "enrich"),
	}
}

func checkFields(fields, promote []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: no output fields declared", api.ErrInvalidArgument)
	}
	for i, f := range fields {
		if f == "" || f == api.IndexKey {
			return fmt.Errorf("%w: invalid output field %q", api.ErrInvalidArgument, f)
		}
		if slices.Contains(fields[:i], f) {
			return fmt.Errorf("%w: output field %s declared twice", api.ErrInvalidArgument, f)
		}
	}
	for _, p := range promote {
		if !slices.Contains(fields, p) {
			return fmt.Errorf("%w: promoted field %s is not an output field", api.ErrInvalidArgument, p)
		}
	}
	return nil
}

// Run executes one pass. Items already in the output file are skipped, so
// re-running the same request only processes what is still missing.
func (r *Runner) Run(ctx context.Context, req Request) (api.EnrichResult, error) {
	if err := checkFields(req.Fields, req.Promote); err != nil {
		return api.EnrichResult{}, err
	}
	sel, err := r.extractor.Select(req.Select)
	if err != nil {
		return api.EnrichResult{}, err
	}
	outFile := req.OutputFile
	if outFile == "" {
		outFile = DefaultOutputFile(req.Select.Source, req.Fields)
	}
	outFile = dataset.FileName(outFile)
	if err := r.registry.Check(req.Fields, outFile, sel.IndexField); err != nil {
		return api.EnrichResult{}, err
	}

	done, exists, err := processed(r.store, outFile)
	if err != nil {
		return api.EnrichResult{}, err
	}

	res := api.EnrichResult{Status: api.StatusSuccess, ResultsFile: outFile}
	var pending []api.Item
	for item := range sel.Items() {
		switch {
		case done.ContainsInt(item.Index):
			res.Skipped++
		case item.Value == nil:
			res.Empty++
		default:
			pending = append(pending, item)
		}
	}
	batches := chunk(pending, r.opts.BatchSize)
	res.Batches = len(batches)

	if req.DryRun {
		res.Status = api.StatusDryRun
		res.Pending = len(pending)
		return res, nil
	}
	if len(pending) > 0 && r.classifier == nil {
		return api.EnrichResult{}, fmt.Errorf("%w: no classifier configured", api.ErrInvalidArgument)
	}

	res.RunID = uuid.Must(uuid.NewV7()).String()
	logger := r.logger.With("run_id", res.RunID, "source", sel.Source, "output", outFile)
	logger.Info("enrichment started", "pending", len(pending), "skipped", res.Skipped,
		"empty", res.Empty, "batches", len(batches))

	var appended []api.EnrichmentRecord
	runErr := r.runBatches(ctx, logger, req, res.RunID, batches, outFile, done, &res, &appended)

	// Whatever reached the output file is registered even if a later batch
	// failed, so a re-run resumes instead of conflicting.
	if len(appended) > 0 || exists {
		if err := r.registry.Register(req.Fields, outFile, sel.IndexField); err != nil {
			if runErr == nil {
				runErr = err
			}
		}
	}
	if runErr != nil {
		logger.Error("enrichment failed", "processed", res.Processed, "error", runErr)
		return api.EnrichResult{}, runErr
	}

	res.Promoted = r.promote(logger, sel.IndexField, req.Promote, appended)
	logger.Info("enrichment finished", "processed", res.Processed, "rejected", res.Rejected,
		"promoted", res.Promoted)
	return res, nil
}

func (r *Runner) runBatches(ctx context.Context, logger *slog.Logger, req Request, runID string,
	batches [][]api.Item, outFile string, done *roaring.Bitmap, res *api.EnrichResult, appended *[]api.EnrichmentRecord) error {
	var limiter *rate.Limiter
	if r.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RatePerSecond), 1)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for n, items := range batches {
		g.Go(func() error {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			batch := Batch{RunID: runID, Number: n, Fields: req.Fields, Prompt: req.Prompt, Items: items}
			results, err := r.classify(ctx, batch)
			if err != nil {
				return err
			}
			records, rejected, err := normalize(outFile, items, done, req.Fields, results)
			if err != nil {
				return err
			}

			r.mu.Lock()
			defer r.mu.Unlock()
			if _, err := AppendResults(r.store, outFile, records); err != nil {
				return err
			}
			res.Processed += len(records)
			res.Rejected += rejected
			*appended = append(*appended, records...)
			logger.Info("batch appended", "batch", n, "items", len(items),
				"appended", len(records), "rejected", rejected)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) classify(ctx context.Context, batch Batch) ([]api.EnrichmentRecord, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	return r.classifier.Classify(ctx, batch)
}

// normalize keeps only results for requested indices, reduced to index plus
// the declared fields. A field a result leaves out is recorded as null. A
// result for an index already in the output file (done) or repeated within
// results fails the whole batch.
func normalize(file string, items []api.Item, done *roaring.Bitmap, fields []string, results []api.EnrichmentRecord) ([]api.EnrichmentRecord, int, error) {
	requested := roaring.New()
	for _, it := range items {
		requested.AddInt(it.Index)
	}
	seen := roaring.New()
	var dups []int
	rejected := 0
	out := make([]api.EnrichmentRecord, 0, len(results))
	for _, rec := range results {
		i, ok := jsonfile.Int(rec[api.IndexKey])
		if !ok || i < 0 {
			rejected++
			continue
		}
		if done.ContainsInt(i) {
			dups = append(dups, i)
			continue
		}
		if !requested.ContainsInt(i) {
			rejected++
			continue
		}
		if !seen.CheckedAdd(uint32(i)) {
			dups = append(dups, i)
			continue
		}
		row := api.EnrichmentRecord{api.IndexKey: i}
		for _, f := range fields {
			row[f] = rec[f]
		}
		out = append(out, row)
	}
	if len(dups) > 0 {
		slices.Sort(dups)
		return nil, rejected, &api.DuplicateIndexError{File: file, Indices: dups}
	}
	return out, rejected, nil
}

// promote mirrors promoted fields into the mapping. It is best effort:
// registry resolution stays the durable path, so failures are only logged.
func (r *Runner) promote(logger *slog.Logger, indexField string, fields []string, records []api.EnrichmentRecord) int {
	total := 0
	for _, f := range fields {
		groups := make(map[any][]int)
		var order []any
		for _, rec := range records {
			v := rec[f]
			switch v.(type) {
			case map[string]any, []any:
				continue
			}
			i, _ := jsonfile.Int(rec[api.IndexKey])
			if _, ok := r.table.Lookup(indexField, i); !ok {
				continue
			}
			if _, ok := groups[v]; !ok {
				order = append(order, v)
			}
			groups[v] = append(groups[v], i)
		}
		for _, v := range order {
			res, err := r.table.Update(indexField, groups[v], f, v)
			if err != nil {
				logger.Warn("promote failed", "field", f, "value", v, "error", err)
				continue
			}
			total += res.Updated
		}
	}
	return total
}

func chunk(items []api.Item, size int) [][]api.Item {
	var out [][]api.Item
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
