// Package survey samples a dataset and reports every path its records
// contain, with presence counts and JSON types, so projection paths can be
// written without reading the raw file.
package survey

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
)

// Config controls sampling.
type Config struct {
	SampleSize int   // max records to sample (default 200)
	Seed       int64 // random seed for reservoir sampling
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{SampleSize: 200}
}

const (
	maxDistinct = 1000
	maxExamples = 3
	exampleLen  = 60
)

type pathStats struct {
	count    int
	types    map[string]bool
	values   map[string]bool
	examples []string
}

// Survey inspects records of the named dataset.
func Survey(name string, records []any, cfg Config) api.InspectResult {
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = DefaultConfig().SampleSize
	}
	sampled := reservoirSample(records, cfg.SampleSize, cfg.Seed)

	stats := make(map[string]*pathStats)
	for _, rec := range sampled {
		seen := make(map[string]bool)
		walk(rec, "[*]", func(path string, v any) {
			ps, ok := stats[path]
			if !ok {
				ps = &pathStats{types: make(map[string]bool), values: make(map[string]bool)}
				stats[path] = ps
			}
			if !seen[path] {
				seen[path] = true
				ps.count++
			}
			ps.types[jsonType(v)] = true
			ps.observe(v)
		})
	}

	res := api.InspectResult{
		Status:  api.StatusSuccess,
		Dataset: name,
		Records: len(records),
		Sampled: len(sampled),
		Paths:   make([]api.PathStat, 0, len(stats)),
	}
	for path, ps := range stats {
		types := make([]string, 0, len(ps.types))
		for t := range ps.types {
			types = append(types, t)
		}
		sort.Strings(types)
		res.Paths = append(res.Paths, api.PathStat{
			Path:     path,
			Count:    ps.count,
			Types:    types,
			Distinct: len(ps.values),
			Examples: ps.examples,
		})
	}
	sort.Slice(res.Paths, func(i, j int) bool { return res.Paths[i].Path < res.Paths[j].Path })
	return res
}

// walk calls fn for every node below the record root, in "[*].a[*].b"
// notation. The record itself is not reported.
func walk(v any, prefix string, fn func(path string, v any)) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			p := prefix + "." + k
			fn(p, child)
			walk(child, p, fn)
		}
	case []any:
		p := prefix + "[*]"
		for _, child := range val {
			fn(p, child)
			walk(child, p, fn)
		}
	}
}

func (ps *pathStats) observe(v any) {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case json.Number:
		s = val.String()
	case bool, float64, int:
		s = fmt.Sprint(val)
	default:
		return
	}
	if len(ps.values) < maxDistinct {
		ps.values[s] = true
	}
	if len(ps.examples) < maxExamples && s != "" {
		if len(s) > exampleLen {
			s = s[:exampleLen] + "..."
		}
		for _, e := range ps.examples {
			if e == s {
				return
			}
		}
		ps.examples = append(ps.examples, s)
	}
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, int:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// reservoirSample performs reservoir sampling on a slice, keeping the
// sample in dataset order.
func reservoirSample(records []any, k int, seed int64) []any {
	if len(records) <= k {
		return records
	}
	rng := rand.New(rand.NewSource(seed))
	picked := make([]int, k)
	for i := range picked {
		picked[i] = i
	}
	for i := k; i < len(records); i++ {
		j := rng.Intn(i + 1)
		if j < k {
			picked[j] = i
		}
	}
	sort.Ints(picked)
	out := make([]any, k)
	for n, i := range picked {
		out[n] = records[i]
	}
	return out
}
