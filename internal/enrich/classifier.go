package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
)

// Batch is the unit of work handed to a Classifier.
type Batch struct {
	RunID  string     `json:"run_id"`
	Number int        `json:"batch"`
	Fields []string   `json:"fields"`
	Prompt string     `json:"prompt,omitempty"`
	Items  []api.Item `json:"items"`
}

// Classifier produces one output record per input item. Records carry the
// item's index under "index" plus the batch's declared fields.
type Classifier interface {
	Classify(ctx context.Context, batch Batch) ([]api.EnrichmentRecord, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, batch Batch) ([]api.EnrichmentRecord, error)

func (f ClassifierFunc) Classify(ctx context.Context, batch Batch) ([]api.EnrichmentRecord, error) {
	return f(ctx, batch)
}

// ExecClassifier runs an external command per batch. The batch is written
// to the command's stdin as JSON; its stdout must hold the results.
type ExecClassifier struct {
	Command []string
	Dir     string
}

func (c *ExecClassifier) Classify(ctx context.Context, batch Batch) ([]api.EnrichmentRecord, error) {
	if len(c.Command) == 0 {
		return nil, fmt.Errorf("%w: no classifier command configured", api.ErrInvalidArgument)
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encode batch %d: %w", batch.Number, err)
	}

	cmd := exec.CommandContext(ctx, c.Command[0], c.Command[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("classifier %s, batch %d: %w", c.Command[0], batch.Number, err)
		}
		return nil, fmt.Errorf("classifier %s, batch %d: %w: %s", c.Command[0], batch.Number, err, msg)
	}
	records, err := ParseResponse(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("classifier %s, batch %d: %w", c.Command[0], batch.Number, err)
	}
	return records, nil
}

// wrapperKeys are the object keys a classifier may nest its result array under.
var wrapperKeys = []string{"results", "items", "data", "output", "responses"}

// ParseResponse accepts a bare array of records, an object wrapping that
// array under one of the wrapper keys, or a single record.
func ParseResponse(data []byte) ([]api.EnrichmentRecord, error) {
	var raw any
	if err := jsonfile.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: classifier output is not JSON: %v", api.ErrInvalidArgument, err)
	}
	if obj, ok := raw.(map[string]any); ok {
		raw = unwrap(obj)
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		list = []any{v}
	default:
		return nil, fmt.Errorf("%w: classifier output is neither an array nor an object", api.ErrInvalidArgument)
	}

	out := make([]api.EnrichmentRecord, 0, len(list))
	for n, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: classifier result %d is not an object", api.ErrInvalidArgument, n)
		}
		out = append(out, api.EnrichmentRecord(obj))
	}
	return out, nil
}

func unwrap(obj map[string]any) any {
	if _, ok := obj[api.IndexKey]; ok {
		return obj
	}
	for _, k := range wrapperKeys {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return obj
}
