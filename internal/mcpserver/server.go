// Package mcpserver exposes the workspace operations as MCP tools so an LLM
// orchestrator can drive the lead pipeline over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/CyberZod/IJAC-PRO-ANTI/api"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/engine"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/enrich"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/extract"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/filter"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/jsonfile"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/projector"
	"github.com/CyberZod/IJAC-PRO-ANTI/internal/survey"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const instructions = `Tracks leads across append-only JSON datasets.
Typical loop: append or import a dataset, init it, inspect it to find paths,
extract with a where clause, update or enrich the matches, link to the next
dataset's index-field. Every tool returns JSON with a "status" field.`

// New builds the MCP server with every tool registered.
func New(eng *engine.Engine, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"lineage",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)
	h := &handlers{eng: eng}

	s.AddTool(mcp.NewTool("init",
		mcp.WithDescription("Create a lead for every record of a dataset not yet mapped."),
		mcp.WithString("dataset", mcp.Required(), mcp.Description("Dataset name, e.g. postData")),
		mcp.WithString("index_field", mcp.Description("Index-field; derived from the dataset name when omitted")),
	), h.initLeads)

	s.AddTool(mcp.NewTool("extract",
		mcp.WithDescription("Project a path or fields over a dataset, optionally filtered by field=value."),
		mcp.WithString("dataset", mcp.Required()),
		mcp.WithString("path", mcp.Description("Path such as [*].content or [3].author.name")),
		mcp.WithString("fields", mcp.Description("Multi-field projection: key=path,key2=path2")),
		mcp.WithString("where", mcp.Description("Filter clause field=value")),
		mcp.WithString("index_field", mcp.Description("Index-field of the dataset, if not the derived one")),
		mcp.WithNumber("offset"),
		mcp.WithNumber("limit"),
	), h.extractItems)

	s.AddTool(mcp.NewTool("update",
		mcp.WithDescription("Set field=value on the leads whose index-field holds one of the indices."),
		mcp.WithString("index_field", mcp.Required()),
		mcp.WithArray("indices", mcp.Required(), mcp.Items(map[string]any{"type": "integer"})),
		mcp.WithString("field", mcp.Required()),
		mcp.WithString("value", mcp.Required(), mcp.Description("Literal: true, false, null, a number or a string")),
	), h.updateLeads)

	s.AddTool(mcp.NewTool("link",
		mcp.WithDescription("Assign consecutive target indices to source indices not yet linked."),
		mcp.WithString("source_index_field", mcp.Required()),
		mcp.WithArray("source_indices", mcp.Required(), mcp.Items(map[string]any{"type": "integer"})),
		mcp.WithString("target_index_field", mcp.Required()),
	), h.linkIndices)

	s.AddTool(mcp.NewTool("enrich",
		mcp.WithDescription("Classify the items still missing from an output file and register its fields."),
		mcp.WithString("dataset", mcp.Required()),
		mcp.WithString("output_fields", mcp.Required(), mcp.Description("Comma-separated output field names")),
		mcp.WithString("path"),
		mcp.WithString("fields"),
		mcp.WithString("where"),
		mcp.WithString("output_file"),
		mcp.WithString("promote", mcp.Description("Comma-separated output fields to also set on leads")),
		mcp.WithString("prompt"),
		mcp.WithBoolean("dry_run"),
	), h.runEnrich)

	s.AddTool(mcp.NewTool("inspect",
		mcp.WithDescription("Sample a dataset and list its paths with counts and types."),
		mcp.WithString("dataset", mcp.Required()),
		mcp.WithNumber("sample"),
	), h.inspectDataset)

	s.AddTool(mcp.NewTool("registry",
		mcp.WithDescription("List enrichment output files with their index-field and fields."),
	), h.listRegistry)

	s.AddTool(mcp.NewTool("append",
		mcp.WithDescription("Append a JSON array of records to a dataset."),
		mcp.WithString("dataset", mcp.Required()),
		mcp.WithString("records", mcp.Required(), mcp.Description("JSON array")),
	), h.appendRecords)

	return s
}

// Serve runs the server on stdio until the client disconnects.
func Serve(eng *engine.Engine, version string) error {
	return server.ServeStdio(New(eng, version))
}

type handlers struct {
	eng *engine.Engine
}

func result(v any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		b, _ := json.Marshal(api.NewErrorResult(err))
		return mcp.NewToolResultError(string(b)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

func invalid(err error) (*mcp.CallToolResult, error) {
	return result(nil, fmt.Errorf("%w: %v", api.ErrInvalidArgument, err))
}

func ints(req mcp.CallToolRequest, key string) ([]int, error) {
	raw, ok := req.GetArguments()[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of integers", key)
	}
	out := make([]int, len(raw))
	for i, v := range raw {
		n, ok := jsonfile.Int(v)
		if !ok {
			return nil, fmt.Errorf("%s[%d] is not an integer", key, i)
		}
		out[i] = n
	}
	return out, nil
}

func list(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func selectRequest(req mcp.CallToolRequest, dataset string) (extract.Request, error) {
	sel := extract.Request{
		Source:     dataset,
		Path:       req.GetString("path", ""),
		Where:      req.GetString("where", ""),
		IndexField: req.GetString("index_field", ""),
		Offset:     req.GetInt("offset", 0),
		Limit:      req.GetInt("limit", 0),
	}
	if spec := req.GetString("fields", ""); spec != "" {
		fields, err := projector.ParseFields(spec)
		if err != nil {
			return sel, err
		}
		sel.Fields = fields
	}
	return sel, nil
}

func (h *handlers) initLeads(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return invalid(err)
	}
	return result(h.eng.Init(dataset, req.GetString("index_field", "")))
}

func (h *handlers) extractItems(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return invalid(err)
	}
	sel, err := selectRequest(req, dataset)
	if err != nil {
		return result(nil, err)
	}
	return result(h.eng.Extract(sel))
}

func (h *handlers) updateLeads(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	indexField, err := req.RequireString("index_field")
	if err != nil {
		return invalid(err)
	}
	field, err := req.RequireString("field")
	if err != nil {
		return invalid(err)
	}
	indices, err := ints(req, "indices")
	if err != nil {
		return invalid(err)
	}
	value, ok := req.GetArguments()["value"]
	if !ok {
		return invalid(errors.New("value is required"))
	}
	if s, isString := value.(string); isString {
		value = filter.ParseLiteral(s)
	}
	return result(h.eng.Update(indexField, indices, field, value))
}

func (h *handlers) linkIndices(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source_index_field")
	if err != nil {
		return invalid(err)
	}
	target, err := req.RequireString("target_index_field")
	if err != nil {
		return invalid(err)
	}
	indices, err := ints(req, "source_indices")
	if err != nil {
		return invalid(err)
	}
	return result(h.eng.Link(source, indices, target))
}

func (h *handlers) runEnrich(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return invalid(err)
	}
	outputs, err := req.RequireString("output_fields")
	if err != nil {
		return invalid(err)
	}
	sel, err := selectRequest(req, dataset)
	if err != nil {
		return result(nil, err)
	}
	return result(h.eng.Enrich(ctx, enrich.Request{
		Select:     sel,
		Fields:     list(outputs),
		OutputFile: req.GetString("output_file", ""),
		Promote:    list(req.GetString("promote", "")),
		Prompt:     req.GetString("prompt", ""),
		DryRun:     req.GetBool("dry_run", false),
	}))
}

func (h *handlers) inspectDataset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return invalid(err)
	}
	cfg := survey.DefaultConfig()
	cfg.SampleSize = req.GetInt("sample", cfg.SampleSize)
	return result(h.eng.Inspect(dataset, cfg))
}

func (h *handlers) listRegistry(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return result(map[string]any{"status": api.StatusSuccess, "files": h.eng.Registry()}, nil)
}

func (h *handlers) appendRecords(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dataset, err := req.RequireString("dataset")
	if err != nil {
		return invalid(err)
	}
	raw, err := req.RequireString("records")
	if err != nil {
		return invalid(err)
	}
	var records []any
	if err := jsonfile.Decode([]byte(raw), &records); err != nil {
		return invalid(fmt.Errorf("records: %v", err))
	}
	return result(h.eng.Append(dataset, records))
}
