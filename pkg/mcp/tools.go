package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Sumatoshi-tech/perfsummary/pkg/report"
	"github.com/Sumatoshi-tech/perfsummary/pkg/service"
	"github.com/Sumatoshi-tech/perfsummary/pkg/summary"
)

// Tool names.
const (
	ToolNameSummary = "perf_summary"
	ToolNameCompare = "perf_compare"
	ToolNameInfo    = "perf_info"
)

// SummaryInput is the input schema for the perf_summary tool.
type SummaryInput struct {
	Weeks     int    `json:"weeks,omitempty"     jsonschema:"number of trailing weekly windows, 1 to 1040 (default: configured weeks)"`
	Reference string `json:"reference,omitempty" jsonschema:"anchor date YYYY-MM-DD (default: the last commit)"`
}

// CompareInput is the input schema for the perf_compare tool.
type CompareInput struct {
	A string `json:"a" jsonschema:"earlier commit SHA or unique prefix"`
	B string `json:"b" jsonschema:"later commit SHA or unique prefix"`
}

// InfoInput is the empty input of the perf_info tool.
type InfoInput struct{}

// ToolOutput is a generic wrapper for tool results.
type ToolOutput struct {
	Data any `json:"data"`
}

// SummaryOutput pairs the summary with its largest total changes.
type SummaryOutput struct {
	Summary *summary.Summary `json:"summary"`
	Top     []report.Change  `json:"top_changes"`
}

const topChanges = 10

func (s *Server) handleSummary(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input SummaryInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	sum, err := s.svc.Summary(ctx, service.Query{Weeks: input.Weeks, Reference: input.Reference})
	if err != nil {
		return errorResult(err)
	}

	top := report.Changes(&sum.Total)
	if len(top) > topChanges {
		top = top[:topChanges]
	}

	return jsonResult(SummaryOutput{Summary: sum, Top: top})
}

func (s *Server) handleCompare(
	ctx context.Context, _ *mcpsdk.CallToolRequest, input CompareInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	cmp, err := s.svc.Compare(ctx, input.A, input.B)
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(cmp)
}

func (s *Server) handleInfo(
	_ context.Context, _ *mcpsdk.CallToolRequest, _ InfoInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	info, err := s.svc.Info()
	if err != nil {
		return errorResult(err)
	}

	return jsonResult(info)
}

// errorResult builds a CallToolResult with isError set.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

// jsonResult builds a CallToolResult with JSON-encoded content.
func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
