// Package server exposes the transform engine over MCP: tools for
// scanning, previewing, and applying transforms plus the run report as
// a resource, all on the stdio transport.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/signalize/signalize/internal/config"
	"github.com/signalize/signalize/internal/engine"
	"github.com/signalize/signalize/internal/logging"
)

// Server wraps the MCP server and connects it to the transform engine.
type Server struct {
	mcp *mcp.Server
	eng *engine.Engine
	cfg *config.Config
	log *zap.SugaredLogger
}

// New creates a new MCP server wired to the given engine.
func New(eng *engine.Engine, cfg *config.Config) (*Server, error) {
	s := &Server{
		eng: eng,
		cfg: cfg,
		log: logging.Named("server"),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "signalize",
		Version: "0.1.0",
	}, nil)
	s.registerResources()
	s.registerTools()

	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.log.Infow("starting MCP server on stdio transport", "root", s.cfg.Root)
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerResources() {
	s.mcp.AddResource(&mcp.Resource{
		URI:         "signalize://report",
		Name:        "Run Report",
		Description: "Markdown summary of the last transform run: files, declarations, conversions, warnings",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		content, err := s.eng.Report()
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: req.Params.URI, Text: string(content), MIMEType: "text/markdown"},
			},
		}, nil
	})
}

// scanReactiveArgs are the arguments for the scan_reactive tool.
type scanReactiveArgs struct {
	File  string `json:"file,omitempty" jsonschema:"Filter by source file path (relative to the project root)"`
	Class string `json:"class,omitempty" jsonschema:"Filter by declaring class name"`
	Kind  string `json:"kind,omitempty" jsonschema:"Filter by declaration kind: state, derived, effect, query, or environment"`
}

// previewTransformArgs are the arguments for the preview_transform tool.
type previewTransformArgs struct {
	File string `json:"file" jsonschema:"required,Path of the Dart file to transform"`
}

// applyTransformArgs are the arguments for the apply_transform tool.
type applyTransformArgs struct {
	File string `json:"file" jsonschema:"required,Path of the Dart file to transform and write back"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "scan_reactive",
		Description: "Query the reactive declarations discovered by the last transform run. Filter by file, class, or kind; returns matching declarations as JSON.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args scanReactiveArgs) (*mcp.CallToolResult, any, error) {
		return s.scanReactive(args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "preview_transform",
		Description: "Transform one Dart file and return the rewritten source without writing anything to disk.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args previewTransformArgs) (*mcp.CallToolResult, any, error) {
		return s.previewTransform(ctx, args), nil, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "apply_transform",
		Description: "Transform one Dart file and write the result back in place. Updates the declaration inventory and the run report.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args applyTransformArgs) (*mcp.CallToolResult, any, error) {
		return s.applyTransform(ctx, args), nil, nil
	})
}

func (s *Server) scanReactive(args scanReactiveArgs) *mcp.CallToolResult {
	inv := s.eng.Inventory()
	if inv.Count() == 0 {
		return errorResult("No declarations recorded yet. Run a transform first (apply_transform or the signalize CLI).")
	}

	results := inv.Query(args.File, args.Class, args.Kind)

	truncated := false
	if len(results) > 100 {
		results = results[:100]
		truncated = true
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to marshal results: %v", err))
	}

	text := string(data)
	if truncated {
		text += fmt.Sprintf("\n\n... (showing 100 of %d declarations, refine your query)", inv.Count())
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func (s *Server) previewTransform(ctx context.Context, args previewTransformArgs) *mcp.CallToolResult {
	if args.File == "" {
		return errorResult("file is required")
	}

	res, err := s.eng.Preview(ctx, args.File)
	if err != nil {
		return errorResult(fmt.Sprintf("transform failed: %v", err))
	}
	if !res.Changed {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("No changes for %s.", args.File)},
			},
		}
	}

	var sb strings.Builder
	sb.Write(res.Output)
	for _, p := range res.Problems {
		fmt.Fprintf(&sb, "\n// skipped: %v", p)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: sb.String()},
		},
	}
}

func (s *Server) applyTransform(ctx context.Context, args applyTransformArgs) *mcp.CallToolResult {
	if args.File == "" {
		return errorResult("file is required")
	}

	run, err := s.eng.Run(ctx, []string{args.File})
	if err != nil {
		return errorResult(fmt.Sprintf("transform failed: %v", err))
	}

	summary := fmt.Sprintf(
		"Transform complete.\n\n"+
			"- Files rewritten: %d\n"+
			"- Files skipped: %d\n"+
			"- Failures: %d\n"+
			"- Declarations: %d\n\n"+
			"Use the signalize://report resource for the full report.",
		len(run.Changed),
		run.Skipped,
		len(run.Failed),
		s.eng.Inventory().Count(),
	)
	if len(run.Failed) > 0 {
		for _, f := range run.Failed {
			summary += fmt.Sprintf("\n- %s: %s", f.File, f.Error)
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
		IsError: true,
	}
}
