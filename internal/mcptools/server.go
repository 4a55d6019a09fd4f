// Package mcptools exposes the engine, suite runner, and storage layer as
// MCP tools: one NewServer registering a handful of thin AddTool
// wrappers, each a marshal of an internal call the CLI already makes — no
// engine semantics live here.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/chromedir/internal/storage"
)

// NewServer creates an MCP server with the chromedir tools registered,
// backed by the test/run store rooted at dir.
func NewServer(version, dir string) (*server.MCPServer, error) {
	store, err := storage.New(dir)
	if err != nil {
		return nil, err
	}
	h := &handlers{store: store, baseDir: dir}

	s := server.NewMCPServer(
		"chromedir",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("chromedir/validate",
			mcp.WithDescription("Validate a chromedir test definition file"),
			mcp.WithString("path", mcp.Required(), mcp.Description("Path to the test YAML/JSON file")),
		),
		h.handleValidate,
	)

	s.AddTool(
		mcp.NewTool("chromedir/run_test",
			mcp.WithDescription("Run one stored test by id against the in-process browser fake"),
			mcp.WithString("testId", mcp.Required(), mcp.Description("Id of a test previously saved to the store")),
		),
		h.handleRunTest,
	)

	s.AddTool(
		mcp.NewTool("chromedir/run_suite",
			mcp.WithDescription("Run a tagged or explicit set of stored tests"),
			mcp.WithString("tag", mcp.Description("Run every test carrying this tag")),
			mcp.WithString("ids", mcp.Description("Comma-separated test ids (alternative to tag)")),
			mcp.WithNumber("concurrency", mcp.Description("Maximum tests running at once")),
		),
		h.handleRunSuite,
	)

	s.AddTool(
		mcp.NewTool("chromedir/list_tests",
			mcp.WithDescription("List stored tests, optionally filtered by tag"),
			mcp.WithString("tag", mcp.Description("Only list tests carrying this tag")),
		),
		h.handleListTests,
	)

	return s, nil
}
