package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ormasoftchile/chromedir/internal/driver"
	"github.com/ormasoftchile/chromedir/internal/engine"
	"github.com/ormasoftchile/chromedir/internal/schema"
	"github.com/ormasoftchile/chromedir/internal/storage"
	"github.com/ormasoftchile/chromedir/internal/suite"
)

type handlers struct {
	store   *storage.Store
	baseDir string
}

func (h *handlers) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}

	def, errs := schema.ValidateFile(path)
	if hasErrors(errs) {
		return errorResult(formatErrors(errs)), nil
	}
	return textResult(fmt.Sprintf("%s is valid (%d steps)", def.ID, len(def.Steps))), nil
}

func (h *handlers) handleRunTest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	testID, _ := args["testId"].(string)
	if testID == "" {
		return errorResult("testId argument is required"), nil
	}

	def, err := h.store.GetTest(ctx, testID)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if def == nil {
		return errorResult(fmt.Sprintf("test %q not found", testID)), nil
	}

	result := engine.Run(ctx, def, engine.Config{
		Driver:  driver.NewFake(),
		Loader:  h.store,
		BaseDir: filepath.Join(h.baseDir, "tests"),
	})
	h.store.SaveRun(ctx, testID, result)

	data, _ := json.MarshalIndent(result, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: result.Status != "passed",
	}, nil
}

func (h *handlers) handleRunSuite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	tag, _ := args["tag"].(string)
	idsRaw, _ := args["ids"].(string)
	concurrency := 1
	if n, ok := args["concurrency"].(float64); ok && n > 0 {
		concurrency = int(n)
	}

	var ids []string
	if idsRaw != "" {
		ids = strings.Split(idsRaw, ",")
	}
	if (tag == "") == (len(ids) == 0) {
		return errorResult("exactly one of tag or ids is required"), nil
	}

	result, err := suite.Run(ctx, suite.Config{
		Tag:         tag,
		TestIDs:     ids,
		Concurrency: concurrency,
		Storage:     h.store,
		Driver:      driver.NewFake(),
		Loader:      h.store,
		BaseDir:     filepath.Join(h.baseDir, "tests"),
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	data, _ := json.MarshalIndent(result, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: result.Status != "passed",
	}, nil
}

func (h *handlers) handleListTests(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	tag, _ := args["tag"].(string)

	tests, err := h.store.ListTests(ctx, tag)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	data, _ := json.MarshalIndent(tests, "", "  ")
	return textResult(string(data)), nil
}

func hasErrors(errs []*schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != "warning" {
			return true
		}
	}
	return false
}

func formatErrors(errs []*schema.ValidationError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == "warning" {
			continue
		}
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(text)}}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.NewTextContent(msg)}, IsError: true}
}
