// Package main provides the chromedir-mcp binary: an MCP stdio server
// exposing the test director to AI agents.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ormasoftchile/chromedir/internal/mcptools"
)

var version = "dev"

func main() {
	dir := flag.String("store", ".chromedir", "Directory holding test definitions and run records")
	flag.Parse()

	s, err := mcptools.NewServer(version, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
