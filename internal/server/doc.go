// Package server implements the MCP (Model Context Protocol) server that
// exposes the grading engines as tools.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Logs never go to stdout; the logger writes to stderr.
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Page images:
//   - image_load: Load a page and get its metadata
//   - image_grid_overlay: Coordinate grid for authoring zones
//   - zone_crop: Extract a zone rectangle as PNG
//
// Registration:
//   - sheet_register: Align a page onto the template
//
// Zone scoring:
//   - zone_score: Read the marked bubble of one zone
//   - zone_compare: Compare one zone against the answer key
//
// Page grading:
//   - sheet_grade: Register and grade a page
//   - sheet_grade_batch: Grade many pages concurrently
//   - sheet_annotate: Render a graded page
//
// # Page Handles
//
// Tools take image paths. Registered pages produced by sheet_register and
// sheet_grade are cached under a "registered:<uuid>" handle, which any tool
// accepts in place of a path. Graded page reports are kept by page_id for
// sheet_annotate. Both live for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A page that cannot be aligned is not a tool error: sheet_register and
// sheet_grade report aligned=false together with the attempt log.
//
// # Usage
//
//	srv := server.New(server.Options{Registrar: engine, Scorer: omr.DefaultScorer()})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
