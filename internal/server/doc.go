// Package server implements the MCP (Model Context Protocol) server for pixel
// profile analysis.
//
// This package provides a JSON-RPC 2.0 server that exposes intensity
// profiles, transition detection, corner detection and geometric measurement
// through the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load image and get metadata and cache version
//   - image_unload: Drop an image so the file is decoded again
//   - image_dimensions: Get width and height
//
// Region and Color Operations:
//   - image_crop: Extract rectangular region
//   - image_sample_color: Get color and intensities at a pixel
//
// Profiles and Detection:
//   - image_sample_line: Intensity profile along a line
//   - image_detect_transitions: Rise/Fall points along a line
//   - image_detect_corners: Harris corners in a region
//
// Measurement Operations:
//   - image_measure_line: Length and angle of a line
//   - image_measure_rectangle: Geometry of a rotated rectangle
//   - image_region_stats: Intensity statistics of a region
//
// Rendering:
//   - image_profile_plot: PNG chart of a line profile
//   - image_annotate: PNG overlay of shapes, markers and grid
//
// Annotation Objects:
//   - annotation_add_line, annotation_add_rectangle: Store a named object
//   - annotation_list, annotation_get: Inspect objects with their detections
//   - annotation_rename, annotation_remove, annotation_clear: Edit the object set
//
// # Caching
//
// Decoded images are cached by path for the lifetime of the server. Detection
// results are memoised in an LRU keyed by the image's cache version, the
// extraction rule, the geometry and the parameters, so repeated calls and
// annotation_get are cheap. image_unload starts a new version.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure), -32602 (malformed arguments or
//     unknown tool), -32601 (unknown method) or -32700 (unparsable request)
//   - message: Human-readable error description
//   - data: The Go error string
//
// A detection that finds nothing is not an error: the result has count 0.
// Corner parameters that fail validation produce an empty result with a
// diagnostic; transition parameters that fail validation are an error.
//
// # Usage
//
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return srv.Run()
package server
