package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func typedProperty(kind, description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        kind,
		"description": description,
	}
}

// lineProperties describes a segment from (x1,y1) to (x2,y2). Endpoints may
// be fractional.
func lineProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": pathProperty(),
		"x1":   typedProperty("number", "Start X coordinate (0-based, from left)"),
		"y1":   typedProperty("number", "Start Y coordinate (0-based, from top)"),
		"x2":   typedProperty("number", "End X coordinate"),
		"y2":   typedProperty("number", "End Y coordinate"),
	}
}

func regionProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x1": typedProperty("integer", "Left edge X coordinate (0-based)"),
			"y1": typedProperty("integer", "Top edge Y coordinate (0-based)"),
			"x2": typedProperty("integer", "Right edge X coordinate (exclusive)"),
			"y2": typedProperty("integer", "Bottom edge Y coordinate (exclusive)"),
		},
		"required": []string{"x1", "y1", "x2", "y2"},
	}
}

func rectangleProperties() map[string]interface{} {
	return map[string]interface{}{
		"path":     pathProperty(),
		"left":     typedProperty("number", "Left edge X coordinate before rotation"),
		"top":      typedProperty("number", "Top edge Y coordinate before rotation"),
		"width":    typedProperty("number", "Width in pixels (> 0)"),
		"height":   typedProperty("number", "Height in pixels (> 0)"),
		"rotation": typedProperty("number", "Clockwise rotation in degrees about the center. Default 0"),
	}
}

func withDefault(prop map[string]interface{}, v interface{}) map[string]interface{} {
	prop["default"] = v
	return prop
}

func withProperties(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	for k, v := range extra {
		base[k] = v
	}
	return base
}

func cornerParamProperties() map[string]interface{} {
	return map[string]interface{}{
		"min_distance":  typedProperty("number", "Minimum distance in pixels between returned corners. Default from config (30)"),
		"quality_level": typedProperty("number", "Fraction of the strongest response a corner must exceed, in (0,1]. Default from config (0.1)"),
		"block_size":    typedProperty("integer", "Structure-tensor window radius; the window is 2*block_size+1 pixels square. Default from config (3)"),
		"max_corners":   typedProperty("integer", "Maximum number of corners returned, strongest first. Default from config (20)"),
	}
}

func transitionParamProperties() map[string]interface{} {
	return map[string]interface{}{
		"threshold":   typedProperty("number", "Minimum intensity step between neighbouring samples. Default from config (20)"),
		"window_size": typedProperty("integer", "Minimum sample distance between two transitions. Default from config (5)"),
	}
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and cache version.",
			InputSchema: objectSchema(map[string]interface{}{"path": pathProperty()}, "path"),
		},
		{
			Name:        "image_unload",
			Description: "Drop an image from the cache so the next call decodes the file again. Use this after the file changed on disk; cached detections for the old version are no longer used.",
			InputSchema: objectSchema(map[string]interface{}{"path": pathProperty()}, "path"),
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: objectSchema(map[string]interface{}{"path": pathProperty()}, "path"),
		},

		// Region and Color Operations
		{
			Name:        "image_crop",
			Description: "Crop a rectangular region from an image and return it as base64-encoded PNG. Use this to zoom into areas that need detailed examination.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":  pathProperty(),
				"x1":    typedProperty("integer", "Left edge X coordinate (0-based)"),
				"y1":    typedProperty("integer", "Top edge Y coordinate (0-based)"),
				"x2":    typedProperty("integer", "Right edge X coordinate (exclusive)"),
				"y2":    typedProperty("integer", "Bottom edge Y coordinate (exclusive)"),
				"scale": withDefault(typedProperty("number", "Optional scale factor (e.g., 2.0 to double size). Default 1.0"), 1.0),
			}, "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_sample_color",
			Description: "Get the exact color value at a pixel, with the intensity each extraction rule (first-byte, luma, lightness) reads there.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProperty(),
				"x":    typedProperty("integer", "X coordinate (0-based, from left)"),
				"y":    typedProperty("integer", "Y coordinate (0-based, from top)"),
			}, "path", "x", "y"),
		},

		// Profiles and Detection
		{
			Name:        "image_sample_line",
			Description: "Sample grayscale intensities along a line (one sample per pixel of length, at least 2) and return the values with min/max/mean/median/std statistics.",
			InputSchema: objectSchema(lineProperties(), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_detect_transitions",
			Description: "Find points along a line where intensity jumps by at least the threshold. Each transition has its sample index, Rise/Fall kind, image location and gradient magnitude.",
			InputSchema: objectSchema(withProperties(lineProperties(), transitionParamProperties()), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_detect_corners",
			Description: "Detect Harris corners in an image region using the configured backend. Corners are in image coordinates, strongest first. Invalid parameters yield an empty result with a diagnostic.",
			InputSchema: objectSchema(withProperties(map[string]interface{}{
				"path":   pathProperty(),
				"region": regionProperty("Region to search. Default: the whole image"),
			}, cornerParamProperties()), "path"),
		},

		// Measurement Operations
		{
			Name:        "image_measure_line",
			Description: "Measure a line: length in pixels, dx, dy, angle in degrees and length as a percentage of image width and height.",
			InputSchema: objectSchema(lineProperties(), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_measure_rectangle",
			Description: "Measure a rectangle: width, height, area, perimeter, center, rotated corner points and share of the image area.",
			InputSchema: objectSchema(rectangleProperties(), "path", "left", "top", "width", "height"),
		},
		{
			Name:        "image_region_stats",
			Description: "Compute grayscale intensity statistics (min, max, range, mean, median, std) over an image region.",
			InputSchema: objectSchema(map[string]interface{}{
				"path":   pathProperty(),
				"region": regionProperty("Region to summarise. Default: the whole image"),
			}, "path"),
		},

		// Rendering
		{
			Name:        "image_profile_plot",
			Description: "Render the intensity profile along a line as a PNG chart (Y axis 0-255), optionally marking detected transitions.",
			InputSchema: objectSchema(withProperties(withProperties(lineProperties(), transitionParamProperties()), map[string]interface{}{
				"width":            withDefault(typedProperty("integer", "Chart width in pixels, 100-4000. Default 800"), 800),
				"height":           withDefault(typedProperty("integer", "Chart height in pixels, 100-4000. Default 300"), 300),
				"show_transitions": withDefault(typedProperty("boolean", "Mark Rise and Fall transitions on the chart"), false),
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "image_annotate",
			Description: "Draw lines, rectangles, an optional coordinate grid and the stored annotation objects with their detections onto the image and return it as PNG.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": pathProperty(),
				"lines": map[string]interface{}{
					"type": "array",
					"items": objectSchema(map[string]interface{}{
						"x1":    typedProperty("number", "Start X"),
						"y1":    typedProperty("number", "Start Y"),
						"x2":    typedProperty("number", "End X"),
						"y2":    typedProperty("number", "End Y"),
						"label": typedProperty("string", "Optional label"),
					}, "x1", "y1", "x2", "y2"),
				},
				"rectangles": map[string]interface{}{
					"type": "array",
					"items": objectSchema(map[string]interface{}{
						"left":     typedProperty("number", "Left edge X"),
						"top":      typedProperty("number", "Top edge Y"),
						"width":    typedProperty("number", "Width"),
						"height":   typedProperty("number", "Height"),
						"rotation": typedProperty("number", "Rotation in degrees"),
						"label":    typedProperty("string", "Optional label"),
					}, "left", "top", "width", "height"),
				},
				"include_annotations": withDefault(typedProperty("boolean", "Also draw stored annotation objects for this image with their transitions and corners"), false),
				"grid_spacing":        withDefault(typedProperty("integer", "Draw a labelled coordinate grid every N pixels. 0 draws no grid"), 0),
			}, "path"),
		},

		// Annotation Objects
		{
			Name:        "annotation_add_line",
			Description: "Store a named line on an image. Purpose 'point_detection' reports the transitions along it; 'measurement' (default) reports its geometry only.",
			InputSchema: objectSchema(withProperties(lineProperties(), map[string]interface{}{
				"name": typedProperty("string", "Unique name (case-insensitive). Default Line1, Line2, ..."),
				"purpose": map[string]interface{}{
					"type": "string",
					"enum": []string{"measurement", "point_detection"},
				},
			}), "path", "x1", "y1", "x2", "y2"),
		},
		{
			Name:        "annotation_add_rectangle",
			Description: "Store a named rectangle on an image. Purpose 'corner_detection' reports the corners inside it; 'measurement' (default) reports its geometry only.",
			InputSchema: objectSchema(withProperties(rectangleProperties(), map[string]interface{}{
				"name": typedProperty("string", "Unique name (case-insensitive). Default Rectangle1, Rectangle2, ..."),
				"purpose": map[string]interface{}{
					"type": "string",
					"enum": []string{"measurement", "corner_detection"},
				},
			}), "path", "left", "top", "width", "height"),
		},
		{
			Name:        "annotation_list",
			Description: "List stored annotation objects in creation order, optionally only those on one image.",
			InputSchema: objectSchema(map[string]interface{}{
				"path": typedProperty("string", "Only list objects on this image"),
			}),
		},
		{
			Name:        "annotation_get",
			Description: "Get an annotation object by ID or name with its measured properties and, for detection purposes, its transitions or corners recomputed with the current defaults.",
			InputSchema: objectSchema(map[string]interface{}{
				"ref": typedProperty("string", "Object ID or name"),
			}, "ref"),
		},
		{
			Name:        "annotation_rename",
			Description: "Rename an annotation object. Names are unique ignoring case.",
			InputSchema: objectSchema(map[string]interface{}{
				"ref":  typedProperty("string", "Object ID or current name"),
				"name": typedProperty("string", "New name"),
			}, "ref", "name"),
		},
		{
			Name:        "annotation_remove",
			Description: "Remove an annotation object by ID or name.",
			InputSchema: objectSchema(map[string]interface{}{
				"ref": typedProperty("string", "Object ID or name"),
			}, "ref"),
		},
		{
			Name:        "annotation_clear",
			Description: "Remove every annotation object. Default names start again at Line1 and Rectangle1.",
			InputSchema: objectSchema(map[string]interface{}{}),
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
