package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func scaleProp() map[string]interface{} {
	return map[string]interface{}{
		"type":        "number",
		"description": "Optional scale factor for the returned PNG (e.g., 0.5 to halve). Default 1.0",
		"default":     1.0,
	}
}

// zoneSchema describes one answer zone in template pixel coordinates.
func zoneSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": "Answer zone in template pixel coordinates",
		"properties": map[string]interface{}{
			"id":   stringProp("Zone identifier; generated when empty"),
			"name": stringProp("Display name, e.g. \"Q12\""),
			"kind": map[string]interface{}{
				"type":        "string",
				"description": "Zone kind. Only multiple_choice and true_false are scored; inferred from options when empty",
				"enum":        []string{"multiple_choice", "true_false", "matching", "classic", "student_info", "ai_solve", "unassigned"},
			},
			"left":    intProp("Left edge X coordinate (0-based)"),
			"top":     intProp("Top edge Y coordinate (0-based)"),
			"width":   intProp("Zone width in pixels"),
			"height":  intProp("Zone height in pixels"),
			"options": intProp("Number of answer bubbles; 2 for true/false"),
			"orientation": map[string]interface{}{
				"type":        "string",
				"description": "Direction the bubbles run in",
				"enum":        []string{"vertical", "horizontal"},
				"default":     "vertical",
			},
			"points": map[string]interface{}{
				"type":        "number",
				"description": "Points for a correct answer. Default 5",
			},
		},
		"required": []string{"left", "top", "width", "height", "options"},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Page images
		{
			Name:        "image_load",
			Description: "Load a page image (PNG, JPEG or GIF) into the cache and return its dimensions, format and file size.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Absolute path to the image file"),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_grid_overlay",
			Description: "Draw a labelled coordinate grid over a page. Use it on a blank template to read off zone coordinates.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Image file path or registered page handle"),
					"grid_spacing": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels between grid lines. Default 50",
						"default":     50,
					},
					"show_coordinates": map[string]interface{}{
						"type":        "boolean",
						"description": "Label grid lines with their pixel coordinates",
						"default":     false,
					},
					"grid_color": map[string]interface{}{
						"type":        "string",
						"description": "Grid colour as #RRGGBB or #RRGGBBAA. Default #FF000080",
						"default":     "#FF000080",
					},
					"scale": scaleProp(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "zone_crop",
			Description: "Crop a zone rectangle from a page and return it as base64-encoded PNG. Pass a registered page handle to see exactly what the scorer reads.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":   stringProp("Image file path or registered page handle"),
					"left":   intProp("Left edge X coordinate (0-based)"),
					"top":    intProp("Top edge Y coordinate (0-based)"),
					"width":  intProp("Zone width in pixels"),
					"height": intProp("Zone height in pixels"),
					"scale":  scaleProp(),
				},
				"required": []string{"path", "left", "top", "width", "height"},
			},
		},

		// Registration
		{
			Name:        "sheet_register",
			Description: "Align a photographed or scanned page onto the blank template. Returns the winning strategy, the homography, every attempt, and a handle for the registered page. A page that cannot be aligned returns aligned=false with the attempt log.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"template":  stringProp("Blank template image path"),
					"candidate": stringProp("Page image path to align"),
					"output":    stringProp("Optional path to write the registered page to"),
				},
				"required": []string{"template", "candidate"},
			},
		},

		// Zone scoring
		{
			Name:        "zone_score",
			Description: "Read which bubble is marked in one zone of a registered page. Returns the selected index (-1 for none), its label and the per-option fill scores.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": stringProp("Registered page handle or image path already in template geometry"),
					"zone": zoneSchema(),
					"mode": map[string]interface{}{
						"type":        "string",
						"description": "Scoring mode. Default is blackness for two options and area otherwise",
						"enum":        []string{"area", "blackness"},
					},
				},
				"required": []string{"path", "zone"},
			},
		},
		{
			Name:        "zone_compare",
			Description: "Compare one zone of a student page against the same zone of the answer key. Both pages must be in template geometry.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"student": stringProp("Registered student page handle or path"),
					"key":     stringProp("Answer key page handle or path"),
					"zone":    zoneSchema(),
				},
				"required": []string{"student", "key", "zone"},
			},
		},

		// Page grading
		{
			Name:        "sheet_grade",
			Description: "Register a student page and grade every zone against the answer key. Without a key, zones are read but not marked. Returns the page report; use page_id with sheet_annotate.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":       stringProp("Optional page id; generated when empty"),
					"template": stringProp("Blank template image path"),
					"student":  stringProp("Student page image path"),
					"key":      stringProp("Optional answer key image path"),
					"zones": map[string]interface{}{
						"type":        "array",
						"description": "Answer zones in template coordinates",
						"items":       zoneSchema(),
					},
				},
				"required": []string{"template", "student", "zones"},
			},
		},
		{
			Name:        "sheet_grade_batch",
			Description: "Grade many student pages against one template and key concurrently. Each page is reported separately under its image path; a page that fails to align does not affect the others.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"template": stringProp("Blank template image path"),
					"key":      stringProp("Optional answer key image path"),
					"students": map[string]interface{}{
						"type":        "array",
						"description": "Student page image paths",
						"items":       map[string]interface{}{"type": "string"},
					},
					"zones": map[string]interface{}{
						"type":        "array",
						"description": "Answer zones in template coordinates",
						"items":       zoneSchema(),
					},
				},
				"required": []string{"template", "students", "zones"},
			},
		},
		{
			Name:        "sheet_annotate",
			Description: "Render a graded page with every zone outlined in its outcome colour, the student's selection shaded and the key's answer outlined.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"page_id": stringProp("page_id from a sheet_grade report"),
					"scale":   scaleProp(),
					"output":  stringProp("Optional path to write the annotated page to"),
				},
				"required": []string{"page_id"},
			},
		},
	}
}
