package models

import "encoding/json"

// ErrorAnalysisSchema returns the JSON Schema enforcing the structure of the
// failure analyzer's generated diagnosis. Passing a schema with the prompt
// eliminates invalid category values, missing required fields, and
// hallucinated extra fields; anything that still slips through is caught by
// struct validation and replaced with the deterministic fallback.
func ErrorAnalysisSchema() string {
	schema := map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Error Analysis",
		"type":     "object",
		"required": []string{"root_cause", "category", "severity", "can_auto_recover", "requires_human", "simplification_needed"},
		"properties": map[string]interface{}{
			"root_cause": map[string]interface{}{
				"type":        "string",
				"maxLength":   500,
				"description": "One or two sentences naming the underlying cause of the failures",
			},
			"category": map[string]interface{}{
				"type": "string",
				"enum": []string{"syntax", "logic", "dependency", "environment", "complexity", "unknown"},
			},
			"severity": map[string]interface{}{
				"type": "string",
				"enum": []string{"low", "medium", "high", "critical"},
			},
			"suggestions": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"can_auto_recover": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether automated retry/simplify/split can plausibly resolve this",
			},
			"requires_human": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether a human must intervene before further attempts",
			},
			"simplification_needed": map[string]interface{}{
				"type":        "boolean",
				"description": "Whether the task scope should be reduced or split",
			},
		},
		"additionalProperties": false,
	}

	jsonBytes, _ := json.Marshal(schema)
	return string(jsonBytes)
}

// SubTaskProposalsSchema returns the JSON Schema for the decomposition step:
// an array of 2-4 sub-task proposals.
func SubTaskProposalsSchema() string {
	schema := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "Sub-Task Proposals",
		"type":    "object",
		"required": []string{"subtasks"},
		"properties": map[string]interface{}{
			"subtasks": map[string]interface{}{
				"type":     "array",
				"minItems": 2,
				"maxItems": 4,
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"title", "description", "estimated_size"},
					"properties": map[string]interface{}{
						"title":          map[string]interface{}{"type": "string", "maxLength": 120},
						"description":    map[string]interface{}{"type": "string", "maxLength": 2000},
						"estimated_size": map[string]interface{}{"type": "integer", "minimum": 1},
					},
					"additionalProperties": false,
				},
			},
		},
		"additionalProperties": false,
	}

	jsonBytes, _ := json.Marshal(schema)
	return string(jsonBytes)
}

// HolisticReviewSchema returns the JSON Schema for the quality gate's
// AI-assisted review: per-category scores plus a prioritized issue list.
func HolisticReviewSchema() string {
	issueSchema := map[string]interface{}{
		"type":     "object",
		"required": []string{"severity", "message"},
		"properties": map[string]interface{}{
			"severity": map[string]interface{}{
				"type": "string",
				"enum": []string{"low", "medium", "high", "critical"},
			},
			"category": map[string]interface{}{
				"type": "string",
				"enum": []string{"quality", "security", "performance", "maintainability", "documentation"},
			},
			"file":    map[string]interface{}{"type": "string"},
			"line":    map[string]interface{}{"type": "integer", "minimum": 0},
			"message": map[string]interface{}{"type": "string", "maxLength": 500},
		},
		"additionalProperties": false,
	}

	schema := map[string]interface{}{
		"$schema":  "http://json-schema.org/draft-07/schema#",
		"title":    "Holistic Review",
		"type":     "object",
		"required": []string{"scores", "issues"},
		"properties": map[string]interface{}{
			"scores": map[string]interface{}{
				"type":     "object",
				"required": []string{"quality", "security", "performance", "maintainability", "documentation"},
				"properties": map[string]interface{}{
					"quality":         map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
					"security":        map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
					"performance":     map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
					"maintainability": map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
					"documentation":   map[string]interface{}{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"additionalProperties": false,
			},
			"issues": map[string]interface{}{
				"type":  "array",
				"items": issueSchema,
			},
		},
		"additionalProperties": false,
	}

	jsonBytes, _ := json.Marshal(schema)
	return string(jsonBytes)
}
