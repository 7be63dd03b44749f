package llm

// QuestionSchema is the JSON shape a geography question must have.
var QuestionSchema = &Schema{
	Name:        "geography-question",
	Description: "A world geography multiple-choice question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question": map[string]any{
				"type":        "string",
				"description": "The question text",
			},
			"options": map[string]any{
				"type":        "array",
				"description": "Exactly four distinct answer options",
				"items":       map[string]any{"type": "string"},
				"minItems":    4,
				"maxItems":    4,
			},
			"correct_answer": map[string]any{
				"type":        "string",
				"description": "The correct option, copied verbatim from options",
			},
			"hint": map[string]any{
				"type":        "string",
				"description": "A brief hint",
			},
			"difficulty": map[string]any{
				"type": "string",
				"enum": []any{"easy", "medium", "hard"},
			},
		},
		"required":             []any{"question", "options", "correct_answer", "hint", "difficulty"},
		"additionalProperties": false,
	},
}
