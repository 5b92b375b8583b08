package vision

// Instruction — единственный текстовый part запроса; формат ответа задаёт ResponseSchema.
const Instruction = "Extract electronic/prototyping components visible (breadboard, resistors, jumper wires, ICs, Arduino, sensors, modules). If quantity uncertain use null. Output only JSON per schema."

// ResponseSchema — схема generationConfig.responseSchema (OpenAPI-подмножество Gemini).
// Модель может её нарушить, поэтому ответ всё равно разбирается через Reduce.
func ResponseSchema() map[string]any {
	return map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"components": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"name":  map[string]any{"type": "STRING"},
						"count": map[string]any{"type": "INTEGER", "nullable": true},
					},
					"required": []any{"name", "count"},
				},
			},
		},
		"required": []any{"components"},
	}
}
