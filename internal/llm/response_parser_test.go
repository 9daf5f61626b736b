package llm

import "testing"

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantJSON string
	}{
		{
			name:     "plain JSON object",
			input:    `{"key": "value"}`,
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with surrounding text",
			input:    "Here is the plan:\n{\"key\": \"value\"}\nLet me know!",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "nested JSON object",
			input:    `{"outer": {"inner": "value"}}`,
			wantJSON: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "braces inside strings are ignored",
			input:    `{"text": "a { stray } brace"} trailing`,
			wantJSON: `{"text": "a { stray } brace"}`,
		},
		{
			name:     "escaped quotes in string",
			input:    `{"text": "He said \"hello\""}`,
			wantJSON: `{"text": "He said \"hello\""}`,
		},
		{
			name:     "no JSON present",
			input:    "just some text without json",
			wantJSON: "just some text without json",
		},
		{
			name:     "unterminated object returned as-is",
			input:    `{"key": "value"`,
			wantJSON: `{"key": "value"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSONObject(tt.input)
			if got != tt.wantJSON {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tt.input, got, tt.wantJSON)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Classification string  `json:"classification"`
		Confidence     float64 `json:"confidence"`
	}
	input := "Sure! Here is the classification:\n```json\n{\"classification\": \"TASK\", \"confidence\": 0.9}\n```"
	if err := DecodeJSON(input, &out); err != nil {
		t.Fatalf("DecodeJSON() error = %v", err)
	}
	if out.Classification != "TASK" {
		t.Errorf("Classification = %q, want %q", out.Classification, "TASK")
	}
	if out.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", out.Confidence)
	}

	if err := DecodeJSON("no json here", &out); err == nil {
		t.Error("DecodeJSON() with no JSON should return an error")
	}
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode string
	}{
		{
			name:     "python fenced block",
			input:    "Here you go:\n```python\ncube = scene.objects['Cube']\ncube.scale = (2, 2, 2)\n```\nThat should do it.",
			wantCode: "cube = scene.objects['Cube']\ncube.scale = (2, 2, 2)",
		},
		{
			name:     "generic fenced block",
			input:    "```\nscene.objects.remove(obj)\n```",
			wantCode: "scene.objects.remove(obj)",
		},
		{
			name:     "python fence preferred over generic",
			input:    "```\nnot this\n```\n```python\nthis_one = True\n```",
			wantCode: "this_one = True",
		},
		{
			name:     "no fences returns trimmed response",
			input:    "  obj.location = (0, 0, 0)  \n",
			wantCode: "obj.location = (0, 0, 0)",
		},
		{
			name:     "unterminated fence takes the rest",
			input:    "```python\nobj.select_set(True)",
			wantCode: "obj.select_set(True)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractCodeBlock(tt.input)
			if got != tt.wantCode {
				t.Errorf("ExtractCodeBlock() = %q, want %q", got, tt.wantCode)
			}
		})
	}
}
