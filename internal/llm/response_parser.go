package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject extracts the first complete JSON object from text that
// may contain extra prose. LLMs add explanations before and after the JSON
// despite instructions, and often wrap it in markdown fences.
func ExtractJSONObject(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // no JSON found, return as-is and let the parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		// Only count braces outside of strings.
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // no complete JSON object, return as-is
}

// DecodeJSON extracts the first JSON object from an LLM response and
// unmarshals it into v.
func DecodeJSON(text string, v any) error {
	clean := ExtractJSONObject(text)
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return nil
}

// ExtractCodeBlock pulls generated code out of a completion. The first
// ```python fenced block wins, then any generic fenced block; responses
// without fences are returned whole. All results are whitespace-trimmed.
func ExtractCodeBlock(response string) string {
	if block, ok := fencedBlock(response, "```python"); ok {
		return block
	}
	if block, ok := fencedBlock(response, "```"); ok {
		return block
	}
	return strings.TrimSpace(response)
}

func fencedBlock(text, fence string) (string, bool) {
	start := strings.Index(text, fence)
	if start == -1 {
		return "", false
	}
	start += len(fence)
	rest := text[start:]
	end := strings.Index(rest, "```")
	if end == -1 {
		// Unterminated fence, take everything after it.
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}
