package catalog

import (
	"strings"
	"unicode"
)

// Field names a record may spell in PascalCase. Only these are rewritten, so
// keys inside free-form argument maps stay as written.
var (
	topLevelFields = fieldSet("models", "group_chat_agents", "shared_state")
	modelFields    = fieldSet(
		"base_dir", "key", "name", "description", "llm_model_file", "llm_model_class",
		"supports_stream", "icon", "system_message", "llm_arguments", "memory_arguments",
		"required_llm_arguments", "inherits_from", "is_persistent",
	)
	groupFields = fieldSet(
		"name", "icon", "description", "usage_description", "characters", "base_dir",
		"examples", "setting", "flow_diagram",
	)
	characterFields = fieldSet("name", "icon", "description", "role", "base_dir")
	exampleFields   = fieldSet("name", "description")
	settingFields   = fieldSet("investment", "implement", "code_review", "openai_api_key", "run_tests")
)

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// snakeCase turns "RequiredLLMArguments" into "required_llm_arguments".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// normalize rewrites the known aliases of m to snake_case. When both spellings
// are present the snake_case one wins.
func normalize(m map[string]any, known map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		name := k
		if s := snakeCase(k); known[s] {
			name = s
		}
		if _, taken := out[name]; taken && name != k {
			continue
		}
		out[name] = v
	}
	return out
}

func normalizeGroup(m map[string]any) map[string]any {
	out := normalize(m, groupFields)
	if chars, ok := out["characters"].([]any); ok {
		for i, c := range chars {
			if cm, ok := c.(map[string]any); ok {
				chars[i] = normalize(cm, characterFields)
			}
		}
	}
	if examples, ok := out["examples"].([]any); ok {
		for i, e := range examples {
			if em, ok := e.(map[string]any); ok {
				examples[i] = normalize(em, exampleFields)
			}
		}
	}
	if setting, ok := out["setting"].(map[string]any); ok {
		out["setting"] = normalize(setting, settingFields)
	}
	return out
}
