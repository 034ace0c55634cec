package modules

import (
	"regexp"
	"strings"
)

var templateVarPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// substituteTemplate replaces {{var}} and {{var || default}} placeholders in
// a method-config value. Unknown placeholders without a default are left
// untouched so the upstream endpoint sees them verbatim.
func substituteTemplate(value string, vars map[string]string) string {
	return templateVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		content := strings.TrimSpace(match[2 : len(match)-2])

		if replacement, ok := vars[content]; ok {
			return replacement
		}

		// {{var || default}}
		if name, fallback, found := strings.Cut(content, "||"); found {
			name = strings.TrimSpace(name)
			fallback = strings.TrimSpace(fallback)
			if replacement, ok := vars[name]; ok && replacement != "" {
				return replacement
			}
			return fallback
		}

		return match
	})
}

// substituteAny walks params/body structures from a method config and
// substitutes templates in every string leaf.
func substituteAny(value any, vars map[string]string) any {
	switch typed := value.(type) {
	case string:
		return substituteTemplate(typed, vars)
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			out[key] = substituteAny(inner, vars)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for index, inner := range typed {
			out[index] = substituteAny(inner, vars)
		}
		return out
	default:
		return value
	}
}
