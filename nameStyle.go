package uow

import (
	"strings"
	"unicode"
)

// NameStyle selects how field identifiers are inflected into emitted
// metric names. A style set on a container applies to its own fields
// and transitively to flattened children, unless a child container sets
// its own style.
type NameStyle int

const (
	// StylePreserve leaves identifiers untouched.
	StylePreserve NameStyle = iota

	// StylePascalCase renders "operation_time" as "OperationTime".
	StylePascalCase

	// StyleCamelCase renders "operation_time" as "operationTime".
	StyleCamelCase

	// StyleSnakeCase renders "OperationTime" as "operation_time".
	StyleSnakeCase

	// StyleKebabCase renders "OperationTime" as "operation-time".
	StyleKebabCase
)

// parseNameStyle maps the `rename_all=` tag spellings onto a NameStyle.
// The spellings match the conventional serde-style names.
func parseNameStyle(s string) (NameStyle, bool) {
	switch s {
	case "Preserve", "":
		return StylePreserve, true
	case "PascalCase":
		return StylePascalCase, true
	case "camelCase":
		return StyleCamelCase, true
	case "snake_case":
		return StyleSnakeCase, true
	case "kebab-case":
		return StyleKebabCase, true
	}
	return StylePreserve, false
}

// String returns the tag spelling of the style.
func (s NameStyle) String() string {
	switch s {
	case StylePascalCase:
		return "PascalCase"
	case StyleCamelCase:
		return "camelCase"
	case StyleSnakeCase:
		return "snake_case"
	case StyleKebabCase:
		return "kebab-case"
	}
	return "Preserve"
}

// splitWords breaks an identifier into its word parts. Word boundaries
// are underscores, dashes, dots, lower-to-upper transitions, and the
// last capital of an acronym run ("HTTPServer" -> "HTTP", "Server").
// Digits stick to the preceding word.
func splitWords(name string) []string {
	var words []string
	runes := []rune(name)
	start := -1

	flush := func(end int) {
		if start >= 0 && end > start {
			words = append(words, string(runes[start:end]))
		}
		start = -1
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '_' || r == '-' || r == '.' || r == ' ' {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		prev := runes[i-1]
		if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			// lower-to-upper boundary
			flush(i)
			start = i
			continue
		}
		if unicode.IsUpper(prev) && unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			// end of an acronym run: the current capital starts a word
			flush(i)
			start = i
		}
	}
	flush(len(runes))
	return words
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r := []rune(strings.ToLower(w))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Apply inflects an identifier under the style. Applying a style to an
// already-inflected name is the identity.
func (s NameStyle) Apply(name string) string {
	if s == StylePreserve || name == "" {
		return name
	}
	words := splitWords(name)
	switch s {
	case StylePascalCase:
		var b strings.Builder
		for _, w := range words {
			b.WriteString(capitalize(w))
		}
		return b.String()
	case StyleCamelCase:
		var b strings.Builder
		for i, w := range words {
			if i == 0 {
				b.WriteString(strings.ToLower(w))
			} else {
				b.WriteString(capitalize(w))
			}
		}
		return b.String()
	case StyleSnakeCase:
		for i := range words {
			words[i] = strings.ToLower(words[i])
		}
		return strings.Join(words, "_")
	case StyleKebabCase:
		for i := range words {
			words[i] = strings.ToLower(words[i])
		}
		return strings.Join(words, "-")
	}
	return name
}

// ApplyPrefix inflects a prefix under the style and guarantees the
// style's trailing delimiter so that the prefixed name keeps a word
// boundary: snake_case prefixes end in "_", kebab-case in "-", and the
// cased styles need no delimiter.
func (s NameStyle) ApplyPrefix(prefix string) string {
	res := s.Apply(prefix)
	switch s {
	case StyleSnakeCase:
		if !strings.HasSuffix(res, "_") {
			res += "_"
		}
	case StyleKebabCase:
		if !strings.HasSuffix(res, "-") {
			res += "-"
		}
	}
	return res
}

// prefixDelimited reports whether a prefix ends in a word delimiter
// ("_" or "-"). Root-level inflectable prefixes without one are
// rejected at close time, whatever the container's style.
func prefixDelimited(prefix string) bool {
	return strings.HasSuffix(prefix, "_") || strings.HasSuffix(prefix, "-")
}
