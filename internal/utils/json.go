// Package utils holds the JSON recovery helpers shared by every component
// that parses model output: chunk plans, retrieval decisions, and repair
// reprompts all funnel through here.
package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Pre-compiled regexes for JSON repair (compiled once, used many times)
// NOTE: These handle common model output errors but have limitations:
// - Escaped quotes within single-quoted strings are not fully supported
// - Complex nested structures may not be repaired correctly
var (
	// Fix missing comma after value before new key: "value" "key" -> "value", "key"
	missingCommaBeforeKeyRegex = regexp.MustCompile(`(")\s*\n\s*("[\w][^"]*"\s*:)`)

	// Fix missing comma after number/bool/null before quote (new key)
	missingCommaAfterValueRegex = regexp.MustCompile(`(\d|true|false|null)\s*\n\s*("[\w][^"]*"\s*:)`)

	// Fix missing comma after closing brace/bracket before quote
	missingCommaAfterBraceRegex = regexp.MustCompile(`([}\]])\s*\n?\s*("[\w])`)

	// Fix trailing commas before closing brace/bracket
	trailingCommaRegex = regexp.MustCompile(`,\s*([}\]])`)

	// Fix single quotes for object keys: {'key': -> {"key":
	singleQuoteKeyRegex = regexp.MustCompile(`([{,]\s*)'(\w+)'(\s*:)`)

	// Fix single quotes for string values after colon: : 'value' -> : "value"
	singleQuoteValueRegex = regexp.MustCompile(`(:\s*)'((?:[^'\\]|\\.)*)'(\s*[,}\]])`)

	// Schema placeholders models echo back from prompts instead of real
	// values: {"need_more": <bool>} or truncation ellipses.
	placeholderRegex = regexp.MustCompile(`<int>|<string>|<bool>|<float>|\.\.\.`)
)

// ExtractAndParseJSON extracts JSON from a model reply and unmarshals it.
// Uses stream-based decoding to ignore trailing prose, and repairs common
// syntax slips before giving up.
func ExtractAndParseJSON[T any](response string) (T, error) {
	var result T

	// 1. Basic cleanup (markdown fences)
	cleaned := cleanModelResponse(response)
	if cleaned == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	// 2. Find start of JSON structure
	idx := strings.IndexAny(cleaned, "{[")
	if idx == -1 {
		// Maybe it's a quoted string containing JSON?
		var asString string
		if err := json.Unmarshal([]byte(cleaned), &asString); err == nil {
			return ExtractAndParseJSON[T](asString)
		}
		return result, fmt.Errorf("no JSON start ({ or [) found")
	}

	// 3. Use Decoder to parse one JSON value and ignore the rest.
	// This handles cases like: {"a":1} some trailing text
	jsonPart := cleaned[idx:]
	decoder := json.NewDecoder(strings.NewReader(jsonPart))
	if err := decoder.Decode(&result); err != nil {
		// 4. Try JSON repair for common model errors
		repaired := repairJSON(jsonPart)
		if repaired != jsonPart {
			dec2 := json.NewDecoder(strings.NewReader(repaired))
			if err2 := dec2.Decode(&result); err2 == nil {
				return result, nil
			}
		}

		// 5. Try unescape fallback for doubly-encoded replies
		if strings.Contains(jsonPart, "\\") {
			unescaped := strings.ReplaceAll(jsonPart, "\\\"", "\"")
			unescaped = strings.ReplaceAll(unescaped, "\\n", "\n")
			dec3 := json.NewDecoder(strings.NewReader(unescaped))
			if err3 := dec3.Decode(&result); err3 == nil {
				return result, nil
			}
			repairedUnescaped := repairJSON(unescaped)
			dec4 := json.NewDecoder(strings.NewReader(repairedUnescaped))
			if err4 := dec4.Decode(&result); err4 == nil {
				return result, nil
			}
		}
		return result, fmt.Errorf("parse JSON: %w", err)
	}

	return result, nil
}

// LastBalancedJSON scans a reply for syntactically balanced objects and
// arrays and returns the last one that carries no schema placeholders.
// Models that chatter before and after their JSON, or emit a worked example
// followed by the real answer, are recovered here.
func LastBalancedJSON(s string) (string, bool) {
	var best string
	var stack []byte
	start := -1
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if len(stack) > 0 {
				inString = true
			}
		case '{', '[':
			if len(stack) == 0 {
				start = i
			}
			if c == '{' {
				stack = append(stack, '}')
			} else {
				stack = append(stack, ']')
			}
		case '}', ']':
			if len(stack) == 0 {
				continue
			}
			if stack[len(stack)-1] != c {
				// Mismatched nesting; discard and rescan from here.
				stack = stack[:0]
				start = -1
				continue
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 && start >= 0 {
				frag := s[start : i+1]
				if !ContainsPlaceholders(frag) {
					best = frag
				}
				start = -1
			}
		}
	}
	return best, best != ""
}

// ContainsPlaceholders reports whether s still carries schema placeholders
// (<int>, <string>, ...) instead of concrete values.
func ContainsPlaceholders(s string) bool {
	return placeholderRegex.MatchString(s)
}

// TruncateForPrompt caps s for quoting inside a repair reprompt so a runaway
// reply cannot blow up the next request.
func TruncateForPrompt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "\n…(truncated)"
}

// repairJSON attempts to fix common JSON syntax errors from models.
// Handles: control characters, missing commas, trailing commas, single
// quotes for keys and values, and truncated structures.
func repairJSON(input string) string {
	result := input

	// 0. Sanitize control characters inside strings (models often emit
	// literal tabs/newlines, which are invalid in JSON strings)
	result = sanitizeControlChars(result)

	// 1. Missing commas between properties
	result = missingCommaBeforeKeyRegex.ReplaceAllString(result, `$1, $2`)
	result = missingCommaAfterValueRegex.ReplaceAllString(result, `$1, $2`)
	result = missingCommaAfterBraceRegex.ReplaceAllString(result, `$1, $2`)

	// 2. Trailing commas before closing brace/bracket
	result = trailingCommaRegex.ReplaceAllString(result, `$1`)

	// 3. Single quotes for object keys: {'key': -> {"key":
	result = singleQuoteKeyRegex.ReplaceAllString(result, `$1"$2"$3`)

	// 4. Single quotes for string values: : 'value' -> : "value"
	result = singleQuoteValueRegex.ReplaceAllStringFunc(result, func(match string) string {
		parts := singleQuoteValueRegex.FindStringSubmatch(match)
		if len(parts) != 4 {
			return match
		}
		value := parts[2]
		value = strings.ReplaceAll(value, `\'`, `'`)
		value = strings.ReplaceAll(value, `"`, `\"`)
		return parts[1] + `"` + value + `"` + parts[3]
	})

	// 5. Truncated JSON (incomplete string or unclosed structure at end)
	result = fixTruncatedJSON(result)

	return result
}

// sanitizeControlChars escapes literal control characters inside JSON strings.
func sanitizeControlChars(input string) string {
	var result strings.Builder
	result.Grow(len(input))

	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			result.WriteByte(c)
			escaped = false
			continue
		}

		if c == '\\' && inString {
			result.WriteByte(c)
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			result.WriteByte(c)
			continue
		}

		if inString {
			switch c {
			case '\t':
				result.WriteString(`\t`)
			case '\n':
				result.WriteString(`\n`)
			case '\r':
				result.WriteString(`\r`)
			case '\b':
				result.WriteString(`\b`)
			case '\f':
				result.WriteString(`\f`)
			default:
				if c < 0x20 {
					result.WriteString(fmt.Sprintf(`\u%04x`, c))
				} else {
					result.WriteByte(c)
				}
			}
		} else {
			result.WriteByte(c)
		}
	}

	return result.String()
}

// fixTruncatedJSON closes strings and structures left open by reply
// truncation.
func fixTruncatedJSON(input string) string {
	quoteCount := 0
	escaped := false
	for _, c := range input {
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		if c == '"' {
			quoteCount++
		}
	}

	// Odd number of quotes means the final string was cut mid-way.
	if quoteCount%2 != 0 {
		input = input + `"`
	}

	openBraces := strings.Count(input, "{") - strings.Count(input, "}")
	openBrackets := strings.Count(input, "[") - strings.Count(input, "]")

	for i := 0; i < openBrackets; i++ {
		input = input + "]"
	}
	for i := 0; i < openBraces; i++ {
		input = input + "}"
	}

	return input
}

// cleanModelResponse strips markdown code fences from a model reply.
func cleanModelResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSuffix(response, "```")

	return strings.TrimSpace(response)
}
