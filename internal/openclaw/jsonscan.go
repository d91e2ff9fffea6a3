package openclaw

import (
	"encoding/json"
	"strings"

	"opengoat/internal/errs"
)

// ExtractJSON finds the first balanced JSON object or array in noisy
// CLI output. OpenClaw prints warning banners ("Config warnings: ...")
// before its payload, so the parser scans linewise for the opening
// brace and then counts nesting outside string literals until balance.
func ExtractJSON(output string) (string, error) {
	lines := strings.Split(output, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed[0] != '{' && trimmed[0] != '[' {
			continue
		}
		rest := strings.Join(lines[i:], "\n")
		if candidate, ok := balancedPrefix(rest); ok {
			return candidate, nil
		}
	}
	return "", errs.Transient("no JSON payload found in openclaw output")
}

// balancedPrefix returns the prefix of s up to the point where the
// leading JSON value closes.
func balancedPrefix(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
			if depth < 0 {
				return "", false
			}
		}
	}
	return "", false
}

// DecodeJSON extracts the payload and unmarshals it into v.
func DecodeJSON(output string, v any) error {
	payload, err := ExtractJSON(output)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return errs.Transient("malformed openclaw JSON payload: %v", err)
	}
	return nil
}

// StripNoise removes the warning banner lines OpenClaw prefixes to its
// plain-text output. Idempotent.
func StripNoise(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "Config warnings:") ||
			strings.HasPrefix(trimmed, "Config warning:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
