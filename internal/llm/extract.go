package llm

import "strings"

// StripCodeFence removes a surrounding ``` or ```json fence from a reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the first balanced {...} span in s.
func ExtractObject(s string) (string, bool) { return extractBalanced(s, '{', '}') }

// ExtractArray returns the first balanced [...] span in s.
func ExtractArray(s string) (string, bool) { return extractBalanced(s, '[', ']') }

// extractBalanced scans for the first open delimiter and returns the span up
// to its matching close, skipping delimiters inside JSON strings.
func extractBalanced(s string, open, close byte) (string, bool) {
	for start := strings.IndexByte(s, open); start >= 0; {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case open:
				depth++
			case close:
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
