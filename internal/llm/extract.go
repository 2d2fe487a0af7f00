package llm

// Balanced JSON candidate scanning for the structured-output recovery
// chain. The scanner is string-aware: braces inside JSON string literals
// do not affect nesting depth.

// balancedCandidates returns every top-level balanced {...} or [...]
// substring of raw, left to right. Nested candidates are not reported
// separately; they arrive inside their enclosing candidate.
func balancedCandidates(raw string) []string {
	var candidates []string
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c != '{' && c != '[' {
			i++
			continue
		}
		end := scanBalanced(raw, i)
		if end < 0 {
			i++
			continue
		}
		candidates = append(candidates, raw[i:end+1])
		i = end + 1
	}
	return candidates
}

// firstBalanced returns the first balanced candidate, or "".
func firstBalanced(raw string) string {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' && raw[i] != '[' {
			continue
		}
		if end := scanBalanced(raw, i); end >= 0 {
			return raw[i : end+1]
		}
	}
	return ""
}

// scanBalanced scans from an opening brace/bracket at start and returns
// the index of its matching close, or -1 if unbalanced.
func scanBalanced(raw string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
			if depth < 0 {
				return -1
			}
		}
	}
	return -1
}
