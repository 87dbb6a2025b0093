package match

import "strings"

func matchGlob(pattern, str string) bool {
	if pattern == "*" {
		return true
	}

	// *.example.com
	if strings.HasPrefix(pattern, "*.") && !strings.Contains(pattern[2:], "*") {
		return strings.HasSuffix(str, pattern[1:])
	}

	// example.*
	if strings.HasSuffix(pattern, ".*") && !strings.Contains(pattern[:len(pattern)-2], "*") {
		return strings.HasPrefix(str, pattern[:len(pattern)-1])
	}

	if strings.Contains(pattern, "*") {
		return matchWildcard(pattern, str)
	}

	return pattern == str
}

// matchWildcard matches patterns with * anywhere.
func matchWildcard(pattern, str string) bool {
	parts := strings.Split(pattern, "*")

	first, last := parts[0], parts[len(parts)-1]
	if len(str) < len(first)+len(last) {
		return false
	}
	if !strings.HasPrefix(str, first) || !strings.HasSuffix(str, last) {
		return false
	}
	str = str[len(first) : len(str)-len(last)]

	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		idx := strings.Index(str, part)
		if idx < 0 {
			return false
		}
		str = str[idx+len(part):]
	}
	return true
}
