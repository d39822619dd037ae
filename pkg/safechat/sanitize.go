// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import "strings"

// Sanitize strips C0 control characters (except \n \r \t), zero-width and
// bidi-override characters, and the Unicode specials block from content,
// matching the chat ingress cleanup rule (spec.md §4.3 step 1). The caller
// rejects the message if the result is empty.
func Sanitize(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	for _, r := range content {
		if isStrippedRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isStrippedRune(r rune) bool {
	switch {
	case r == '\n' || r == '\r' || r == '\t':
		return false
	case r < 0x20 || r == 0x7f:
		return true
	case r >= 0x200B && r <= 0x200F:
		return true
	case r >= 0x2028 && r <= 0x2029:
		return true
	case r >= 0x202A && r <= 0x202E:
		return true
	case r >= 0x2060 && r <= 0x2064:
		return true
	case r >= 0x2066 && r <= 0x206F:
		return true
	case r >= 0xFFF0 && r <= 0xFFFF:
		return true
	default:
		return false
	}
}

// ContainsCanary reports whether any of the agent's registered canary
// strings appears as a substring of content (spec.md §4.3 step 5: a canary
// hit forces outbound score to 1.0 regardless of the scanner's verdict).
func ContainsCanary(content string, canaries []string) bool {
	for _, c := range canaries {
		if c == "" {
			continue
		}
		if strings.Contains(content, c) {
			return true
		}
	}
	return false
}
