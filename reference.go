package mdstream

import "strings"

// Reference-definition tracking. When enabled, the stream indexes which
// committed blocks used which labels; when a definition for a label
// commits later, the earlier blocks' ids are reported as invalidated so
// adapters can re-parse just those blocks.

// maxReferenceLabelLen keeps label normalization bounded.
const maxReferenceLabelLen = 200

// normalizeReferenceLabel lowercases a label and collapses internal
// whitespace runs, per the CommonMark label-matching rules. It returns
// "" for labels that cannot match anything.
func normalizeReferenceLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" || len(trimmed) > maxReferenceLabelLen {
		return ""
	}
	var out strings.Builder
	out.Grow(len(trimmed))
	lastWasSpace := false
	for _, r := range trimmed {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			lastWasSpace = true
			continue
		}
		if lastWasSpace && out.Len() > 0 {
			out.WriteByte(' ')
		}
		lastWasSpace = false
		out.WriteString(strings.ToLower(string(r)))
	}
	return out.String()
}

// referenceDefinitionLabel extracts the normalized label of a
// single-line reference definition: up to three leading spaces, then
// "[label]:". Footnote definitions ("[^id]:") are excluded.
func referenceDefinitionLabel(s string) string {
	t := stripUpToThreeSpaces(s)
	if len(t) < 4 || t[0] != '[' {
		return ""
	}
	close := strings.IndexByte(t, ']')
	if close <= 1 {
		return ""
	}
	if close+1 >= len(t) || t[close+1] != ':' {
		return ""
	}
	label := t[1:close]
	if strings.HasPrefix(label, "^") {
		return ""
	}
	return normalizeReferenceLabel(label)
}

// referenceDefinitionTarget returns the destination of a reference
// definition line, or "" when the line is not one.
func referenceDefinitionTarget(s string) string {
	if referenceDefinitionLabel(s) == "" {
		return ""
	}
	t := stripUpToThreeSpaces(s)
	close := strings.IndexByte(t, ']')
	return strings.TrimSpace(t[close+2:])
}

// ParseReferenceDefinition recognizes a single-line reference
// definition and returns its normalized label and the trimmed
// definition line. Exported for adapters that accumulate definitions
// across blocks.
func ParseReferenceDefinition(line string) (label, definition string, ok bool) {
	label = referenceDefinitionLabel(line)
	if label == "" {
		return "", "", false
	}
	return label, strings.TrimRight(line, " \t\r\n"), true
}

// extractReferenceUsages collects the normalized labels a block of text
// may reference: "[text][label]", "[label][]" and shortcut "[label]".
// The scan over-approximates on purpose (a false positive only causes
// an extra invalidation) but skips footnote-ish labels, inline links
// and definitions.
func extractReferenceUsages(text string) map[string]bool {
	out := make(map[string]bool)
	for i := 0; i < len(text); {
		if text[i] != '[' {
			i++
			continue
		}
		close1Rel := strings.IndexByte(text[i+1:], ']')
		if close1Rel < 0 {
			break
		}
		close1 := i + 1 + close1Rel
		label1 := text[i+1 : close1]
		if strings.HasPrefix(label1, "^") {
			i = close1 + 1
			continue
		}

		var after byte
		if close1+1 < len(text) {
			after = text[close1+1]
		}
		switch after {
		case '(', ':':
			// Inline link/image or a definition, not a usage.
			i = close1 + 1
			continue
		case '[':
			start2 := close1 + 2
			if start2 >= len(text) {
				i = len(text)
				break
			}
			close2Rel := strings.IndexByte(text[start2:], ']')
			if close2Rel < 0 {
				i = len(text)
				break
			}
			close2 := start2 + close2Rel
			chosen := text[start2:close2]
			if strings.TrimSpace(chosen) == "" {
				// Collapsed form "[label][]".
				chosen = label1
			}
			if norm := normalizeReferenceLabel(chosen); norm != "" {
				out[norm] = true
			}
			i = close2 + 1
			continue
		}

		// Shortcut reference "[label]".
		if norm := normalizeReferenceLabel(label1); norm != "" {
			out[norm] = true
		}
		i = close1 + 1
	}
	return out
}
