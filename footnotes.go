package mdstream

import "strings"

// maxFootnoteIDLen caps identifier scans to avoid pathological inputs.
const maxFootnoteIDLen = 200

func isFootnoteDefinitionStart(s string) bool {
	t := strings.TrimLeft(s, " \t")
	return strings.HasPrefix(t, "[^") && strings.Contains(t, "]:")
}

func isFootnoteContinuation(s string) bool {
	return strings.HasPrefix(s, "    ") || strings.HasPrefix(s, "\t")
}

// footnoteContinuationUndecided reports whether a partial line could
// still grow into a continuation: fewer than four leading spaces seen
// and nothing else yet.
func footnoteContinuationUndecided(partial string) bool {
	return len(partial) < 4 && strings.TrimLeft(partial, " ") == ""
}

// detectFootnotes scans text for a footnote reference "[^id]" or
// definition "[^id]:". Identifiers must be non-empty and contain no
// whitespace.
func detectFootnotes(text string) bool {
	for i := 0; i+2 < len(text); i++ {
		if text[i] != '[' || text[i+1] != '^' {
			continue
		}
		idLen := 0
		j := i + 2
		for j < len(text) {
			b := text[j]
			if b == ']' {
				break
			}
			if b == '\n' || b == '\r' || b == ' ' || b == '\t' {
				idLen = 0
				break
			}
			idLen++
			if idLen > maxFootnoteIDLen {
				idLen = 0
				break
			}
			j++
		}
		// Either a reference ("[^id]") or a definition ("[^id]:") triggers
		// footnote handling.
		if idLen > 0 && j < len(text) && text[j] == ']' {
			return true
		}
	}
	return false
}
