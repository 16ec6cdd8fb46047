package mdstream

import "strings"

// Line-level classification primitives. Each helper is a pure function
// of a single physical line (no trailing newline); the running context
// decides which of them apply. The rules are CommonMark-ish on purpose:
// good enough to find stable block boundaries in chat prose without
// dragging in a full parser.

func isBlankLine(s string) bool {
	return strings.TrimSpace(s) == ""
}

// stripUpToThreeSpaces removes at most three leading spaces, the
// CommonMark indentation allowance for block starters.
func stripUpToThreeSpaces(s string) string {
	for i := 0; i < 3 && strings.HasPrefix(s, " "); i++ {
		s = s[1:]
	}
	return s
}

func isSpaceOrTab(b byte) bool {
	return b == ' ' || b == '\t'
}

// isATXHeading matches "#" through "######" followed by space, tab,
// another '#', or end of line.
func isATXHeading(s string) bool {
	t := strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(t, "#") {
		return false
	}
	hashes := 0
	for hashes < len(t) && t[hashes] == '#' {
		hashes++
	}
	if hashes > 6 {
		return false
	}
	return hashes == len(t) || t[hashes] == ' ' || t[hashes] == '\t'
}

// thematicBreakChar returns the marker of a thematic break line
// ('-', '*' or '_' repeated three or more times, spaces allowed), or 0.
func thematicBreakChar(s string) byte {
	t := stripUpToThreeSpaces(s)
	t = strings.TrimRight(t, " \t")
	if t == "" {
		return 0
	}
	first := t[0]
	if first != '-' && first != '*' && first != '_' {
		return 0
	}
	count := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case first:
			count++
		case ' ', '\t':
		default:
			return 0
		}
	}
	if count < 3 {
		return 0
	}
	return first
}

func isThematicBreak(s string) bool {
	return thematicBreakChar(s) != 0
}

// setextUnderlineChar returns '=' or '-' when the line is a plausible
// setext heading underline (marker repeated at least twice, spaces
// allowed in between), or 0.
func setextUnderlineChar(s string) byte {
	t := stripUpToThreeSpaces(s)
	t = strings.TrimRight(t, " \t")
	if t == "" {
		return 0
	}
	first := t[0]
	if first != '=' && first != '-' {
		return 0
	}
	count := 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case first:
			count++
		case ' ', '\t':
		default:
			return 0
		}
	}
	if count < 2 {
		return 0
	}
	return first
}

// fenceStart reports the fence character and run length when the line
// opens a code fence (``` or ~~~, three or more markers).
func fenceStart(s string) (byte, int, bool) {
	t := stripUpToThreeSpaces(s)
	if len(t) < 3 {
		return 0, 0, false
	}
	ch := t[0]
	if ch != '`' && ch != '~' {
		return 0, 0, false
	}
	n := 0
	for n < len(t) && t[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return ch, n, true
}

// fenceEnd reports whether the line closes a fence opened with the
// given character and run length: same marker repeated at least as many
// times, nothing else but trailing whitespace.
func fenceEnd(s string, fenceChar byte, fenceLen int) bool {
	t := stripUpToThreeSpaces(s)
	t = strings.TrimRight(t, " \t")
	if t == "" {
		return false
	}
	for i := 0; i < len(t); i++ {
		if t[i] != fenceChar {
			return false
		}
	}
	return len(t) >= fenceLen
}

func isBlockQuoteStart(s string) bool {
	return strings.HasPrefix(strings.TrimLeft(s, " \t"), ">")
}

// blockQuoteDepth counts leading '>' markers, allowing one space
// between them.
func blockQuoteDepth(s string) int {
	t := strings.TrimLeft(s, " \t")
	depth := 0
	for len(t) > 0 && t[0] == '>' {
		depth++
		t = t[1:]
		if strings.HasPrefix(t, " ") {
			t = t[1:]
		}
	}
	return depth
}

// isListItemStart matches "-", "+", "*" or an ordered marker like "1."
// or "1)", each followed by a space or tab. A bare marker with nothing
// after it is not a list start yet: the marker may still grow into
// something else, and committing on it would make block boundaries
// depend on chunk split points.
func isListItemStart(s string) bool {
	t := strings.TrimLeft(s, " \t")
	if len(t) < 2 {
		return false
	}
	switch t[0] {
	case '-', '+', '*':
		return isSpaceOrTab(t[1])
	}
	if t[0] < '0' || t[0] > '9' {
		return false
	}
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(t) {
		return false
	}
	return (t[i] == '.' || t[i] == ')') && isSpaceOrTab(t[i+1])
}

// isListContinuation accepts indented content (two or more spaces or a
// tab) or any list item start, nested or not, as continuing an open list
// block.
func isListContinuation(s string) bool {
	if isListItemStart(s) {
		return true
	}
	if strings.HasPrefix(s, "\t") {
		return true
	}
	return strings.HasPrefix(s, "  ")
}

// isTableDelimiterLine matches a GFM delimiter row: cells of dashes
// with optional alignment colons, separated by pipes.
func isTableDelimiterLine(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" || !strings.ContainsAny(t, "-") {
		return false
	}
	hasPipe := false
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '|':
			hasPipe = true
		case '-', ':', ' ', '\t':
		default:
			return false
		}
	}
	// A lone dash run without any pipe is a setext underline or thematic
	// break, not a table delimiter.
	return hasPipe
}

// tableCellCount counts the cells of a table row, ignoring a leading
// and trailing pipe. Used for the strict GFM rule: a delimiter row only
// confirms a table when its cell count matches the header row's.
func tableCellCount(s string) int {
	t := strings.TrimSpace(s)
	t = strings.TrimPrefix(t, "|")
	t = strings.TrimSuffix(t, "|")
	if strings.TrimSpace(t) == "" {
		return 0
	}
	return strings.Count(t, "|") + 1
}

// countDoubleDollars counts unescaped "$$" occurrences in the line.
func countDoubleDollars(s string) int {
	count := 0
	for i := 0; i+1 < len(s); {
		if s[i] == '$' && s[i+1] == '$' {
			if i > 0 && s[i-1] == '\\' {
				i += 2
				continue
			}
			count++
			i += 2
			continue
		}
		i++
	}
	return count
}

// isMathFenceStart reports whether the line opens a display-math block:
// it begins with "$$" and its "$$" count is odd (the block stays open).
func isMathFenceStart(s string) bool {
	if !strings.HasPrefix(strings.TrimLeft(s, " \t"), "$$") {
		return false
	}
	return countDoubleDollars(s)%2 == 1
}

// CodeFenceHeader describes the opening line of a fenced code block.
type CodeFenceHeader struct {
	FenceChar byte
	FenceLen  int
	// Info is the entire info string after the fence run, trimmed.
	Info string
	// Language is the first token of Info, lowercased. Empty means no
	// language.
	Language string
}

// ParseCodeFenceHeader parses a fence opening line: up to three leading
// spaces, a run of three or more backticks or tildes, then an optional
// info string.
func ParseCodeFenceHeader(line string) (CodeFenceHeader, bool) {
	t := stripUpToThreeSpaces(line)
	ch, n, ok := fenceStart(line)
	if !ok {
		return CodeFenceHeader{}, false
	}
	info := strings.TrimSpace(t[n:])
	lang := ""
	if fields := strings.Fields(info); len(fields) > 0 {
		lang = strings.ToLower(fields[0])
	}
	return CodeFenceHeader{FenceChar: ch, FenceLen: n, Info: info, Language: lang}, true
}

// ParseCodeFenceHeaderFromBlock parses the first line of a block's raw
// text as a code fence header.
func ParseCodeFenceHeaderFromBlock(raw string) (CodeFenceHeader, bool) {
	first := raw
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		first = raw[:i]
	}
	return ParseCodeFenceHeader(first)
}

// IsCodeFenceClosingLine reports whether line closes a fence opened
// with the given character and run length. Exported for adapters that
// want to check whether a pending code fence is complete.
func IsCodeFenceClosingLine(line string, fenceChar byte, fenceLen int) bool {
	return fenceEnd(line, fenceChar, fenceLen)
}
