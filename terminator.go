package mdstream

import "strings"

// The pending-tail terminator closes unterminated inline Markdown so
// downstream parsers never render partial syntax: dangling emphasis
// runs, half-open inline code, incomplete links and images, unbalanced
// $$ math. It only ever produces a display view; raw text is never
// touched. All scans are bounded to a tail window counted from the end
// of the pending text.

func isWordChar(r rune) bool {
	return r == '_' || (r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		r > 127
}

func whitespaceOrMarkersOnly(s string) bool {
	for _, r := range s {
		switch r {
		case '_', '~', '*', '`', ' ', '\t', '\n', '\r', '​':
		default:
			return false
		}
	}
	return true
}

// isInsideIncompleteMultilineCodeBlock matches the Streamdown/remend
// rule: an odd number of "```" in multiline text means an unclosed
// fenced code block.
func isInsideIncompleteMultilineCodeBlock(text string) bool {
	return strings.Contains(text, "\n") && strings.Count(text, "```")%2 == 1
}

func isPartOfTripleBacktick(text string, i int) bool {
	if i+2 < len(text) && text[i:i+3] == "```" {
		return true
	}
	if i >= 1 && i+1 < len(text) && text[i-1:i+2] == "```" {
		return true
	}
	if i >= 2 && text[i-2:i+1] == "```" {
		return true
	}
	return false
}

// isInsideCodeBlock reports whether position pos sits inside an inline
// code span or a multiline code block, by toggling on backticks from
// the start of the (windowed) text.
func isInsideCodeBlock(text string, pos int) bool {
	inInline := false
	inMultiline := false
	for i := 0; i < pos && i < len(text); {
		if i+2 < len(text) && text[i:i+3] == "```" {
			inMultiline = !inMultiline
			i += 3
			continue
		}
		if !inMultiline && text[i] == '`' {
			inInline = !inInline
		}
		i++
	}
	return inInline || inMultiline
}

// tailWindow returns the last windowBytes of text (UTF-8 aligned) and
// the byte offset where the window starts.
func tailWindow(text string, windowBytes int) (string, int) {
	if windowBytes <= 0 || len(text) <= windowBytes {
		return text, 0
	}
	start := len(text) - windowBytes
	for start < len(text) && !utf8RuneStart(text[start]) {
		start++
	}
	return text[start:], start
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// isWithinMathBlock toggles on $ and $$ (skipping escaped dollars) to
// decide whether pos sits inside math.
func isWithinMathBlock(text string, pos int) bool {
	inInline := false
	inBlock := false
	for i := 0; i < pos && i < len(text); {
		if text[i] == '\\' && i+1 < len(text) && text[i+1] == '$' {
			i += 2
			continue
		}
		if text[i] == '$' {
			if i+1 < len(text) && text[i+1] == '$' {
				inBlock = !inBlock
				inInline = false
				i += 2
				continue
			}
			if !inBlock {
				inInline = !inInline
			}
		}
		i++
	}
	return inInline || inBlock
}

// isWithinLinkOrImageURL scans backwards on the current line for a "]("
// opener with a ")" still ahead, meaning pos is inside a URL where
// underscores are literal.
func isWithinLinkOrImageURL(text string, pos int) bool {
	for i := pos; i > 0; {
		i--
		switch text[i] {
		case '\n', ')':
			return false
		case '(':
			if i > 0 && text[i-1] == ']' {
				for j := pos; j < len(text); j++ {
					if text[j] == ')' {
						return true
					}
					if text[j] == '\n' {
						return false
					}
				}
			}
			return false
		}
	}
	return false
}

// trimTrailingSingleSpace drops exactly one trailing space; a run of
// two or more (a Markdown hard break) is preserved.
func trimTrailingSingleSpace(text string) string {
	if strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "  ") {
		return text[:len(text)-1]
	}
	return text
}

// applySetextHeadingProtection keeps a trailing "-"/"--"/"="/"==" line
// from being parsed as a setext underline for the line above it while
// the stream is still deciding: a zero-width space is appended so the
// marker stays visible but inert.
func applySetextHeadingProtection(text string) string {
	trimmed := trimTrailingSingleSpace(text)
	lastNL := strings.LastIndexByte(trimmed, '\n')
	if lastNL < 0 {
		return trimmed
	}
	prev := trimmed[:lastNL]
	if prev == "" || strings.HasSuffix(prev, "\n") {
		return trimmed
	}

	lastLine := trimmed[lastNL+1:]
	tl := strings.TrimSpace(lastLine)
	ambiguousDashes := tl == "-" || tl == "--"
	ambiguousEquals := tl == "=" || tl == "=="
	trailingWS := strings.HasSuffix(lastLine, " ") || strings.HasSuffix(lastLine, "\t")

	if (ambiguousDashes || ambiguousEquals) && !trailingWS {
		prevLine := prev
		if i := strings.LastIndexByte(prev, '\n'); i >= 0 {
			prevLine = prev[i+1:]
		}
		if strings.TrimSpace(prevLine) != "" {
			return trimmed + "​"
		}
	}
	return trimmed
}

func findMatchingOpenBracket(text string, closeIndex int) int {
	depth := 1
	for i := closeIndex; i > 0; {
		i--
		switch text[i] {
		case ']':
			depth++
		case '[':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func findMatchingCloseBracket(text string, openIndex int) int {
	depth := 1
	for i := openIndex + 1; i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// fixIncompleteLinkOrImage repairs a trailing incomplete link or image.
// Links are completed with the placeholder URL; images are dropped or
// completed depending on behavior. It returns ok=false when nothing
// needed fixing.
func fixIncompleteLinkOrImage(text, incompleteURL string, links, images bool, imageBehavior IncompleteImageBehavior) (string, bool) {
	// Incomplete URL: the last eligible "](", with no ")" after it.
	search := len(text)
	for {
		idx := strings.LastIndex(text[:search], "](")
		if idx < 0 {
			break
		}
		search = idx
		if isInsideCodeBlock(text, idx) {
			continue
		}
		if strings.Contains(text[idx+2:], ")") {
			continue
		}
		openBracket := findMatchingOpenBracket(text, idx)
		if openBracket < 0 {
			continue
		}
		if isInsideCodeBlock(text, openBracket) {
			continue
		}
		isImage := openBracket > 0 && text[openBracket-1] == '!'
		if isImage && !images {
			continue
		}
		if !isImage && !links {
			continue
		}
		if isImage {
			if imageBehavior == IncompleteImagePlaceholder {
				alt := text[openBracket+1 : idx]
				return text[:openBracket-1] + "![" + alt + "](" + incompleteURL + ")", true
			}
			return text[:openBracket-1], true
		}
		linkText := text[openBracket+1 : idx]
		return text[:openBracket] + "[" + linkText + "](" + incompleteURL + ")", true
	}

	// Incomplete link text: a '[' with no matching ']'.
	for i := len(text); i > 0; {
		i--
		if text[i] != '[' || isInsideCodeBlock(text, i) {
			continue
		}
		isImage := i > 0 && text[i-1] == '!'
		openIndex := i
		if isImage {
			openIndex = i - 1
		}
		if isImage && !images {
			continue
		}
		if !isImage && !links {
			continue
		}
		unmatched := !strings.Contains(text[i+1:], "]") || findMatchingCloseBracket(text, i) < 0
		if !unmatched {
			continue
		}
		if isImage {
			if imageBehavior == IncompleteImagePlaceholder {
				return text + "](" + incompleteURL + ")", true
			}
			return text[:openIndex], true
		}
		return text + "](" + incompleteURL + ")", true
	}

	return "", false
}

// isListMarkerAt reports whether the byte at index is the marker of a
// list item at the start of its line.
func isListMarkerAt(text string, index int) bool {
	lineStart := index
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	j := lineStart
	spaces := 0
	for j < len(text) && spaces < 3 && text[j] == ' ' {
		spaces++
		j++
	}
	if j >= len(text) {
		return false
	}
	if j == index && (text[j] == '*' || text[j] == '+' || text[j] == '-') {
		return j+1 < len(text) && isSpaceOrTab(text[j+1])
	}
	if j <= index && index < len(text) && text[index] >= '0' && text[index] <= '9' {
		k := j
		for k < len(text) && text[k] >= '0' && text[k] <= '9' {
			k++
		}
		if k > j && k == index && k < len(text) && (text[k] == '.' || text[k] == ')') {
			return k+1 < len(text) && isSpaceOrTab(text[k+1])
		}
	}
	return false
}

// isHorizontalRuleLine reports whether the marker at markerIndex is
// part of a line that is a thematic break of that marker.
func isHorizontalRuleLine(text string, markerIndex int, marker byte) bool {
	lineStart := markerIndex
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := markerIndex
	for lineEnd < len(text) && text[lineEnd] != '\n' {
		lineEnd++
	}
	count := 0
	for i := lineStart; i < lineEnd; i++ {
		switch text[i] {
		case marker:
			count++
		case ' ', '\t':
		default:
			return false
		}
	}
	return count >= 3
}

func countTripleAsterisks(text string) int {
	count := 0
	consecutive := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '*' {
			consecutive++
			continue
		}
		if consecutive >= 3 {
			count += consecutive / 3
		}
		consecutive = 0
	}
	if consecutive >= 3 {
		count += consecutive / 3
	}
	return count
}

func byteAt(text string, i int) byte {
	if i < 0 || i >= len(text) {
		return 0
	}
	return text[i]
}

func shouldSkipAsterisk(text string, index int) bool {
	prev := byteAt(text, index-1)
	next := byteAt(text, index+1)

	if prev == '\\' {
		return true
	}
	if isInsideCodeBlock(text, index) {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}

	// In a "***" run the first '*' counts as a single asterisk; in a
	// plain "**" it does not.
	if prev != '*' && next == '*' {
		return byteAt(text, index+2) != '*'
	}
	if prev == '*' {
		return true
	}

	if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
		return true
	}
	return isListMarkerAt(text, index)
}

func countSingleAsterisks(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '*' && !shouldSkipAsterisk(text, i) {
			count++
		}
	}
	return count
}

func shouldSkipUnderscore(text string, index int) bool {
	prev := byteAt(text, index-1)
	next := byteAt(text, index+1)

	if prev == '\\' {
		return true
	}
	if isInsideCodeBlock(text, index) {
		return true
	}
	if strings.Contains(text, "$") && isWithinMathBlock(text, index) {
		return true
	}
	if isWithinLinkOrImageURL(text, index) {
		return true
	}
	if prev == '_' || next == '_' {
		return true
	}
	if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
		return true
	}
	return false
}

func countSingleUnderscores(text string) int {
	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '_' && !shouldSkipUnderscore(text, i) {
			count++
		}
	}
	return count
}

// isLinePrefixListMarker reports whether everything before markerIndex
// on its line is just a list marker plus whitespace.
func isLinePrefixListMarker(text string, markerIndex int) bool {
	lineStart := markerIndex
	for lineStart > 0 && text[lineStart-1] != '\n' {
		lineStart--
	}
	prefix := text[lineStart:markerIndex]
	i := 0
	for i < len(prefix) && isSpaceOrTab(prefix[i]) {
		i++
	}
	if i >= len(prefix) {
		return false
	}
	marker := prefix[i]
	if marker != '-' && marker != '*' && marker != '+' {
		return false
	}
	i++
	if i >= len(prefix) {
		return false
	}
	hasWS := false
	for ; i < len(prefix); i++ {
		if !isSpaceOrTab(prefix[i]) {
			return false
		}
		hasWS = true
	}
	return hasWS
}

func handleIncompleteBold(text string) string {
	markerIdx := strings.LastIndex(text, "**")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "*") {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}
	// A bold marker opened right after a list marker that then spans
	// lines is left alone: auto-closing would create cross-line list
	// artifacts.
	if strings.Contains(contentAfter, "\n") && isLinePrefixListMarker(text, markerIdx) {
		return text
	}
	if strings.Count(text, "**")%2 == 1 {
		return text + "**"
	}
	return text
}

func handleIncompleteDoubleUnderscoreItalic(text string) string {
	markerIdx := strings.LastIndex(text, "__")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "_") {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '_') {
		return text
	}
	if strings.Contains(contentAfter, "\n") && isLinePrefixListMarker(text, markerIdx) {
		return text
	}
	if strings.Count(text, "__")%2 == 1 {
		return text + "__"
	}
	return text
}

func findFirstSingleAsteriskIndex(text string) int {
	for i := 0; i < len(text); i++ {
		if text[i] != '*' {
			continue
		}
		if isInsideCodeBlock(text, i) {
			continue
		}
		prev := byteAt(text, i-1)
		next := byteAt(text, i+1)
		if prev == '*' || next == '*' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
			continue
		}
		if isListMarkerAt(text, i) {
			continue
		}
		return i
	}
	return -1
}

func handleIncompleteSingleAsteriskItalic(text string) string {
	firstIdx := findFirstSingleAsteriskIndex(text)
	if firstIdx < 0 {
		return text
	}
	contentAfter := text[firstIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleAsterisks(text)%2 == 1 {
		return text + "*"
	}
	return text
}

// insertClosingUnderscore places the closer before trailing newlines so
// the emphasis stays on its own line.
func insertClosingUnderscore(text string) string {
	end := len(text)
	for end > 0 && text[end-1] == '\n' {
		end--
	}
	return text[:end] + "_" + text[end:]
}

func findFirstSingleUnderscoreIndex(text string) int {
	for i := 0; i < len(text); i++ {
		if text[i] != '_' {
			continue
		}
		if isInsideCodeBlock(text, i) {
			continue
		}
		prev := byteAt(text, i-1)
		next := byteAt(text, i+1)
		if prev == '_' || next == '_' || prev == '\\' {
			continue
		}
		if strings.Contains(text, "$") && isWithinMathBlock(text, i) {
			continue
		}
		if isWithinLinkOrImageURL(text, i) {
			continue
		}
		if prev != 0 && next != 0 && isWordChar(rune(prev)) && isWordChar(rune(next)) {
			continue
		}
		return i
	}
	return -1
}

// handleTrailingAsterisksForUnderscore closes an open underscore that
// sits inside an already-closing "**" pair: "**_text**" becomes
// "**_text_**".
func handleTrailingAsterisksForUnderscore(text string) (string, bool) {
	if !strings.HasSuffix(text, "**") {
		return "", false
	}
	without := text[:len(text)-2]
	if strings.Count(without, "**")%2 != 1 {
		return "", false
	}
	firstDouble := strings.Index(without, "**")
	if firstDouble < 0 {
		return "", false
	}
	underscoreIdx := findFirstSingleUnderscoreIndex(without)
	if underscoreIdx < 0 {
		return "", false
	}
	if firstDouble < underscoreIdx {
		return without + "_**", true
	}
	return "", false
}

func handleIncompleteSingleUnderscoreItalic(text string) string {
	firstIdx := findFirstSingleUnderscoreIndex(text)
	if firstIdx < 0 {
		return text
	}
	contentAfter := text[firstIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if countSingleUnderscores(text)%2 == 1 {
		if nested, ok := handleTrailingAsterisksForUnderscore(text); ok {
			return nested
		}
		return insertClosingUnderscore(text)
	}
	return text
}

func boldItalicMarkersBalanced(text string) bool {
	return strings.Count(text, "**")%2 == 0 && countSingleAsterisks(text)%2 == 0
}

func handleIncompleteBoldItalic(text string) string {
	t := strings.TrimSpace(text)
	if t != "" && len(t) >= 4 && strings.Trim(t, "*") == "" {
		return text
	}

	markerIdx := strings.LastIndex(text, "***")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+3:], "*") {
		return text
	}
	contentAfter := text[markerIdx+3:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	if isHorizontalRuleLine(text, markerIdx, '*') {
		return text
	}

	if countTripleAsterisks(text)%2 == 1 {
		if boldItalicMarkersBalanced(text) {
			return text
		}
		return text + "***"
	}
	return text
}

func balanceInlineCode(text string) string {
	// Inline triple backticks on one line: "```code``" needs one more.
	if !strings.Contains(text, "\n") && strings.HasPrefix(text, "```") {
		run := 0
		for i := len(text) - 1; i >= 0 && text[i] == '`'; i-- {
			run++
		}
		if run == 2 || run == 3 {
			bodyEnd := len(text) - run
			if bodyEnd >= 3 && !strings.Contains(text[3:bodyEnd], "`") {
				if run == 2 {
					return text + "`"
				}
				return text
			}
		}
	}

	// An unclosed multiline code block is left alone entirely.
	if strings.Count(text, "```")%2 == 1 {
		return text
	}

	markerIdx := -1
	for i := len(text) - 1; i >= 0; i-- {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			markerIdx = i
			break
		}
	}
	if markerIdx < 0 {
		return text
	}
	if isInsideCodeBlock(text, markerIdx) {
		return text
	}
	if strings.Contains(text[markerIdx+1:], "`") {
		return text
	}
	contentAfter := text[markerIdx+1:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}

	count := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			count++
		}
	}
	if count%2 == 1 {
		return text + "`"
	}
	return text
}

func balanceStrikethrough(text string) string {
	markerIdx := strings.LastIndex(text, "~~")
	if markerIdx < 0 {
		return text
	}
	if strings.Contains(text[markerIdx+2:], "~") {
		return text
	}
	contentAfter := text[markerIdx+2:]
	if contentAfter == "" || whitespaceOrMarkersOnly(contentAfter) {
		return text
	}
	if strings.Count(text, "~~")%2 == 1 {
		return text + "~~"
	}
	return text
}

// balanceMathBlock appends a closing "$$" when the pending text holds
// an odd number of them (counted outside inline code). Display math
// that already spans lines gets its closer on a fresh line.
func balanceMathBlock(text string) string {
	dollarPairs := 0
	inInlineCode := false
	for i := 0; i+1 < len(text); {
		if text[i] == '`' && !isPartOfTripleBacktick(text, i) {
			inInlineCode = !inInlineCode
			i++
			continue
		}
		if !inInlineCode && text[i] == '$' && text[i+1] == '$' {
			dollarPairs++
			i += 2
			continue
		}
		i++
	}
	if dollarPairs%2 == 0 {
		return text
	}

	first := strings.Index(text, "$$")
	multiline := first >= 0 && strings.Contains(text[first:], "\n")
	if multiline && !strings.HasSuffix(text, "\n") {
		return text + "\n$$"
	}
	return text + "$$"
}

// terminateMarkdown rewrites a streaming Markdown tail so nothing in it
// renders as partial syntax. Conservative on purpose: text inside an
// unclosed fenced code block gets no inline termination; only the
// single-trailing-space trim and setext protection apply to it.
func terminateMarkdown(text string, opts *TerminatorOptions) string {
	if text == "" {
		return ""
	}

	text = trimTrailingSingleSpace(text)
	tail, offset := tailWindow(text, opts.WindowBytes)
	prefix := text[:offset]

	if opts.SetextHeadings {
		tail = applySetextHeadingProtection(tail)
	}

	if isInsideIncompleteMultilineCodeBlock(tail) {
		return prefix + tail
	}

	if opts.Links || opts.Images {
		if fixed, ok := fixIncompleteLinkOrImage(tail, opts.IncompleteLinkURL, opts.Links, opts.Images, opts.ImageBehavior); ok {
			if strings.HasSuffix(fixed, "]("+opts.IncompleteLinkURL+")") {
				return prefix + fixed
			}
			tail = fixed
		}
	}

	if opts.Emphasis {
		tail = handleIncompleteBoldItalic(tail)
		tail = handleIncompleteBold(tail)
		tail = handleIncompleteDoubleUnderscoreItalic(tail)
		tail = handleIncompleteSingleAsteriskItalic(tail)
		tail = handleIncompleteSingleUnderscoreItalic(tail)
	}
	if opts.InlineCode {
		tail = balanceInlineCode(tail)
	}
	if opts.Strikethrough {
		tail = balanceStrikethrough(tail)
	}
	if opts.MathBlocks {
		tail = balanceMathBlock(tail)
	}

	return prefix + tail
}
