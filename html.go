package mdstream

import "strings"

// HTML block tracking. The tracker keeps a stack of open tag names plus
// a comment flag; a block stays open while either is non-empty. Tag
// recognition is intentionally narrow: an ASCII letter followed by
// alphanumerics or '_', so that chat prose like "a <b means less than"
// rarely false-positives.

type htmlTagKind int

const (
	htmlTagOpening htmlTagKind = iota
	htmlTagClosing
	htmlTagCommentOpen
)

type htmlTag struct {
	kind        htmlTagKind
	name        string
	selfClosing bool
}

func isASCIITagNameChar(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// voidHTMLTags are elements that never have closing tags. The list is
// intentionally small.
var voidHTMLTags = map[string]bool{
	"area": true, "base": true, "br": true, "col": true,
	"embed": true, "hr": true, "img": true, "input": true,
	"link": true, "meta": true, "param": true, "source": true,
	"track": true, "wbr": true,
}

// parseHTMLTagAt parses a tag starting at a '<' at offset lt in s.
// It returns the tag and the remainder of the line after the tag.
func parseHTMLTagAt(s string, lt int) (htmlTag, string, bool) {
	if lt >= len(s) || s[lt] != '<' {
		return htmlTag{}, "", false
	}
	if strings.HasPrefix(s[lt:], "<!--") {
		return htmlTag{kind: htmlTagCommentOpen}, s[lt+4:], true
	}
	i := lt + 1
	if i >= len(s) {
		return htmlTag{}, "", false
	}
	closing := s[i] == '/'
	if closing {
		i++
	}
	if i >= len(s) || !isASCIILetter(s[i]) {
		return htmlTag{}, "", false
	}
	nameStart := i
	i++
	for i < len(s) && isASCIITagNameChar(s[i]) {
		i++
	}
	name := strings.ToLower(s[nameStart:i])

	// Must be followed by whitespace, '>' or '/' to be tag-like. This
	// rejects autolinks like "<https://…>" (':' after the name).
	var next byte
	if i < len(s) {
		next = s[i]
	}
	if next != ' ' && next != '\t' && next != '>' && next != '/' {
		return htmlTag{}, "", false
	}

	closeRel := strings.IndexByte(s[i:], '>')
	if closeRel < 0 {
		return htmlTag{}, "", false
	}
	close := i + closeRel

	if closing {
		return htmlTag{kind: htmlTagClosing, name: name}, s[close+1:], true
	}

	// Self-closing when '/' precedes '>' (ignoring trailing whitespace)
	// or the element is void.
	j := close
	for j > i && isSpaceOrTab(s[j-1]) {
		j--
	}
	selfClosing := (j > i && s[j-1] == '/') || voidHTMLTags[name]
	return htmlTag{kind: htmlTagOpening, name: name, selfClosing: selfClosing}, s[close+1:], true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// htmlBlockStart reports whether the line can open an HTML block: up to
// three leading spaces then something tag-like.
func htmlBlockStart(s string) bool {
	t := stripUpToThreeSpaces(s)
	t = strings.TrimRight(t, " \t")
	if !strings.HasPrefix(t, "<") || len(t) < 3 {
		return false
	}
	_, _, ok := parseHTMLTagAt(t, 0)
	return ok
}

type htmlBlockState struct {
	stack     []string
	inComment bool
}

func (h *htmlBlockState) open() bool {
	return h.inComment || len(h.stack) > 0
}

func (h *htmlBlockState) applyTag(tag htmlTag, rest string) {
	switch tag.kind {
	case htmlTagCommentOpen:
		// A comment that closes on the same line never enters comment mode.
		if !strings.Contains(rest, "-->") {
			h.inComment = true
		}
	case htmlTagOpening:
		if !tag.selfClosing {
			h.stack = append(h.stack, tag.name)
		}
	case htmlTagClosing:
		// Pop best-effort: only a matching top-of-stack is removed;
		// mismatched closers are ignored.
		if n := len(h.stack); n > 0 && h.stack[n-1] == tag.name {
			h.stack = h.stack[:n-1]
		}
	}
}

// updateWithLine scans one line for tags and comment delimiters,
// updating the stack and comment flag.
func (h *htmlBlockState) updateWithLine(s string) {
	for {
		if h.inComment {
			pos := strings.Index(s, "-->")
			if pos < 0 {
				return
			}
			h.inComment = false
			s = s[pos+3:]
			continue
		}
		lt := strings.IndexByte(s, '<')
		if lt < 0 {
			return
		}
		tag, rest, ok := parseHTMLTagAt(s, lt)
		if !ok {
			s = s[lt+1:]
			continue
		}
		h.applyTag(tag, rest)
		s = rest
	}
}
