package mdstream

import "testing"

func TestIsATXHeading(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"# Title", true},
		{"###### deep", true},
		{"####### too deep", false},
		{"#tag", false},
		{"#", true},
		{"##", true},
		{"  ## indented", true},
		{"plain", false},
	}
	for _, tt := range tests {
		if got := isATXHeading(tt.line); got != tt.want {
			t.Errorf("isATXHeading(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestThematicBreakChar(t *testing.T) {
	tests := []struct {
		line string
		want byte
	}{
		{"---", '-'},
		{"***", '*'},
		{"___", '_'},
		{"- - -", '-'},
		{"  ***  ", '*'},
		{"--", 0},
		{"-*-", 0},
		{"--- text", 0},
	}
	for _, tt := range tests {
		if got := thematicBreakChar(tt.line); got != tt.want {
			t.Errorf("thematicBreakChar(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSetextUnderlineChar(t *testing.T) {
	tests := []struct {
		line string
		want byte
	}{
		{"===", '='},
		{"==", '='},
		{"--", '-'},
		{"=", 0},
		{"== x", 0},
	}
	for _, tt := range tests {
		if got := setextUnderlineChar(tt.line); got != tt.want {
			t.Errorf("setextUnderlineChar(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestFenceStartAndEnd(t *testing.T) {
	ch, n, ok := fenceStart("```go")
	if !ok || ch != '`' || n != 3 {
		t.Errorf("fenceStart(```go) = %q %d %v", ch, n, ok)
	}
	ch, n, ok = fenceStart("~~~~")
	if !ok || ch != '~' || n != 4 {
		t.Errorf("fenceStart(~~~~) = %q %d %v", ch, n, ok)
	}
	if _, _, ok := fenceStart("``"); ok {
		t.Error("two backticks accepted as fence")
	}

	if !fenceEnd("```", '`', 3) {
		t.Error("matching close rejected")
	}
	if !fenceEnd("`````", '`', 3) {
		t.Error("longer close rejected")
	}
	if fenceEnd("``` trailing", '`', 3) {
		t.Error("close with info accepted")
	}
	if fenceEnd("~~~", '`', 3) {
		t.Error("wrong char accepted")
	}
}

func TestListItemStart(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"- item", true},
		{"+ item", true},
		{"* item", true},
		{"1. item", true},
		{"12) item", true},
		{"-", false},
		{"-item", false},
		{"1.item", false},
		{"word", false},
	}
	for _, tt := range tests {
		if got := isListItemStart(tt.line); got != tt.want {
			t.Errorf("isListItemStart(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestBlockQuoteDepth(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{"> quote", 1},
		{"> > nested", 2},
		{">>> deep", 3},
		{"plain", 0},
	}
	for _, tt := range tests {
		if got := blockQuoteDepth(tt.line); got != tt.want {
			t.Errorf("blockQuoteDepth(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestTableDelimiterAndCells(t *testing.T) {
	delims := []struct {
		line string
		want bool
	}{
		{"|---|---|", true},
		{"| :--- | ---: |", true},
		{"---", false},
		{"| a | b |", false},
	}
	for _, tt := range delims {
		if got := isTableDelimiterLine(tt.line); got != tt.want {
			t.Errorf("isTableDelimiterLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}

	cells := []struct {
		line string
		want int
	}{
		{"| A | B |", 2},
		{"A | B", 2},
		{"|---|---|---|", 3},
		{"| single |", 1},
	}
	for _, tt := range cells {
		if got := tableCellCount(tt.line); got != tt.want {
			t.Errorf("tableCellCount(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestParseCodeFenceHeader(t *testing.T) {
	h, ok := ParseCodeFenceHeader("```rust ignore")
	if !ok {
		t.Fatal("fence header not parsed")
	}
	if h.FenceChar != '`' || h.FenceLen != 3 {
		t.Errorf("fence = %q x%d", h.FenceChar, h.FenceLen)
	}
	if h.Info != "rust ignore" || h.Language != "rust" {
		t.Errorf("info = %q, language = %q", h.Info, h.Language)
	}

	h, ok = ParseCodeFenceHeader("~~~")
	if !ok || h.Language != "" || h.Info != "" {
		t.Errorf("bare fence = %+v %v", h, ok)
	}

	if _, ok := ParseCodeFenceHeader("not a fence"); ok {
		t.Error("non-fence parsed")
	}
}

func TestMathFenceStart(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"$$", true},
		{"$$ x + y", true},
		{"$$x$$", false},
		{"text $$", false},
		{"\\$$ escaped", false},
	}
	for _, tt := range tests {
		if got := isMathFenceStart(tt.line); got != tt.want {
			t.Errorf("isMathFenceStart(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHTMLTagParsing(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"<div>", true},
		{"<div class=\"x\">", true},
		{"</div>", true},
		{"<!-- comment", true},
		{"<https://example.com>", false},
		{"a < b", false},
		{"<3", false},
	}
	for _, tt := range tests {
		if got := htmlBlockStart(tt.line); got != tt.want {
			t.Errorf("htmlBlockStart(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHTMLStackMultipleClosersOneLine(t *testing.T) {
	var h htmlBlockState
	h.updateWithLine("<a><b>")
	if len(h.stack) != 2 {
		t.Fatalf("stack = %v", h.stack)
	}
	// Best-effort pop: each closer removes a matching top-of-stack;
	// mismatches are ignored without error.
	h.updateWithLine("</b></a>")
	if len(h.stack) != 0 {
		t.Errorf("stack not emptied: %v", h.stack)
	}

	var m htmlBlockState
	m.updateWithLine("<a><b>")
	m.updateWithLine("</a></b>")
	if m.open() && len(m.stack) != 1 {
		t.Errorf("mismatched closers handled unexpectedly: %v", m.stack)
	}
}

func TestVoidAndSelfClosingTags(t *testing.T) {
	var h htmlBlockState
	h.updateWithLine("<br>")
	if h.open() {
		t.Errorf("void tag left stack open: %v", h.stack)
	}
	h.updateWithLine("<img src=\"x\"/>")
	if h.open() {
		t.Errorf("self-closing tag left stack open: %v", h.stack)
	}
}
