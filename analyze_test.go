package mdstream

import (
	"strings"
	"testing"
)

func newAnalyzed(t *testing.T, analyzers ...BlockAnalyzer) *AnalyzedStream {
	t.Helper()
	a, err := NewAnalyzed(DefaultOptions(), analyzers...)
	if err != nil {
		t.Fatalf("failed to create analyzed stream: %v", err)
	}
	return a
}

func TestCodeFenceAnalyzer(t *testing.T) {
	a := newAnalyzed(t, CodeFenceAnalyzer{})
	u := a.AppendString("```py\nprint(1)\n```\nAfter\n")
	if len(u.CommittedMeta) != 1 {
		t.Fatalf("committed meta = %+v, want 1 entry", u.CommittedMeta)
	}
	meta, ok := u.CommittedMeta[0].Meta.(CodeFenceMeta)
	if !ok {
		t.Fatalf("meta type %T", u.CommittedMeta[0].Meta)
	}
	if meta.Language != "py" {
		t.Errorf("language = %q", meta.Language)
	}
	if meta.Canonical != "Python" {
		t.Errorf("canonical = %q, want chroma's Python", meta.Canonical)
	}
	if meta.Class != FenceOther {
		t.Errorf("class = %v", meta.Class)
	}
}

func TestCodeFenceAnalyzerClasses(t *testing.T) {
	tests := []struct {
		lang string
		want CodeFenceClass
	}{
		{"json", FenceJSON},
		{"jsonc", FenceJSON},
		{"mermaid", FenceMermaid},
		{"go", FenceOther},
		{"", FenceOther},
	}
	for _, tt := range tests {
		if got := classifyFenceLanguage(tt.lang); got != tt.want {
			t.Errorf("classifyFenceLanguage(%q) = %v, want %v", tt.lang, got, tt.want)
		}
	}
}

func TestBlockHintAnalyzer(t *testing.T) {
	a := newAnalyzed(t, BlockHintAnalyzer{})
	u := a.AppendString("```go\nunfinished(")
	if u.PendingMeta == nil {
		t.Fatal("no pending meta")
	}
	meta := u.PendingMeta.Meta.(BlockHintMeta)
	if !meta.Has(HintUnclosedCodeFence) {
		t.Errorf("unclosed fence not flagged: %b", meta.Flags)
	}
	if !meta.LikelyIncomplete() {
		t.Error("pending fence not marked incomplete")
	}

	// Committed blocks produce no hint meta.
	u = a.AppendString("\n```\n\nnext")
	for _, m := range u.CommittedMeta {
		if _, ok := m.Meta.(BlockHintMeta); ok {
			t.Errorf("hint meta for committed block %v", m.ID)
		}
	}
}

func TestMathAnalyzer(t *testing.T) {
	a := newAnalyzed(t, MathAnalyzer{})
	u := a.AppendString("$$\nx\n")
	if u.PendingMeta == nil {
		t.Fatal("no pending meta")
	}
	if m := u.PendingMeta.Meta.(MathMeta); m.Balanced {
		t.Error("open math reported balanced")
	}
	u = a.AppendString("$$\n")
	if len(u.CommittedMeta) != 1 {
		t.Fatalf("committed meta = %+v", u.CommittedMeta)
	}
	if m := u.CommittedMeta[0].Meta.(MathMeta); !m.Balanced {
		t.Error("closed math reported unbalanced")
	}
}

func TestTaggedBlockAnalyzer(t *testing.T) {
	a := newAnalyzed(t, NewTaggedBlockAnalyzer("thinking"))
	a.Inner().PushBoundaryPlugin(ThinkingTagPlugin())

	u := a.AppendString("<thinking depth=\"2\">\nstep one\nstep two\n</thinking>\nAfter\n")
	if len(u.CommittedMeta) != 1 {
		t.Fatalf("committed meta = %+v", u.CommittedMeta)
	}
	meta := u.CommittedMeta[0].Meta.(TaggedBlockMeta)
	if meta.Tag != "thinking" {
		t.Errorf("tag = %q", meta.Tag)
	}
	if meta.Attributes != "depth=\"2\"" {
		t.Errorf("attributes = %q", meta.Attributes)
	}
	if !meta.Closed {
		t.Error("closed block reported open")
	}
	if meta.Content != "step one\nstep two\n" {
		t.Errorf("content = %q", meta.Content)
	}
}

func TestTaggedBlockAnalyzerPendingOpen(t *testing.T) {
	a := newAnalyzed(t, NewTaggedBlockAnalyzer())
	a.Inner().PushBoundaryPlugin(ThinkingTagPlugin())
	u := a.AppendString("<thinking>\npartial reasoning\n")
	if u.PendingMeta == nil {
		t.Fatal("no pending meta")
	}
	meta := u.PendingMeta.Meta.(TaggedBlockMeta)
	if meta.Closed {
		t.Error("open block reported closed")
	}
	if meta.Content != "partial reasoning\n" {
		t.Errorf("content = %q", meta.Content)
	}
}

func TestAnalyzedMetaRetainedByID(t *testing.T) {
	a := newAnalyzed(t, CodeFenceAnalyzer{})
	u := a.AppendString("```json\n{}\n```\nAfter\n")
	id := u.CommittedMeta[0].ID
	meta, ok := a.MetaFor(id)
	if !ok {
		t.Fatal("meta not retained")
	}
	if meta.(CodeFenceMeta).Class != FenceJSON {
		t.Errorf("meta = %+v", meta)
	}
}

func TestAnalyzedResetOnSingleBlockTransition(t *testing.T) {
	a := newAnalyzed(t, CodeFenceAnalyzer{})
	a.AppendString("```go\nx\n```\n\nmore\n\n")
	u := a.AppendString("[^1]: note\n")
	if !u.Update.Reset {
		t.Fatal("no reset")
	}
	if _, ok := a.MetaFor(1); ok {
		t.Error("meta survived reset")
	}
	if !strings.Contains(u.Update.Pending.Raw, "```go\n") {
		t.Errorf("pending raw = %q", u.Update.Pending.Raw)
	}
}
