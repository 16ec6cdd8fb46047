package mdstream

import (
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
)

// BlockAnalyzer attaches metadata to blocks as they flow through an
// AnalyzedStream. AnalyzeBlock returns ok=false when the analyzer has
// nothing to say about a block.
type BlockAnalyzer interface {
	AnalyzeBlock(b *Block) (any, bool)
	Reset()
}

// BlockMeta pairs a block id with analyzer output.
type BlockMeta struct {
	ID   BlockID
	Meta any
}

// AnalyzedUpdate wraps a stream Update with the metadata produced for
// its blocks.
type AnalyzedUpdate struct {
	Update        Update
	CommittedMeta []BlockMeta
	PendingMeta   *BlockMeta
}

// AnalyzedStream is a thin fan-out over Stream: every committed block
// is analyzed exactly once, the pending block on every tick. Committed
// metadata is retained and addressable by block id.
type AnalyzedStream struct {
	inner         *Stream
	analyzers     []BlockAnalyzer
	committedMeta map[BlockID]any
}

// NewAnalyzed builds an AnalyzedStream over the given options.
func NewAnalyzed(opts Options, analyzers ...BlockAnalyzer) (*AnalyzedStream, error) {
	inner, err := New(opts)
	if err != nil {
		return nil, err
	}
	return &AnalyzedStream{
		inner:         inner,
		analyzers:     analyzers,
		committedMeta: make(map[BlockID]any),
	}, nil
}

// Inner exposes the wrapped Stream for transformer and plugin
// registration.
func (a *AnalyzedStream) Inner() *Stream {
	return a.inner
}

// MetaFor returns the retained metadata for a committed block.
func (a *AnalyzedStream) MetaFor(id BlockID) (any, bool) {
	m, ok := a.committedMeta[id]
	return m, ok
}

func (a *AnalyzedStream) Append(chunk []byte) AnalyzedUpdate {
	return a.analyzeUpdate(a.inner.Append(chunk))
}

func (a *AnalyzedStream) AppendString(chunk string) AnalyzedUpdate {
	return a.analyzeUpdate(a.inner.AppendString(chunk))
}

func (a *AnalyzedStream) Finalize() AnalyzedUpdate {
	return a.analyzeUpdate(a.inner.Finalize())
}

func (a *AnalyzedStream) Reset() {
	a.inner.Reset()
	for _, an := range a.analyzers {
		an.Reset()
	}
	a.committedMeta = make(map[BlockID]any)
}

func (a *AnalyzedStream) analyzeUpdate(u Update) AnalyzedUpdate {
	if u.Reset {
		for _, an := range a.analyzers {
			an.Reset()
		}
		a.committedMeta = make(map[BlockID]any)
	}
	out := AnalyzedUpdate{Update: u}

	for i := range u.Committed {
		b := &u.Committed[i]
		meta, ok := a.analyzeBlock(b)
		if !ok {
			continue
		}
		a.committedMeta[b.ID] = meta
		out.CommittedMeta = append(out.CommittedMeta, BlockMeta{ID: b.ID, Meta: meta})
	}
	if u.Pending != nil {
		if meta, ok := a.analyzeBlock(u.Pending); ok {
			out.PendingMeta = &BlockMeta{ID: u.Pending.ID, Meta: meta}
		}
	}
	return out
}

func (a *AnalyzedStream) analyzeBlock(b *Block) (any, bool) {
	for _, an := range a.analyzers {
		if meta, ok := an.AnalyzeBlock(b); ok {
			return meta, true
		}
	}
	return nil, false
}

// CodeFenceClass groups fence languages by how consumers typically
// render them.
type CodeFenceClass int

const (
	FenceOther CodeFenceClass = iota
	FenceMermaid
	FenceJSON
)

// CodeFenceMeta describes a code-fence block's header.
type CodeFenceMeta struct {
	Info     string
	Language string
	// Canonical is the lexer name the language resolves to, when a
	// syntax highlighter knows it ("py" resolves to "Python").
	Canonical string
	Class     CodeFenceClass
}

// CodeFenceAnalyzer extracts fence headers and resolves the language
// against the chroma lexer registry.
type CodeFenceAnalyzer struct{}

func classifyFenceLanguage(lang string) CodeFenceClass {
	switch strings.ToLower(lang) {
	case "mermaid":
		return FenceMermaid
	case "json", "jsonc", "json5", "jsonl", "jsonp":
		return FenceJSON
	}
	return FenceOther
}

func (CodeFenceAnalyzer) AnalyzeBlock(b *Block) (any, bool) {
	if b.Kind != KindCodeFence {
		return nil, false
	}
	header, ok := ParseCodeFenceHeaderFromBlock(b.Raw)
	if !ok {
		return nil, false
	}
	meta := CodeFenceMeta{
		Info:     header.Info,
		Language: header.Language,
		Class:    classifyFenceLanguage(header.Language),
	}
	if header.Language != "" {
		if lexer := lexers.Get(header.Language); lexer != nil {
			meta.Canonical = lexer.Config().Name
		}
	}
	return meta, true
}

func (CodeFenceAnalyzer) Reset() {}

// MathMeta reports whether a math block's $$ delimiters balance.
type MathMeta struct {
	Balanced bool
}

type MathAnalyzer struct{}

func (MathAnalyzer) AnalyzeBlock(b *Block) (any, bool) {
	if b.Kind != KindMathBlock {
		return nil, false
	}
	return MathMeta{Balanced: countDoubleDollars(b.Raw)%2 == 0}, true
}

func (MathAnalyzer) Reset() {}

// BlockHintMeta flags likely-incomplete pending blocks.
type BlockHintMeta struct {
	Flags uint32
}

const (
	HintDisplayTransformed uint32 = 1 << iota
	HintUnclosedCodeFence
	HintUnbalancedMath
)

func (m BlockHintMeta) LikelyIncomplete() bool {
	return m.Flags != 0
}

func (m BlockHintMeta) Has(flag uint32) bool {
	return m.Flags&flag != 0
}

// BlockHintAnalyzer inspects pending blocks for signs that they are
// mid-construct: a transformed display view, an unclosed code fence, or
// unbalanced math.
type BlockHintAnalyzer struct{}

func lastNonemptyLine(text string) string {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func codeFenceIsClosed(text string) bool {
	header, ok := ParseCodeFenceHeaderFromBlock(text)
	if !ok {
		return false
	}
	last := lastNonemptyLine(text)
	if last == "" {
		return false
	}
	return IsCodeFenceClosingLine(last, header.FenceChar, header.FenceLen)
}

func (BlockHintAnalyzer) AnalyzeBlock(b *Block) (any, bool) {
	if b.Status != Pending {
		return nil, false
	}
	var flags uint32
	if b.Display != "" && b.Display != b.Raw {
		flags |= HintDisplayTransformed
	}
	switch b.Kind {
	case KindCodeFence:
		if !codeFenceIsClosed(b.Raw) {
			flags |= HintUnclosedCodeFence
		}
	case KindMathBlock:
		if countDoubleDollars(b.Raw)%2 == 1 {
			flags |= HintUnbalancedMath
		}
	}
	return BlockHintMeta{Flags: flags}, true
}

func (BlockHintAnalyzer) Reset() {}

// TaggedBlockMeta describes a custom-tag block like "<thinking>…".
type TaggedBlockMeta struct {
	Tag        string
	Attributes string
	Closed     bool
	// Content is the raw text between the tag lines. When the closing
	// tag has not arrived yet, everything after the opening line.
	Content string
}

// TaggedBlockAnalyzer extracts metadata from blocks whose first line is
// a custom opening tag, typically paired with a TagBoundaryPlugin.
type TaggedBlockAnalyzer struct {
	// AllowedTags restricts which tags produce metadata; empty allows
	// all.
	AllowedTags     []string
	CaseInsensitive bool
}

func NewTaggedBlockAnalyzer(tags ...string) *TaggedBlockAnalyzer {
	return &TaggedBlockAnalyzer{AllowedTags: tags, CaseInsensitive: true}
}

func (t *TaggedBlockAnalyzer) norm(s string) string {
	if t.CaseInsensitive {
		return strings.ToLower(s)
	}
	return s
}

func (t *TaggedBlockAnalyzer) parseOpeningTag(line string) (tag, attrs string, ok bool) {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, "<") || strings.HasPrefix(s, "</") {
		return "", "", false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return "", "", false
	}
	inside := s[1:gt]
	if inside == "" || !isASCIILetter(inside[0]) {
		return "", "", false
	}
	nameEnd := 1
	for nameEnd < len(inside) && isBoundaryTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	return t.norm(inside[:nameEnd]), strings.TrimSpace(inside[nameEnd:]), true
}

func (t *TaggedBlockAnalyzer) isClosingTag(line, tag string) bool {
	s := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(s, "</") {
		return false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return false
	}
	inside := s[2:gt]
	if inside == "" || !isASCIILetter(inside[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(inside) && isBoundaryTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	if t.norm(inside[:nameEnd]) != tag {
		return false
	}
	return strings.TrimSpace(inside[nameEnd:]) == ""
}

func (t *TaggedBlockAnalyzer) AnalyzeBlock(b *Block) (any, bool) {
	firstLine := b.Raw
	if i := strings.IndexByte(b.Raw, '\n'); i >= 0 {
		firstLine = b.Raw[:i]
	}
	tag, attrs, ok := t.parseOpeningTag(firstLine)
	if !ok {
		return nil, false
	}
	if len(t.AllowedTags) > 0 {
		allowed := false
		for _, want := range t.AllowedTags {
			if t.norm(want) == tag {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, false
		}
	}

	closed, content := t.splitContent(b.Raw, tag)
	return TaggedBlockMeta{Tag: tag, Attributes: attrs, Closed: closed, Content: content}, true
}

// splitContent strips the opening tag line and the closing tag line (if
// present) from the block raw.
func (t *TaggedBlockAnalyzer) splitContent(raw, tag string) (closed bool, content string) {
	nl := strings.IndexByte(raw, '\n')
	if nl < 0 {
		return false, ""
	}
	body := raw[nl+1:]

	lines := strings.SplitAfter(body, "\n")
	lastIdx := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			lastIdx = i
			break
		}
	}
	if lastIdx >= 0 {
		line := strings.TrimSuffix(lines[lastIdx], "\n")
		if t.isClosingTag(line, tag) {
			closed = true
			lines = append(lines[:lastIdx], lines[lastIdx+1:]...)
		}
	}
	return closed, strings.Join(lines, "")
}

func (t *TaggedBlockAnalyzer) Reset() {}
