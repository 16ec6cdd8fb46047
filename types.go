// Package mdstream splits a streaming Markdown byte stream into a stable
// sequence of committed blocks plus at most one mutable pending block.
//
// It is designed for LLM token-by-token output feeding incremental UIs:
// instead of re-parsing the whole document on every chunk, consumers
// re-render only the pending tail and append committed blocks as they
// become stable. Committed blocks never change; the pending block may
// change on every Append until it commits.
package mdstream

import "fmt"

// BlockID identifies a block within a single Stream instance. IDs are
// strictly monotonic in emission order and are never reused, even after
// a reset update.
type BlockID uint64

func (id BlockID) String() string {
	return fmt.Sprintf("BlockID(%d)", uint64(id))
}

// BlockStatus reports whether a block may still change.
type BlockStatus int

const (
	// Committed blocks are immutable for the remainder of the stream.
	Committed BlockStatus = iota
	// Pending marks the single tail block that may still grow or mutate.
	Pending
)

func (s BlockStatus) String() string {
	switch s {
	case Committed:
		return "committed"
	case Pending:
		return "pending"
	}
	return "unknown"
}

// BlockKind is a best-effort hint about what a block contains. It is
// computed from line-level context only; downstream parsers remain the
// source of truth.
type BlockKind int

const (
	KindUnknown BlockKind = iota
	KindParagraph
	KindHeading
	KindThematicBreak
	KindCodeFence
	KindList
	KindBlockQuote
	KindTable
	KindHTMLBlock
	KindMathBlock
	KindFootnoteDefinition
)

func (k BlockKind) String() string {
	switch k {
	case KindParagraph:
		return "paragraph"
	case KindHeading:
		return "heading"
	case KindThematicBreak:
		return "thematic-break"
	case KindCodeFence:
		return "code-fence"
	case KindList:
		return "list"
	case KindBlockQuote:
		return "blockquote"
	case KindTable:
		return "table"
	case KindHTMLBlock:
		return "html-block"
	case KindMathBlock:
		return "math-block"
	case KindFootnoteDefinition:
		return "footnote-definition"
	}
	return "unknown"
}

// Block is one unit of the split document.
//
// Raw is the exact newline-normalized source slice for the block; a
// trailing newline is retained when present in the source. Display is
// populated only on pending blocks, and only when the transformer
// pipeline produced a view that differs from Raw.
type Block struct {
	ID      BlockID
	Status  BlockStatus
	Kind    BlockKind
	Raw     string
	Display string
}

// DisplayOrRaw returns Display when the transformers produced one,
// otherwise Raw.
func (b *Block) DisplayOrRaw() string {
	if b.Display != "" {
		return b.Display
	}
	return b.Raw
}

// CodeFenceHeader parses the opening fence line of a code-fence block.
// It returns false for blocks of any other kind.
func (b *Block) CodeFenceHeader() (CodeFenceHeader, bool) {
	if b.Kind != KindCodeFence {
		return CodeFenceHeader{}, false
	}
	return ParseCodeFenceHeaderFromBlock(b.Raw)
}

// CodeFenceLanguage returns the first info-string token of a code-fence
// block, lowercased, or "" when absent.
func (b *Block) CodeFenceLanguage() string {
	h, ok := b.CodeFenceHeader()
	if !ok {
		return ""
	}
	return h.Language
}

// Update is the result of one Append or Finalize call.
type Update struct {
	// Reset instructs consumers to drop all previously rendered state for
	// this stream and rebuild from this update.
	Reset bool
	// Committed lists blocks newly committed by this call, in order.
	Committed []Block
	// Pending is the current pending block snapshot, nil when none exists.
	Pending *Block
	// Invalidated lists ids of previously committed blocks that should be
	// re-parsed (for example because a reference definition arrived late).
	Invalidated []BlockID
}

// IsEmpty reports whether the update carries no information.
func (u *Update) IsEmpty() bool {
	return !u.Reset && len(u.Committed) == 0 && u.Pending == nil && len(u.Invalidated) == 0
}

// Blocks returns the committed blocks followed by the pending block,
// if any.
func (u *Update) Blocks() []Block {
	out := make([]Block, 0, len(u.Committed)+1)
	out = append(out, u.Committed...)
	if u.Pending != nil {
		out = append(out, *u.Pending)
	}
	return out
}

// AppliedUpdate is what remains of an Update after DocumentState has
// absorbed the block changes.
type AppliedUpdate struct {
	Reset       bool
	Invalidated []BlockID
}
