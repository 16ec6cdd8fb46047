package mdstream

import (
	"sort"
	"strings"
)

// blockMode is the running classification of the block being assembled.
// The first line of a block is the single source of truth for the mode;
// later lines can only upgrade it (paragraph to setext heading or
// table) or close it.
type blockMode int

const (
	modeUnknown blockMode = iota
	modeParagraph
	modeHeading
	modeThematicBreak
	modeCodeFence
	modeCustomBoundary
	modeList
	modeBlockQuote
	modeHTMLBlock
	modeTable
	modeMathBlock
	modeFootnoteDefinition
)

func (m blockMode) kind() BlockKind {
	switch m {
	case modeParagraph:
		return KindParagraph
	case modeHeading:
		return KindHeading
	case modeThematicBreak:
		return KindThematicBreak
	case modeCodeFence:
		return KindCodeFence
	case modeList:
		return KindList
	case modeBlockQuote:
		return KindBlockQuote
	case modeHTMLBlock:
		return KindHTMLBlock
	case modeTable:
		return KindTable
	case modeMathBlock:
		return KindMathBlock
	case modeFootnoteDefinition:
		return KindFootnoteDefinition
	}
	return KindUnknown
}

// footnoteScanTailBytes is the window kept between appends so footnote
// markers split across chunk boundaries are still detected.
const footnoteScanTailBytes = 256

// Stream is the incremental block splitter. It is not safe for
// concurrent use; ownership is exclusive for the duration of an Append
// or Finalize call.
type Stream struct {
	opts Options
	lb   *lineBuffer

	committed      []Block
	processedLine  int
	blockStartLine int
	currentBlockID BlockID
	nextBlockID    uint64
	mode           blockMode

	// Mode-specific state, valid while the matching mode is current.
	fenceChar     byte
	fenceLen      int
	html          htmlBlockState
	mathOpenCount int
	activePlugin  int
	pluginStarted bool

	transformers []PendingTransformer
	plugins      []BoundaryPlugin

	footnotesDetected bool
	footnoteScanTail  string
	singleBlockID     BlockID

	// refUsage maps normalized labels to the committed blocks that used
	// them, for invalidation when a definition arrives late.
	refUsage map[string]map[BlockID]bool

	displayCache      string
	displayCacheValid bool
}

// New builds a Stream, rejecting invalid options.
func New(opts Options) (*Stream, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.normalized()
	return &Stream{
		opts:           opts,
		lb:             newLineBuffer(),
		currentBlockID: 1,
		nextBlockID:    2,
		activePlugin:   -1,
		refUsage:       make(map[string]map[BlockID]bool),
	}, nil
}

// NewStreamdown builds a Stream with Streamdown-parity handling of
// incomplete links and images: the terminator leaves them alone and the
// built-in pending transformers take over, so consumers can swap them
// out individually.
func NewStreamdown() *Stream {
	opts := DefaultOptions()
	opts.Terminator.Links = false
	opts.Terminator.Images = false
	s, err := New(opts)
	if err != nil {
		// DefaultOptions always validates.
		panic(err)
	}
	s.PushPendingTransformer(&IncompleteLinkPlaceholderTransformer{
		IncompleteLinkURL: opts.Terminator.IncompleteLinkURL,
		WindowBytes:       opts.TailWindowBytes,
	})
	s.PushPendingTransformer(&IncompleteImageDropTransformer{
		WindowBytes: opts.TailWindowBytes,
	})
	return s
}

// PushPendingTransformer appends a transformer to the pending pipeline.
// Transformers run in registration order, each seeing the previous
// one's output.
func (s *Stream) PushPendingTransformer(t PendingTransformer) {
	s.transformers = append(s.transformers, t)
	s.displayCacheValid = false
}

// PushBoundaryPlugin appends a boundary plugin. Plugins are consulted
// in registration order when classifying block-start lines.
func (s *Stream) PushBoundaryPlugin(p BoundaryPlugin) {
	s.plugins = append(s.plugins, p)
	s.displayCacheValid = false
}

// Buffer returns the normalized bytes accumulated so far.
func (s *Stream) Buffer() []byte {
	return s.lb.buf
}

// Snapshot returns a read-only view of the committed blocks and the
// current pending block.
func (s *Stream) Snapshot() (committed []Block, pending *Block) {
	committed = make([]Block, len(s.committed))
	copy(committed, s.committed)
	return committed, s.currentPendingBlock()
}

// AppendString is Append for string chunks.
func (s *Stream) AppendString(chunk string) Update {
	return s.Append([]byte(chunk))
}

// Append feeds one chunk and returns the blocks newly committed by it
// plus the current pending snapshot. Appending an empty chunk is safe
// and returns the pending snapshot with no new commits.
func (s *Stream) Append(chunk []byte) Update {
	var u Update
	if len(chunk) == 0 {
		// Nothing to do; a deferred '\r' stays deferred so that empty
		// appends cannot influence CRLF joining.
		u.Pending = s.currentPendingBlock()
		return u
	}

	norm := s.lb.normalize(chunk)
	s.scanFootnotes(norm, &u)
	s.lb.append(norm)
	s.displayCacheValid = false

	for s.processedLine < len(s.lb.lines) {
		if !s.lb.lines[s.processedLine].hasNewline {
			break
		}
		s.processLine(s.processedLine, &u)
		s.processedLine++
	}

	// A partial trailing line can still be enough information to close
	// the previous block (for example a heading interrupting a list).
	s.processIncompleteTailBoundary(&u)

	s.maybeCompactBuffer()

	u.Pending = s.currentPendingBlock()
	return u
}

// Finalize declares end of stream. Any open pending block is committed
// as-is, even when an unclosed fence, math or HTML construct is still
// open.
func (s *Stream) Finalize() Update {
	var u Update
	s.lb.flushPendingCR()
	s.displayCacheValid = false

	if s.singleBlockActive() {
		raw := s.lb.slice(0, s.lb.len())
		if strings.TrimSpace(raw) != "" {
			s.pushCommittedBlock(Block{
				ID:     s.singleBlockID,
				Status: Committed,
				Kind:   KindUnknown,
				Raw:    raw,
			}, &u)
		}
		s.blockStartLine = len(s.lb.lines)
		return u
	}

	if s.blockStartLine < len(s.lb.lines) {
		startOff := s.lb.lines[s.blockStartLine].start
		endOff := s.lb.len()
		if endOff > startOff {
			raw := s.lb.slice(startOff, endOff)
			if strings.TrimSpace(raw) != "" {
				s.pushCommittedBlock(Block{
					ID:     s.currentBlockID,
					Status: Committed,
					Kind:   s.mode.kind(),
					Raw:    raw,
				}, &u)
			}
		}
		s.blockStartLine = len(s.lb.lines)
	}
	return u
}

// Reset clears all stream state except the id counter: block ids stay
// unique across the lifetime of the instance.
func (s *Stream) Reset() {
	s.lb.reset()
	s.committed = nil
	s.processedLine = 0
	s.blockStartLine = 0
	s.currentBlockID = BlockID(s.nextBlockID)
	s.nextBlockID++
	s.mode = modeUnknown
	s.fenceChar, s.fenceLen = 0, 0
	s.html = htmlBlockState{}
	s.mathOpenCount = 0
	s.activePlugin = -1
	s.pluginStarted = false
	s.footnotesDetected = false
	s.footnoteScanTail = ""
	s.singleBlockID = 0
	s.refUsage = make(map[string]map[BlockID]bool)
	s.displayCacheValid = false
	for _, t := range s.transformers {
		t.Reset()
	}
	for _, p := range s.plugins {
		p.Reset()
	}
}

func (s *Stream) singleBlockActive() bool {
	return s.opts.Footnotes == FootnotesSingleBlock && s.footnotesDetected
}

// scanFootnotes watches for footnote markers, keeping a small tail so
// markers split across chunk boundaries are still seen. The first
// detection after blocks have committed triggers the single-block reset
// transition: consumers drop everything and rebuild from one pending
// block with a fresh id.
func (s *Stream) scanFootnotes(chunk []byte, u *Update) {
	if s.footnotesDetected {
		return
	}
	combined := s.footnoteScanTail + string(chunk)
	if !detectFootnotes(combined) {
		if len(combined) > footnoteScanTailBytes {
			combined = combined[len(combined)-footnoteScanTailBytes:]
		}
		s.footnoteScanTail = combined
		return
	}
	s.footnotesDetected = true
	s.footnoteScanTail = ""
	if s.opts.Footnotes != FootnotesSingleBlock {
		return
	}
	if len(s.committed) > 0 {
		u.Reset = true
		s.committed = nil
		s.refUsage = make(map[string]map[BlockID]bool)
		s.singleBlockID = BlockID(s.nextBlockID)
		s.nextBlockID++
	} else {
		s.singleBlockID = s.currentBlockID
	}
}

// startModeForLine classifies the first line of a new block. Priority
// follows the context rules: plugins first, then the unambiguous
// starters, paragraph last.
func (s *Stream) startModeForLine(line string) blockMode {
	for i, p := range s.plugins {
		if p.MatchesStart(line) {
			s.activePlugin = i
			s.pluginStarted = false
			return modeCustomBoundary
		}
	}
	if isATXHeading(line) {
		return modeHeading
	}
	if isThematicBreak(line) {
		return modeThematicBreak
	}
	if ch, n, ok := fenceStart(line); ok {
		s.fenceChar, s.fenceLen = ch, n
		return modeCodeFence
	}
	if isFootnoteDefinitionStart(line) {
		return modeFootnoteDefinition
	}
	if isBlockQuoteStart(line) {
		return modeBlockQuote
	}
	if isListItemStart(line) {
		return modeList
	}
	if htmlBlockStart(line) {
		s.html = htmlBlockState{}
		return modeHTMLBlock
	}
	if isMathFenceStart(line) {
		s.mathOpenCount = 0
		return modeMathBlock
	}
	return modeParagraph
}

// processLine handles one newly completed line.
func (s *Stream) processLine(i int, u *Update) {
	if s.singleBlockActive() {
		return
	}

	if i == s.blockStartLine {
		// The first line of a block is the single source of truth for
		// the mode. Re-deriving here also covers the partial-tail case,
		// where the mode was guessed before the line was complete.
		s.mode = s.startModeForLine(s.lb.lineString(i))
		s.maybeCommitSingleLine(i, u)
		s.updateModeWithLine(i, u)
		return
	}

	curr := s.lb.lineString(i)

	// A blank line is a definite close for paragraph-like blocks. Lists,
	// blockquotes and footnote definitions may continue across blanks,
	// and exclusive contexts (fence, math, open HTML, custom) swallow
	// them as content.
	if isBlankLine(curr) {
		switch s.mode {
		case modeParagraph, modeTable:
			s.commitBlock(i, u)
			return
		}
		s.updateModeWithLine(i, u)
		return
	}

	prev := s.lb.lineString(i - 1)
	if s.isNewBlockBoundary(prev, curr, i) {
		s.commitBlock(i-1, u)
		s.mode = s.startModeForLine(curr)
		s.maybeCommitSingleLine(i, u)
		s.updateModeWithLine(i, u)
		return
	}

	s.updateModeWithLine(i, u)
}

// isNewBlockBoundary decides whether curr (non-blank, complete) starts
// a new block, committing the pending block at prev.
func (s *Stream) isNewBlockBoundary(prev, curr string, i int) bool {
	// Exclusive contexts never split from the inside.
	switch s.mode {
	case modeCodeFence, modeCustomBoundary:
		return false
	case modeMathBlock:
		if s.mathOpenCount%2 == 1 {
			return false
		}
	case modeHTMLBlock:
		if s.html.open() {
			return false
		}
	case modeFootnoteDefinition:
		if isFootnoteContinuation(curr) {
			return false
		}
		// Any non-indented non-empty line (including a new footnote
		// definition) ends the current definition.
		return true
	}

	// After a blank line only lists and blockquotes may still be alive,
	// and only via their continuation forms.
	if isBlankLine(prev) {
		if s.mode == modeList && isListContinuation(curr) {
			return false
		}
		if s.mode == modeBlockQuote && isBlockQuoteStart(curr) {
			return false
		}
		return true
	}

	// A setext underline right after a single paragraph line belongs to
	// that paragraph (it promotes it to a heading); it is not a boundary
	// even when it would parse as a thematic break.
	if s.mode == modeParagraph || s.mode == modeUnknown {
		if setextUnderlineChar(curr) != 0 && s.blockStartLine+1 == i {
			return false
		}
	}

	// Starters that interrupt paragraphs, lists and quotes.
	if isATXHeading(curr) || isThematicBreak(curr) {
		return true
	}
	if _, _, ok := fenceStart(curr); ok {
		return true
	}
	for _, p := range s.plugins {
		if p.MatchesStart(curr) {
			return true
		}
	}
	if isFootnoteDefinitionStart(curr) {
		return true
	}
	if isMathFenceStart(curr) {
		return true
	}
	if htmlBlockStart(curr) && s.mode != modeHTMLBlock {
		return true
	}
	if isBlockQuoteStart(curr) && !isBlockQuoteStart(prev) && s.mode != modeBlockQuote {
		return true
	}
	if isListItemStart(curr) && !isListItemStart(prev) && s.mode != modeList {
		return true
	}

	return false
}

// maybeCommitSingleLine commits the block immediately for the
// single-line modes.
func (s *Stream) maybeCommitSingleLine(i int, u *Update) {
	switch s.mode {
	case modeHeading, modeThematicBreak:
		s.commitBlock(i, u)
	}
}

// updateModeWithLine applies per-mode state transitions for one line,
// committing the block when the line closes it.
func (s *Stream) updateModeWithLine(i int, u *Update) {
	line := s.lb.lineString(i)
	switch s.mode {
	case modeUnknown:
		s.mode = s.startModeForLine(line)
		s.maybeCommitSingleLine(i, u)

	case modeCodeFence:
		// Only the opening line reaches here before content, and the
		// opening line never matches its own closing fence test when it
		// carries an info string; a bare reopening run does, so skip the
		// start line explicitly.
		if i > s.blockStartLine && fenceEnd(line, s.fenceChar, s.fenceLen) {
			s.commitBlock(i, u)
		}

	case modeCustomBoundary:
		idx := s.activePlugin
		if idx < 0 || idx >= len(s.plugins) {
			return
		}
		if !s.pluginStarted {
			s.plugins[idx].Start(line)
			s.pluginStarted = true
		}
		if s.plugins[idx].Update(line) == BoundaryClose {
			s.activePlugin = -1
			s.pluginStarted = false
			s.commitBlock(i, u)
		}

	case modeMathBlock:
		s.mathOpenCount += countDoubleDollars(line)
		if s.mathOpenCount%2 == 0 {
			s.commitBlock(i, u)
		}

	case modeParagraph:
		// Setext upgrade: an underline right after the first paragraph
		// line turns the pair into a heading.
		if setextUnderlineChar(line) != 0 && s.blockStartLine+1 == i && i > 0 {
			if !isBlankLine(s.lb.lineString(i - 1)) {
				s.mode = modeHeading
				s.commitBlock(i, u)
				return
			}
		}
		// Table upgrade: a delimiter row confirms the previous line as a
		// table header, but only under the strict GFM rule that the cell
		// counts match; otherwise the row is paragraph continuation.
		if isTableDelimiterLine(line) && i > 0 {
			prev := s.lb.lineString(i - 1)
			if strings.Contains(prev, "|") && tableCellCount(prev) == tableCellCount(line) {
				if s.blockStartLine < i-1 {
					// The paragraph ends before the header row; the
					// table block starts at the header.
					s.commitBlock(i-2, u)
				}
				s.mode = modeTable
			}
		}

	case modeHTMLBlock:
		s.html.updateWithLine(line)
		if !s.html.open() {
			// The block ends at the line that empties the stack; a
			// following line is a new block even without a blank line.
			s.commitBlock(i, u)
		}

	case modeTable, modeList, modeBlockQuote, modeFootnoteDefinition:
		// Closed by boundary or blank-line handling on later lines.

	case modeHeading, modeThematicBreak:
		// Committed on sight.
	}
}

// stableBlockStarter reports whether a partial (unterminated) line is
// already unambiguously a block starter: no continuation of the line
// can turn it back into something else. Thematic breaks, setext
// underlines, table delimiters and bare "#" runs are excluded: "---"
// can still grow into "---text" and "#" into "#hashtag". This is what
// keeps boundaries independent of chunk split points.
func (s *Stream) stableBlockStarter(line string) bool {
	if stableATXHeading(line) {
		return true
	}
	if _, _, ok := fenceStart(line); ok {
		return true
	}
	if isFootnoteDefinitionStart(line) {
		return true
	}
	if htmlBlockStart(line) {
		return true
	}
	return false
}

// stableATXHeading is the partial-line form of isATXHeading: the space
// after the hash run must already be present, so "#" cannot later turn
// out to be a hashtag-like word.
func stableATXHeading(line string) bool {
	t := strings.TrimLeft(line, " \t")
	if !strings.HasPrefix(t, "#") {
		return false
	}
	h := 0
	for h < len(t) && t[h] == '#' {
		h++
	}
	if h > 6 {
		return false
	}
	return h < len(t) && (t[h] == ' ' || t[h] == '\t')
}

// listContinuationUndecided reports whether a partial line could still
// become a list continuation once more bytes arrive: a split list
// marker ("-" with no following space yet) or a lone leading space must
// not close the list.
func listContinuationUndecided(partial string) bool {
	i := 0
	for i < len(partial) && partial[i] == ' ' {
		i++
	}
	if i >= 2 {
		// Two leading spaces are already a continuation.
		return false
	}
	rest := partial[i:]
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '-', '+', '*':
		return len(rest) == 1
	}
	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 {
		return false
	}
	if j == len(rest) {
		return true
	}
	return (rest[j] == '.' || rest[j] == ')') && j+1 == len(rest)
}

// processIncompleteTailBoundary lets a partial trailing line close the
// previous block when the partial prefix is already decisive.
func (s *Stream) processIncompleteTailBoundary(u *Update) {
	n := len(s.lb.lines)
	if n < 2 {
		return
	}
	last := n - 1
	if s.lb.lines[last].hasNewline || !s.lb.lines[last-1].hasNewline {
		return
	}
	if s.singleBlockActive() {
		return
	}
	if last <= s.blockStartLine {
		return
	}

	switch s.mode {
	case modeCodeFence, modeCustomBoundary:
		return
	case modeMathBlock:
		if s.mathOpenCount%2 == 1 {
			return
		}
	case modeHTMLBlock:
		if s.html.open() {
			return
		}
	}

	prev := s.lb.lineString(last - 1)
	curr := s.lb.lineString(last)
	if isBlankLine(curr) {
		return
	}

	boundary := false
	switch {
	case isBlankLine(prev):
		switch s.mode {
		case modeList:
			boundary = !isListContinuation(curr) && !listContinuationUndecided(curr)
		case modeBlockQuote:
			boundary = !isBlockQuoteStart(curr) && strings.TrimLeft(curr, " \t") != ""
		case modeFootnoteDefinition:
			boundary = !isFootnoteContinuation(curr) && !footnoteContinuationUndecided(curr)
		default:
			boundary = true
		}
	case s.stableBlockStarter(curr):
		if s.mode == modeFootnoteDefinition && isFootnoteContinuation(curr) {
			boundary = false
		} else {
			boundary = true
		}
	case isListItemStart(curr) && !isListItemStart(prev) && s.mode != modeList:
		boundary = true
	case isBlockQuoteStart(curr) && !isBlockQuoteStart(prev) && s.mode != modeBlockQuote:
		boundary = true
	}

	if !boundary {
		return
	}
	s.commitBlock(last-1, u)
	s.mode = s.startModeForLine(curr)
}

// commitBlock finalizes the pending block through endLine (inclusive)
// and starts a fresh block after it. Whitespace-only spans are skipped,
// never emitted.
func (s *Stream) commitBlock(endLine int, u *Update) {
	if s.blockStartLine >= len(s.lb.lines) || endLine < s.blockStartLine {
		return
	}
	startOff := s.lb.lines[s.blockStartLine].start
	endOff := s.lb.lines[endLine].endWithNewline()
	if endOff <= startOff {
		return
	}

	raw := s.lb.slice(startOff, endOff)
	s.blockStartLine = endLine + 1
	defer func() {
		s.currentBlockID = BlockID(s.nextBlockID)
		s.nextBlockID++
		s.mode = modeUnknown
		s.activePlugin = -1
		s.pluginStarted = false
		s.displayCacheValid = false
	}()

	if strings.TrimSpace(raw) == "" {
		return
	}
	s.pushCommittedBlock(Block{
		ID:     s.currentBlockID,
		Status: Committed,
		Kind:   s.mode.kind(),
		Raw:    raw,
	}, u)
}

// pushCommittedBlock records a committed block, indexes its reference
// usages and emits invalidations for definitions it carries.
func (s *Stream) pushCommittedBlock(b Block, u *Update) {
	if b.Kind != KindCodeFence && strings.Contains(b.Raw, "[") {
		for label := range extractReferenceUsages(b.Raw) {
			ids := s.refUsage[label]
			if ids == nil {
				ids = make(map[BlockID]bool)
				s.refUsage[label] = ids
			}
			ids[b.ID] = true
		}
	}

	if s.opts.ReferenceDefinitions == ReferenceDefinitionsInvalidate &&
		b.Kind != KindCodeFence && strings.Contains(b.Raw, "]:") {
		invalidated := make(map[BlockID]bool)
		for _, line := range strings.Split(b.Raw, "\n") {
			label := referenceDefinitionLabel(line)
			if label == "" {
				continue
			}
			for id := range s.refUsage[label] {
				if id != b.ID {
					invalidated[id] = true
				}
			}
		}
		if len(invalidated) > 0 {
			ids := make([]BlockID, 0, len(invalidated))
			for id := range invalidated {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			u.Invalidated = append(u.Invalidated, ids...)
		}
	}

	s.committed = append(s.committed, b)
	u.Committed = append(u.Committed, b)
}

// currentPendingBlock assembles the pending snapshot, running the
// terminator and transformer pipeline to produce the display view.
func (s *Stream) currentPendingBlock() *Block {
	if s.singleBlockActive() {
		if s.lb.len() == 0 {
			return nil
		}
		raw := s.lb.slice(0, s.lb.len())
		b := Block{
			ID:     s.singleBlockID,
			Status: Pending,
			Kind:   KindUnknown,
			Raw:    raw,
		}
		b.Display = s.pendingDisplay(b.Kind, raw)
		return &b
	}

	if s.blockStartLine >= len(s.lb.lines) {
		return nil
	}
	startOff := s.lb.lines[s.blockStartLine].start
	if startOff >= s.lb.len() {
		return nil
	}
	raw := s.lb.slice(startOff, s.lb.len())
	kind := s.mode.kind()
	if s.mode == modeUnknown {
		// The first line has not completed yet, so the mode was never
		// derived; classify the partial text for the hint.
		kind = s.provisionalKind(raw)
	}
	b := Block{
		ID:     s.currentBlockID,
		Status: Pending,
		Kind:   kind,
		Raw:    raw,
	}
	b.Display = s.pendingDisplay(b.Kind, raw)
	return &b
}

// provisionalKind classifies a pending block whose first line is still
// incomplete. Pure: unlike startModeForLine it records no mode state.
func (s *Stream) provisionalKind(raw string) BlockKind {
	first := raw
	if i := strings.IndexByte(raw, '\n'); i >= 0 {
		first = raw[:i]
	}
	for _, p := range s.plugins {
		if p.MatchesStart(first) {
			return KindUnknown
		}
	}
	switch {
	case isATXHeading(first):
		return KindHeading
	case isThematicBreak(first):
		return KindThematicBreak
	case isFootnoteDefinitionStart(first):
		return KindFootnoteDefinition
	case isBlockQuoteStart(first):
		return KindBlockQuote
	case isListItemStart(first):
		return KindList
	case htmlBlockStart(first):
		return KindHTMLBlock
	case isMathFenceStart(first):
		return KindMathBlock
	}
	if _, _, ok := fenceStart(first); ok {
		return KindCodeFence
	}
	return KindParagraph
}

// pendingDisplay computes (and caches) the transformed display view for
// the pending raw text. It returns "" when the view equals the raw.
func (s *Stream) pendingDisplay(kind BlockKind, raw string) string {
	if s.displayCacheValid {
		return s.displayCache
	}

	display := terminateMarkdown(raw, &s.opts.Terminator)
	for _, t := range s.transformers {
		next, ok := applyTransformer(t, PendingTransformInput{Kind: kind, Raw: raw, Display: display})
		if ok {
			display = next
		}
	}
	if display == raw {
		display = ""
	}
	s.displayCache = display
	s.displayCacheValid = true
	return display
}

// applyTransformer runs one pipeline stage. A panicking transformer is
// skipped rather than taking the stream down; raw text is unaffected
// either way.
func applyTransformer(t PendingTransformer, input PendingTransformInput) (next string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			next, ok = "", false
		}
	}()
	return t.Transform(input)
}

// maybeCompactBuffer drops the committed prefix of the buffer when it
// exceeds the configured cap. Committed blocks own their raw strings,
// so the prefix is dead weight once everything before the pending block
// has been emitted.
func (s *Stream) maybeCompactBuffer() {
	max := s.opts.MaxBufferBytes
	if max == 0 || s.lb.len() <= max {
		return
	}
	// Single-block footnote mode needs the whole document until
	// finalize.
	if s.singleBlockActive() {
		return
	}

	keepFrom := s.lb.len()
	if s.blockStartLine < len(s.lb.lines) {
		keepFrom = s.lb.lines[s.blockStartLine].start
	}
	if keepFrom == 0 {
		return
	}

	droppedLines := s.blockStartLine
	s.lb.dropPrefix(keepFrom)
	s.blockStartLine = 0
	s.processedLine -= droppedLines
	if s.processedLine < 0 {
		s.processedLine = 0
	}
	if s.processedLine > len(s.lb.lines) {
		s.processedLine = len(s.lb.lines)
	}
	s.displayCacheValid = false
}
