package mdstream

import "strings"

// BoundaryUpdate is a plugin's verdict for one line of its block.
type BoundaryUpdate int

const (
	// BoundaryContinue keeps the block open.
	BoundaryContinue BoundaryUpdate = iota
	// BoundaryClose commits the block at the end of this line.
	BoundaryClose
)

// BoundaryPlugin claims custom container-like blocks and keeps the
// stream inside them until it decides they are closed. While a plugin's
// block is open, no built-in boundary rule can split it.
//
// Plugins observe lines; they cannot change text, and they can never
// affect blocks that have already committed.
type BoundaryPlugin interface {
	// MatchesStart is a pure predicate: can line start this block?
	// It must not mutate plugin state.
	MatchesStart(line string) bool

	// Start is called exactly once when a block is determined to start
	// at line.
	Start(line string)

	// Update is called for each line of the block, including the
	// starting line.
	Update(line string) BoundaryUpdate

	Reset()
}

// FnBoundaryPlugin adapts closures to the BoundaryPlugin interface.
// Capture state in the closures if you need any.
type FnBoundaryPlugin struct {
	MatchesStartFn func(line string) bool
	StartFn        func(line string)
	UpdateFn       func(line string) BoundaryUpdate
	ResetFn        func()
}

func (p *FnBoundaryPlugin) MatchesStart(line string) bool {
	return p.MatchesStartFn(line)
}

func (p *FnBoundaryPlugin) Start(line string) {
	if p.StartFn != nil {
		p.StartFn(line)
	}
}

func (p *FnBoundaryPlugin) Update(line string) BoundaryUpdate {
	return p.UpdateFn(line)
}

func (p *FnBoundaryPlugin) Reset() {
	if p.ResetFn != nil {
		p.ResetFn()
	}
}

// FenceBoundaryPlugin is a simple fence-like container, typically for
// directives such as
//
//	:::warning
//	content...
//	:::
//
// Start: FenceChar repeated at least MinLen times at the beginning of a
// line (after up to 3 spaces). End: FenceChar repeated at least as many
// times as the opener and, when RequireStandaloneEnd is set, nothing
// else on the line.
type FenceBoundaryPlugin struct {
	FenceChar            byte
	MinLen               int
	RequireStandaloneEnd bool

	openedLen   int
	justStarted bool
}

// NewFenceBoundaryPlugin returns a plugin for the given marker.
func NewFenceBoundaryPlugin(fenceChar byte, minLen int) *FenceBoundaryPlugin {
	return &FenceBoundaryPlugin{
		FenceChar:            fenceChar,
		MinLen:               minLen,
		RequireStandaloneEnd: true,
	}
}

// TripleColonPlugin returns the common ":::" directive fence.
func TripleColonPlugin() *FenceBoundaryPlugin {
	return NewFenceBoundaryPlugin(':', 3)
}

func (p *FenceBoundaryPlugin) fenceLenAtStart(line string) int {
	s := stripUpToThreeSpaces(line)
	n := 0
	for n < len(s) && s[n] == p.FenceChar {
		n++
	}
	return n
}

func (p *FenceBoundaryPlugin) isEndLine(line string, openedLen int) bool {
	s := stripUpToThreeSpaces(line)
	s = strings.TrimRight(s, " \t")
	n := 0
	for n < len(s) && s[n] == p.FenceChar {
		n++
	}
	if n < openedLen {
		return false
	}
	if !p.RequireStandaloneEnd {
		return true
	}
	return strings.TrimSpace(s[n:]) == ""
}

func (p *FenceBoundaryPlugin) MatchesStart(line string) bool {
	return p.fenceLenAtStart(line) >= p.MinLen
}

func (p *FenceBoundaryPlugin) Start(line string) {
	n := p.fenceLenAtStart(line)
	if n >= p.MinLen {
		p.openedLen = n
		p.justStarted = true
	} else {
		p.openedLen = 0
		p.justStarted = false
	}
}

func (p *FenceBoundaryPlugin) Update(line string) BoundaryUpdate {
	if p.openedLen == 0 {
		return BoundaryContinue
	}
	if p.justStarted {
		p.justStarted = false
		return BoundaryContinue
	}
	if p.isEndLine(line, p.openedLen) {
		p.openedLen = 0
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *FenceBoundaryPlugin) Reset() {
	p.openedLen = 0
	p.justStarted = false
}

// TagBoundaryPlugin keeps a paired-tag span in one block:
//
//	<thinking>
//	...
//	</thinking>
//
// Conservative on purpose: the start tag must open a line and be
// complete on it, and the end must be a standalone closing-tag line
// unless RequireStandaloneEnd is disabled.
type TagBoundaryPlugin struct {
	Tag                  string
	CaseInsensitive      bool
	AllowAttributes      bool
	RequireStandaloneEnd bool

	active bool
}

func NewTagBoundaryPlugin(tag string) *TagBoundaryPlugin {
	return &TagBoundaryPlugin{
		Tag:                  tag,
		CaseInsensitive:      true,
		AllowAttributes:      true,
		RequireStandaloneEnd: true,
	}
}

// ThinkingTagPlugin spans "<thinking>" blocks, the common LLM protocol
// tag.
func ThinkingTagPlugin() *TagBoundaryPlugin {
	return NewTagBoundaryPlugin("thinking")
}

func isBoundaryTagNameChar(b byte) bool {
	return b == '-' || b == '_' || b == ':' || isASCIITagNameChar(b)
}

func (p *TagBoundaryPlugin) normTag(tag string) string {
	if p.CaseInsensitive {
		return strings.ToLower(tag)
	}
	return tag
}

func (p *TagBoundaryPlugin) matchesOpening(line string) bool {
	s := strings.TrimRight(stripUpToThreeSpaces(line), " \t")
	if !strings.HasPrefix(s, "<") {
		return false
	}
	gt := strings.IndexByte(s, '>')
	if gt < 0 {
		return false
	}
	inside := s[1:gt]
	if strings.HasPrefix(inside, "/") || strings.HasPrefix(inside, "!") || strings.HasPrefix(inside, "?") {
		return false
	}
	if inside == "" || !isASCIILetter(inside[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(inside) && isBoundaryTagNameChar(inside[nameEnd]) {
		nameEnd++
	}
	if p.normTag(inside[:nameEnd]) != p.normTag(p.Tag) {
		return false
	}
	rest := strings.TrimSpace(inside[nameEnd:])
	if rest == "" {
		return true
	}
	return p.AllowAttributes
}

func (p *TagBoundaryPlugin) matchesClosing(line string) bool {
	s := strings.TrimRight(stripUpToThreeSpaces(line), " \t")
	if !strings.HasPrefix(s, "</") {
		return false
	}
	after := s[2:]
	if after == "" || !isASCIILetter(after[0]) {
		return false
	}
	nameEnd := 1
	for nameEnd < len(after) && isBoundaryTagNameChar(after[nameEnd]) {
		nameEnd++
	}
	if p.normTag(after[:nameEnd]) != p.normTag(p.Tag) {
		return false
	}
	rest := strings.TrimSpace(after[nameEnd:])
	if p.RequireStandaloneEnd {
		return rest == ">"
	}
	return strings.Contains(rest, ">")
}

func (p *TagBoundaryPlugin) MatchesStart(line string) bool {
	return p.matchesOpening(line)
}

func (p *TagBoundaryPlugin) Start(line string) {
	p.active = true
}

func (p *TagBoundaryPlugin) Update(line string) BoundaryUpdate {
	if !p.active {
		return BoundaryContinue
	}
	if p.matchesClosing(line) {
		p.active = false
		return BoundaryClose
	}
	return BoundaryContinue
}

func (p *TagBoundaryPlugin) Reset() {
	p.active = false
}

type containerMatch struct {
	markerLength int
	isEnd        bool
}

func isContainerNameStart(b byte) bool {
	return b == '_' || isASCIITagNameChar(b)
}

func isContainerNameChar(b byte) bool {
	return b == '-' || isContainerNameStart(b)
}

// ContainerBoundaryPlugin is an Incremark-compatible ":::" container:
// "::: name" starts one, ":::" ends one, longer markers are allowed for
// nesting, and nesting depth is tracked so each end marker closes one
// level.
type ContainerBoundaryPlugin struct {
	Marker          byte
	MinMarkerLength int
	AllowedNames    []string
	AllowAttributes bool

	baseMarkerLength int
	depth            int
	justStarted      bool
}

func NewContainerBoundaryPlugin(marker byte, minMarkerLength int) *ContainerBoundaryPlugin {
	return &ContainerBoundaryPlugin{
		Marker:          marker,
		MinMarkerLength: minMarkerLength,
		AllowAttributes: true,
	}
}

// DefaultContainerPlugin is the ":::" container with minimum run 3.
func DefaultContainerPlugin() *ContainerBoundaryPlugin {
	return NewContainerBoundaryPlugin(':', 3)
}

func (p *ContainerBoundaryPlugin) detectContainer(line string) (containerMatch, bool) {
	s := strings.TrimSpace(line)
	i := 0
	for i < len(s) && s[i] == p.Marker {
		i++
	}
	if i < p.MinMarkerLength {
		return containerMatch{}, false
	}
	markerLength := i
	rest := strings.TrimRight(s[i:], " \t")
	if rest == "" {
		return containerMatch{markerLength: markerLength, isEnd: true}, true
	}

	// At least one whitespace is required before a name or attributes.
	if !isSpaceOrTab(rest[0]) {
		return containerMatch{}, false
	}
	rest = strings.TrimLeft(rest, " \t")

	nameEnd := 0
	if len(rest) > 0 && isContainerNameStart(rest[0]) {
		nameEnd = 1
		for nameEnd < len(rest) && isContainerNameChar(rest[nameEnd]) {
			nameEnd++
		}
	}
	name := rest[:nameEnd]
	attrs := strings.TrimSpace(rest[nameEnd:])
	if attrs != "" && !p.AllowAttributes {
		return containerMatch{}, false
	}

	isEnd := name == "" && attrs == ""
	if !isEnd && len(p.AllowedNames) > 0 {
		allowed := false
		for _, n := range p.AllowedNames {
			if n == name {
				allowed = true
				break
			}
		}
		if !allowed {
			return containerMatch{}, false
		}
	}
	return containerMatch{markerLength: markerLength, isEnd: isEnd}, true
}

func (p *ContainerBoundaryPlugin) MatchesStart(line string) bool {
	m, ok := p.detectContainer(line)
	return ok && !m.isEnd
}

func (p *ContainerBoundaryPlugin) Start(line string) {
	m, ok := p.detectContainer(line)
	if !ok || m.isEnd {
		p.baseMarkerLength = 0
		p.depth = 0
		p.justStarted = false
		return
	}
	p.baseMarkerLength = m.markerLength
	p.depth = 1
	p.justStarted = true
}

func (p *ContainerBoundaryPlugin) Update(line string) BoundaryUpdate {
	if p.depth == 0 || p.baseMarkerLength == 0 {
		return BoundaryContinue
	}
	if p.justStarted {
		p.justStarted = false
		return BoundaryContinue
	}
	m, ok := p.detectContainer(line)
	if !ok {
		return BoundaryContinue
	}
	if m.isEnd && m.markerLength >= p.baseMarkerLength {
		p.depth--
		if p.depth == 0 {
			p.baseMarkerLength = 0
			return BoundaryClose
		}
		return BoundaryContinue
	}
	if !m.isEnd {
		p.depth++
	}
	return BoundaryContinue
}

func (p *ContainerBoundaryPlugin) Reset() {
	p.baseMarkerLength = 0
	p.depth = 0
	p.justStarted = false
}
