// Package goldmarkadapter re-parses mdstream blocks with goldmark.
//
// The adapter keeps one parsed document per committed block id, so a
// consumer renders each block exactly once and re-renders only the ids
// an update invalidates. Reference definitions found in committed
// blocks are accumulated and prepended to every parse, which is what
// makes late definitions resolve in earlier blocks after invalidation.
package goldmarkadapter

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/samsaffron/mdstream"
)

// Options configures an Adapter.
type Options struct {
	// Parser overrides the default GFM-enabled goldmark parser.
	Parser parser.Parser

	// PreferDisplayForPending parses pending blocks from their display
	// view (terminated syntax) when available, which is almost always
	// what a renderer wants.
	PreferDisplayForPending bool
}

// DefaultOptions enables GFM and display-preferred pending parsing.
func DefaultOptions() Options {
	return Options{
		Parser:                  goldmark.New(goldmark.WithExtensions(extension.GFM)).Parser(),
		PreferDisplayForPending: true,
	}
}

// Document is one parsed block: the goldmark AST plus the source bytes
// its nodes point into.
type Document struct {
	Node   ast.Node
	Source []byte
}

// Adapter caches parsed blocks by id and consumes invalidation
// signals.
type Adapter struct {
	opts Options

	committedRaw   map[mdstream.BlockID]string
	committedCache map[mdstream.BlockID]Document

	refDefs      map[string]string
	refDefsText  string
	refDefsDirty bool
}

func New(opts Options) *Adapter {
	if opts.Parser == nil {
		opts.Parser = DefaultOptions().Parser
	}
	return &Adapter{
		opts:           opts,
		committedRaw:   make(map[mdstream.BlockID]string),
		committedCache: make(map[mdstream.BlockID]Document),
		refDefs:        make(map[string]string),
	}
}

// Clear drops all cached state.
func (a *Adapter) Clear() {
	a.committedRaw = make(map[mdstream.BlockID]string)
	a.committedCache = make(map[mdstream.BlockID]Document)
	a.refDefs = make(map[string]string)
	a.refDefsText = ""
	a.refDefsDirty = false
}

// ApplyUpdate ingests one stream update: reset clears the cache, newly
// committed blocks are parsed once, and invalidated ids are re-parsed
// with the definitions known by now.
func (a *Adapter) ApplyUpdate(u *mdstream.Update) {
	if u.Reset {
		a.Clear()
	}
	for i := range u.Committed {
		b := &u.Committed[i]
		a.committedRaw[b.ID] = b.Raw
		a.collectReferenceDefinitions(b.Raw)
		a.refreshReferenceDefinitionsText()
		a.committedCache[b.ID] = a.parseWithDefinitions(b.Raw)
	}
	for _, id := range u.Invalidated {
		raw, ok := a.committedRaw[id]
		if !ok {
			continue
		}
		a.committedCache[id] = a.parseWithDefinitions(raw)
	}
}

// Committed returns the cached parse for a committed block.
func (a *Adapter) Committed(id mdstream.BlockID) (Document, bool) {
	doc, ok := a.committedCache[id]
	return doc, ok
}

// ParsePending parses the pending block. The result is not cached: the
// pending block changes every tick.
func (a *Adapter) ParsePending(pending *mdstream.Block) Document {
	input := pending.Raw
	if a.opts.PreferDisplayForPending && pending.Display != "" {
		input = pending.Display
	}
	return a.parseWithDefinitions(input)
}

func (a *Adapter) parseWithDefinitions(raw string) Document {
	src := raw
	if a.refDefsText != "" {
		src = a.refDefsText + "\n\n" + raw
	}
	source := []byte(src)
	node := a.opts.Parser.Parse(text.NewReader(source))
	return Document{Node: node, Source: source}
}

// collectReferenceDefinitions keeps the latest definition per label.
func (a *Adapter) collectReferenceDefinitions(raw string) {
	for _, line := range strings.Split(raw, "\n") {
		label, def, ok := mdstream.ParseReferenceDefinition(line)
		if !ok {
			continue
		}
		if prev, exists := a.refDefs[label]; !exists || prev != def {
			a.refDefs[label] = def
			a.refDefsDirty = true
		}
	}
}

func (a *Adapter) refreshReferenceDefinitionsText() {
	if !a.refDefsDirty {
		return
	}
	labels := make([]string, 0, len(a.refDefs))
	for label := range a.refDefs {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	defs := make([]string, 0, len(labels))
	for _, label := range labels {
		defs = append(defs, a.refDefs[label])
	}
	a.refDefsText = strings.Join(defs, "\n")
	a.refDefsDirty = false
}
