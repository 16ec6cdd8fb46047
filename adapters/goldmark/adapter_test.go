package goldmarkadapter

import (
	"testing"

	"github.com/yuin/goldmark/ast"

	"github.com/samsaffron/mdstream"
)

func newRefStream(t *testing.T) *mdstream.Stream {
	t.Helper()
	opts := mdstream.DefaultOptions()
	opts.ReferenceDefinitions = mdstream.ReferenceDefinitionsInvalidate
	opts.Footnotes = mdstream.FootnotesInvalidate
	s, err := mdstream.New(opts)
	if err != nil {
		t.Fatalf("failed to create stream: %v", err)
	}
	return s
}

func firstLinkDestination(doc Document) string {
	var dest string
	ast.Walk(doc.Node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if link, ok := n.(*ast.Link); ok {
				dest = string(link.Destination)
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return dest
}

func TestAdapterCachesCommittedBlocks(t *testing.T) {
	s := newRefStream(t)
	a := New(DefaultOptions())

	u := s.AppendString("# Title\n\nBody.\n\n")
	a.ApplyUpdate(&u)

	for _, b := range u.Committed {
		if _, ok := a.Committed(b.ID); !ok {
			t.Errorf("block %v not cached", b.ID)
		}
	}
	if _, ok := a.Committed(mdstream.BlockID(999)); ok {
		t.Error("phantom block cached")
	}
}

func TestAdapterResolvesLateDefinitionOnInvalidation(t *testing.T) {
	s := newRefStream(t)
	a := New(DefaultOptions())

	u1 := s.AppendString("See [ref].\n\n")
	a.ApplyUpdate(&u1)
	usageID := u1.Committed[0].ID

	// Before the definition arrives the shortcut reference cannot
	// resolve to a link.
	doc, ok := a.Committed(usageID)
	if !ok {
		t.Fatal("usage block not cached")
	}
	if dest := firstLinkDestination(doc); dest != "" {
		t.Fatalf("link resolved before definition: %q", dest)
	}

	u2 := s.AppendString("[ref]: https://example.com\n\nNext\n")
	if len(u2.Invalidated) == 0 {
		t.Fatal("no invalidation emitted")
	}
	a.ApplyUpdate(&u2)

	doc, _ = a.Committed(usageID)
	if dest := firstLinkDestination(doc); dest != "https://example.com" {
		t.Errorf("link destination = %q after invalidation", dest)
	}
}

func TestAdapterParsePendingPrefersDisplay(t *testing.T) {
	a := New(DefaultOptions())
	pending := &mdstream.Block{
		ID:      1,
		Status:  mdstream.Pending,
		Kind:    mdstream.KindParagraph,
		Raw:     "See [docs](",
		Display: "See [docs](streamdown:incomplete-link)",
	}
	doc := a.ParsePending(pending)
	if dest := firstLinkDestination(doc); dest != "streamdown:incomplete-link" {
		t.Errorf("pending link destination = %q", dest)
	}

	rawOnly := New(Options{PreferDisplayForPending: false})
	doc = rawOnly.ParsePending(pending)
	if dest := firstLinkDestination(doc); dest != "" {
		t.Errorf("raw-preferring adapter resolved %q", dest)
	}
}

func TestAdapterClearOnReset(t *testing.T) {
	s, err := mdstream.New(mdstream.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	a := New(DefaultOptions())

	u1 := s.AppendString("Hello\n\n")
	a.ApplyUpdate(&u1)
	id := u1.Committed[0].ID

	u2 := s.AppendString("[^1]: note\n")
	if !u2.Reset {
		t.Fatal("no reset update")
	}
	a.ApplyUpdate(&u2)
	if _, ok := a.Committed(id); ok {
		t.Error("cache survived reset")
	}
}
