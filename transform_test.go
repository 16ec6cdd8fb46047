package mdstream

import (
	"strings"
	"testing"
)

func TestTransformersRunInRegistrationOrder(t *testing.T) {
	s := NewStreamdown()
	var order []string
	s.PushPendingTransformer(PendingTransformerFunc(func(in PendingTransformInput) (string, bool) {
		order = append(order, "first")
		return in.Display + "[1]", true
	}))
	s.PushPendingTransformer(PendingTransformerFunc(func(in PendingTransformInput) (string, bool) {
		order = append(order, "second")
		if !strings.HasSuffix(in.Display, "[1]") {
			t.Errorf("second transformer saw %q, not the first's output", in.Display)
		}
		return in.Display + "[2]", true
	}))

	u := s.AppendString("hello")
	if u.Pending == nil || !strings.HasSuffix(u.Pending.Display, "[1][2]") {
		t.Errorf("pending display = %+v", u.Pending)
	}
	if len(order) < 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

func TestTransformerNoChangeKeepsDisplayEmpty(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushPendingTransformer(PendingTransformerFunc(func(in PendingTransformInput) (string, bool) {
		return "", false
	}))
	u := s.AppendString("plain text")
	if u.Pending == nil {
		t.Fatal("no pending")
	}
	if u.Pending.Display != "" {
		t.Errorf("display = %q, want empty (view equals raw)", u.Pending.Display)
	}
	if u.Pending.DisplayOrRaw() != "plain text" {
		t.Errorf("DisplayOrRaw = %q", u.Pending.DisplayOrRaw())
	}
}

func TestStreamdownLinkTransformer(t *testing.T) {
	s := NewStreamdown()
	u := s.AppendString("See [docs](")
	want := "See [docs](streamdown:incomplete-link)"
	if u.Pending == nil || u.Pending.Display != want {
		t.Errorf("pending = %+v, want display %q", u.Pending, want)
	}
}

func TestStreamdownImageDropTransformer(t *testing.T) {
	s := NewStreamdown()
	u := s.AppendString("Look ![alt](https://exa")
	if u.Pending == nil {
		t.Fatal("no pending")
	}
	if u.Pending.Display != "Look" && u.Pending.Display != "Look " {
		t.Errorf("display = %q, want image dropped", u.Pending.Display)
	}
	if u.Pending.Raw != "Look ![alt](https://exa" {
		t.Errorf("raw mutated: %q", u.Pending.Raw)
	}
}

func TestLinkTransformerSkipsCodeFences(t *testing.T) {
	s := NewStreamdown()
	u := s.AppendString("```\nSee [docs](")
	if u.Pending == nil {
		t.Fatal("no pending")
	}
	if strings.Contains(u.Pending.Display, "streamdown:incomplete-link") {
		t.Errorf("link completed inside a fence: %q", u.Pending.Display)
	}
}

func TestCustomPlaceholderURL(t *testing.T) {
	tr := &IncompleteLinkPlaceholderTransformer{IncompleteLinkURL: "app:pending"}
	out, ok := tr.Transform(PendingTransformInput{
		Kind:    KindParagraph,
		Raw:     "go [here](",
		Display: "go [here](",
	})
	if !ok || out != "go [here](app:pending)" {
		t.Errorf("got (%q, %v)", out, ok)
	}
}

func TestTransformerFailureDoesNotCorruptRaw(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushPendingTransformer(PendingTransformerFunc(func(in PendingTransformInput) (string, bool) {
		// A misbehaving transformer returning garbage only affects
		// display, never raw.
		return "garbage", true
	}))
	s.AppendString("content\n\n")
	u := s.Finalize()
	for _, b := range u.Committed {
		if b.Raw == "garbage" {
			t.Error("transformer output leaked into raw")
		}
	}
}
