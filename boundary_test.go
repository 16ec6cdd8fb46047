package mdstream

import (
	"strings"
	"testing"
)

func TestContainerPluginSpansBlock(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(DefaultContainerPlugin())

	u := s.AppendString("::: warning\nBe careful.\n\nStill inside.\n:::\nAfter\n")
	if len(u.Committed) != 1 {
		t.Fatalf("committed = %d blocks, want 1: %+v", len(u.Committed), u.Committed)
	}
	want := "::: warning\nBe careful.\n\nStill inside.\n:::\n"
	if u.Committed[0].Raw != want {
		t.Errorf("raw = %q, want %q", u.Committed[0].Raw, want)
	}
	if u.Pending == nil || u.Pending.Raw != "After\n" {
		t.Errorf("pending = %+v", u.Pending)
	}
}

func TestContainerPluginNesting(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(DefaultContainerPlugin())

	u := s.AppendString("::: outer\n::: inner\nx\n:::\nstill outer\n:::\nAfter\n")
	if len(u.Committed) != 1 {
		t.Fatalf("committed = %d blocks, want 1: %+v", len(u.Committed), u.Committed)
	}
	if !strings.Contains(u.Committed[0].Raw, "still outer\n:::\n") {
		t.Errorf("nesting not tracked: %q", u.Committed[0].Raw)
	}
}

func TestContainerAllowedNames(t *testing.T) {
	p := NewContainerBoundaryPlugin(':', 3)
	p.AllowedNames = []string{"warning", "note"}
	if !p.MatchesStart("::: warning") {
		t.Error("allowed name rejected")
	}
	if p.MatchesStart("::: other") {
		t.Error("disallowed name accepted")
	}
	if p.MatchesStart(":::") {
		t.Error("bare end marker treated as start")
	}
}

func TestTagPluginThinkingBlock(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(ThinkingTagPlugin())

	u := s.AppendString("<thinking>\nLet me reason.\n\n# not a heading boundary\n</thinking>\nAfter\n")
	if len(u.Committed) != 1 {
		t.Fatalf("committed = %d blocks, want 1: %+v", len(u.Committed), u.Committed)
	}
	b := u.Committed[0]
	if !strings.HasPrefix(b.Raw, "<thinking>\n") || !strings.HasSuffix(b.Raw, "</thinking>\n") {
		t.Errorf("raw = %q", b.Raw)
	}
	if u.Pending == nil || u.Pending.Raw != "After\n" {
		t.Errorf("pending = %+v", u.Pending)
	}
}

func TestTagPluginIgnoresOtherTags(t *testing.T) {
	p := ThinkingTagPlugin()
	if p.MatchesStart("<div>") {
		t.Error("matched unrelated tag")
	}
	if p.MatchesStart("</thinking>") {
		t.Error("matched closing tag as start")
	}
	if !p.MatchesStart("<thinking about=\"stuff\">") {
		t.Error("attributes rejected")
	}
}

func TestFenceBoundaryPlugin(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(NewFenceBoundaryPlugin('!', 2))

	u := s.AppendString("!! directive\nbody\n!!\nAfter\n")
	if len(u.Committed) != 1 {
		t.Fatalf("committed = %d blocks, want 1: %+v", len(u.Committed), u.Committed)
	}
	if u.Committed[0].Raw != "!! directive\nbody\n!!\n" {
		t.Errorf("raw = %q", u.Committed[0].Raw)
	}
}

func TestFnBoundaryPlugin(t *testing.T) {
	var started []string
	open := false
	p := &FnBoundaryPlugin{
		MatchesStartFn: func(line string) bool {
			return strings.HasPrefix(line, "%%begin")
		},
		StartFn: func(line string) {
			started = append(started, line)
			open = true
		},
		UpdateFn: func(line string) BoundaryUpdate {
			if open && strings.HasPrefix(line, "%%end") {
				open = false
				return BoundaryClose
			}
			return BoundaryContinue
		},
		ResetFn: func() { open = false },
	}

	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(p)
	u := s.AppendString("%%begin\ncontent\n%%end\nAfter\n")
	if len(u.Committed) != 1 {
		t.Fatalf("committed = %d blocks, want 1: %+v", len(u.Committed), u.Committed)
	}
	if u.Committed[0].Raw != "%%begin\ncontent\n%%end\n" {
		t.Errorf("raw = %q", u.Committed[0].Raw)
	}
	if len(started) != 1 || started[0] != "%%begin" {
		t.Errorf("start calls = %v, want exactly one", started)
	}
}

func TestPluginInterruptsParagraph(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(DefaultContainerPlugin())
	u := s.AppendString("para text\n::: note\ninside\n:::\n")
	if len(u.Committed) != 2 {
		t.Fatalf("committed = %d blocks, want 2: %+v", len(u.Committed), u.Committed)
	}
	if u.Committed[0].Raw != "para text\n" {
		t.Errorf("paragraph raw = %q", u.Committed[0].Raw)
	}
	if u.Committed[1].Raw != "::: note\ninside\n:::\n" {
		t.Errorf("container raw = %q", u.Committed[1].Raw)
	}
}

// Plugins cannot change history: committed blocks stay identical no
// matter what the plugin does afterwards.
func TestPluginCannotAlterCommitted(t *testing.T) {
	s := newTestStream(t, DefaultOptions())
	s.PushBoundaryPlugin(DefaultContainerPlugin())
	u1 := s.AppendString("first\n\n")
	raw := u1.Committed[0].Raw
	s.AppendString("::: note\nmore\n:::\n")
	committed, _ := s.Snapshot()
	if committed[0].Raw != raw {
		t.Errorf("committed block changed: %q vs %q", committed[0].Raw, raw)
	}
}
