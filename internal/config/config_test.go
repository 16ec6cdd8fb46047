package config

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/samsaffron/mdstream"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileAppliesValues(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"footnotes":             "invalidate",
		"reference_definitions": "invalidate",
		"incomplete_link_url":   "app:pending-link",
		"incomplete_images":     "placeholder",
		"tail_window_bytes":     4096,
		"max_buffer_bytes":      1 << 20,
	})

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	opts, err := cfg.StreamOptions()
	if err != nil {
		t.Fatalf("StreamOptions: %v", err)
	}

	if opts.Footnotes != mdstream.FootnotesInvalidate {
		t.Errorf("footnotes = %v", opts.Footnotes)
	}
	if opts.ReferenceDefinitions != mdstream.ReferenceDefinitionsInvalidate {
		t.Errorf("reference definitions = %v", opts.ReferenceDefinitions)
	}
	if opts.IncompleteImages != mdstream.IncompleteImagePlaceholder {
		t.Errorf("incomplete images = %v", opts.IncompleteImages)
	}
	if opts.Terminator.IncompleteLinkURL != "app:pending-link" {
		t.Errorf("link url = %q", opts.Terminator.IncompleteLinkURL)
	}
	if opts.TailWindowBytes != 4096 {
		t.Errorf("tail window = %d", opts.TailWindowBytes)
	}
	if opts.MaxBufferBytes != 1<<20 {
		t.Errorf("buffer cap = %d", opts.MaxBufferBytes)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{})
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	opts, err := cfg.StreamOptions()
	if err != nil {
		t.Fatalf("StreamOptions: %v", err)
	}
	if opts.Footnotes != mdstream.FootnotesSingleBlock {
		t.Errorf("default footnotes = %v", opts.Footnotes)
	}
	if opts.Terminator.IncompleteLinkURL != mdstream.DefaultIncompleteLinkURL {
		t.Errorf("default link url = %q", opts.Terminator.IncompleteLinkURL)
	}
	if opts.TailWindowBytes != mdstream.DefaultTailWindowBytes {
		t.Errorf("default tail window = %d", opts.TailWindowBytes)
	}
	if cfg.Theme.Kind == "" || cfg.Theme.Muted == "" {
		t.Errorf("theme defaults missing: %+v", cfg.Theme)
	}
}

func TestStreamOptionsRejectsUnknownValues(t *testing.T) {
	tests := []map[string]any{
		{"footnotes": "bogus"},
		{"reference_definitions": "always"},
		{"incomplete_images": "explode"},
	}
	for _, doc := range tests {
		cfg, err := LoadFile(writeConfig(t, doc))
		if err != nil {
			t.Fatalf("LoadFile: %v", err)
		}
		if _, err := cfg.StreamOptions(); err == nil {
			t.Errorf("config %v accepted", doc)
		}
	}
}
