package mdstream

import "fmt"

// FootnotesMode controls what happens when a footnote reference or
// definition is detected in the stream.
type FootnotesMode int

const (
	// FootnotesSingleBlock collapses the whole document into a single
	// pending block once any footnote marker appears. If the transition
	// happens after blocks have already committed, the next update carries
	// Reset so consumers rebuild from scratch.
	FootnotesSingleBlock FootnotesMode = iota
	// FootnotesInvalidate keeps multi-block splitting. Footnote
	// definitions do not currently emit invalidations; the mode exists so
	// adapters that handle footnotes themselves can opt out of the
	// single-block collapse.
	FootnotesInvalidate
)

// ReferenceDefinitionsMode controls the reference-definition tracker.
type ReferenceDefinitionsMode int

const (
	// ReferenceDefinitionsOff keeps blocks stable and emits nothing;
	// late definitions are the adapter's problem.
	ReferenceDefinitionsOff ReferenceDefinitionsMode = iota
	// ReferenceDefinitionsInvalidate indexes label usages and emits the
	// ids of earlier committed blocks that referenced a label when its
	// definition commits.
	ReferenceDefinitionsInvalidate
)

// IncompleteImageBehavior selects what the pending pipeline does with a
// trailing incomplete image like "![alt](…".
type IncompleteImageBehavior int

const (
	// IncompleteImageDrop removes the whole image prefix from display.
	IncompleteImageDrop IncompleteImageBehavior = iota
	// IncompleteImagePlaceholder completes the image with the configured
	// placeholder URL instead of dropping it.
	IncompleteImagePlaceholder
)

// DefaultIncompleteLinkURL is the placeholder URL substituted for the
// destination of an incomplete trailing link.
const DefaultIncompleteLinkURL = "streamdown:incomplete-link"

// DefaultTailWindowBytes bounds how far from the end of the pending
// block the terminator and built-in transformers scan.
const DefaultTailWindowBytes = 16 * 1024

// TerminatorOptions configures the built-in pending-tail terminator.
type TerminatorOptions struct {
	SetextHeadings bool
	Links          bool
	Images         bool
	Emphasis       bool
	InlineCode     bool
	Strikethrough  bool
	MathBlocks     bool

	// IncompleteLinkURL replaces the destination of a trailing
	// incomplete link. Defaults to DefaultIncompleteLinkURL.
	IncompleteLinkURL string

	// ImageBehavior selects between dropping an incomplete image and
	// completing it with the placeholder URL. Kept in sync with
	// Options.IncompleteImages by the stream.
	ImageBehavior IncompleteImageBehavior

	// WindowBytes is the tail-only scan window. Defaults to
	// DefaultTailWindowBytes.
	WindowBytes int
}

// DefaultTerminatorOptions enables every built-in termination rule.
func DefaultTerminatorOptions() TerminatorOptions {
	return TerminatorOptions{
		SetextHeadings:    true,
		Links:             true,
		Images:            true,
		Emphasis:          true,
		InlineCode:        true,
		Strikethrough:     true,
		MathBlocks:        true,
		IncompleteLinkURL: DefaultIncompleteLinkURL,
		WindowBytes:       DefaultTailWindowBytes,
	}
}

// Options configures a Stream.
type Options struct {
	Footnotes            FootnotesMode
	ReferenceDefinitions ReferenceDefinitionsMode
	IncompleteImages     IncompleteImageBehavior
	Terminator           TerminatorOptions

	// TailWindowBytes bounds per-tick transformer work, counted from the
	// end of the pending raw. Zero means DefaultTailWindowBytes.
	TailWindowBytes int

	// MaxBufferBytes optionally caps the internal buffer. When exceeded,
	// the already-committed prefix of the buffer is dropped; committed
	// blocks own their raw text and are unaffected. Zero means unlimited.
	MaxBufferBytes int
}

// DefaultOptions returns the Streamdown-parity defaults.
func DefaultOptions() Options {
	return Options{
		Footnotes:            FootnotesSingleBlock,
		ReferenceDefinitions: ReferenceDefinitionsOff,
		IncompleteImages:     IncompleteImageDrop,
		Terminator:           DefaultTerminatorOptions(),
		TailWindowBytes:      DefaultTailWindowBytes,
	}
}

// Validate rejects option values the stream cannot honor. It is called
// by New; callers constructing Options by hand get the same errors.
func (o *Options) Validate() error {
	switch o.Footnotes {
	case FootnotesSingleBlock, FootnotesInvalidate:
	default:
		return fmt.Errorf("mdstream: invalid footnotes mode %d", o.Footnotes)
	}
	switch o.ReferenceDefinitions {
	case ReferenceDefinitionsOff, ReferenceDefinitionsInvalidate:
	default:
		return fmt.Errorf("mdstream: invalid reference definitions mode %d", o.ReferenceDefinitions)
	}
	switch o.IncompleteImages {
	case IncompleteImageDrop, IncompleteImagePlaceholder:
	default:
		return fmt.Errorf("mdstream: invalid incomplete image behavior %d", o.IncompleteImages)
	}
	if o.TailWindowBytes < 0 {
		return fmt.Errorf("mdstream: negative tail window %d", o.TailWindowBytes)
	}
	if o.Terminator.WindowBytes < 0 {
		return fmt.Errorf("mdstream: negative terminator window %d", o.Terminator.WindowBytes)
	}
	if o.MaxBufferBytes < 0 {
		return fmt.Errorf("mdstream: negative buffer cap %d", o.MaxBufferBytes)
	}
	return nil
}

// normalized fills zero values with defaults and keeps the terminator
// window in sync with the stream-level tail window.
func (o Options) normalized() Options {
	if o.TailWindowBytes == 0 {
		o.TailWindowBytes = DefaultTailWindowBytes
	}
	if o.Terminator.IncompleteLinkURL == "" {
		o.Terminator.IncompleteLinkURL = DefaultIncompleteLinkURL
	}
	o.Terminator.WindowBytes = o.TailWindowBytes
	o.Terminator.ImageBehavior = o.IncompleteImages
	return o
}
