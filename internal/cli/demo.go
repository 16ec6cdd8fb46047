package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/samsaffron/mdstream"
	"github.com/samsaffron/mdstream/internal/config"
)

var demoChunkSize int

func init() {
	demoCmd.Flags().IntVar(&demoChunkSize, "chunk-size", 24, "Bytes delivered per tick")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo [file]",
	Short: "Replay a Markdown file as a simulated token stream",
	Long: `Streams the file into the splitter a few bytes at a time, the way
LLM output arrives, and renders the result live: committed blocks are
rendered once and never again, only the pending tail re-renders.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(args)
		if err != nil {
			return err
		}
		return runDemo(string(input))
	},
}

type demoTickMsg struct{}

type demoModel struct {
	stream *mdstream.Stream
	doc    *mdstream.DocumentState

	input string
	pos   int
	chunk int
	done  bool

	width    int
	renderer *glamour.TermRenderer
	// rendered caches glamour output per committed block id.
	rendered map[mdstream.BlockID]string
	order    []mdstream.BlockID

	pendingView  string
	pendingStyle lipgloss.Style
	statusStyle  lipgloss.Style
}

func newDemoModel(cfg *config.Config, stream *mdstream.Stream, input string, chunk int) *demoModel {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	m := &demoModel{
		stream:       stream,
		doc:          mdstream.NewDocumentState(),
		input:        input,
		chunk:        chunk,
		width:        width,
		rendered:     make(map[mdstream.BlockID]string),
		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Pending)),
		statusStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Muted)),
	}
	m.rebuildRenderer()
	return m
}

func (m *demoModel) rebuildRenderer() {
	style := "light"
	if termenv.HasDarkBackground() {
		style = "dark"
	}
	tr, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(m.width),
	)
	if err != nil {
		return
	}
	m.renderer = tr
	// Width changed: every cached render is stale.
	m.rendered = make(map[mdstream.BlockID]string)
	m.order = nil
	for _, b := range m.doc.Committed() {
		m.renderBlock(b)
	}
}

func (m *demoModel) renderBlock(b mdstream.Block) {
	if _, ok := m.rendered[b.ID]; ok {
		return
	}
	out := b.Raw
	if m.renderer != nil {
		if r, err := m.renderer.Render(b.Raw); err == nil {
			out = r
		}
	}
	m.rendered[b.ID] = strings.TrimRight(out, "\n") + "\n"
	m.order = append(m.order, b.ID)
}

func demoTick() tea.Cmd {
	return tea.Tick(40*time.Millisecond, func(time.Time) tea.Msg {
		return demoTickMsg{}
	})
}

func (m *demoModel) Init() tea.Cmd {
	return demoTick()
}

func (m *demoModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if msg.Width > 0 && msg.Width != m.width {
			m.width = msg.Width
			m.rebuildRenderer()
		}

	case demoTickMsg:
		if m.done {
			return m, nil
		}
		var u mdstream.Update
		if m.pos >= len(m.input) {
			u = m.stream.Finalize()
			m.done = true
		} else {
			end := m.pos + m.chunk
			if end > len(m.input) {
				end = len(m.input)
			}
			u = m.stream.AppendString(m.input[m.pos:end])
			m.pos = end
		}
		applied := m.doc.Apply(u)
		if applied.Reset {
			m.rendered = make(map[mdstream.BlockID]string)
			m.order = nil
		}
		for _, b := range u.Committed {
			m.renderBlock(b)
		}
		m.pendingView = ""
		if p := m.doc.Pending(); p != nil {
			m.pendingView = p.DisplayOrRaw()
		}
		if m.done {
			return m, nil
		}
		return m, demoTick()
	}
	return m, nil
}

func (m *demoModel) View() string {
	var b strings.Builder
	for _, id := range m.order {
		b.WriteString(m.rendered[id])
	}
	if m.pendingView != "" {
		b.WriteString(m.pendingStyle.Render(strings.TrimRight(m.pendingView, "\n")))
		b.WriteString("\n")
	}
	status := fmt.Sprintf("%d/%d bytes · %d blocks · q to quit", m.pos, len(m.input), len(m.order))
	if m.done {
		status = fmt.Sprintf("done · %d blocks · q to quit", len(m.order))
	}
	b.WriteString(m.statusStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}

func runDemo(input string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.StreamOptions()
	if err != nil {
		return err
	}
	stream, err := mdstream.New(opts)
	if err != nil {
		return err
	}

	chunk := demoChunkSize
	if chunk <= 0 {
		chunk = 24
	}
	p := tea.NewProgram(newDemoModel(cfg, stream, input, chunk))
	_, err = p.Run()
	return err
}
