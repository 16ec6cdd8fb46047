package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/samsaffron/mdstream"
	"github.com/samsaffron/mdstream/internal/config"
)

var (
	splitChunkSize int
	splitRefs      bool
	splitShowRaw   bool
)

func init() {
	splitCmd.Flags().IntVar(&splitChunkSize, "chunk-size", 64, "Feed the input in chunks of this many bytes")
	splitCmd.Flags().BoolVar(&splitRefs, "refs", false, "Enable reference-definition invalidation tracking")
	splitCmd.Flags().BoolVar(&splitShowRaw, "raw", false, "Print each block's raw text, not just a summary")
	rootCmd.AddCommand(splitCmd)
}

var splitCmd = &cobra.Command{
	Use:   "split [file]",
	Short: "Split a Markdown file (or stdin) into blocks",
	Long: `Feeds the input through the splitter in chunks, exactly as a
streaming consumer would, and prints every committed block as it
stabilizes. Useful for checking where boundaries land.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(args)
		if err != nil {
			return err
		}
		return runSplit(cmd.OutOrStdout(), input)
	},
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(args[0])
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

func runSplit(w io.Writer, input []byte) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.StreamOptions()
	if err != nil {
		return err
	}
	if splitRefs {
		opts.ReferenceDefinitions = mdstream.ReferenceDefinitionsInvalidate
	}
	stream, err := mdstream.New(opts)
	if err != nil {
		return err
	}

	kindStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Kind)).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(cfg.Theme.Muted))

	chunkSize := splitChunkSize
	if chunkSize <= 0 {
		chunkSize = 64
	}

	emit := func(u mdstream.Update) {
		if u.Reset {
			fmt.Fprintln(w, mutedStyle.Render("-- reset: drop all previous blocks --"))
		}
		for _, b := range u.Committed {
			fmt.Fprintf(w, "%s %s %s\n",
				kindStyle.Render(b.Kind.String()),
				mutedStyle.Render(fmt.Sprintf("#%d", uint64(b.ID))),
				mutedStyle.Render(fmt.Sprintf("(%d bytes)", len(b.Raw))))
			if splitShowRaw {
				fmt.Fprint(w, b.Raw)
				if len(b.Raw) == 0 || b.Raw[len(b.Raw)-1] != '\n' {
					fmt.Fprintln(w)
				}
			}
		}
		if len(u.Invalidated) > 0 {
			fmt.Fprintf(w, "%s %v\n", mutedStyle.Render("invalidated:"), u.Invalidated)
		}
	}

	for off := 0; off < len(input); off += chunkSize {
		end := off + chunkSize
		if end > len(input) {
			end = len(input)
		}
		emit(stream.Append(input[off:end]))
	}
	emit(stream.Finalize())
	return nil
}
