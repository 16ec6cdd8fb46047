package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default ~/.config/mdstream/config.yaml)")
}

var rootCmd = &cobra.Command{
	Use:   "mdstream",
	Short: "Split streaming Markdown into stable blocks",
	Long: `mdstream splits a Markdown stream into committed blocks plus one
pending block, so incremental UIs can render LLM output without
re-parsing the whole document on every token.

Examples:
  mdstream split README.md --chunk-size 16
  cat notes.md | mdstream split --refs
  mdstream demo README.md`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

var configPath string

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
