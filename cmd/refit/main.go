package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"refit/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "refit",
	Short: "Semantic-preserving quick assists for Java sources",
	Long: `refit lists, previews and applies structural rewrites of Java code:
lambdas, switch expressions, text blocks, enhanced for loops, catch clauses,
checked exception handling and records.`,
	SilenceUsage: true,
}

// main registers the subcommands and persistent flags, then executes the
// root command. A command error exits with status 1.
func main() {
	// версия для автоматического флага --version
	rootCmd.Version = version.Version

	rootCmd.AddCommand(proposalsCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(lspCmd)
	rootCmd.AddCommand(versionCmd)

	addGlobalFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// addGlobalFlags registers the persistent flags every command reads from
// its root.
func addGlobalFlags(root *cobra.Command) {
	root.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	root.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	root.PersistentFlags().String("config", "", "path to refit.toml (default: discovered from the target)")
	root.PersistentFlags().String("trace", "", "trace output file (- for stderr)")
	root.PersistentFlags().String("trace-level", "", "trace level (off|error|phase|detail|debug)")
	addProfileFlags(root)
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
