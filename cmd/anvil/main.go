package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"anvil/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "anvil",
	Short: "Anvil module emitter and toolchain",
	Long:  `Anvil packs declarative module descriptions into metadata images`,
}

func main() {
	rootCmd.Version = version.String()

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
