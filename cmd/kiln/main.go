package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"kiln/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Kiln object-model lowering engine",
	Long:  `Kiln lowers class hierarchy declarations to Itanium ABI artifacts: record layouts, dispatch tables, type descriptors, and structor bodies.`,
}

func main() {
	// Feeds the automatic --version flag.
	rootCmd.Version = version.Version

	rootCmd.AddCommand(lowerCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")
	rootCmd.PersistentFlags().Int("max-diagnostics", 100, "maximum number of diagnostics to show")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// colorEnabled resolves the persistent --color flag against the output.
func colorEnabled(cmd *cobra.Command) bool {
	mode, _ := cmd.Flags().GetString("color")
	switch mode {
	case "on":
		return true
	case "off":
		return false
	default:
		return isTerminal(os.Stdout)
	}
}
