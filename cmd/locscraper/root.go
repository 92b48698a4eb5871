package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"locscraper/pkg/ui"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configFile string
	logLevel   string
	logFile    string
	noColor    bool
	quiet      bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "locscraper [collection]",
	Short: "Mirror digital collections from their paginated JSON listings",
	Long: `locscraper walks a digital collection's paginated JSON listing and
mirrors every record to local disk: the record itself as an indented
JSON sidecar plus every image it references, one folder per record.

Re-running over an existing mirror is cheap. Sidecars are rewritten
only when the record content changed, and assets are skipped when the
local copy is already current by size, timestamp, or checksum.

Features:
  • Incremental re-runs that skip unchanged records and assets
  • Atomic writes, safe to interrupt at any point
  • Checkpoint and resume for long collections
  • Rate limiting with burst support
  • Exponential backoff retries for listing page fetches
  • Optional Prometheus metrics endpoint

Running locscraper with no subcommand harvests the configured
collection, so "locscraper civil-war-maps" is shorthand for
"locscraper harvest civil-war-maps".`,
	Version: version,
	Args:    cobra.ArbitraryArgs,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logLevel = "debug"
		} else if logLevel == "" && !quiet {
			// Keep the terminal clean for the live progress line unless
			// the user explicitly asks for logs.
			logLevel = "error"
		}
		if quiet {
			ui.SetQuietMode(true)
			logLevel = "error"
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand matched, so treat the invocation as a harvest.
		return runHarvest(cmd, args)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")

	rootCmd.SetVersionTemplate(fmt.Sprintf(`locscraper %s
  commit:  %s
  built:   %s
  go:      %s
  platform: %s/%s
`, version, gitCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH))

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// The bare invocation doubles as the harvest command, so it has to
	// accept the harvest flags too.
	addHarvestFlags(rootCmd)
}
