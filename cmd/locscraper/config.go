package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"locscraper/pkg/config"
	"locscraper/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage locscraper configuration.

Configuration is resolved from, in order of priority:
  1. Command line flags
  2. Environment variables (LOCSCRAPER_*)
  3. Configuration file (--config)
  4. Built-in defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with every option documented.

The file is written to locscraper.yaml in the current directory unless
a path is given. An existing file is never overwritten.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration a harvest would run with, after merging flags, environment variables, the configuration file, and defaults.`,
	Run:   runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long:  `Load a configuration file, check it for errors, and print a summary.`,
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# locscraper configuration file
#
# Every option can also be set through an environment variable with the
# LOCSCRAPER_ prefix, for example LOCSCRAPER_COLLECTION or
# LOCSCRAPER_OUTPUT_DIR. Flags override the environment, which
# overrides this file.

# Which collection to harvest and how to page through its listing
collection:
  # Collection slug on the listing host
  slug: "brady-handy"

  # Full listing URL; leave empty to derive it from the slug
  base_url: ""

  # Records per listing page (1-1000)
  page_size: 25

  # First listing page to fetch
  start_page: 1

  # Stop after this many pages; 0 means walk to the end
  max_pages: 0

  # User-Agent header sent with every request
  user_agent: "locscraper/1.0 (collection harvester)"

# Where and what to write
output:
  # Output directory; leave empty to derive output/<slug>
  base_directory: ""

  # Write each record as an indented JSON sidecar
  save_json: true

  # Download the images each record references
  download_images: true

  # Resume from the checkpoint left by an interrupted run
  resume: false

# Download behavior
download:
  # Skip assets whose local copy is already current
  skip_existing: true

  # Full download timeout in seconds
  timeout_seconds: 60

  # Metadata probe timeout in seconds
  probe_timeout_seconds: 15

  # Politeness pause between records in milliseconds
  item_delay_ms: 500

# Request pacing
rate_limit:
  requests_per_minute: 60
  burst_size: 10

# Listing page fetch retries
retry:
  max_attempts: 3
  initial_backoff_seconds: 1
  max_backoff_seconds: 60
  multiplier: 2.0
  jitter_factor: 0.1

# Prometheus exposition
metrics:
  enabled: false
  addr: ":2112"

# Logging
logging:
  # debug, info, warn or error
  level: "info"

  # Log file path; empty logs to the console only
  file: ""

  # Disable colored console output
  no_color: false
`

func runConfigInit(cmd *cobra.Command, args []string) {
	path := "locscraper.yaml"
	if len(args) > 0 {
		path = args[0]
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		os.Exit(1)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			ui.PrintError("Failed to create directory", err.Error())
			os.Exit(1)
		}
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0644); err != nil {
		ui.PrintError("Failed to write configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Created configuration file: " + path)
	fmt.Println()
	fmt.Println("Edit the file to adjust the collection and output settings, then run:")
	fmt.Printf("  locscraper harvest --config %s\n", path)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		ui.PrintError("Failed to render configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Effective configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println()
	fmt.Println("Sources (in order of priority):")
	fmt.Println("  1. Command line flags")
	fmt.Println("  2. Environment variables (LOCSCRAPER_*)")
	if configFile != "" {
		fmt.Printf("  3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("  3. Configuration file: (not specified)")
	}
	fmt.Println("  4. Built-in defaults")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		candidates := []string{
			"locscraper.yaml",
			"locscraper.yml",
			filepath.Join(os.Getenv("HOME"), ".config", "locscraper", "config.yaml"),
		}
		for _, path := range candidates {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
		if configFile == "" {
			ui.PrintError("No configuration file found", "specify one with --config")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration is invalid", err.Error())
		os.Exit(1)
	}

	warnings := []string{}
	if !cfg.Output.SaveJSON && !cfg.Output.DownloadImages {
		warnings = append(warnings, "save_json and download_images are both disabled; a run will write nothing")
	}
	if cfg.Download.ItemDelayMillis > 10000 {
		warnings = append(warnings, "item_delay_ms above ten seconds makes large collections crawl")
	}
	if cfg.RateLimit.RequestsPerMinute > 120 {
		warnings = append(warnings, "requests_per_minute above 120 is unkind to the listing host")
	}
	if cfg.Collection.MaxPages > 0 && cfg.Output.Resume {
		warnings = append(warnings, "max_pages with resume walks the collection one capped slice per run")
	}

	for _, w := range warnings {
		ui.PrintWarning("Warning: " + w)
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Collection:   %s\n", cfg.Collection.Slug)
	fmt.Printf("  Listing URL:  %s\n", cfg.Collection.BaseURL)
	fmt.Printf("  Output:       %s\n", cfg.Output.BaseDirectory)
	fmt.Printf("  Page size:    %d\n", cfg.Collection.PageSize)
	fmt.Printf("  Rate limit:   %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max attempts: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level:    %s\n", cfg.Logging.Level)
}
