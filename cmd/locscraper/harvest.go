package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"locscraper/pkg/config"
	errs "locscraper/pkg/errors"
	"locscraper/pkg/harvest"
	"locscraper/pkg/logger"
	"locscraper/pkg/metrics"
	"locscraper/pkg/stats"
	"locscraper/pkg/ui"
)

var (
	baseURL        string
	outputDir      string
	pageSize       int
	startPage      int
	maxPages       int
	saveJSON       bool
	downloadImages bool
	skipExisting   bool
	itemDelay      time.Duration
	resumeRun      bool
	metricsAddr    string
	selfCheckRun   bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest [collection]",
	Short: "Mirror a collection's records and images to local disk",
	Long: `Harvest walks the collection's paginated JSON listing from the start
page until the listing runs out (or the page cap is hit) and mirrors
every record under the output directory.

Each record gets its own folder holding an indented JSON sidecar and
the images the record references. Unchanged records and assets are
skipped on re-runs, so harvesting the same collection twice only pays
for what actually changed upstream.

When every attempt at a listing page fails, the process hands the run
to a detached copy of itself for one verification pass and exits, so
a transient outage does not silently truncate the mirror.`,
	Example: `  # Harvest the default collection
  locscraper harvest

  # Harvest a specific collection
  locscraper harvest civil-war-maps

  # Metadata only, skip the image downloads
  locscraper harvest civil-war-maps --download-images=false

  # Resume an interrupted run from its checkpoint
  locscraper harvest civil-war-maps --resume

  # First three pages at fifty records each
  locscraper harvest civil-war-maps --page-size 50 --max-pages 3`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHarvest,
}

func init() {
	rootCmd.AddCommand(harvestCmd)
	addHarvestFlags(harvestCmd)
}

// addHarvestFlags registers the harvest flag set on cmd. The root
// command registers them too so the bare "locscraper <collection>"
// form accepts the same flags.
func addHarvestFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&baseURL, "base-url", "", "listing URL (default derives from the collection slug)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default output/<collection>)")
	cmd.Flags().IntVar(&pageSize, "page-size", 25, "records per listing page")
	cmd.Flags().IntVar(&startPage, "start-page", 1, "first listing page to fetch")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = no limit)")
	cmd.Flags().BoolVar(&saveJSON, "save-json", true, "write each record as an indented JSON sidecar")
	cmd.Flags().BoolVar(&downloadImages, "download-images", true, "download the images each record references")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "skip assets whose local copy is already current")
	cmd.Flags().DurationVar(&itemDelay, "delay", 500*time.Millisecond, "politeness pause between records")
	cmd.Flags().BoolVar(&resumeRun, "resume", false, "resume from the checkpoint in the output directory")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "expose Prometheus metrics on this address")
	cmd.Flags().BoolVar(&selfCheckRun, "self-check-run", false, "this process is a relaunched verification pass")
	_ = cmd.Flags().MarkHidden("self-check-run")
}

func runHarvest(cmd *cobra.Command, args []string) error {
	collection := ""
	if len(args) > 0 {
		collection = strings.TrimSpace(args[0])
	}

	cfg, err := config.Load(configFile, buildHarvestFlags(cmd, collection))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logging", err.Error())
		os.Exit(1)
	}
	log := logger.GetLogger()

	ui.PrintInfo("Collection", cfg.Collection.Slug)
	ui.PrintInfo("Output", cfg.Output.BaseDirectory)
	if selfCheckRun {
		log.Info("Running as a relaunched verification pass")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := harvest.New(cfg, log)
	if err != nil {
		ui.PrintError("Failed to initialize harvester", err.Error())
		os.Exit(1)
	}

	if cfg.Metrics.Enabled {
		m := metrics.New()
		h.SetMetrics(m)
		startMetricsServer(cfg.Metrics.Addr, m, log)
	}

	if !ui.IsQuietMode() {
		debugMode := strings.EqualFold(cfg.Logging.Level, "debug")
		h.SetDisplay(ui.NewRunDisplay(cfg.Collection.Slug, debugMode))
	}

	notifier := ui.NewNotifier()

	res, err := h.Run(ctx)
	if err != nil {
		log.WithError(err).Error("Harvest failed")

		if errors.Is(err, errs.ErrPageFetchExhausted) && !selfCheckRun {
			if rerr := relaunchSelf(log); rerr != nil {
				log.WithError(rerr).Error("Failed to relaunch for verification")
				os.Exit(1)
			}
			ui.PrintWarning("Listing fetches kept failing; a verification pass is running in the background")
			return nil
		}

		notifier.SendError("Harvest failed", err.Error())
		ui.PrintError("HARVEST FAILED", err.Error())
		os.Exit(1)
	}

	summary := fmt.Sprintf("%d records, %s written in %s",
		res.Records, stats.FormatBytes(res.BytesWritten), res.Duration.Round(time.Second))
	notifier.SendSuccess("Harvest complete", summary)
	ui.PrintSuccess("Harvest complete: " + summary)
	return nil
}

// buildHarvestFlags collects only the flags the user actually set, so
// environment variables and the config file keep their say for the
// rest.
func buildHarvestFlags(cmd *cobra.Command, collection string) map[string]interface{} {
	flags := make(map[string]interface{})
	if collection != "" {
		flags["collection"] = collection
	}

	fl := cmd.Flags()
	if fl.Changed("base-url") {
		flags["base-url"] = baseURL
	}
	if fl.Changed("output") {
		flags["output"] = outputDir
	}
	if fl.Changed("page-size") {
		flags["page-size"] = pageSize
	}
	if fl.Changed("start-page") {
		flags["start-page"] = startPage
	}
	if fl.Changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if fl.Changed("save-json") {
		flags["save-json"] = saveJSON
	}
	if fl.Changed("download-images") {
		flags["download-images"] = downloadImages
	}
	if fl.Changed("skip-existing") {
		flags["skip-existing"] = skipExisting
	}
	if fl.Changed("delay") {
		flags["delay-ms"] = int(itemDelay / time.Millisecond)
	}
	if fl.Changed("resume") {
		flags["resume"] = resumeRun
	}
	if fl.Changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if logFile != "" {
		flags["log-file"] = logFile
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

// relaunchSelf starts a detached copy of this invocation with the
// verification flag appended, giving transient listing failures one
// more chance outside this process. The flag guard in runHarvest keeps
// the chain to a single generation.
func relaunchSelf(log logger.Logger) error {
	args := append([]string(nil), os.Args[1:]...)
	args = append(args, "--self-check-run")

	child := exec.Command(os.Args[0], args...)
	if err := child.Start(); err != nil {
		return err
	}
	log.InfoWithFields("Relaunched for a verification pass", map[string]interface{}{
		"pid": child.Process.Pid,
	})
	return child.Process.Release()
}

// startMetricsServer exposes the Prometheus registry for the lifetime
// of the process.
func startMetricsServer(addr string, m *metrics.Metrics, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		log.InfoWithFields("Metrics endpoint listening", map[string]interface{}{
			"addr": addr,
			"path": "/metrics",
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("Metrics server stopped")
		}
	}()
}
