// Package harvest drives the sequential page walk over a collection
// listing and hands every record to the mirror engine.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"locscraper/pkg/checkpoint"
	"locscraper/pkg/config"
	errs "locscraper/pkg/errors"
	"locscraper/pkg/jsonval"
	"locscraper/pkg/loc"
	"locscraper/pkg/logger"
	"locscraper/pkg/metrics"
	"locscraper/pkg/mirror"
	"locscraper/pkg/names"
	"locscraper/pkg/ratelimit"
	"locscraper/pkg/retry"
	"locscraper/pkg/stats"
	"locscraper/pkg/storage"
	"locscraper/pkg/ui"
)

// Result summarizes one harvest run.
type Result struct {
	// Pages is the number of listing pages fetched, the terminal empty
	// page included.
	Pages int
	// Records is the number of records handed to the mirror engine.
	Records int
	// ImageSets is the number of records that newly wrote at least one
	// asset.
	ImageSets int
	// BytesWritten is the cumulative asset payload written to disk.
	BytesWritten int64
	// Duration is the wall-clock time of the run.
	Duration time.Duration
}

// Harvester walks a collection's listing pages in order and mirrors every
// record it finds. Page fetches are retried; records and assets are not,
// their failures are logged and absorbed so the walk keeps moving.
type Harvester struct {
	cfg         *config.Config
	client      *loc.Client
	engine      *mirror.Engine
	paced       *pacedClient
	limiter     ratelimit.Limiter
	checkpoints *checkpoint.Manager
	metrics     *metrics.Metrics
	log         logger.Logger
	display     *ui.RunDisplay
}

// New wires a harvester from configuration. A nil log falls back to the
// global logger.
func New(cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	client := loc.NewClient(cfg.Collection.BaseURL, cfg.Download.Timeout(), cfg.Download.ProbeTimeout(), log)
	if cfg.Collection.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.Collection.UserAgent)
	}

	store, err := storage.NewManager(cfg.Output.BaseDirectory, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}

	limiter := ratelimit.NewPerMinute(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	paced := &pacedClient{client: client, limiter: limiter, ctx: context.Background()}

	engine, err := mirror.New(store, paced, mirror.Options{
		SaveJSON:       cfg.Output.SaveJSON,
		DownloadImages: cfg.Output.DownloadImages,
		SkipExisting:   cfg.Download.SkipExisting,
	}, log)
	if err != nil {
		return nil, err
	}

	return &Harvester{
		cfg:         cfg,
		client:      client,
		engine:      engine,
		paced:       paced,
		limiter:     limiter,
		checkpoints: checkpoint.NewManager(cfg.Output.BaseDirectory, log),
		log:         log,
	}, nil
}

// SetDisplay attaches the live terminal progress line.
func (h *Harvester) SetDisplay(d *ui.RunDisplay) {
	h.display = d
}

// SetMetrics attaches Prometheus collectors to the harvester and its
// engine. A nil value disables them.
func (h *Harvester) SetMetrics(m *metrics.Metrics) {
	h.metrics = m
	h.paced.metrics = m
	h.engine.SetMetrics(m)
}

// Run walks the collection until an empty or short page, the page cap, a
// fatal page error, or context cancellation ends it. A spent page retry
// budget comes back wrapped in errs.ErrPageFetchExhausted so the caller
// can decide whether to escalate; a structurally malformed page comes
// back as errs.ErrMalformedPage and is never worth another attempt. The
// returned Result is filled in even when err is non-nil.
func (h *Harvester) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	h.paced.ctx = ctx
	h.engine.Session().Reset()

	collection := h.cfg.Collection.Slug
	pageSize := h.cfg.Collection.PageSize
	res := &Result{}

	cp, startPage, sequence := h.prepareCheckpoint()

	h.log.InfoWithFields("Starting harvest", map[string]interface{}{
		"collection": collection,
		"base_url":   h.cfg.Collection.BaseURL,
		"page_size":  pageSize,
		"start_page": startPage,
	})

	capped := false
	page := startPage
	for {
		if err := ctx.Err(); err != nil {
			return h.finish(res, started), err
		}
		if maxPages := h.cfg.Collection.MaxPages; maxPages > 0 && res.Pages >= maxPages {
			h.log.InfoWithFields("Page cap reached", map[string]interface{}{
				"max_pages": maxPages,
				"records":   res.Records,
			})
			capped = true
			break
		}

		if h.display != nil {
			h.display.ScanningPage(page)
		}

		listing, err := h.fetchPage(ctx, page)
		if err != nil {
			return h.finish(res, started), h.classifyPageError(page, err)
		}
		res.Pages++
		h.metrics.PageFetched()

		if len(listing.Records) == 0 {
			h.log.InfoWithFields("Empty listing page, collection complete", map[string]interface{}{
				"page":    page,
				"records": res.Records,
			})
			break
		}

		for _, rec := range listing.Records {
			if err := ctx.Err(); err != nil {
				return h.finish(res, started), err
			}

			h.processRecord(rec, sequence)
			sequence++
			res.Records++

			if delay := h.cfg.Download.ItemDelay(); delay > 0 {
				if err := retry.Wait(ctx, delay); err != nil {
					return h.finish(res, started), err
				}
			}
		}

		logger.LogHarvestProgress(collection, page, len(listing.Records))

		if cp != nil {
			if err := h.checkpoints.UpdateProgress(cp, page+1, sequence); err != nil {
				h.log.WithError(err).Warn("Failed to update checkpoint")
			}
		}

		if listing.Short(pageSize) {
			h.log.InfoWithFields("Short listing page, collection complete", map[string]interface{}{
				"page":      page,
				"returned":  len(listing.Records),
				"page_size": pageSize,
				"records":   res.Records,
			})
			break
		}

		page++
	}

	// A capped run is unfinished work; its checkpoint stays behind so a
	// later --resume picks up at the next page.
	if cp != nil && !capped {
		if err := h.checkpoints.Delete(); err != nil {
			h.log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	h.finish(res, started)
	h.log.InfoWithFields("Harvest completed", map[string]interface{}{
		"collection": collection,
		"pages":      res.Pages,
		"records":    res.Records,
		"image_sets": res.ImageSets,
		"bytes":      res.BytesWritten,
		"written":    stats.FormatBytes(res.BytesWritten),
		"duration":   res.Duration.Round(time.Millisecond).String(),
	})
	if h.display != nil {
		h.display.Complete(res.Pages)
	}
	return res, nil
}

// prepareCheckpoint loads or creates resume state. It returns the active
// checkpoint (nil when persistence is unavailable), the page to start
// from, and the starting record sequence.
func (h *Harvester) prepareCheckpoint() (*checkpoint.Checkpoint, int, int) {
	collection := h.cfg.Collection.Slug
	baseURL := h.cfg.Collection.BaseURL
	startPage := h.cfg.Collection.StartPage

	if h.cfg.Output.Resume {
		cp, err := h.checkpoints.Load()
		switch {
		case err != nil:
			h.log.WithError(err).Warn("Failed to load checkpoint, starting fresh")
		case cp == nil:
			h.log.Info("No checkpoint to resume from, starting fresh")
		case !cp.Matches(collection, baseURL):
			h.log.WarnWithFields("Checkpoint does not match this run, starting fresh", map[string]interface{}{
				"checkpoint_collection": cp.Collection,
				"collection":            collection,
			})
		default:
			h.log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"next_page":         cp.NextPage,
				"records_processed": cp.RecordsProcessed,
			})
			return cp, cp.NextPage, cp.RecordsProcessed
		}
	}

	cp, err := h.checkpoints.Create(collection, baseURL, startPage)
	if err != nil {
		h.log.WithError(err).Warn("Failed to create checkpoint, run will not be resumable")
		return nil, startPage, 0
	}
	return cp, startPage, 0
}

// processRecord mirrors one record. Failures stay inside this record.
func (h *Harvester) processRecord(rec jsonval.Value, sequence int) {
	if label, ok := recordLabel(rec); ok {
		h.log.Info(label)
	}

	folder := names.FolderName(rec, sequence)
	if h.display != nil {
		h.display.StartRecord(folder)
	}

	recRes, err := h.engine.ProcessRecord(rec, sequence)
	if err != nil {
		h.metrics.IncError("record")
		h.log.WithError(err).WithField("folder", folder).Error("Record processing failed")
		return
	}

	if h.display != nil {
		h.display.CompleteRecord(recRes.Written, recRes.Skipped, recRes.Failed, recRes.BytesWritten)
	}
}

// fetchPage fetches one listing page under the retry policy. Every
// attempt takes a limiter token and is timed individually.
func (h *Harvester) fetchPage(ctx context.Context, page int) (*loc.Page, error) {
	return retry.DoWithResult(func() (*loc.Page, error) {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		attemptStart := time.Now()
		listing, err := h.client.FetchPage(page, h.cfg.Collection.PageSize)
		h.metrics.ObserveRequestDuration(time.Since(attemptStart))
		return listing, err
	}, h.retryConfig(ctx))
}

// retryConfig is the page-fetch retry policy. The configured curve drives
// every failure class except rate limiting, which keeps its much longer
// waits.
func (h *Harvester) retryConfig(ctx context.Context) *retry.Config {
	curve := &retry.ExponentialBackoff{
		BaseDelay:    h.cfg.Retry.InitialBackoff(),
		MaxDelay:     h.cfg.Retry.MaxBackoff(),
		Multiplier:   h.cfg.Retry.Multiplier,
		JitterFactor: h.cfg.Retry.JitterFactor,
	}
	backoff := retry.NewErrorTypeBackoff()
	backoff.Network = curve
	backoff.ServerError = curve
	backoff.Default = curve

	return &retry.Config{
		MaxAttempts:  h.cfg.Retry.MaxAttempts,
		ErrorBackoff: backoff,
		RetryIf:      pageRetryIf,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			var apiErr *errs.Error
			if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeRateLimit && h.display != nil {
				h.display.RateLimitWarning(delay)
			}
		},
		Context: ctx,
		Logger:  h.log,
	}
}

// classifyPageError maps a failed page fetch to the signal the caller
// acts on. Malformed pages and cancellations pass through unchanged,
// since neither a retry nor a relaunch can fix them. Everything else
// means the fetch budget for this page is spent.
func (h *Harvester) classifyPageError(page int, err error) error {
	switch {
	case errors.Is(err, errs.ErrMalformedPage):
		h.metrics.IncError("malformed_page")
		h.log.ErrorWithFields("Listing page is malformed, aborting run", map[string]interface{}{
			"page":  page,
			"error": err.Error(),
		})
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		h.metrics.IncError("page_fetch")
		h.log.ErrorWithFields("Page fetch failed after all attempts", map[string]interface{}{
			"page":  page,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: page %d: %w", errs.ErrPageFetchExhausted, page, err)
	}
}

// pageRetryIf widens the default predicate for listing fetches: a body
// that failed to decode as JSON is worth another try, a structurally
// malformed page is not.
func pageRetryIf(err error) bool {
	if errors.Is(err, errs.ErrMalformedPage) {
		return false
	}
	var apiErr *errs.Error
	if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeParsing {
		return true
	}
	return retry.DefaultRetryIf(err)
}

// finish stamps the run totals into res.
func (h *Harvester) finish(res *Result, started time.Time) *Result {
	res.Duration = time.Since(started)
	res.ImageSets, res.BytesWritten = h.engine.Session().Snapshot()
	return res
}

// recordLabel builds the per-record progress line, "<title> | <url>",
// from whichever of the two members the record carries.
func recordLabel(rec jsonval.Value) (string, bool) {
	obj, ok := rec.(jsonval.Object)
	if !ok {
		return "", false
	}
	title := stringMember(obj, "title")
	url := stringMember(obj, "url")
	if title == "" && url == "" {
		return "", false
	}
	return title + " | " + url, true
}

func stringMember(obj jsonval.Object, key string) string {
	v, found := obj.Get(key)
	if !found {
		return ""
	}
	if s, ok := v.(jsonval.String); ok {
		return string(s)
	}
	return ""
}
